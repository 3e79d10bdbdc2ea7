package models

import "time"

// ExecutionState is the lifecycle position of an execution record.
type ExecutionState string

const (
	ExecutionStateIdle       ExecutionState = "idle"
	ExecutionStateUploading  ExecutionState = "uploading"
	ExecutionStateQueued     ExecutionState = "queued"
	ExecutionStatePolling    ExecutionState = "polling"
	ExecutionStateExtracting ExecutionState = "extracting"
	ExecutionStateDone       ExecutionState = "done"
	ExecutionStateFailed     ExecutionState = "failed"
)

// IsTerminal reports whether no further transition can happen from s.
func (s ExecutionState) IsTerminal() bool {
	return s == ExecutionStateDone || s == ExecutionStateFailed
}

// IsActive reports whether a run currently owns the record.
func (s ExecutionState) IsActive() bool {
	return s != "" && s != ExecutionStateIdle && !s.IsTerminal()
}

// ErrorKind classifies a failed execution.
type ErrorKind string

const (
	ErrorKindGraphLoad        ErrorKind = "GraphLoadError"
	ErrorKindUpload           ErrorKind = "UploadError"
	ErrorKindSubmit           ErrorKind = "SubmitError"
	ErrorKindTransport        ErrorKind = "TransportError"
	ErrorKindExecutionTimeout ErrorKind = "ExecutionTimeout"
	ErrorKindNoOutput         ErrorKind = "NoOutputProduced"
	ErrorKindInvalidOverride  ErrorKind = "InvalidOverride"
)

// ExecutionFailure is the error carried by a failed record.
type ExecutionFailure struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// ExecutionRecord tracks one run from graph load to result extraction.
type ExecutionRecord struct {
	ID              string            `json:"id"`
	Workflow        string            `json:"workflow"`
	State           ExecutionState    `json:"state"`
	ProgressPercent float64           `json:"progress_percent"`
	ResultRef       *string           `json:"result_ref"`
	RunID           string            `json:"run_id,omitempty"`
	Error           *ExecutionFailure `json:"error,omitempty"`
	StartedAt       time.Time         `json:"started_at"`
	FinishedAt      *time.Time        `json:"finished_at,omitempty"`
}

// Copy returns a record that shares no pointers with r.
func (r ExecutionRecord) Copy() ExecutionRecord {
	out := r

	if r.ResultRef != nil {
		ref := *r.ResultRef
		out.ResultRef = &ref
	}

	if r.Error != nil {
		failure := *r.Error
		out.Error = &failure
	}

	if r.FinishedAt != nil {
		finished := *r.FinishedAt
		out.FinishedAt = &finished
	}

	return out
}
