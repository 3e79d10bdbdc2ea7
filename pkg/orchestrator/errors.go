package orchestrator

import (
	"errors"
	"fmt"

	"github.com/dukex/ximager/pkg/comfyui"
	"github.com/dukex/ximager/pkg/models"
)

// ErrRunInProgress rejects a run while another one owns the orchestrator.
var ErrRunInProgress = errors.New("an execution is already in progress")

// ExecutionError is the typed failure that ends a run.
type ExecutionError struct {
	Kind    models.ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *ExecutionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Failure returns the form stored on the execution record.
func (e *ExecutionError) Failure() *models.ExecutionFailure {
	message := e.Message
	if message == "" && e.Err != nil {
		message = e.Err.Error()
	}

	return &models.ExecutionFailure{Kind: e.Kind, Message: message}
}

func newExecutionError(kind models.ErrorKind, op string, err error) *ExecutionError {
	return &ExecutionError{Kind: kind, Op: op, Err: err}
}

func invalidOverride(format string, args ...any) *ExecutionError {
	return &ExecutionError{
		Kind:    models.ErrorKindInvalidOverride,
		Op:      "validate overrides",
		Message: fmt.Sprintf(format, args...),
	}
}

// gatewayFailure reports an engine rejection (HTTP status) with the step's kind and
// anything else, such as a refused connection, as a transport failure.
func gatewayFailure(kind models.ErrorKind, op string, err error) *ExecutionError {
	var httpErr *comfyui.HTTPError
	if errors.As(err, &httpErr) {
		return newExecutionError(kind, op, err)
	}

	return newExecutionError(models.ErrorKindTransport, op, err)
}

// IsRunInProgress checks if a run was rejected because another one is active.
func IsRunInProgress(err error) bool {
	return errors.Is(err, ErrRunInProgress)
}
