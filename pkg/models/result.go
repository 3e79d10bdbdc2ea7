package models

// DefaultOutputType is the asset kind used when the engine omits one.
const DefaultOutputType = "output"

// OutputRef points at an asset the engine rendered.
type OutputRef struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// NodeOutput is the output section of one node in a result record.
type NodeOutput struct {
	Images []OutputRef `json:"images,omitempty"`
}

// ResultStatus is the engine's completion summary.
type ResultStatus struct {
	StatusStr string `json:"status_str,omitempty"`
	Completed bool   `json:"completed"`
}

// ResultRecord is the engine's execution record for a submitted graph.
type ResultRecord struct {
	Outputs map[string]NodeOutput `json:"outputs"`
	Status  *ResultStatus         `json:"status,omitempty"`
}

// HasOutputs reports whether the engine produced an outputs section.
func (r *ResultRecord) HasOutputs() bool {
	return r != nil && r.Outputs != nil
}
