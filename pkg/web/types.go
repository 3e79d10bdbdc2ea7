package web

import "github.com/dukex/ximager/pkg/models"

// StartExecutionRequest is the form part of POST /executions; files travel as asset_<slot>.
type StartExecutionRequest struct {
	Workflow string `form:"workflow" validate:"required"`
	Prompt   string `form:"prompt"`
	Width    *int   `form:"width"    validate:"omitempty,gt=0"`
	Height   *int   `form:"height"   validate:"omitempty,gt=0"`
}

// RenameWorkflowRequest uses the camelCase keys of the original dev-server endpoint.
type RenameWorkflowRequest struct {
	OldName string `json:"oldName" validate:"required"`
	NewName string `json:"newName" validate:"required"`
}

type RenameWorkflowResponse struct {
	Success bool   `json:"success"`
	NewName string `json:"newName"`
}

// WorkflowResponse describes one graph template and the overrides it accepts.
type WorkflowResponse struct {
	Name        string                `json:"name"`
	DisplayName string                `json:"display_name"`
	Slots       int                   `json:"slots"`
	Dimensions  DimensionsResponse    `json:"dimensions"`
	Graph       models.ExecutionGraph `json:"graph"`
}

type DimensionsResponse struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type AddKeywordRequest struct {
	Text  string `json:"text"  validate:"required"`
	Count *int   `json:"count" validate:"omitempty,gte=0"`
}

// RenameKeywordRequest renames the entry in the path. Count defaults to the entry's current count.
type RenameKeywordRequest struct {
	Text  string `json:"text"  validate:"required"`
	Count *int   `json:"count" validate:"omitempty,gte=0"`
}

type SetMacroRequest struct {
	Expansion string `json:"expansion" validate:"required"`
}

type MacroResponse struct {
	Key       string `json:"key"`
	Expansion string `json:"expansion"`
}

// AckResponse acknowledges a whole-document write.
type AckResponse struct {
	OK bool `json:"ok"`
}
