package web

import (
	"net/url"

	"github.com/dukex/ximager/pkg/patch"
	"github.com/dukex/ximager/pkg/templates"
	"github.com/gofiber/fiber/v3"
)

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	names, err := h.gateway.ListGraphTemplates(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows": names,
		"count":     len(names),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	name, err := url.PathUnescape(c.Params("name"))
	if err != nil || name == "" {
		return badRequest(c, "Workflow name is required")
	}

	graph, err := h.gateway.LoadGraphTemplate(c.Context(), name)
	if err != nil {
		return handleServiceError(c, err)
	}

	width, height := patch.ExtractDimensions(graph)

	return c.JSON(WorkflowResponse{
		Name:        name,
		DisplayName: templates.DisplayName(name),
		Slots:       patch.SlotCount(graph),
		Dimensions:  DimensionsResponse{Width: width, Height: height},
		Graph:       graph,
	})
}

func (h *APIHandlers) RenameWorkflow(c fiber.Ctx) error {
	if h.renamer == nil {
		return notSupported(c, "the workflow source does not support renaming")
	}

	var req RenameWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	newName, err := h.renamer.Rename(c.Context(), req.OldName, req.NewName)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(RenameWorkflowResponse{Success: true, NewName: newName})
}
