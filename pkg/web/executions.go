package web

import (
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/dukex/ximager/pkg/models"
	"github.com/dukex/ximager/pkg/orchestrator"
	"github.com/gofiber/fiber/v3"
)

// AssetFieldPrefix prefixes the multipart file fields of POST /executions: asset_0, asset_1, ...
const AssetFieldPrefix = "asset_"

// StartExecution starts a run in the background and answers 202 with the new record.
func (h *APIHandlers) StartExecution(c fiber.Ctx) error {
	req, err := parseStartExecution(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	assets, err := formAssets(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	runRequest := orchestrator.RunRequest{
		Workflow: req.Workflow,
		Prompt:   req.Prompt,
		Assets:   assets,
	}

	if req.Width != nil || req.Height != nil {
		runRequest.Dimensions = &models.Dimensions{Width: req.Width, Height: req.Height}
	}

	record, err := h.orchestrator.Start(h.runContext, runRequest)
	if err != nil {
		return handleServiceError(c, err)
	}

	h.logger.InfoContext(c.Context(), "Execution started", "execution_id", record.ID, "workflow", record.Workflow)

	return c.Status(fiber.StatusAccepted).JSON(record)
}

func (h *APIHandlers) GetCurrentExecution(c fiber.Ctx) error {
	return c.JSON(h.orchestrator.Snapshot())
}

func (h *APIHandlers) GetExecutionLogs(c fiber.Ctx) error {
	return c.JSON(h.orchestrator.Logs())
}

func parseStartExecution(c fiber.Ctx) (StartExecutionRequest, error) {
	req := StartExecutionRequest{
		Workflow: c.FormValue("workflow"),
		Prompt:   c.FormValue("prompt"),
	}

	var err error

	if req.Width, err = optionalInt(c.FormValue("width")); err != nil {
		return req, fmt.Errorf("invalid width: %w", err)
	}

	if req.Height, err = optionalInt(c.FormValue("height")); err != nil {
		return req, fmt.Errorf("invalid height: %w", err)
	}

	return req, nil
}

func optionalInt(value string) (*int, error) {
	if value == "" {
		return nil, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return nil, err
	}

	return &parsed, nil
}

// formAssets reads the asset_<slot> files of a multipart body. Other content types carry no assets.
func formAssets(c fiber.Ctx) (map[int]models.Asset, error) {
	assets := map[int]models.Asset{}

	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return assets, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("invalid multipart body: %w", err)
	}

	for field, headers := range form.File {
		if !strings.HasPrefix(field, AssetFieldPrefix) || len(headers) == 0 {
			continue
		}

		slot, err := strconv.Atoi(strings.TrimPrefix(field, AssetFieldPrefix))
		if err != nil {
			return nil, fmt.Errorf("invalid asset field %q", field)
		}

		asset, err := readAsset(headers[0])
		if err != nil {
			return nil, err
		}

		assets[slot] = asset
	}

	return assets, nil
}

func readAsset(header *multipart.FileHeader) (models.Asset, error) {
	file, err := header.Open()
	if err != nil {
		return models.Asset{}, fmt.Errorf("failed to open %s: %w", header.Filename, err)
	}

	defer func() { _ = file.Close() }()

	content, err := io.ReadAll(file)
	if err != nil {
		return models.Asset{}, fmt.Errorf("failed to read %s: %w", header.Filename, err)
	}

	return models.Asset{
		Filename:    header.Filename,
		ContentType: header.Header.Get(fiber.HeaderContentType),
		Content:     content,
	}, nil
}
