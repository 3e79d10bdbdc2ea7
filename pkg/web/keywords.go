package web

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/dukex/ximager/pkg/keywords"
	"github.com/dukex/ximager/pkg/models"
	"github.com/gofiber/fiber/v3"
	"github.com/xeipuuv/gojsonschema"
)

var errInvalidDocument = errors.New("invalid document")

var keywordTableSchema = map[string]any{
	"type": "object",
	"additionalProperties": map[string]any{
		"type":     "object",
		"required": []any{"count"},
		"properties": map[string]any{
			"text":     map[string]any{"type": "string"},
			"count":    map[string]any{"type": "integer", "minimum": 0},
			"lastUsed": map[string]any{"type": "integer", "minimum": 0},
		},
	},
}

var macroTableSchema = map[string]any{
	"type": "object",
	"propertyNames": map[string]any{
		"pattern": `^@?\w+$`,
	},
	"additionalProperties": map[string]any{
		"type":      "string",
		"minLength": 1,
	},
}

// GetKeywords serves the keyword store contract: the whole frequency table.
func (h *APIHandlers) GetKeywords(c fiber.Ctx) error {
	if err := h.keywords.Hydrate(c.Context()); err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(h.keywords.Table())
}

// ReplaceKeywords serves the keyword store contract: whole-table replace.
func (h *APIHandlers) ReplaceKeywords(c fiber.Ctx) error {
	var table models.KeywordTable
	if err := decodeDocument(c.Body(), keywordTableSchema, &table); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.keywords.Replace(c.Context(), table); err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(AckResponse{OK: true})
}

func (h *APIHandlers) ListKeywords(c fiber.Ctx) error {
	if err := h.keywords.Hydrate(c.Context()); err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(h.keywords.All())
}

func (h *APIHandlers) SuggestKeywords(c fiber.Ctx) error {
	if err := h.keywords.Hydrate(c.Context()); err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(h.keywords.Suggest(c.Query("q")))
}

func (h *APIHandlers) AddKeyword(c fiber.Ctx) error {
	var req AddKeywordRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	count := 1
	if req.Count != nil {
		count = *req.Count
	}

	if err := h.keywords.Add(c.Context(), req.Text, count); err != nil {
		return handleServiceError(c, err)
	}

	stat, _ := h.keywords.Get(strings.TrimSpace(req.Text))

	return c.Status(fiber.StatusCreated).JSON(stat)
}

func (h *APIHandlers) RenameKeyword(c fiber.Ctx) error {
	oldText, err := url.PathUnescape(c.Params("text"))
	if err != nil {
		return badRequest(c, "Invalid keyword")
	}

	var req RenameKeywordRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.keywords.Hydrate(c.Context()); err != nil {
		return handleServiceError(c, err)
	}

	count := 0
	if req.Count != nil {
		count = *req.Count
	} else if current, ok := h.keywords.Get(oldText); ok {
		count = current.Count
	}

	if err := h.keywords.Rename(c.Context(), oldText, req.Text, count); err != nil {
		return handleServiceError(c, err)
	}

	stat, _ := h.keywords.Get(strings.TrimSpace(req.Text))

	return c.JSON(stat)
}

func (h *APIHandlers) DeleteKeyword(c fiber.Ctx) error {
	text, err := url.PathUnescape(c.Params("text"))
	if err != nil {
		return badRequest(c, "Invalid keyword")
	}

	if err := h.keywords.Remove(c.Context(), text); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetMacros(c fiber.Ctx) error {
	if err := h.macros.Hydrate(c.Context()); err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(h.macros.List())
}

func (h *APIHandlers) ReplaceMacros(c fiber.Ctx) error {
	var table models.MacroTable
	if err := decodeDocument(c.Body(), macroTableSchema, &table); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.macros.Replace(c.Context(), table); err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(AckResponse{OK: true})
}

func (h *APIHandlers) SetMacro(c fiber.Ctx) error {
	key, err := url.PathUnescape(c.Params("key"))
	if err != nil {
		return badRequest(c, "Invalid macro key")
	}

	var req SetMacroRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.macros.Set(c.Context(), key, req.Expansion); err != nil {
		return handleServiceError(c, err)
	}

	key = keywords.NormalizeMacroKey(key)
	expansion, _ := h.macros.Get(key)

	return c.JSON(MacroResponse{Key: key, Expansion: expansion})
}

func (h *APIHandlers) DeleteMacro(c fiber.Ctx) error {
	key, err := url.PathUnescape(c.Params("key"))
	if err != nil {
		return badRequest(c, "Invalid macro key")
	}

	if err := h.macros.Delete(c.Context(), key); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// decodeDocument validates body against schema and decodes it into dest.
func decodeDocument(body []byte, schema map[string]any, dest any) error {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidDocument, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("%w: %s", errInvalidDocument, strings.Join(details, "; "))
	}

	if err := sonic.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("%w: %w", errInvalidDocument, err)
	}

	return nil
}
