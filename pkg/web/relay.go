package web

import (
	"bytes"
	"io"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v3"
)

// RelayPrefix is stripped from relayed paths: /api/comfy/prompt reaches the engine as /prompt.
const RelayPrefix = "/api/comfy"

// Relay forwards the request to the engine and copies the answer back unchanged.
func (h *APIHandlers) Relay(c fiber.Ctx) error {
	path := strings.TrimPrefix(c.Path(), RelayPrefix)
	if path == "" {
		path = "/"
	}

	query, err := url.ParseQuery(string(c.Request().URI().QueryString()))
	if err != nil {
		return badRequest(c, "Invalid query string")
	}

	var body io.Reader
	if raw := c.Body(); len(raw) > 0 {
		body = bytes.NewReader(raw)
	}

	resp, err := h.engine.Do(c.Context(), c.Method(), path, query, body, c.Get(fiber.HeaderContentType))
	if err != nil {
		h.logger.WarnContext(c.Context(), "Engine relay failed", "path", path, "error", err)

		return badGateway(c, err)
	}

	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return badGateway(c, err)
	}

	if contentType := resp.Header.Get(fiber.HeaderContentType); contentType != "" {
		c.Set(fiber.HeaderContentType, contentType)
	}

	return c.Status(resp.StatusCode).Send(payload)
}
