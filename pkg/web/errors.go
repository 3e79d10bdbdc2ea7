package web

import (
	"errors"

	"github.com/dukex/ximager/pkg/keywords"
	"github.com/dukex/ximager/pkg/orchestrator"
	"github.com/dukex/ximager/pkg/persistence"
	"github.com/dukex/ximager/pkg/templates"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func notSupported(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(501).
		WithInstance(c.Path()).
		WithType("not_supported").
		WithDetail(detail)

	return c.Status(fiber.StatusNotImplemented).JSON(problem)
}

func badGateway(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(502).
		WithInstance(c.Path()).
		WithType("engine_unreachable").
		WithError(err)

	return c.Status(fiber.StatusBadGateway).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps typed errors from the core packages to problem documents.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case keywords.IsValidationError(err), templates.IsInvalid(err):
		return badRequest(c, err.Error())

	case keywords.IsNotFound(err), templates.IsNotFound(err):
		return notFound(c, err.Error())

	case errors.Is(err, templates.ErrTemplateExists), orchestrator.IsRunInProgress(err):
		return conflict(c, err.Error())

	case persistence.IsStoreUnavailable(err):
		problem := problems.NewStatusProblem(503).
			WithInstance(c.Path()).
			WithType("store_unavailable").
			WithDetail(err.Error())

		return c.Status(fiber.StatusServiceUnavailable).JSON(problem)

	default:
		return internalError(c, err)
	}
}
