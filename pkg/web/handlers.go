// Package web exposes the control surface over HTTP: workflow templates, executions,
// the keyword and macro documents, and a relay to the remote engine.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukex/ximager/pkg/comfyui"
	"github.com/dukex/ximager/pkg/gateway"
	"github.com/dukex/ximager/pkg/keywords"
	"github.com/dukex/ximager/pkg/orchestrator"
	"github.com/dukex/ximager/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// WorkflowRenamer is implemented by template sources that can rename documents.
type WorkflowRenamer interface {
	Rename(ctx context.Context, oldName, newName string) (string, error)
}

// Dependencies wires the handlers. Renamer may be nil when the template source is read-only.
type Dependencies struct {
	Orchestrator *orchestrator.Orchestrator
	Gateway      gateway.Gateway
	Renamer      WorkflowRenamer
	Keywords     *keywords.Index
	Macros       *keywords.Macros
	Engine       *comfyui.Client
	Store        persistence.Persistence
	Validator    *validator.Validate
	// RunContext bounds executions started over HTTP; it must outlive single requests.
	RunContext context.Context
	Logger     *slog.Logger
}

type APIHandlers struct {
	orchestrator *orchestrator.Orchestrator
	gateway      gateway.Gateway
	renamer      WorkflowRenamer
	keywords     *keywords.Index
	macros       *keywords.Macros
	engine       *comfyui.Client
	store        persistence.Persistence
	validator    *validator.Validate
	runContext   context.Context
	logger       *slog.Logger
}

func NewAPIHandlers(deps Dependencies) *APIHandlers {
	runContext := deps.RunContext
	if runContext == nil {
		runContext = context.Background()
	}

	validate := deps.Validator
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}

	return &APIHandlers{
		orchestrator: deps.Orchestrator,
		gateway:      deps.Gateway,
		renamer:      deps.Renamer,
		keywords:     deps.Keywords,
		macros:       deps.Macros,
		engine:       deps.Engine,
		store:        deps.Store,
		validator:    validate,
		runContext:   runContext,
		logger:       deps.Logger.With("module", "web"),
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	storeCheck, engineCheck := "ok", "ok"
	healthy := true

	if err := h.store.HealthCheck(c.Context()); err != nil {
		storeCheck = err.Error()
		healthy = false
	}

	if _, err := h.engine.SystemStats(c.Context()); err != nil {
		engineCheck = err.Error()
		healthy = false
	}

	status := "unhealthy"
	message := "ximager is unhealthy"
	httpStatus := http.StatusServiceUnavailable

	if healthy {
		status = "healthy"
		message = "ximager is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"store":  storeCheck,
			"engine": engineCheck,
		},
		"engine_url": h.engine.ServerURL(),
		"timestamp":  time.Now().UTC(),
	})
}
