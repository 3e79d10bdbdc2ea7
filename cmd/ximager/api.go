package main

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/dukex/ximager/pkg/comfyui"
	"github.com/dukex/ximager/pkg/gateway"
	"github.com/dukex/ximager/pkg/keywords"
	"github.com/dukex/ximager/pkg/orchestrator"
	"github.com/dukex/ximager/pkg/persistence"
	"github.com/dukex/ximager/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

const shutdownTimeout = 10 * time.Second

type API struct {
	logger       *slog.Logger
	persistence  persistence.Persistence
	orchestrator *orchestrator.Orchestrator
	gateway      gateway.Gateway
	renamer      web.WorkflowRenamer
	keywords     *keywords.Index
	macros       *keywords.Macros
	engine       *comfyui.Client
	runContext   context.Context
	validate     *validator.Validate
}

// NewAPI wires the HTTP surface. runContext bounds the executions started over HTTP.
func NewAPI(runContext context.Context, logger *slog.Logger, svc *services, runner *orchestrator.Orchestrator) *API {
	return &API{
		logger:       logger,
		persistence:  svc.store,
		orchestrator: runner,
		gateway:      svc.gateway,
		renamer:      svc.renamer(),
		keywords:     svc.keywords,
		macros:       svc.macros,
		engine:       svc.client,
		runContext:   runContext,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(web.Dependencies{
		Orchestrator: a.orchestrator,
		Gateway:      a.gateway,
		Renamer:      a.renamer,
		Keywords:     a.keywords,
		Macros:       a.macros,
		Engine:       a.engine,
		Store:        a.persistence,
		Validator:    a.validate,
		RunContext:   a.runContext,
		Logger:       a.logger,
	})

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("ximager API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/rename", handlers.RenameWorkflow)
	w.Get("/:name", handlers.GetWorkflow)

	e := app.Group("/executions")
	e.Post("/", handlers.StartExecution)
	e.Get("/current", handlers.GetCurrentExecution)
	e.Get("/current/logs", handlers.GetExecutionLogs)

	k := app.Group("/keywords")
	k.Get("/", handlers.GetKeywords)
	k.Post("/", handlers.ReplaceKeywords)
	k.Get("/suggest", handlers.SuggestKeywords)
	k.Get("/entries", handlers.ListKeywords)
	k.Post("/entries", handlers.AddKeyword)
	k.Patch("/entries/:text", handlers.RenameKeyword)
	k.Delete("/entries/:text", handlers.DeleteKeyword)

	m := app.Group("/macros")
	m.Get("/", handlers.GetMacros)
	m.Post("/", handlers.ReplaceMacros)
	m.Put("/:key", handlers.SetMacro)
	m.Delete("/:key", handlers.DeleteMacro)

	// Engine relay
	r := app.Group(web.RelayPrefix)
	r.Get("/system_stats", handlers.Relay)
	r.Post("/prompt", handlers.Relay)
	r.Get("/history/:id", handlers.Relay)
	r.Post("/upload/image", handlers.Relay)
	r.Get("/view", handlers.Relay)

	app.Get("/health", handlers.HealthCheck)

	return app
}

// Start serves until ctx is done, then shuts the server down.
func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			a.logger.Error("Failed to shut down API", "error", err)
		}
	}()

	return app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
}
