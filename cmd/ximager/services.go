package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/ximager/pkg/cmd"
	"github.com/dukex/ximager/pkg/comfyui"
	"github.com/dukex/ximager/pkg/config"
	"github.com/dukex/ximager/pkg/gateway"
	"github.com/dukex/ximager/pkg/keywords"
	"github.com/dukex/ximager/pkg/orchestrator"
	"github.com/dukex/ximager/pkg/persistence"
	"github.com/dukex/ximager/pkg/templates"
	"github.com/dukex/ximager/pkg/web"
)

// services holds what every command shares: the store, the engine client and the template source.
type services struct {
	settings  config.Settings
	logger    *slog.Logger
	store     persistence.Persistence
	client    *comfyui.Client
	source    templates.Source
	dirSource *templates.DirSource
	gateway   *gateway.Engine
	keywords  *keywords.Index
	macros    *keywords.Macros
}

func newServices(ctx context.Context, settings config.Settings, logger *slog.Logger) (*services, error) {
	store, err := cmd.NewPersistence(ctx, logger, settings.Store)
	if err != nil {
		return nil, err
	}

	client := comfyui.NewClient(config.NewHandle(settings.ComfyUIServerURL), logger)

	svc := &services{
		settings: settings,
		logger:   logger,
		store:    store,
		client:   client,
		keywords: keywords.NewIndex(store, logger),
		macros:   keywords.NewMacros(store, logger),
	}

	if settings.WorkflowSourceURL != "" {
		svc.source = templates.NewHTTPSource(settings.WorkflowSourceURL, logger)
	} else {
		svc.dirSource = templates.NewDirSource(settings.WorkflowDirectory, logger)
		svc.source = svc.dirSource
	}

	svc.gateway = gateway.NewEngine(client, svc.source, logger)

	return svc, nil
}

// renamer is nil for read-only template sources.
func (s *services) renamer() web.WorkflowRenamer {
	if s.dirSource == nil {
		return nil
	}

	return s.dirSource
}

// hydrate loads the keyword and macro documents; the index stays usable read-only when the store is down.
func (s *services) hydrate(ctx context.Context) {
	if err := errors.Join(s.keywords.Hydrate(ctx), s.macros.Hydrate(ctx)); err != nil {
		s.logger.WarnContext(ctx, "Failed to load keyword documents", "error", err)
	}
}

func (s *services) newOrchestrator(ctx context.Context, opts ...orchestrator.Option) (*orchestrator.Orchestrator, error) {
	resolver, err := cmd.NewResultSink(ctx, s.settings.ResultSink, s.settings.OutputDirectory, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create result sink: %w", err)
	}

	opts = append([]orchestrator.Option{orchestrator.WithConfig(orchestratorConfig(s.settings))}, opts...)

	return orchestrator.New(s.gateway, s.macros, s.keywords, resolver, s.logger, opts...), nil
}

func (s *services) Close(ctx context.Context) {
	if err := s.store.Close(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
	}
}
