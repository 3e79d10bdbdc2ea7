package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/ximager/pkg/cmd"
	"github.com/dukex/ximager/pkg/eventbus"
	"github.com/dukex/ximager/pkg/events"
	"github.com/dukex/ximager/pkg/log"
	"github.com/dukex/ximager/pkg/orchestrator"
	"github.com/dukex/ximager/pkg/otelhelper"
	"github.com/dukex/ximager/pkg/templates"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("XIMAGER_TRACING"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := log.WithModule("api")

			settings, err := loadSettings(command)
			if err != nil {
				return err
			}

			logger.InfoContext(ctx, "Initializing ximager API", "engine", settings.ComfyUIServerURL)

			svc, err := newServices(ctx, settings, logger)
			if err != nil {
				return err
			}
			defer svc.Close(ctx)

			svc.hydrate(ctx)

			opts, shutdownTracer, err := tracingOptions(ctx, command.Bool("tracing"))
			if err != nil {
				return err
			}
			defer shutdownTracer()

			eventBus, err := cmd.NewEventBus(settings.EventBus, settings.KafkaBrokers, logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			if err := subscribeEventLog(ctx, eventBus, logger); err != nil {
				return err
			}

			runner, err := svc.newOrchestrator(ctx, append(opts, orchestrator.WithPublisher(eventBus))...)
			if err != nil {
				return err
			}
			defer runner.Wait()

			if svc.dirSource != nil && settings.ManifestSchedule != "" {
				refresher, err := templates.NewManifestRefresher(svc.dirSource.Dir(), settings.ManifestSchedule, logger)
				if err != nil {
					return err
				}

				if err := refresher.Start(ctx); err != nil {
					return err
				}

				defer func() {
					if err := refresher.Stop(context.WithoutCancel(ctx)); err != nil {
						logger.ErrorContext(ctx, "Failed to stop manifest refresher", "error", err)
					}
				}()
			}

			api := NewAPI(ctx, logger, svc, runner)

			logger.InfoContext(ctx, "Listening", "port", command.Int("port"))

			if err := api.Start(ctx, command.Int("port")); err != nil {
				return fmt.Errorf("failed to start API: %w", err)
			}

			return nil
		},
	}
}

// tracingOptions returns the orchestrator options for tracing and the matching shutdown.
func tracingOptions(ctx context.Context, enabled bool) ([]orchestrator.Option, func(), error) {
	if !enabled {
		return nil, func() {}, nil
	}

	tracer, shutdown, err := otelhelper.NewTracer(ctx, "ximager")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	return []orchestrator.Option{orchestrator.WithTracer(tracer)}, func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			slog.Error("Failed to shut down tracer provider", "error", err)
		}
	}, nil
}

// subscribeEventLog logs every execution lifecycle event that comes through the bus.
func subscribeEventLog(ctx context.Context, bus eventbus.EventBus, logger *slog.Logger) error {
	logger = logger.With("module", "execution_events")

	handlers := map[events.EventType]eventbus.EventHandler{
		events.ExecutionStartedEvent: func(ctx context.Context, event any) error {
			if started, ok := event.(*events.ExecutionStarted); ok {
				logger.InfoContext(ctx, "Execution started",
					"execution_id", started.ExecutionID, "workflow", started.Workflow, "slots", started.Slots)
			}

			return nil
		},
		events.ExecutionCompletedEvent: func(ctx context.Context, event any) error {
			if completed, ok := event.(*events.ExecutionCompleted); ok {
				logger.InfoContext(ctx, "Execution completed",
					"execution_id", completed.ExecutionID, "run_id", completed.RunID, "duration", completed.Duration)
			}

			return nil
		},
		events.ExecutionFailedEvent: func(ctx context.Context, event any) error {
			if failed, ok := event.(*events.ExecutionFailed); ok {
				logger.WarnContext(ctx, "Execution failed",
					"execution_id", failed.ExecutionID, "kind", failed.Kind, "error", failed.Error)
			}

			return nil
		},
	}

	for eventType, handler := range handlers {
		if err := bus.Handle(eventType, handler); err != nil {
			return fmt.Errorf("failed to register %s handler: %w", eventType, err)
		}
	}

	return bus.Subscribe(ctx)
}
