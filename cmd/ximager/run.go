package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dukex/ximager/pkg/log"
	"github.com/dukex/ximager/pkg/models"
	"github.com/dukex/ximager/pkg/orchestrator"
	cli "github.com/urfave/cli/v3"
)

var ErrInvalidAssetFlag = errors.New("asset must look like <slot>=<path>")

func RunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Run a workflow once and stream its log",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "workflow",
				Aliases:  []string{"w"},
				Usage:    "Workflow template name",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "prompt",
				Usage: "Prompt text; @macros are expanded",
			},
			&cli.StringSliceFlag{
				Name:  "asset",
				Usage: "Input asset for a slot, as <slot>=<path>; repeat for more slots",
			},
			&cli.IntFlag{
				Name:  "width",
				Usage: "Output width",
			},
			&cli.IntFlag{
				Name:  "height",
				Usage: "Output height",
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("XIMAGER_TRACING"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.WithModule("run")

			settings, err := loadSettings(command)
			if err != nil {
				return err
			}

			assets, err := readAssets(command.StringSlice("asset"), settings.InputDirectory)
			if err != nil {
				return err
			}

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

			runner, err := svc.newOrchestrator(ctx, opts...)
			if err != nil {
				return err
			}

			req := orchestrator.RunRequest{
				Workflow: command.String("workflow"),
				Prompt:   command.String("prompt"),
				Assets:   assets,
			}

			if command.IsSet("width") || command.IsSet("height") {
				req.Dimensions = &models.Dimensions{}

				if command.IsSet("width") {
					width := command.Int("width")
					req.Dimensions.Width = &width
				}

				if command.IsSet("height") {
					height := command.Int("height")
					req.Dimensions.Height = &height
				}
			}

			return runOnce(ctx, runner, req, command.Root().Writer)
		},
	}
}

// runOnce runs req, writing every log entry to out, and prints the result reference.
func runOnce(ctx context.Context, runner *orchestrator.Orchestrator, req orchestrator.RunRequest, out io.Writer) error {
	unsubscribe := runner.Subscribe(func(event orchestrator.Event) {
		if event.Kind != orchestrator.EventLog || event.Log == nil {
			return
		}

		_, _ = fmt.Fprintf(out, "%s [%s] %s\n", event.Log.Timestamp.Format("15:04:05"), event.Log.Level, event.Log.Message)
	})
	defer unsubscribe()

	record, err := runner.Run(ctx, req)
	runner.Wait()

	if err != nil {
		return err
	}

	if record.Error != nil {
		return fmt.Errorf("%s: %s", record.Error.Kind, record.Error.Message)
	}

	if record.ResultRef != nil {
		_, err = fmt.Fprintln(out, *record.ResultRef)
	}

	return err
}

// readAssets loads <slot>=<path> values. Relative paths missing from the working
// directory are looked up in inputDir.
func readAssets(values []string, inputDir string) (map[int]models.Asset, error) {
	assets := make(map[int]models.Asset, len(values))

	for _, value := range values {
		rawSlot, path, ok := strings.Cut(value, "=")
		if !ok || path == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAssetFlag, value)
		}

		slot, err := strconv.Atoi(strings.TrimSpace(rawSlot))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAssetFlag, value)
		}

		asset, err := readAssetFile(resolveAssetPath(path, inputDir))
		if err != nil {
			return nil, err
		}

		assets[slot] = asset
	}

	return assets, nil
}

func resolveAssetPath(path, inputDir string) string {
	if filepath.IsAbs(path) || inputDir == "" {
		return path
	}

	if _, err := os.Stat(path); err == nil {
		return path
	}

	return filepath.Join(inputDir, path)
}

func readAssetFile(path string) (models.Asset, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return models.Asset{}, fmt.Errorf("failed to read asset: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = http.DetectContentType(content)
	}

	return models.Asset{
		Filename:    filepath.Base(path),
		ContentType: contentType,
		Content:     content,
	}, nil
}
