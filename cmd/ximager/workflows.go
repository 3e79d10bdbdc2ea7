package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/ximager/pkg/log"
	"github.com/dukex/ximager/pkg/patch"
	"github.com/dukex/ximager/pkg/templates"
	cli "github.com/urfave/cli/v3"
)

var ErrRenameUnsupported = errors.New("the workflow source does not support renaming")

func WorkflowsCommand() *cli.Command {
	return &cli.Command{
		Name:    "workflows",
		Aliases: []string{"wf"},
		Usage:   "List and rename workflow templates",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List the workflow templates with their slot count",
				Action: func(ctx context.Context, command *cli.Command) error {
					svc, err := commandServices(ctx, command, "workflows")
					if err != nil {
						return err
					}
					defer svc.Close(ctx)

					names, err := svc.source.List(ctx)
					if err != nil {
						return err
					}

					out := command.Root().Writer

					for _, name := range names {
						graph, err := svc.source.Load(ctx, name)
						if err != nil {
							_, _ = fmt.Fprintf(out, "%s\t(unreadable: %v)\n", name, err)

							continue
						}

						_, _ = fmt.Fprintf(out, "%s\t%s\tslots=%d\n", name, templates.DisplayName(name), patch.SlotCount(graph))
					}

					return nil
				},
			},
			{
				Name:      "rename",
				Usage:     "Rename a workflow template",
				ArgsUsage: "<old> <new>",
				Action: func(ctx context.Context, command *cli.Command) error {
					if command.Args().Len() != 2 {
						return fmt.Errorf("expected <old> <new>, got %d arguments", command.Args().Len())
					}

					svc, err := commandServices(ctx, command, "workflows")
					if err != nil {
						return err
					}
					defer svc.Close(ctx)

					if svc.dirSource == nil {
						return ErrRenameUnsupported
					}

					newName, err := svc.dirSource.Rename(ctx, command.Args().Get(0), command.Args().Get(1))
					if err != nil {
						return err
					}

					_, err = fmt.Fprintln(command.Root().Writer, newName)

					return err
				},
			},
		},
	}
}

func ManifestCommand() *cli.Command {
	return &cli.Command{
		Name:  "manifest",
		Usage: "Maintain the workflow manifest",
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "Write manifest.json for the workflow directory",
				Action: func(ctx context.Context, command *cli.Command) error {
					settings, err := loadSettings(command)
					if err != nil {
						return err
					}

					manifest, err := templates.WriteManifest(settings.WorkflowDirectory, time.Now().UTC())
					if err != nil {
						return err
					}

					log.WithModule("manifest").InfoContext(ctx, "Manifest written",
						"dir", settings.WorkflowDirectory, "count", manifest.Count)

					_, err = fmt.Fprintf(command.Root().Writer, "%d workflows\n", manifest.Count)

					return err
				},
			},
		},
	}
}

// commandServices loads the settings and opens the shared services for a management command.
func commandServices(ctx context.Context, command *cli.Command, module string) (*services, error) {
	settings, err := loadSettings(command)
	if err != nil {
		return nil, err
	}

	return newServices(ctx, settings, log.WithModule(module))
}
