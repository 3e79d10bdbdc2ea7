// Package main provides the ximager command: the control API, one-shot runs and
// management of workflow templates, keywords and macros.
package main

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/dukex/ximager/pkg/log"
	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"
)

func main() {
	logger := log.WithModule("ximager")

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("Failed to load .env file", "error", err)
	}

	if err := NewCommand().Run(context.Background(), os.Args); err != nil {
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// NewCommand builds the command tree.
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:                  "ximager",
		Usage:                 "Run and manage workflows on a remote graph-based media engine",
		EnableShellCompletion: true,
		Flags:                 globalFlags(),
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.SetupWithWriter(command.ErrWriter, command.String("log-level"), command.String("log-format"))

			return ctx, nil
		},
		Commands: []*cli.Command{
			ServeCommand(),
			RunCommand(),
			WorkflowsCommand(),
			ManifestCommand(),
			KeywordsCommand(),
			MacrosCommand(),
			ConfigCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the YAML settings file",
			Value:   "ximager.yaml",
			Sources: cli.EnvVars("XIMAGER_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "server-url",
			Usage:   "Base URL of the remote engine",
			Sources: cli.EnvVars("COMFYUI_SERVER_URL"),
		},
		&cli.StringFlag{
			Name:    "workflow-dir",
			Usage:   "Directory holding the workflow templates",
			Sources: cli.EnvVars("WORKFLOW_DIR"),
		},
		&cli.StringFlag{
			Name:    "workflow-source-url",
			Usage:   "Base URL serving the workflow templates over HTTP, used instead of the directory",
			Sources: cli.EnvVars("WORKFLOW_SOURCE_URL"),
		},
		&cli.StringFlag{
			Name:    "input-dir",
			Usage:   "Directory relative asset paths are looked up in",
			Sources: cli.EnvVars("INPUT_DIR"),
		},
		&cli.StringFlag{
			Name:    "output-dir",
			Usage:   "Directory the dir result sink writes to",
			Sources: cli.EnvVars("OUTPUT_DIR"),
		},
		&cli.StringFlag{
			Name:    "store",
			Usage:   "Keyword and macro store URL (file://, redis://, postgres://, http(s)://)",
			Sources: cli.EnvVars("XIMAGER_STORE"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (gochannel, kafka)",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringSliceFlag{
			Name:    "kafka-brokers",
			Usage:   "Kafka brokers for the kafka event bus",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "result-sink",
			Usage:   "Where rendered results go (dataurl, dir, file://path, s3://key:secret@host/bucket)",
			Sources: cli.EnvVars("RESULT_SINK"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format (text, json)",
			Value:   "text",
			Sources: cli.EnvVars("LOG_FORMAT"),
		},
	}
}
