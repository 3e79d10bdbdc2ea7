package main

import (
	"context"
	"fmt"

	"github.com/dukex/ximager/pkg/config"
	"github.com/dukex/ximager/pkg/orchestrator"
	cli "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// stringOverrides maps flags to the settings they replace when set.
func stringOverrides(settings *config.Settings) map[string]*string {
	return map[string]*string{
		"server-url":          &settings.ComfyUIServerURL,
		"workflow-dir":        &settings.WorkflowDirectory,
		"workflow-source-url": &settings.WorkflowSourceURL,
		"input-dir":           &settings.InputDirectory,
		"output-dir":          &settings.OutputDirectory,
		"store":               &settings.Store,
		"event-bus":           &settings.EventBus,
		"result-sink":         &settings.ResultSink,
	}
}

// loadSettings reads the settings file over the defaults, then applies the flags that were set.
func loadSettings(command *cli.Command) (config.Settings, error) {
	settings, err := config.LoadOrDefault(command.String("config"))
	if err != nil {
		return settings, err
	}

	for flag, target := range stringOverrides(&settings) {
		if command.IsSet(flag) {
			*target = command.String(flag)
		}
	}

	if command.IsSet("kafka-brokers") {
		settings.KafkaBrokers = command.StringSlice("kafka-brokers")
	}

	if err := settings.Validate(); err != nil {
		return settings, err
	}

	return settings, nil
}

func orchestratorConfig(settings config.Settings) orchestrator.Config {
	cfg := orchestrator.DefaultConfig()
	cfg.ProgressSteps = settings.ProgressSteps
	cfg.ProgressStep = settings.ProgressStep
	cfg.PollInterval = settings.PollInterval
	cfg.PollMaxAttempts = settings.PollMaxAttempts

	return cfg
}

func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect and write the settings file",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the effective settings",
				Action: func(_ context.Context, command *cli.Command) error {
					settings, err := loadSettings(command)
					if err != nil {
						return err
					}

					data, err := yaml.Marshal(settings)
					if err != nil {
						return fmt.Errorf("failed to marshal settings: %w", err)
					}

					_, err = command.Root().Writer.Write(data)

					return err
				},
			},
			{
				Name:  "save",
				Usage: "Write the effective settings to the settings file",
				Action: func(ctx context.Context, command *cli.Command) error {
					settings, err := loadSettings(command)
					if err != nil {
						return err
					}

					path := command.String("config")
					if err := settings.Save(path); err != nil {
						return err
					}

					_, err = fmt.Fprintf(command.Root().Writer, "Settings written to %s\n", path)

					return err
				},
			},
		},
	}
}
