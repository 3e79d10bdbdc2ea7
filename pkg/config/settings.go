// Package config provides the operator settings and the process-scoped engine address.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Defaults of the operator settings.
const (
	DefaultServerURL        = "http://127.0.0.1:8188"
	DefaultWorkflowDir      = "./workflows"
	DefaultInputDir         = "./input"
	DefaultOutputDir        = "./output"
	DefaultStore            = "file://./data"
	DefaultEventBus         = "gochannel"
	DefaultResultSink       = "dataurl"
	DefaultProgressSteps    = 50
	DefaultProgressStep     = 80 * time.Millisecond
	DefaultPollInterval     = time.Second
	DefaultPollMaxAttempts  = 60
	DefaultManifestSchedule = "@every 5m"
)

// Settings is the YAML settings file.
type Settings struct {
	ComfyUIServerURL  string   `yaml:"comfyui_server_url"  validate:"required,url"`
	WorkflowDirectory string   `yaml:"workflow_directory"  validate:"required_without=WorkflowSourceURL"`
	WorkflowSourceURL string   `yaml:"workflow_source_url" validate:"omitempty,url"`
	InputDirectory    string   `yaml:"input_directory"`
	OutputDirectory   string   `yaml:"output_directory"`
	Store             string   `yaml:"store"               validate:"required"`
	EventBus          string   `yaml:"event_bus"           validate:"required,oneof=gochannel kafka"`
	KafkaBrokers      []string `yaml:"kafka_brokers,omitempty" validate:"required_if=EventBus kafka"`
	ResultSink        string   `yaml:"result_sink"         validate:"required"`
	ManifestSchedule  string   `yaml:"manifest_schedule"`

	ProgressSteps   int           `yaml:"progress_steps"    validate:"gt=0"`
	ProgressStep    time.Duration `yaml:"progress_step"     validate:"gt=0"`
	PollInterval    time.Duration `yaml:"poll_interval"     validate:"gt=0"`
	PollMaxAttempts int           `yaml:"poll_max_attempts" validate:"gt=0"`
}

// Default returns the settings used when no file is given.
func Default() Settings {
	return Settings{
		ComfyUIServerURL:  DefaultServerURL,
		WorkflowDirectory: DefaultWorkflowDir,
		InputDirectory:    DefaultInputDir,
		OutputDirectory:   DefaultOutputDir,
		Store:             DefaultStore,
		EventBus:          DefaultEventBus,
		ResultSink:        DefaultResultSink,
		ManifestSchedule:  DefaultManifestSchedule,
		ProgressSteps:     DefaultProgressSteps,
		ProgressStep:      DefaultProgressStep,
		PollInterval:      DefaultPollInterval,
		PollMaxAttempts:   DefaultPollMaxAttempts,
	}
}

// Load reads path over the defaults. Fields missing from the file keep their default.
func Load(path string) (Settings, error) {
	settings := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("failed to read settings file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("failed to parse YAML settings: %w", err)
	}

	return settings, nil
}

// LoadOrDefault is Load, falling back to the defaults when path is empty or missing.
func LoadOrDefault(path string) (Settings, error) {
	if path == "" {
		return Default(), nil
	}

	settings, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	return settings, err
}

// Save writes the settings to path.
func (s Settings) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create settings directory: %w", err)
		}
	}

	return os.WriteFile(path, data, 0600)
}

// Validate checks the settings with their struct tags.
func (s Settings) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	return nil
}
