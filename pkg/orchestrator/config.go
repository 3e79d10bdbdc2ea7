package orchestrator

import "time"

// ProgressCap is the highest value the simulated progress indicator reaches on its own.
const ProgressCap = 95.0

// Config holds the run timing.
type Config struct {
	// ProgressSteps ticks of ProgressStep each advance the indicator by 100/ProgressSteps.
	ProgressSteps int
	ProgressStep  time.Duration
	// PollMaxAttempts result fetches, PollInterval apart, before the run times out.
	PollInterval    time.Duration
	PollMaxAttempts int
	// RecordTimeout bounds the background keyword recording of one prompt.
	RecordTimeout time.Duration
	// MaxLogEntries bounds the operator log feed; the oldest entries are dropped first.
	MaxLogEntries int
}

func DefaultConfig() Config {
	return Config{
		ProgressSteps:   50,
		ProgressStep:    80 * time.Millisecond,
		PollInterval:    time.Second,
		PollMaxAttempts: 60,
		RecordTimeout:   5 * time.Second,
		MaxLogEntries:   1000,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()

	if c.ProgressSteps <= 0 {
		c.ProgressSteps = defaults.ProgressSteps
	}

	if c.ProgressStep <= 0 {
		c.ProgressStep = defaults.ProgressStep
	}

	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}

	if c.PollMaxAttempts <= 0 {
		c.PollMaxAttempts = defaults.PollMaxAttempts
	}

	if c.RecordTimeout <= 0 {
		c.RecordTimeout = defaults.RecordTimeout
	}

	if c.MaxLogEntries <= 0 {
		c.MaxLogEntries = defaults.MaxLogEntries
	}

	return c
}
