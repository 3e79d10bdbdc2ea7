package templates

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ManifestRefresher regenerates the manifest of a template directory on a cron schedule.
type ManifestRefresher struct {
	dir      string
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
}

func NewManifestRefresher(dir, schedule string, logger *slog.Logger) (*ManifestRefresher, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid manifest schedule: %w", err)
	}

	return &ManifestRefresher{
		dir:      dir,
		schedule: schedule,
		logger:   logger.With("module", "manifest_refresher", "dir", dir, "schedule", schedule),
	}, nil
}

// Start writes the manifest once, then on every tick of the schedule.
func (r *ManifestRefresher) Start(ctx context.Context) error {
	r.logger.InfoContext(ctx, "Starting manifest refresher")

	r.Refresh(ctx)

	r.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	if _, err := r.cron.AddFunc(r.schedule, func() { r.Refresh(context.Background()) }); err != nil {
		return fmt.Errorf("failed to add manifest job: %w", err)
	}

	r.cron.Start()

	return nil
}

// Refresh regenerates the manifest now.
func (r *ManifestRefresher) Refresh(ctx context.Context) {
	manifest, err := WriteManifest(r.dir, time.Now())
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to refresh manifest", "error", err)

		return
	}

	r.logger.DebugContext(ctx, "Manifest refreshed", "count", manifest.Count)
}

func (r *ManifestRefresher) Stop(ctx context.Context) error {
	r.logger.InfoContext(ctx, "Stopping manifest refresher")

	if r.cron != nil {
		<-r.cron.Stop().Done()
	}

	return nil
}
