package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dukex/ximager/pkg/models"
	"github.com/dukex/ximager/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
)

// progressTimer advances the simulated indicator until stopped. stop returns only once
// the ticking goroutine has exited, so no progress update can follow it.
type progressTimer struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func (o *Orchestrator) startProgress(ctx context.Context) *progressTimer {
	ctx, cancel := context.WithCancel(ctx)
	timer := &progressTimer{cancel: cancel}

	increment := 100.0 / float64(o.cfg.ProgressSteps)

	timer.wg.Add(1)

	go func() {
		defer timer.wg.Done()

		ticker := time.NewTicker(o.cfg.ProgressStep)
		defer ticker.Stop()

		percent := 0.0

		for step := 0; step < o.cfg.ProgressSteps && percent < ProgressCap; step++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			percent = min(percent+increment, ProgressCap)

			// stop waits for this goroutine, so a late tick still lands before stop returns.
			if ctx.Err() != nil {
				return
			}

			o.setProgress(percent)
		}
	}()

	return timer
}

func (t *progressTimer) stop() {
	t.once.Do(func() {
		t.cancel()
		t.wg.Wait()
	})
}

// poll fetches the result every PollInterval until one carries outputs or the attempt
// budget runs out. The progress timer runs alongside and is stopped before poll returns.
func (o *Orchestrator) poll(ctx context.Context, runID string) (*models.ResultRecord, *ExecutionError) {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "execution.poll",
		attribute.String(otelhelper.RunIDKey, runID))
	defer span.End()

	progress := o.startProgress(ctx)
	defer progress.stop()

	o.feed(ctx, models.LogLevelExec, "Waiting for the engine to finish")

	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= o.cfg.PollMaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			progress.stop()
			otelhelper.SetError(span, ctx.Err())

			return nil, newExecutionError(models.ErrorKindTransport, "poll run "+runID, ctx.Err())
		case <-ticker.C:
		}

		record, err := o.gateway.FetchResult(ctx, runID)
		if err != nil {
			progress.stop()
			otelhelper.SetError(span, err, attribute.Int(otelhelper.AttemptKey, attempt))

			return nil, newExecutionError(models.ErrorKindTransport, "poll run "+runID, err)
		}

		if record.HasOutputs() {
			progress.stop()
			span.SetAttributes(attribute.Int(otelhelper.AttemptKey, attempt))

			return record, nil
		}
	}

	progress.stop()

	err := &ExecutionError{
		Kind:    models.ErrorKindExecutionTimeout,
		Op:      "poll run " + runID,
		Message: fmt.Sprintf("no result after %d attempts", o.cfg.PollMaxAttempts),
	}
	otelhelper.SetError(span, err)

	return nil, err
}
