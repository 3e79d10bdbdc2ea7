package orchestrator

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/dukex/ximager/pkg/eventbus"
	"github.com/dukex/ximager/pkg/events"
	"github.com/dukex/ximager/pkg/keywords"
	"github.com/dukex/ximager/pkg/log"
	"github.com/dukex/ximager/pkg/models"
	"github.com/dukex/ximager/pkg/otelhelper"
	"github.com/dukex/ximager/pkg/patch"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func (o *Orchestrator) execute(ctx context.Context, req RunRequest) models.ExecutionRecord {
	executionID := o.Snapshot().ID

	ctx = log.WithLogger(ctx, o.logger.With("execution_id", executionID, "workflow", req.Workflow))

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "execution.run",
		attribute.String(otelhelper.ExecutionIDKey, executionID),
		attribute.String(otelhelper.WorkflowNameKey, req.Workflow),
	)
	defer span.End()

	o.feed(ctx, models.LogLevelInfo, "Starting execution of "+req.Workflow)
	o.publish(ctx, executionID, events.ExecutionStarted{
		BaseEvent: events.NewBaseEvent(events.ExecutionStartedEvent, executionID, req.Workflow),
		Prompt:    req.Prompt,
		Slots:     slices.Sorted(maps.Keys(req.Assets)),
	})

	result, execErr := o.steps(ctx, req)
	if execErr != nil {
		return o.fail(ctx, span, execErr)
	}

	return o.complete(ctx, span, result)
}

// steps runs the pipeline up to the resolved output reference.
func (o *Orchestrator) steps(ctx context.Context, req RunRequest) (string, *ExecutionError) {
	graph, execErr := o.loadGraph(ctx, req.Workflow)
	if execErr != nil {
		return "", execErr
	}

	if execErr := validateOverrides(graph, req); execErr != nil {
		return "", execErr
	}

	o.transition(models.ExecutionStateUploading)

	uploaded, execErr := o.uploadAssets(ctx, req.Assets)
	if execErr != nil {
		return "", execErr
	}

	o.warnUnusedSlots(ctx, graph, uploaded)

	prompt := o.expandMacros(ctx, req.Prompt)
	o.recordKeywords(ctx, prompt)

	graph = patch.ApplyAssetSlots(graph, uploaded)

	if strings.TrimSpace(prompt) != "" {
		graph = patch.ApplyPrompt(graph, prompt)
	}

	if req.Dimensions != nil {
		graph = patch.ApplyDimensions(graph, *req.Dimensions)
	}

	o.transition(models.ExecutionStateQueued)

	runID, execErr := o.submit(ctx, graph)
	if execErr != nil {
		return "", execErr
	}

	o.transition(models.ExecutionStatePolling)

	record, execErr := o.poll(ctx, runID)
	if execErr != nil {
		return "", execErr
	}

	o.transition(models.ExecutionStateExtracting)

	return o.extract(ctx, record)
}

func (o *Orchestrator) loadGraph(ctx context.Context, name string) (models.ExecutionGraph, *ExecutionError) {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "execution.load_graph")
	defer span.End()

	graph, err := o.gateway.LoadGraphTemplate(ctx, name)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, newExecutionError(models.ErrorKindGraphLoad, "load graph "+name, err)
	}

	o.feed(ctx, models.LogLevelLoad, fmt.Sprintf("Loaded workflow %s (%d nodes, %d asset slots)",
		name, len(graph), patch.CountAssetSlots(graph)))

	return graph, nil
}

func validateOverrides(graph models.ExecutionGraph, req RunRequest) *ExecutionError {
	slots := patch.SlotCount(graph)

	for slot, asset := range req.Assets {
		if slot < 0 || slot >= slots {
			return invalidOverride("asset slot %d out of range, workflow has %d slot(s)", slot, slots)
		}

		if asset.Filename == "" || len(asset.Content) == 0 {
			return invalidOverride("asset for slot %d is empty", slot)
		}
	}

	if dims := req.Dimensions; dims != nil {
		if dims.Width != nil && *dims.Width <= 0 {
			return invalidOverride("width must be positive, got %d", *dims.Width)
		}

		if dims.Height != nil && *dims.Height <= 0 {
			return invalidOverride("height must be positive, got %d", *dims.Height)
		}
	}

	return nil
}

// uploadAssets uploads in ascending slot order and returns the engine filenames by slot.
func (o *Orchestrator) uploadAssets(ctx context.Context, assets map[int]models.Asset) (map[int]string, *ExecutionError) {
	uploaded := make(map[int]string, len(assets))

	for _, slot := range slices.Sorted(maps.Keys(assets)) {
		asset := assets[slot]

		spanCtx, span := otelhelper.StartSpan(ctx, o.tracer, "execution.upload_asset",
			attribute.Int(otelhelper.SlotKey, slot))

		o.feed(spanCtx, models.LogLevelExec, fmt.Sprintf("Uploading %s for slot %d", asset.Filename, slot))

		name, err := o.gateway.UploadAsset(spanCtx, asset)
		if err != nil {
			otelhelper.SetError(span, err)
			span.End()

			return nil, gatewayFailure(models.ErrorKindUpload, fmt.Sprintf("upload slot %d", slot), err)
		}

		span.End()

		uploaded[slot] = name
		o.feed(ctx, models.LogLevelExec, fmt.Sprintf("Uploaded slot %d as %s", slot, name))
	}

	return uploaded, nil
}

// warnUnusedSlots reports uploaded slots that no loader image input will receive.
func (o *Orchestrator) warnUnusedSlots(ctx context.Context, graph models.ExecutionGraph, uploaded map[int]string) {
	targets := len(patch.AssetSlots(graph))

	var unused []int

	for slot := range uploaded {
		if slot >= targets {
			unused = append(unused, slot)
		}
	}

	if len(unused) == 0 {
		return
	}

	slices.Sort(unused)
	o.feed(ctx, models.LogLevelWarn, fmt.Sprintf("Slots %v have no image input to receive them (graph has %d)", unused, targets))
}

func (o *Orchestrator) expandMacros(ctx context.Context, prompt string) string {
	if o.macros == nil {
		return prompt
	}

	if err := o.macros.Hydrate(ctx); err != nil {
		o.feed(ctx, models.LogLevelWarn, "Macros unavailable, prompt left unexpanded: "+err.Error())

		return prompt
	}

	expanded := o.macros.Expand(prompt)
	if expanded != prompt {
		o.feed(ctx, models.LogLevelInfo, "Expanded macros: "+expanded)
	}

	return expanded
}

// recordKeywords counts the prompt tokens in the background; its outcome never
// reaches the run.
func (o *Orchestrator) recordKeywords(ctx context.Context, prompt string) {
	if o.keywords == nil || len(keywords.Tokens(prompt)) == 0 {
		return
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.RecordTimeout)

	o.background.Add(1)

	go func() {
		defer o.background.Done()
		defer cancel()

		if err := o.keywords.Record(recordCtx, prompt); err != nil {
			o.logger.WarnContext(recordCtx, "Failed to record prompt keywords", "error", err)
		}
	}()
}

func (o *Orchestrator) submit(ctx context.Context, graph models.ExecutionGraph) (string, *ExecutionError) {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "execution.submit")
	defer span.End()

	o.feed(ctx, models.LogLevelExec, "Submitting workflow to the engine")

	runID, err := o.gateway.SubmitGraph(ctx, graph)
	if err != nil {
		otelhelper.SetError(span, err)

		return "", gatewayFailure(models.ErrorKindSubmit, "submit graph", err)
	}

	span.SetAttributes(attribute.String(otelhelper.RunIDKey, runID))

	o.update(EventState, nil, func(r *models.ExecutionRecord) {
		r.RunID = runID
	})
	o.feed(ctx, models.LogLevelExec, "Queued as run "+runID)

	return runID, nil
}

// extract resolves the first output that carries an asset reference. Outputs are
// scanned in node order so the choice does not depend on map iteration.
func (o *Orchestrator) extract(ctx context.Context, record *models.ResultRecord) (string, *ExecutionError) {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "execution.extract")
	defer span.End()

	var (
		output models.OutputRef
		found  bool
	)

	for _, nodeID := range slices.SortedFunc(maps.Keys(record.Outputs), patch.CompareNodeIDs) {
		if images := record.Outputs[nodeID].Images; len(images) > 0 {
			output, found = images[0], true

			break
		}
	}

	if !found {
		return "", &ExecutionError{
			Kind:    models.ErrorKindNoOutput,
			Op:      "extract output",
			Message: "the engine finished without producing an asset",
		}
	}

	o.feed(ctx, models.LogLevelExec, "Fetching output "+output.Filename)

	asset, err := o.gateway.FetchAsset(ctx, output)
	if err != nil {
		otelhelper.SetError(span, err)

		return "", newExecutionError(models.ErrorKindTransport, "fetch output "+output.Filename, err)
	}

	ref, err := o.resolver.Resolve(ctx, output, asset)
	if err != nil {
		otelhelper.SetError(span, err)

		return "", newExecutionError(models.ErrorKindTransport, "resolve output "+output.Filename, err)
	}

	return ref, nil
}

func (o *Orchestrator) complete(ctx context.Context, span trace.Span, ref string) models.ExecutionRecord {
	finished := o.now().UTC()
	started := o.Snapshot().StartedAt

	o.feed(ctx, models.LogLevelInfo, fmt.Sprintf("Execution finished in %s", finished.Sub(started).Round(time.Millisecond)))

	record := o.terminate(func(r *models.ExecutionRecord) {
		r.State = models.ExecutionStateDone
		r.ProgressPercent = 100
		r.ResultRef = &ref
		r.FinishedAt = &finished
	})

	o.publish(ctx, record.ID, events.ExecutionCompleted{
		BaseEvent: events.NewBaseEvent(events.ExecutionCompletedEvent, record.ID, record.Workflow),
		RunID:     record.RunID,
		ResultRef: ref,
		Duration:  finished.Sub(record.StartedAt),
	})

	span.SetAttributes(
		attribute.String(otelhelper.StateKey, string(record.State)),
		attribute.String(otelhelper.RunIDKey, record.RunID),
	)

	return record
}

func (o *Orchestrator) fail(ctx context.Context, span trace.Span, execErr *ExecutionError) models.ExecutionRecord {
	finished := o.now().UTC()
	failure := execErr.Failure()

	o.feed(ctx, models.LogLevelError, fmt.Sprintf("%s: %s", failure.Kind, execErr.Error()))

	record := o.terminate(func(r *models.ExecutionRecord) {
		r.State = models.ExecutionStateFailed
		r.Error = failure
		r.FinishedAt = &finished
	})

	span.SetAttributes(attribute.String(otelhelper.StateKey, string(record.State)))
	otelhelper.SetError(span, execErr, attribute.String(otelhelper.ErrorKindKey, string(failure.Kind)))

	o.publish(ctx, record.ID, events.ExecutionFailed{
		BaseEvent: events.NewBaseEvent(events.ExecutionFailedEvent, record.ID, record.Workflow),
		RunID:     record.RunID,
		Kind:      failure.Kind,
		Error:     failure.Message,
		Duration:  finished.Sub(record.StartedAt),
	})

	return record
}

// terminate writes the terminal state and releases the orchestrator in one locked
// update. The run must not touch the record or the feed afterwards.
func (o *Orchestrator) terminate(fn func(r *models.ExecutionRecord)) models.ExecutionRecord {
	var record models.ExecutionRecord

	o.update(EventState, nil, func(r *models.ExecutionRecord) {
		fn(r)
		o.running = false
		record = r.Copy()
	})

	return record
}

func (o *Orchestrator) publish(ctx context.Context, key string, event eventbus.Event) {
	if o.publisher == nil {
		return
	}

	if err := o.publisher.Publish(ctx, key, event); err != nil {
		o.logger.WarnContext(ctx, "Failed to publish execution event", "type", event.GetType(), "error", err)
	}
}
