// Package orchestrator runs one workflow execution at a time: it loads the graph
// template, uploads the reference assets, injects the prompt, submits the graph,
// polls for the result and resolves the output asset.
//
// Every step is reported on an ordered operator log feed. Failures never escape
// Run as errors: they end the run in a Failed record carrying the error kind.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/ximager/pkg/eventbus"
	"github.com/dukex/ximager/pkg/gateway"
	"github.com/dukex/ximager/pkg/log"
	"github.com/dukex/ximager/pkg/models"
	"github.com/dukex/ximager/pkg/otelhelper"
	"github.com/dukex/ximager/pkg/sink"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// MacroExpander rewrites @key tokens in a prompt. Hydrate loads the table from
// its store and is a no-op once it has succeeded.
type MacroExpander interface {
	Hydrate(ctx context.Context) error
	Expand(text string) string
}

// KeywordRecorder counts the comma-separated tokens of a prompt.
type KeywordRecorder interface {
	Record(ctx context.Context, prompt string) error
}

// RunRequest describes one execution.
type RunRequest struct {
	Workflow   string
	Prompt     string
	Assets     map[int]models.Asset
	Dimensions *models.Dimensions
}

type Orchestrator struct {
	gateway   gateway.Gateway
	macros    MacroExpander
	keywords  KeywordRecorder
	resolver  sink.Resolver
	publisher eventbus.EventPublisher
	tracer    trace.Tracer
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time

	notifyMu     sync.Mutex
	mu           sync.Mutex
	running      bool
	record       models.ExecutionRecord
	logs         []models.LogEntry
	observers    map[int]Observer
	nextObserver int

	background sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) {
		o.cfg = cfg.withDefaults()
	}
}

// WithPublisher publishes lifecycle events; publishing failures are only logged.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(o *Orchestrator) {
		o.publisher = publisher
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = tracer
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New builds an orchestrator. macros and keywords may be nil.
func New(gw gateway.Gateway, macros MacroExpander, keywords KeywordRecorder, resolver sink.Resolver,
	logger *slog.Logger, opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		gateway:   gw,
		macros:    macros,
		keywords:  keywords,
		resolver:  resolver,
		tracer:    otelhelper.NoopTracer(),
		cfg:       DefaultConfig(),
		logger:    logger.With("module", "orchestrator"),
		now:       time.Now,
		record:    models.ExecutionRecord{State: models.ExecutionStateIdle},
		observers: make(map[int]Observer),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Run executes req and returns the terminal record. The only error is ErrRunInProgress,
// returned without touching the current record.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*models.ExecutionRecord, error) {
	if err := o.begin(req); err != nil {
		return nil, err
	}

	record := o.execute(ctx, req)

	return &record, nil
}

// Start begins req in the background and returns the freshly created record. ctx
// bounds the whole run, so it should outlive the caller's request.
func (o *Orchestrator) Start(ctx context.Context, req RunRequest) (models.ExecutionRecord, error) {
	if err := o.begin(req); err != nil {
		return models.ExecutionRecord{}, err
	}

	initial := o.Snapshot()

	o.background.Add(1)

	go func() {
		defer o.background.Done()

		o.execute(ctx, req)
	}()

	return initial, nil
}

// Wait blocks until background runs and keyword recordings have finished.
func (o *Orchestrator) Wait() {
	o.background.Wait()
}

// Snapshot returns a copy of the current record.
func (o *Orchestrator) Snapshot() models.ExecutionRecord {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.record.Copy()
}

// Logs returns the operator log feed, oldest first.
func (o *Orchestrator) Logs() []models.LogEntry {
	o.mu.Lock()
	defer o.mu.Unlock()

	logs := make([]models.LogEntry, len(o.logs))
	copy(logs, o.logs)

	return logs
}

// Running reports whether a run owns the orchestrator. The flag drops together
// with the terminal state, before lifecycle events are published.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.running
}

func (o *Orchestrator) begin(req RunRequest) error {
	o.mu.Lock()

	if o.running {
		o.mu.Unlock()

		return ErrRunInProgress
	}

	o.running = true
	o.mu.Unlock()

	o.update(EventState, nil, func(r *models.ExecutionRecord) {
		o.logs = nil
		*r = models.ExecutionRecord{
			ID:        uuid.New().String(),
			Workflow:  req.Workflow,
			State:     models.ExecutionStateIdle,
			StartedAt: o.now().UTC(),
		}
	})

	return nil
}

func (o *Orchestrator) transition(state models.ExecutionState) {
	o.update(EventState, nil, func(r *models.ExecutionRecord) {
		r.State = state
	})
}

func (o *Orchestrator) setProgress(percent float64) {
	o.update(EventProgress, nil, func(r *models.ExecutionRecord) {
		r.ProgressPercent = percent
	})
}

// feed appends an operator log entry and mirrors it to the run's logger.
func (o *Orchestrator) feed(ctx context.Context, level models.LogLevel, message string) {
	entry := &models.LogEntry{Timestamp: o.now().UTC(), Level: level, Message: message}

	logger := log.FromContext(ctx)

	switch level {
	case models.LogLevelError:
		logger.ErrorContext(ctx, message, "feed_level", level)
	case models.LogLevelWarn:
		logger.WarnContext(ctx, message, "feed_level", level)
	default:
		logger.InfoContext(ctx, message, "feed_level", level)
	}

	o.update(EventLog, entry, nil)
}
