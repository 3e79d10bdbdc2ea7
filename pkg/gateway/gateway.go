// Package gateway defines the remote engine contract consumed by the orchestrator.
package gateway

import (
	"context"
	"log/slog"

	"github.com/dukex/ximager/pkg/comfyui"
	"github.com/dukex/ximager/pkg/models"
	"github.com/dukex/ximager/pkg/templates"
)

// Gateway is the remote engine surface: asset upload, graph submission, result polling,
// asset retrieval and the graph template catalogue.
type Gateway interface {
	UploadAsset(ctx context.Context, asset models.Asset) (string, error)
	SubmitGraph(ctx context.Context, graph models.ExecutionGraph) (string, error)
	// FetchResult returns nil until the engine has produced an outputs section.
	FetchResult(ctx context.Context, runID string) (*models.ResultRecord, error)
	FetchAsset(ctx context.Context, ref models.OutputRef) (models.Asset, error)
	LoadGraphTemplate(ctx context.Context, name string) (models.ExecutionGraph, error)
	ListGraphTemplates(ctx context.Context) ([]string, error)
}

// Engine implements Gateway over the engine HTTP client and a template source.
type Engine struct {
	client    *comfyui.Client
	templates templates.Source
	newID     func() string
	logger    *slog.Logger
}

func NewEngine(client *comfyui.Client, source templates.Source, logger *slog.Logger) *Engine {
	return &Engine{
		client:    client,
		templates: source,
		newID:     comfyui.NewClientID,
		logger:    logger.With("module", "gateway"),
	}
}

func (e *Engine) UploadAsset(ctx context.Context, asset models.Asset) (string, error) {
	return e.client.UploadImage(ctx, asset)
}

// SubmitGraph queues graph under a fresh client identifier.
func (e *Engine) SubmitGraph(ctx context.Context, graph models.ExecutionGraph) (string, error) {
	clientID := e.newID()

	runID, err := e.client.QueuePrompt(ctx, graph, clientID)
	if err != nil {
		return "", err
	}

	e.logger.DebugContext(ctx, "Graph submitted", "run_id", runID, "client_id", clientID)

	return runID, nil
}

func (e *Engine) FetchResult(ctx context.Context, runID string) (*models.ResultRecord, error) {
	record, err := e.client.History(ctx, runID)
	if err != nil {
		return nil, err
	}

	if !record.HasOutputs() {
		return nil, nil
	}

	return record, nil
}

func (e *Engine) FetchAsset(ctx context.Context, ref models.OutputRef) (models.Asset, error) {
	return e.client.View(ctx, ref)
}

func (e *Engine) LoadGraphTemplate(ctx context.Context, name string) (models.ExecutionGraph, error) {
	return e.templates.Load(ctx, name)
}

func (e *Engine) ListGraphTemplates(ctx context.Context) ([]string, error) {
	return e.templates.List(ctx)
}
