package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukex/ximager/pkg/models"
)

// HTTPSource serves templates published by a web server: the dynamic listing at
// {base}/api/workflows, the generated manifest at {base}/workflows/manifest.json
// and the documents at {base}/workflows/{name}.
type HTTPSource struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewHTTPSource(baseURL string, logger *slog.Logger) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger.With("module", "template_http_source"),
	}
}

// List asks the dynamic listing endpoint first and falls back to the manifest.
func (s *HTTPSource) List(ctx context.Context) ([]string, error) {
	names, err := s.listDynamic(ctx)
	if err == nil {
		return names, nil
	}

	s.logger.DebugContext(ctx, "Dynamic workflow listing unavailable, using manifest", "error", err)

	data, err := s.get(ctx, "/workflows/"+ManifestFile)
	if err != nil {
		return nil, err
	}

	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}

	return manifest.Workflows, nil
}

// listDynamic accepts either a bare array of names or a manifest-shaped object.
func (s *HTTPSource) listDynamic(ctx context.Context) ([]string, error) {
	data, err := s.get(ctx, "/api/workflows")
	if err != nil {
		return nil, err
	}

	var names []string
	if err := json.Unmarshal(data, &names); err == nil {
		return names, nil
	}

	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}

	return manifest.Workflows, nil
}

func (s *HTTPSource) Load(ctx context.Context, name string) (models.ExecutionGraph, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	data, err := s.get(ctx, "/workflows/"+url.PathEscape(name))
	if err != nil {
		return nil, err
	}

	return Decode(name, data)
}

func (s *HTTPSource) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", path, err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, path)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch %s: %s", path, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return data, nil
}
