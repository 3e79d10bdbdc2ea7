// Package httpstore persists the keyword and macro documents through a remote
// document store exposing GET/POST /keywords and GET/POST /macros.
package httpstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/ximager/pkg/models"
	"github.com/dukex/ximager/pkg/persistence"
)

const defaultTimeout = 10 * time.Second

// Persistence is a client of the whole-document store contract.
type Persistence struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewPersistence creates a client for the store rooted at baseURL.
// The "httpstore+" scheme prefix, if present, is removed.
func NewPersistence(logger *slog.Logger, baseURL string) *Persistence {
	baseURL = strings.TrimPrefix(baseURL, "httpstore+")

	return &Persistence{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
		logger:  logger.With("module", "httpstore_persistence"),
	}
}

func (p *Persistence) Close(_ context.Context) error {
	p.client.CloseIdleConnections()

	return nil
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/"+persistence.KeywordsDocument, nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("document store unreachable: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s", persistence.ErrStoreUnavailable, resp.Status)
	}

	return nil
}

func (p *Persistence) Keywords(ctx context.Context) (models.KeywordTable, error) {
	table := models.KeywordTable{}
	if err := p.load(ctx, persistence.KeywordsDocument, &table); err != nil {
		return nil, err
	}

	return table, nil
}

func (p *Persistence) SaveKeywords(ctx context.Context, table models.KeywordTable) error {
	if table == nil {
		table = models.KeywordTable{}
	}

	return p.save(ctx, persistence.KeywordsDocument, table)
}

func (p *Persistence) Macros(ctx context.Context) (models.MacroTable, error) {
	table := models.MacroTable{}
	if err := p.load(ctx, persistence.MacrosDocument, &table); err != nil {
		return nil, err
	}

	return table, nil
}

func (p *Persistence) SaveMacros(ctx context.Context, table models.MacroTable) error {
	if table == nil {
		table = models.MacroTable{}
	}

	return p.save(ctx, persistence.MacrosDocument, table)
}

func (p *Persistence) load(ctx context.Context, document string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/"+document, nil)
	if err != nil {
		return persistence.NewDocumentError("Load", document, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return persistence.NewDocumentError("Load", document, err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return persistence.NewDocumentError("Load", document, fmt.Errorf("%w: %s", persistence.ErrStoreUnavailable, resp.Status))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return persistence.NewDocumentError("Load", document, err)
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return persistence.NewDocumentError("Load", document, fmt.Errorf("%w: %w", persistence.ErrInvalidDocument, err))
	}

	return nil
}

func (p *Persistence) save(ctx context.Context, document string, value any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return persistence.NewDocumentError("Save", document, fmt.Errorf("failed to marshal: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/"+document, bytes.NewReader(body))
	if err != nil {
		return persistence.NewDocumentError("Save", document, err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return persistence.NewDocumentError("Save", document, err)
	}

	defer func() { _ = resp.Body.Close() }()

	// only a 2xx acknowledges the write
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.logger.WarnContext(ctx, "Document store rejected write", "document", document, "status", resp.Status)

		return persistence.NewDocumentError("Save", document, fmt.Errorf("%w: %s", persistence.ErrStoreUnavailable, resp.Status))
	}

	return nil
}
