// Package redis provides Redis persistence for the keyword and macro documents.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/ximager/pkg/models"
	"github.com/dukex/ximager/pkg/persistence"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces the document keys.
const DefaultKeyPrefix = "ximager:"

// Persistence stores each document as one JSON string value.
type Persistence struct {
	client redis.UniversalClient
	logger *slog.Logger
	prefix string
}

// NewPersistence connects to the Redis server described by redisURL.
func NewPersistence(ctx context.Context, logger *slog.Logger, redisURL string) (*Persistence, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	_, err = client.Ping(ctx).Result()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewPersistenceWithClient(logger, client, DefaultKeyPrefix), nil
}

// NewPersistenceWithClient wraps an existing client.
func NewPersistenceWithClient(logger *slog.Logger, client redis.UniversalClient, prefix string) *Persistence {
	return &Persistence{
		client: client,
		logger: logger.With("module", "redis_persistence"),
		prefix: prefix,
	}
}

func (p *Persistence) Close(_ context.Context) error {
	err := p.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	return nil
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
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

func (p *Persistence) key(document string) string {
	return p.prefix + document
}

func (p *Persistence) load(ctx context.Context, document string, dest any) error {
	body, err := p.client.Get(ctx, p.key(document)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return persistence.NewDocumentError("Load", document, err)
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

	err = p.client.Set(ctx, p.key(document), body, 0).Err()
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to save document", "document", document, "error", err)

		return persistence.NewDocumentError("Save", document, err)
	}

	return nil
}
