// Package postgresql provides PostgreSQL persistence for the keyword and macro documents.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/ximager/pkg/models"
	"github.com/dukex/ximager/pkg/persistence"
	"github.com/dukex/ximager/pkg/persistence/sqlbase"
	_ "github.com/lib/pq"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPersistence creates a new PostgreSQL persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	postgres := &Persistence{
		db:     database,
		logger: logger.With("module", "postgresql_persistence"),
	}

	// Run migrations on initialization
	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
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
	var body []byte

	err := p.db.QueryRowContext(ctx, "SELECT body FROM documents WHERE name = $1", document).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}

		p.logger.ErrorContext(ctx, "Failed to load document", "document", document, "error", err)

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

	query := `
		INSERT INTO documents (name, body, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET
			body = EXCLUDED.body,
			updated_at = EXCLUDED.updated_at`

	_, err = p.db.ExecContext(ctx, query, document, body)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to save document", "document", document, "error", err)

		return persistence.NewDocumentError("Save", document, err)
	}

	return nil
}
