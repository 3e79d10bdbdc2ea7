package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/ximager/pkg/models"
	"github.com/dukex/ximager/pkg/persistence"
	"github.com/dukex/ximager/pkg/persistence/postgresql"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"documents", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("ximager_test"),
			postgres.WithUsername("ximager"),
			postgres.WithPassword("ximager"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() { _ = db.Close() }()

	var version int
	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	var exists bool
	err = db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = 'documents')").Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPersistence_Documents(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	keywords, err := p.Keywords(ctx)
	require.NoError(t, err)
	assert.Empty(t, keywords)

	table := models.KeywordTable{
		"forest": {Text: "forest", Count: 4, LastUsed: 1700000000000},
	}
	require.NoError(t, p.SaveKeywords(ctx, table))

	keywords, err = p.Keywords(ctx)
	require.NoError(t, err)
	assert.Equal(t, table, keywords)

	// whole-table replace
	require.NoError(t, p.SaveKeywords(ctx, models.KeywordTable{}))

	keywords, err = p.Keywords(ctx)
	require.NoError(t, err)
	assert.Empty(t, keywords)

	require.NoError(t, p.SaveMacros(ctx, models.MacroTable{"rb": "remove background"}))

	macros, err := p.Macros(ctx)
	require.NoError(t, err)
	assert.Equal(t, "remove background", macros["rb"])
}

func TestPersistence_CorruptDocument(t *testing.T) {
	p, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() { _ = db.Close() }()

	_, err = db.ExecContext(ctx, `INSERT INTO documents (name, body) VALUES ('macros', '["not", "a", "table"]')`)
	require.NoError(t, err)

	_, err = p.Macros(ctx)
	require.Error(t, err)
	assert.True(t, persistence.IsInvalidDocument(err))
}

func TestPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	assert.NoError(t, p.HealthCheck(ctx))
}
