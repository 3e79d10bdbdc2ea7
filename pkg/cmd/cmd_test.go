package cmd

import (
	"context"
	"log/slog"
	"testing"

	"github.com/dukex/ximager/pkg/persistence/file"
	"github.com/dukex/ximager/pkg/persistence/httpstore"
	"github.com/dukex/ximager/pkg/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePersistenceProvider(t *testing.T) {
	tests := map[string]string{
		"file://./data":                   "file",
		"./data":                          "file",
		"redis://localhost:6379/0":        "redis",
		"postgres://u:p@localhost/db":     "postgres",
		"https://store.example.com":       "https",
		"httpstore+http://localhost:5173": "httpstore+http",
		"mongodb://localhost":             "file",
	}

	for url, want := range tests {
		assert.Equal(t, want, parsePersistenceProvider(url), url)
	}
}

func TestNewPersistence(t *testing.T) {
	ctx := context.Background()

	store, err := NewPersistence(ctx, slog.Default(), "file://"+t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &file.Persistence{}, store)

	store, err = NewPersistence(ctx, slog.Default(), "http://127.0.0.1:5173")
	require.NoError(t, err)
	assert.IsType(t, &httpstore.Persistence{}, store)

	_, err = NewPersistence(ctx, slog.Default(), "redis://%zz")
	assert.Error(t, err)
}

func TestNewEventBus(t *testing.T) {
	bus, err := NewEventBus("gochannel", nil, slog.Default())
	require.NoError(t, err)
	assert.NoError(t, bus.Close())

	_, err = NewEventBus("kafka", nil, slog.Default())
	assert.Error(t, err)

	_, err = NewEventBus("nats", nil, slog.Default())
	assert.Error(t, err)
}

func TestNewResultSink(t *testing.T) {
	ctx := context.Background()

	resolver, err := NewResultSink(ctx, "dataurl", "", slog.Default())
	require.NoError(t, err)
	assert.IsType(t, &sink.DataURL{}, resolver)

	resolver, err = NewResultSink(ctx, "dir", t.TempDir(), slog.Default())
	require.NoError(t, err)
	assert.IsType(t, &sink.Directory{}, resolver)

	_, err = NewResultSink(ctx, "s3://host", "", slog.Default())
	assert.ErrorIs(t, err, sink.ErrInvalidS3URL)

	_, err = NewResultSink(ctx, "ftp://host", "", slog.Default())
	assert.Error(t, err)
}
