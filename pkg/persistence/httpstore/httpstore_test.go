package httpstore

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/dukex/ximager/pkg/models"
	"github.com/dukex/ximager/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu        sync.Mutex
	documents map[string][]byte
	failSave  bool
}

func (f *fakeStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := r.URL.Path[1:]

	switch r.Method {
	case http.MethodGet:
		body, ok := f.documents[name]
		if !ok {
			w.WriteHeader(http.StatusNotFound)

			return
		}

		_, _ = w.Write(body)
	case http.MethodPost:
		if f.failSave {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		body, _ := io.ReadAll(r.Body)
		f.documents[name] = body

		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newStore(t *testing.T) (*Persistence, *fakeStore) {
	t.Helper()

	store := &fakeStore{documents: map[string][]byte{}}
	server := httptest.NewServer(store)
	t.Cleanup(server.Close)

	return NewPersistence(slog.Default(), "httpstore+"+server.URL+"/"), store
}

func TestPersistence_RoundTrip(t *testing.T) {
	ctx := context.Background()
	p, _ := newStore(t)

	keywords, err := p.Keywords(ctx)
	require.NoError(t, err)
	assert.Empty(t, keywords)

	table := models.KeywordTable{"forest": {Text: "forest", Count: 2, LastUsed: 5}}
	require.NoError(t, p.SaveKeywords(ctx, table))

	keywords, err = p.Keywords(ctx)
	require.NoError(t, err)
	assert.Equal(t, table, keywords)

	require.NoError(t, p.SaveMacros(ctx, models.MacroTable{"rb": "remove background"}))

	macros, err := p.Macros(ctx)
	require.NoError(t, err)
	assert.Equal(t, "remove background", macros["rb"])

	assert.NoError(t, p.HealthCheck(ctx))
	assert.NoError(t, p.Close(ctx))
}

func TestPersistence_RejectedWrite(t *testing.T) {
	ctx := context.Background()
	p, store := newStore(t)
	store.failSave = true

	err := p.SaveKeywords(ctx, models.KeywordTable{})
	require.Error(t, err)
	assert.True(t, persistence.IsStoreUnavailable(err))
}

func TestPersistence_InvalidDocument(t *testing.T) {
	ctx := context.Background()
	p, store := newStore(t)
	store.documents["keywords"] = []byte("[1,2,3]")

	_, err := p.Keywords(ctx)
	require.Error(t, err)
	assert.True(t, persistence.IsInvalidDocument(err))
}

func TestPersistence_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	p := NewPersistence(slog.Default(), url)

	_, err := p.Keywords(context.Background())
	require.Error(t, err)
	assert.Error(t, p.HealthCheck(context.Background()))
}
