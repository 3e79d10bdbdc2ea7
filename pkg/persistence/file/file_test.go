package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/ximager/pkg/models"
	"github.com/dukex/ximager/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPersistence_StripsScheme(t *testing.T) {
	p := NewPersistence("file:///tmp/ximager")

	assert.Equal(t, "/tmp/ximager", p.root)
}

func TestPersistence_MissingDocumentsAreEmpty(t *testing.T) {
	ctx := context.Background()
	p := NewPersistence(t.TempDir())

	keywords, err := p.Keywords(ctx)
	require.NoError(t, err)
	assert.Empty(t, keywords)
	assert.NotNil(t, keywords)

	macros, err := p.Macros(ctx)
	require.NoError(t, err)
	assert.Empty(t, macros)
}

func TestPersistence_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "store")
	p := NewPersistence(root)

	keywords := models.KeywordTable{
		"forest": {Text: "forest", Count: 3, LastUsed: 1700000000000},
		"cat":    {Text: "cat", Count: 1, LastUsed: 1700000000500},
	}
	macros := models.MacroTable{"rb": "remove background"}

	require.NoError(t, p.SaveKeywords(ctx, keywords))
	require.NoError(t, p.SaveMacros(ctx, macros))

	loadedKeywords, err := p.Keywords(ctx)
	require.NoError(t, err)
	assert.Equal(t, keywords, loadedKeywords)

	loadedMacros, err := p.Macros(ctx)
	require.NoError(t, err)
	assert.Equal(t, macros, loadedMacros)

	info, err := os.Stat(filepath.Join(root, "keywords.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	_, err = os.Stat(filepath.Join(root, "keywords.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestPersistence_WireFormat(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	p := NewPersistence(root)

	require.NoError(t, p.SaveKeywords(ctx, models.KeywordTable{
		"dog": {Text: "dog", Count: 2, LastUsed: 42},
	}))

	body, err := os.ReadFile(filepath.Join(root, "keywords.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"dog":{"text":"dog","count":2,"lastUsed":42}}`, string(body))
}

func TestPersistence_CorruptDocument(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "macros.json"), []byte("{not json"), 0600))

	p := NewPersistence(root)

	_, err := p.Macros(ctx)
	require.Error(t, err)
	assert.True(t, persistence.IsInvalidDocument(err))
}

func TestPersistence_HealthCheck(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, NewPersistence(t.TempDir()).HealthCheck(ctx))
	assert.ErrorIs(t, NewPersistence(filepath.Join(t.TempDir(), "missing")).HealthCheck(ctx), os.ErrNotExist)
}
