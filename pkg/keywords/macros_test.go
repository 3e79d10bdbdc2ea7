package keywords_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/dukex/ximager/pkg/keywords"
	"github.com/dukex/ximager/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMacros_SetAndExpand(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(nil)
	macros := keywords.NewMacros(store, slog.Default())

	require.NoError(t, macros.Set(ctx, "@rb", " remove background "))
	require.NoError(t, macros.Set(ctx, "hq", "high quality, @rb"))

	assert.Equal(t, models.MacroTable{"rb": "remove background", "hq": "high quality, @rb"}, store.macros)
	assert.Equal(t, []string{"hq", "rb"}, macros.Keys())

	testCases := []struct {
		input    string
		expected string
	}{
		{input: "@rb, forest", expected: "remove background, forest"},
		{input: "forest, @rb", expected: "forest, remove background"},
		{input: "@rb@rb", expected: "remove background@rb"},
		{input: "@unknown, forest", expected: "@unknown, forest"},
		{input: "mail@rb", expected: "mail@rb"},
		{input: "@rbx", expected: "@rbx"},
		{input: "(@rb).", expected: "(remove background)."},
		{input: "@hq", expected: "high quality, @rb"},
		{input: "no macros here", expected: "no macros here"},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, macros.Expand(tc.input))
		})
	}
}

func TestMacros_Validation(t *testing.T) {
	ctx := context.Background()
	macros := keywords.NewMacros(newMemStore(nil), slog.Default())

	assert.ErrorIs(t, macros.Set(ctx, "two words", "x"), keywords.ErrInvalidMacroKey)
	assert.ErrorIs(t, macros.Set(ctx, "@", "x"), keywords.ErrInvalidMacroKey)
	assert.ErrorIs(t, macros.Set(ctx, "ok", "   "), keywords.ErrEmptyExpansion)

	err := macros.Delete(ctx, "missing")
	assert.ErrorIs(t, err, keywords.ErrMacroNotFound)
	assert.True(t, keywords.IsNotFound(err))
}

func TestMacros_Delete(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(nil)
	store.macros = models.MacroTable{"rb": "remove background"}

	macros := keywords.NewMacros(store, slog.Default())

	require.NoError(t, macros.Delete(ctx, "@rb"))
	assert.Empty(t, macros.List())
	assert.Empty(t, store.macros)

	_, ok := macros.Get("rb")
	assert.False(t, ok)
}

func TestMacros_FailedFlushLeavesCacheUnchanged(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(nil)
	store.macros = models.MacroTable{"rb": "remove background"}

	macros := keywords.NewMacros(store, slog.Default())
	require.NoError(t, macros.Hydrate(ctx))

	store.failSave = true

	assert.ErrorIs(t, macros.Set(ctx, "rb", "other"), errStoreDown)
	assert.ErrorIs(t, macros.Replace(ctx, models.MacroTable{}), errStoreDown)

	expansion, ok := macros.Get("@rb")
	assert.True(t, ok)
	assert.Equal(t, "remove background", expansion)
}

func TestMacros_Replace(t *testing.T) {
	ctx := context.Background()
	macros := keywords.NewMacros(newMemStore(nil), slog.Default())

	require.NoError(t, macros.Replace(ctx, models.MacroTable{"@bg": "blurred background"}))
	assert.Equal(t, "blurred background", macros.Expand("@bg"))

	assert.ErrorIs(t, macros.Replace(ctx, models.MacroTable{"bad key": "x"}), keywords.ErrInvalidMacroKey)
}

func TestExpandWith(t *testing.T) {
	table := models.MacroTable{"a": "alpha", "b_2": "beta"}

	assert.Equal(t, "alpha beta", keywords.ExpandWith(table, "@a @b_2"))
	assert.Equal(t, "@c", keywords.ExpandWith(table, "@c"))
	assert.Equal(t, "x", keywords.ExpandWith(nil, "x"))

	// Only a token preceded by a word character is left alone.
	table["rb"] = "remove background"
	assert.Equal(t, "remove background@rb", keywords.ExpandWith(table, "@rb@rb"))
	assert.Equal(t, "@remove background", keywords.ExpandWith(table, "@@rb"))
}
