package keywords

import (
	"context"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/dukex/ximager/pkg/models"
)

var (
	macroKeyPattern   = regexp.MustCompile(`^\w+$`)
	macroTokenPattern = regexp.MustCompile(`@(\w+)`)
)

// MacroStore is the durable home of the macro table.
type MacroStore interface {
	Macros(ctx context.Context) (models.MacroTable, error)
	SaveMacros(ctx context.Context, table models.MacroTable) error
}

// Macros is the @key to expansion table.
type Macros struct {
	store  MacroStore
	logger *slog.Logger

	mu         sync.RWMutex
	cache      models.MacroTable
	hydrated   bool
	generation uint64
}

func NewMacros(store MacroStore, logger *slog.Logger) *Macros {
	return &Macros{
		store:  store,
		logger: logger.With("module", "macro_table"),
		cache:  models.MacroTable{},
	}
}

// NormalizeMacroKey strips surrounding space and one leading @.
func NormalizeMacroKey(key string) string {
	return strings.TrimPrefix(strings.TrimSpace(key), "@")
}

// Hydrate loads the table from the store once.
func (m *Macros) Hydrate(ctx context.Context) error {
	m.mu.RLock()
	hydrated, generation := m.hydrated, m.generation
	m.mu.RUnlock()

	if hydrated {
		return nil
	}

	table, err := m.store.Macros(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to load macro table", "error", err)

		return &Error{Op: "Hydrate", Err: err}
	}

	if table == nil {
		table = models.MacroTable{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.generation == generation {
		m.cache = table
		m.hydrated = true
	}

	return nil
}

// List returns a copy of the table.
func (m *Macros) List() models.MacroTable {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.cache.Clone()
}

// Keys returns the macro keys in lexical order.
func (m *Macros) Keys() []string {
	m.mu.RLock()
	keys := make([]string, 0, len(m.cache))

	for key := range m.cache {
		keys = append(keys, key)
	}
	m.mu.RUnlock()

	slices.Sort(keys)

	return keys
}

func (m *Macros) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	expansion, ok := m.cache[NormalizeMacroKey(key)]

	return expansion, ok
}

// Set creates or replaces a macro.
func (m *Macros) Set(ctx context.Context, key, expansion string) error {
	key = NormalizeMacroKey(key)
	if !macroKeyPattern.MatchString(key) {
		return &Error{Op: "SetMacro", Err: ErrInvalidMacroKey}
	}

	expansion = strings.TrimSpace(expansion)
	if expansion == "" {
		return &Error{Op: "SetMacro", Err: ErrEmptyExpansion}
	}

	return m.mutate(ctx, "SetMacro", func(table models.MacroTable) error {
		table[key] = expansion

		return nil
	})
}

// Delete removes a macro. Deleting an unknown key fails with ErrMacroNotFound.
func (m *Macros) Delete(ctx context.Context, key string) error {
	key = NormalizeMacroKey(key)

	return m.mutate(ctx, "DeleteMacro", func(table models.MacroTable) error {
		if _, ok := table[key]; !ok {
			return ErrMacroNotFound
		}

		delete(table, key)

		return nil
	})
}

// Replace swaps the whole table.
func (m *Macros) Replace(ctx context.Context, table models.MacroTable) error {
	next := make(models.MacroTable, len(table))

	for key, expansion := range table {
		key = NormalizeMacroKey(key)
		if !macroKeyPattern.MatchString(key) {
			return &Error{Op: "ReplaceMacros", Err: ErrInvalidMacroKey}
		}

		next[key] = expansion
	}

	if err := m.store.SaveMacros(ctx, next); err != nil {
		m.logger.ErrorContext(ctx, "Failed to save macro table", "op", "ReplaceMacros", "error", err)

		return &Error{Op: "ReplaceMacros", Err: err}
	}

	m.commit(next)

	return nil
}

// Expand replaces every @key token that starts at a word boundary with its expansion.
// Unknown keys are left verbatim. Expansions are not expanded again.
func (m *Macros) Expand(text string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.cache) == 0 {
		return text
	}

	return ExpandWith(m.cache, text)
}

// ExpandWith expands text against table.
func ExpandWith(table models.MacroTable, text string) string {
	var out strings.Builder

	last := 0

	for _, loc := range macroTokenPattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[0], loc[1]
		key := text[loc[2]:loc[3]]

		expansion, ok := table[key]
		if !ok || precededByWordChar(text, start) {
			continue
		}

		out.WriteString(text[last:start])
		out.WriteString(expansion)

		last = end
	}

	if last == 0 {
		return text
	}

	out.WriteString(text[last:])

	return out.String()
}

func precededByWordChar(text string, pos int) bool {
	if pos == 0 {
		return false
	}

	r, _ := utf8.DecodeLastRuneInString(text[:pos])

	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (m *Macros) mutate(ctx context.Context, op string, fn func(table models.MacroTable) error) error {
	if err := m.Hydrate(ctx); err != nil {
		return err
	}

	next := m.List()

	if err := fn(next); err != nil {
		return &Error{Op: op, Err: err}
	}

	if err := m.store.SaveMacros(ctx, next); err != nil {
		m.logger.ErrorContext(ctx, "Failed to save macro table", "op", op, "error", err)

		return &Error{Op: op, Err: err}
	}

	m.commit(next)

	return nil
}

func (m *Macros) commit(table models.MacroTable) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache = table
	m.hydrated = true
	m.generation++
}
