// Package keywords implements the prompt keyword frequency index and the macro table.
//
// Both keep an in-memory cache that is authoritative for the session. Every mutation
// computes a new table from a snapshot, writes it to the store and swaps the cache only
// once the write succeeded, so a failed flush leaves the cache as it was. Concurrent
// mutations are not serialised against each other: the last flush wins.
package keywords

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dukex/ximager/pkg/models"
)

const (
	// MinSuggestLength is the shortest partial that produces suggestions.
	MinSuggestLength = 3
	// MaxSuggestions bounds the size of a suggestion list.
	MaxSuggestions = 10
)

// KeywordStore is the durable home of the frequency table.
type KeywordStore interface {
	Keywords(ctx context.Context) (models.KeywordTable, error)
	SaveKeywords(ctx context.Context, table models.KeywordTable) error
}

// Index is the keyword frequency table.
type Index struct {
	store  KeywordStore
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	cache    models.KeywordTable
	hydrated bool
	// generation counts committed local mutations; a load that started before
	// a commit must not overwrite it.
	generation uint64
}

// Option configures an Index.
type Option func(*Index)

// WithClock replaces the wall clock used for lastUsed timestamps.
func WithClock(now func() time.Time) Option {
	return func(i *Index) {
		i.now = now
	}
}

func NewIndex(store KeywordStore, logger *slog.Logger, opts ...Option) *Index {
	index := &Index{
		store:  store,
		logger: logger.With("module", "keyword_index"),
		now:    time.Now,
		cache:  models.KeywordTable{},
	}

	for _, opt := range opts {
		opt(index)
	}

	return index
}

// Hydrate loads the table from the store once. Later calls are no-ops.
func (i *Index) Hydrate(ctx context.Context) error {
	i.mu.RLock()
	hydrated := i.hydrated
	i.mu.RUnlock()

	if hydrated {
		return nil
	}

	return i.load(ctx, "Hydrate")
}

// Reload re-reads the table from the store.
func (i *Index) Reload(ctx context.Context) error {
	return i.load(ctx, "Reload")
}

func (i *Index) load(ctx context.Context, op string) error {
	i.mu.RLock()
	generation := i.generation
	i.mu.RUnlock()

	table, err := i.store.Keywords(ctx)
	if err != nil {
		i.logger.ErrorContext(ctx, "Failed to load keyword table", "error", err)

		return &Error{Op: op, Err: err}
	}

	if table == nil {
		table = models.KeywordTable{}
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.generation != generation {
		i.logger.DebugContext(ctx, "Discarding stale keyword load")

		return nil
	}

	i.cache = table
	i.hydrated = true

	i.logger.DebugContext(ctx, "Keyword table loaded", "entries", len(table))

	return nil
}

// Suggest returns up to ten entries whose text starts with partial, ignoring case,
// ordered by count then most recent use. Partials shorter than three characters match nothing.
func (i *Index) Suggest(partial string) []models.KeywordStat {
	if utf8.RuneCountInString(partial) < MinSuggestLength {
		return []models.KeywordStat{}
	}

	prefix := strings.ToLower(partial)

	i.mu.RLock()
	matches := make([]models.KeywordStat, 0)

	for _, stat := range i.cache {
		if strings.HasPrefix(strings.ToLower(stat.Text), prefix) {
			matches = append(matches, stat)
		}
	}
	i.mu.RUnlock()

	sortStats(matches)

	if len(matches) > MaxSuggestions {
		matches = matches[:MaxSuggestions]
	}

	return matches
}

// All returns every entry in suggestion order.
func (i *Index) All() []models.KeywordStat {
	i.mu.RLock()
	stats := make([]models.KeywordStat, 0, len(i.cache))

	for _, stat := range i.cache {
		stats = append(stats, stat)
	}
	i.mu.RUnlock()

	sortStats(stats)

	return stats
}

// Table returns a copy of the cached table.
func (i *Index) Table() models.KeywordTable {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return i.cache.Clone()
}

func (i *Index) Get(text string) (models.KeywordStat, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	stat, ok := i.cache[strings.TrimSpace(text)]

	return stat, ok
}

// Record counts every comma-separated token of prompt and flushes once.
func (i *Index) Record(ctx context.Context, prompt string) error {
	tokens := Tokens(prompt)
	if len(tokens) == 0 {
		return nil
	}

	return i.mutate(ctx, "Record", func(table models.KeywordTable, now int64) bool {
		for _, token := range tokens {
			stat, ok := table[token]
			if !ok {
				stat = models.KeywordStat{Text: token}
			}

			stat.Count++
			stat.LastUsed = now
			table[token] = stat
		}

		return true
	})
}

// Rename moves oldText to newText with countForOld as its count.
//
// When newText already exists the two entries merge: counts add up and the most
// recent lastUsed is kept. When oldText equals newText only the count changes.
func (i *Index) Rename(ctx context.Context, oldText, newText string, countForOld int) error {
	oldText, newText = strings.TrimSpace(oldText), strings.TrimSpace(newText)

	if oldText == "" || newText == "" {
		return &Error{Op: "Rename", Err: ErrEmptyKeyword}
	}

	if countForOld < 0 {
		return &Error{Op: "Rename", Err: ErrNegativeCount}
	}

	return i.mutate(ctx, "Rename", func(table models.KeywordTable, now int64) bool {
		source, sourceExists := table[oldText]

		if oldText == newText {
			if sourceExists {
				source.Count = countForOld
				table[oldText] = source
			}

			return true
		}

		if target, ok := table[newText]; ok {
			target.Count += countForOld
			if sourceExists {
				target.LastUsed = max(target.LastUsed, source.LastUsed)
			}

			table[newText] = target
		} else {
			lastUsed := now
			if sourceExists {
				lastUsed = source.LastUsed
			}

			table[newText] = models.KeywordStat{Text: newText, Count: countForOld, LastUsed: lastUsed}
		}

		delete(table, oldText)

		return true
	})
}

// Remove deletes text. Nothing is written when the entry does not exist.
func (i *Index) Remove(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)

	return i.mutate(ctx, "Remove", func(table models.KeywordTable, _ int64) bool {
		if _, ok := table[text]; !ok {
			return false
		}

		delete(table, text)

		return true
	})
}

// Add inserts text with count, or adds count to an existing entry and refreshes lastUsed.
func (i *Index) Add(ctx context.Context, text string, count int) error {
	text = strings.TrimSpace(text)

	if text == "" {
		return &Error{Op: "Add", Err: ErrEmptyKeyword}
	}

	if count < 0 {
		return &Error{Op: "Add", Err: ErrNegativeCount}
	}

	return i.mutate(ctx, "Add", func(table models.KeywordTable, now int64) bool {
		stat, ok := table[text]
		if !ok {
			stat = models.KeywordStat{Text: text}
		}

		stat.Count += count
		stat.LastUsed = now
		table[text] = stat

		return true
	})
}

// Replace swaps the whole table, as the store contract does.
func (i *Index) Replace(ctx context.Context, table models.KeywordTable) error {
	next := make(models.KeywordTable, len(table))

	for key, stat := range table {
		text := strings.TrimSpace(key)
		if text == "" {
			return &Error{Op: "Replace", Err: ErrEmptyKeyword}
		}

		if stat.Count < 0 {
			return &Error{Op: "Replace", Err: ErrNegativeCount}
		}

		stat.Text = text
		next[text] = stat
	}

	if err := i.store.SaveKeywords(ctx, next); err != nil {
		i.logger.ErrorContext(ctx, "Failed to save keyword table", "op", "Replace", "error", err)

		return &Error{Op: "Replace", Err: err}
	}

	i.commit(next)

	return nil
}

// mutate applies fn to a copy of the hydrated cache and commits it after a successful flush.
// fn reports whether anything changed; an unchanged table is not written.
func (i *Index) mutate(ctx context.Context, op string, fn func(table models.KeywordTable, now int64) bool) error {
	if err := i.Hydrate(ctx); err != nil {
		return err
	}

	i.mu.RLock()
	next := i.cache.Clone()
	i.mu.RUnlock()

	if !fn(next, i.now().UnixMilli()) {
		return nil
	}

	if err := i.store.SaveKeywords(ctx, next); err != nil {
		i.logger.ErrorContext(ctx, "Failed to save keyword table", "op", op, "error", err)

		return &Error{Op: op, Err: err}
	}

	i.commit(next)

	return nil
}

func (i *Index) commit(table models.KeywordTable) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.cache = table
	i.hydrated = true
	i.generation++
}

func sortStats(stats []models.KeywordStat) {
	slices.SortFunc(stats, func(a, b models.KeywordStat) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}

		if c := cmp.Compare(b.LastUsed, a.LastUsed); c != 0 {
			return c
		}

		return strings.Compare(a.Text, b.Text)
	})
}
