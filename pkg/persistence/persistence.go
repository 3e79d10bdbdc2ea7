// Package persistence provides the storage abstraction for the keyword and macro documents.
//
// Each document is stored and replaced whole. There is no incremental patching.
package persistence

import (
	"context"

	"github.com/dukex/ximager/pkg/models"
)

// Document names shared by every store implementation.
const (
	KeywordsDocument = "keywords"
	MacrosDocument   = "macros"
)

type Persistence interface {
	// Keywords returns the stored frequency table. A missing document is an empty table.
	Keywords(ctx context.Context) (models.KeywordTable, error)
	// SaveKeywords replaces the stored frequency table.
	SaveKeywords(ctx context.Context, table models.KeywordTable) error
	// Macros returns the stored macro table. A missing document is an empty table.
	Macros(ctx context.Context) (models.MacroTable, error)
	// SaveMacros replaces the stored macro table.
	SaveMacros(ctx context.Context, table models.MacroTable) error
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
