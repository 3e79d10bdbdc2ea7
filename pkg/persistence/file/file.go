// Package file provides file-based persistence for the keyword and macro documents.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukex/ximager/pkg/models"
	"github.com/dukex/ximager/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
// Each document lives in <root>/<name>.json.
type Persistence struct {
	root string
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	return &Persistence{root: strings.Replace(root, "file://", "", 1)}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) Keywords(_ context.Context) (models.KeywordTable, error) {
	table := models.KeywordTable{}
	if err := fp.read(persistence.KeywordsDocument, &table); err != nil {
		return nil, err
	}

	return table, nil
}

func (fp *Persistence) SaveKeywords(_ context.Context, table models.KeywordTable) error {
	if table == nil {
		table = models.KeywordTable{}
	}

	return fp.write(persistence.KeywordsDocument, table)
}

func (fp *Persistence) Macros(_ context.Context) (models.MacroTable, error) {
	table := models.MacroTable{}
	if err := fp.read(persistence.MacrosDocument, &table); err != nil {
		return nil, err
	}

	return table, nil
}

func (fp *Persistence) SaveMacros(_ context.Context, table models.MacroTable) error {
	if table == nil {
		table = models.MacroTable{}
	}

	return fp.write(persistence.MacrosDocument, table)
}

func (fp *Persistence) path(document string) string {
	return filepath.Join(fp.root, document+".json")
}

// read decodes the document into dest. A missing file leaves dest untouched.
func (fp *Persistence) read(document string, dest any) error {
	body, err := os.ReadFile(fp.path(document))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return persistence.NewDocumentError("Load", document, err)
	}

	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return persistence.NewDocumentError("Load", document, fmt.Errorf("%w: %w", persistence.ErrInvalidDocument, err))
	}

	return nil
}

// write replaces the document through a temporary file so readers never see a partial table.
func (fp *Persistence) write(document string, value any) error {
	err := os.MkdirAll(fp.root, 0750)
	if err != nil {
		return persistence.NewDocumentError("Save", document, fmt.Errorf("failed to create store directory: %w", err))
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return persistence.NewDocumentError("Save", document, fmt.Errorf("failed to marshal: %w", err))
	}

	tmp := fp.path(document) + ".tmp"

	err = os.WriteFile(tmp, data, 0600)
	if err != nil {
		return persistence.NewDocumentError("Save", document, err)
	}

	err = os.Rename(tmp, fp.path(document))
	if err != nil {
		_ = os.Remove(tmp)

		return persistence.NewDocumentError("Save", document, err)
	}

	return nil
}
