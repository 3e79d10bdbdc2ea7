package templates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/dukex/ximager/pkg/models"
)

// DirSource serves templates from a local directory.
type DirSource struct {
	dir    string
	logger *slog.Logger
}

func NewDirSource(dir string, logger *slog.Logger) *DirSource {
	return &DirSource{
		dir:    dir,
		logger: logger.With("module", "template_dir_source", "dir", dir),
	}
}

// Dir returns the template directory.
func (s *DirSource) Dir() string {
	return s.dir
}

// List returns the template names in the directory. When the directory cannot be
// listed, the manifest is used instead.
func (s *DirSource) List(ctx context.Context) ([]string, error) {
	manifest, err := GenerateManifest(s.dir, time.Now())
	if err == nil {
		return manifest.Workflows, nil
	}

	s.logger.WarnContext(ctx, "Cannot list workflow directory, falling back to manifest", "error", err)

	manifest, manifestErr := ReadManifest(filepath.Join(s.dir, ManifestFile))
	if manifestErr != nil {
		return nil, errors.Join(err, manifestErr)
	}

	return manifest.Workflows, nil
}

// Load reads and decodes the named template.
func (s *DirSource) Load(ctx context.Context, name string) (models.ExecutionGraph, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
		}

		return nil, fmt.Errorf("failed to read workflow %s: %w", name, err)
	}

	graph, err := Decode(name, data)
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "Loaded workflow", "name", name, "nodes", len(graph))

	return graph, nil
}

// Rename moves a template to newName (".json" is appended when missing) and updates
// its manifest entry. It returns the stored name.
func (s *DirSource) Rename(ctx context.Context, oldName, newName string) (string, error) {
	if err := ValidateName(oldName); err != nil {
		return "", err
	}

	if err := ValidateName(newName); err != nil {
		return "", err
	}

	newName = NormalizeName(newName)
	oldPath := filepath.Join(s.dir, oldName)
	newPath := filepath.Join(s.dir, newName)

	if _, err := os.Stat(oldPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, oldName)
		}

		return "", fmt.Errorf("failed to stat workflow %s: %w", oldName, err)
	}

	if oldName != newName {
		if _, err := os.Stat(newPath); err == nil {
			return "", fmt.Errorf("%w: %s", ErrTemplateExists, newName)
		}
	}

	if err := os.Rename(oldPath, newPath); err != nil {
		return "", fmt.Errorf("failed to rename workflow: %w", err)
	}

	s.renameInManifest(ctx, oldName, newName)

	s.logger.InfoContext(ctx, "Renamed workflow", "from", oldName, "to", newName)

	return newName, nil
}

// renameInManifest updates an existing manifest in place. A missing or unreadable
// manifest is left alone.
func (s *DirSource) renameInManifest(ctx context.Context, oldName, newName string) {
	manifest, err := ReadManifest(filepath.Join(s.dir, ManifestFile))
	if err != nil {
		return
	}

	index := slices.Index(manifest.Workflows, oldName)
	if index == -1 {
		return
	}

	manifest.Workflows[index] = newName

	if err := writeManifestFile(s.dir, manifest); err != nil {
		s.logger.ErrorContext(ctx, "Failed to update manifest", "error", err)
	}
}
