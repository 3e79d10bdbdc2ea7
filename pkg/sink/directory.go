package sink

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dukex/ximager/pkg/models"
)

// Directory writes assets under a local output directory, keeping the engine's subfolder.
type Directory struct {
	root   string
	logger *slog.Logger
}

func NewDirectory(root string, logger *slog.Logger) *Directory {
	return &Directory{
		root:   root,
		logger: logger.With("module", "sink_directory"),
	}
}

func (d *Directory) Resolve(ctx context.Context, ref models.OutputRef, asset models.Asset) (string, error) {
	if len(asset.Content) == 0 {
		return "", ErrEmptyAsset
	}

	dir := d.root
	if subfolder := filepath.Base(filepath.Clean("/" + ref.Subfolder)); subfolder != "/" && subfolder != "." {
		dir = filepath.Join(dir, subfolder)
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, filepath.Base(ref.Filename))

	if err := os.WriteFile(path, asset.Content, 0600); err != nil {
		return "", fmt.Errorf("failed to write output: %w", err)
	}

	d.logger.InfoContext(ctx, "Saved output", "path", path, "bytes", len(asset.Content))

	return path, nil
}
