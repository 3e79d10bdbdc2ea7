package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/ximager/pkg/persistence"
	"github.com/dukex/ximager/pkg/persistence/file"
	"github.com/dukex/ximager/pkg/persistence/httpstore"
	"github.com/dukex/ximager/pkg/persistence/postgresql"
	"github.com/dukex/ximager/pkg/persistence/redis"
)

var supportedPersistenceProviders = []string{"file", "redis", "rediss", "postgres", "postgresql", "http", "https", "httpstore+http", "httpstore+https"}

// NewPersistence opens the keyword and macro document store named by storeURL.
// A URL without a known scheme is treated as a directory.
func NewPersistence(ctx context.Context, logger *slog.Logger, storeURL string) (persistence.Persistence, error) {
	switch provider := parsePersistenceProvider(storeURL); provider {
	case "redis", "rediss":
		store, err := redis.NewPersistence(ctx, logger, storeURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open redis store: %w", err)
		}

		return store, nil
	case "postgres", "postgresql":
		store, err := postgresql.NewPersistence(ctx, logger, storeURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgresql store: %w", err)
		}

		return store, nil
	case "http", "https", "httpstore+http", "httpstore+https":
		return httpstore.NewPersistence(logger, storeURL), nil
	default:
		return file.NewPersistence(storeURL), nil
	}
}

func parsePersistenceProvider(storeURL string) string {
	provider, _, found := strings.Cut(storeURL, "://")
	if !found {
		return "file"
	}

	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}
