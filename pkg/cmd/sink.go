package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/ximager/pkg/sink"
)

// NewResultSink builds the output resolver for target: "dataurl", "dir" (the output
// directory), a "file://" path or an "s3://" bucket URL.
func NewResultSink(ctx context.Context, target, outputDir string, logger *slog.Logger) (sink.Resolver, error) {
	switch {
	case target == "" || target == "dataurl":
		return sink.NewDataURL(), nil
	case target == "dir":
		return sink.NewDirectory(outputDir, logger), nil
	case strings.HasPrefix(target, "file://"):
		return sink.NewDirectory(strings.TrimPrefix(target, "file://"), logger), nil
	case strings.HasPrefix(target, "s3://"):
		cfg, err := sink.ParseS3URL(target)
		if err != nil {
			return nil, err
		}

		client, err := sink.NewMinIOClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create object store client: %w", err)
		}

		resolver := sink.NewS3(client, cfg, logger)
		if err := resolver.EnsureBucket(ctx); err != nil {
			return nil, err
		}

		return resolver, nil
	default:
		return nil, fmt.Errorf("unsupported result sink: %s", target)
	}
}
