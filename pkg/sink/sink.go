// Package sink turns a rendered engine asset into a reference the operator can display.
package sink

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/dukex/ximager/pkg/models"
)

var ErrEmptyAsset = errors.New("asset has no content")

// Resolver stores or encodes an output asset and returns its displayable reference.
type Resolver interface {
	Resolve(ctx context.Context, ref models.OutputRef, asset models.Asset) (string, error)
}

// DataURL resolves assets to inline data URLs.
type DataURL struct{}

func NewDataURL() *DataURL {
	return &DataURL{}
}

func (DataURL) Resolve(_ context.Context, _ models.OutputRef, asset models.Asset) (string, error) {
	if len(asset.Content) == 0 {
		return "", ErrEmptyAsset
	}

	contentType := asset.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(asset.Content), nil
}
