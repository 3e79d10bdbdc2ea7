// Package templates locates and loads the pre-authored execution graph documents.
package templates

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/dukex/ximager/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

var (
	ErrTemplateNotFound = errors.New("graph template not found")
	ErrInvalidTemplate  = errors.New("invalid graph template")
	ErrInvalidName      = errors.New("invalid graph template name")
	ErrTemplateExists   = errors.New("graph template already exists")
)

// Extension of template documents.
const Extension = ".json"

// Source lists and loads graph templates.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Load(ctx context.Context, name string) (models.ExecutionGraph, error)
}

// templateSchema only requires a top-level object; node shapes are left to the patcher.
var templateSchema = map[string]any{
	"type":          "object",
	"minProperties": 1,
}

// Decode parses and validates a template document.
func Decode(name string, data []byte) (models.ExecutionGraph, error) {
	var document any
	if err := sonic.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrInvalidTemplate, name, err)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(templateSchema), gojsonschema.NewGoLoader(document))
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrInvalidTemplate, name, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return nil, fmt.Errorf("%w %s: %s", ErrInvalidTemplate, name, strings.Join(details, "; "))
	}

	graph, ok := document.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w %s: not an object", ErrInvalidTemplate, name)
	}

	return models.ExecutionGraph(graph), nil
}

// ValidateName rejects names that could escape the template directory.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return nil
}

// NormalizeName appends the template extension when missing.
func NormalizeName(name string) string {
	if strings.HasSuffix(name, Extension) {
		return name
	}

	return name + Extension
}

// DisplayName turns "SDXL_Image_Enhancer.json" into "SDXL Image Enhancer".
func DisplayName(name string) string {
	return strings.ReplaceAll(strings.TrimSuffix(name, Extension), "_", " ")
}

// IsNotFound checks if an error indicates a missing template.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound)
}

// IsInvalid checks if an error indicates a bad template document or name.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidTemplate) || errors.Is(err, ErrInvalidName)
}
