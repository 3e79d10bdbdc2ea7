package templates

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// ManifestFile is the generated listing stored next to the templates.
const ManifestFile = "manifest.json"

// Manifest lists the templates of a directory.
type Manifest struct {
	Workflows   []string  `json:"workflows"`
	GeneratedAt time.Time `json:"generatedAt"`
	Count       int       `json:"count"`
}

// GenerateManifest scans dir for *.json documents, excluding the manifest itself,
// sorted by name.
func GenerateManifest(dir string, now time.Time) (Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to read workflow directory: %w", err)
	}

	workflows := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, Extension) || name == ManifestFile {
			continue
		}

		workflows = append(workflows, name)
	}

	slices.Sort(workflows)

	return Manifest{Workflows: workflows, GeneratedAt: now.UTC(), Count: len(workflows)}, nil
}

// WriteManifest generates the manifest of dir and writes it to dir/manifest.json.
func WriteManifest(dir string, now time.Time) (Manifest, error) {
	manifest, err := GenerateManifest(dir, now)
	if err != nil {
		return Manifest{}, err
	}

	if err := writeManifestFile(dir, manifest); err != nil {
		return Manifest{}, err
	}

	return manifest, nil
}

// ReadManifest reads a manifest document.
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to read manifest: %w", err)
	}

	return ParseManifest(data)
}

// ParseManifest decodes a manifest document.
func ParseManifest(data []byte) (Manifest, error) {
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if manifest.Workflows == nil {
		manifest.Workflows = []string{}
	}

	return manifest, nil
}

func writeManifestFile(dir string, manifest Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0600); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return nil
}
