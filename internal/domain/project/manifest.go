package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// Manifest file names, checked in this order
const (
	ManifestYAML = "project.yaml"
	ManifestTOML = "project.toml"
)

// Manifest is the optional per-project descriptor of a disk project.
// Files fixes the order of the listed paths; unlisted files follow in
// lexical order. Ignore holds doublestar patterns.
type Manifest struct {
	Title  string   `yaml:"title" toml:"title"`
	Files  []string `yaml:"files,omitempty" toml:"files,omitempty"`
	Ignore []string `yaml:"ignore,omitempty" toml:"ignore,omitempty"`
}

// readManifest loads project.yaml or project.toml from dir. A missing
// manifest is not an error.
func readManifest(dir string) (Manifest, string, error) {
	var m Manifest

	data, err := os.ReadFile(filepath.Join(dir, ManifestYAML))
	if err == nil {
		if err := yaml.Unmarshal(data, &m); err != nil {
			return m, ManifestYAML, fmt.Errorf("failed to parse %s: %w", ManifestYAML, err)
		}
		return m, ManifestYAML, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return m, "", err
	}

	data, err = os.ReadFile(filepath.Join(dir, ManifestTOML))
	if err == nil {
		if err := toml.Unmarshal(data, &m); err != nil {
			return m, ManifestTOML, fmt.Errorf("failed to parse %s: %w", ManifestTOML, err)
		}
		return m, ManifestTOML, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return m, "", err
	}
	return m, "", nil
}

func writeManifest(dir string, m Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, ManifestYAML), data, 0o644)
}
