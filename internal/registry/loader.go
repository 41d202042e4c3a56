// Package registry loads the optional static model registry. Entries
// pre-seed footprint discovery so a first load can be admitted without
// asking the runtime for a size estimate.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"vramd/pkg/types"
)

type registryFile struct {
	Models []types.Model `json:"models" yaml:"models" toml:"models"`
}

// LoadFile reads a registry file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func LoadFile(path string) ([]types.Model, error) {
	base, err := expandHome(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(base)
	if err != nil {
		return nil, err
	}
	var rf registryFile
	switch ext := strings.ToLower(filepath.Ext(base)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &rf); err != nil {
			return nil, err
		}
	case ".json":
		if err := json.Unmarshal(b, &rf); err != nil {
			return nil, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &rf); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported registry extension: %s", ext)
	}
	for i, m := range rf.Models {
		if m.ID == "" {
			return nil, fmt.Errorf("registry entry %d has no id", i)
		}
	}
	return rf.Models, nil
}

// Footprints converts registry entries into a byte-size override map,
// skipping entries without a known footprint.
func Footprints(models []types.Model) map[string]int64 {
	out := make(map[string]int64, len(models))
	for _, m := range models {
		if m.FootprintMB > 0 {
			out[m.ID] = m.FootprintMB << 20
		}
	}
	return out
}

// expandHome expands a leading '~' to the user's home directory.
func expandHome(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
