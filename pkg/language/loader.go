package language

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v2"
)

type fileFormat struct {
	Languages []Config `json:"languages" yaml:"languages"`
}

// LoadFile reads a registry from a YAML or JSON file. An empty path returns
// the built-in table.
func LoadFile(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read languages file: %w", err)
	}

	var parsed fileFormat
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("parse json languages: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.UnmarshalStrict(data, &parsed); err != nil {
			return nil, fmt.Errorf("parse yaml languages: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			if jsonErr := json.Unmarshal(data, &parsed); jsonErr != nil {
				return nil, fmt.Errorf("unsupported languages file format: %s", ext)
			}
		}
	}

	reg, err := New(parsed.Languages)
	if err != nil {
		return nil, fmt.Errorf("languages file %s: %w", path, err)
	}
	return reg, nil
}
