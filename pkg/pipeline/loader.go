package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFromPath reads a pipeline file and returns the parsed Definition.
// Format is detected by extension (.yaml/.yml, .json, .hcl) or, failing
// that, by content.
func LoadFromPath(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline: %w", err)
	}
	return Load(data, filepath.Ext(path))
}

// Load parses a pipeline from bytes. ext is the file extension used as a
// format hint; empty means detect from content.
func Load(data []byte, ext string) (*Definition, error) {
	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}
	if ext == "" {
		ext = sniff(data)
	}

	switch ext {
	case ".json":
		var d Definition
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("parse pipeline json: %w", err)
		}
		return &d, nil
	case ".hcl":
		return decodeHCL(data, "pipeline.hcl")
	default:
		var d Definition
		if err := yaml.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("parse pipeline yaml: %w", err)
		}
		return &d, nil
	}
}

func sniff(data []byte) string {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case strings.HasPrefix(trimmed, "{"):
		return ".json"
	case strings.HasPrefix(trimmed, "pipeline \""):
		return ".hcl"
	default:
		return ".yaml"
	}
}
