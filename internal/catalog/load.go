package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"zonekeeper/internal/records"
)

// Load reads a catalog file. Format is inferred from the extension when empty.
func Load(path, format string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	if format == "" {
		format = detectFormatFromPath(path)
	}
	return Decode(data, format)
}

// Decode parses and validates a catalog document.
func Decode(data []byte, format string) (Catalog, error) {
	var c Catalog
	switch strings.ToLower(format) {
	case "json":
		if err := json.Unmarshal(data, &c); err != nil {
			return Catalog{}, fmt.Errorf("decode json catalog: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &c); err != nil {
			return Catalog{}, fmt.Errorf("decode yaml catalog: %w", err)
		}
	}
	for i := range c.Entries {
		c.Entries[i].Type = normalizeType(c.Entries[i].Type)
	}
	return c, c.Validate()
}

// Encode serializes the catalog to JSON or YAML.
func Encode(c Catalog, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "json":
		return json.MarshalIndent(c, "", "  ")
	default:
		return yaml.Marshal(c)
	}
}

func detectFormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	default:
		return "yaml"
	}
}

func normalizeType(t records.Type) records.Type {
	return records.Type(strings.ToUpper(strings.TrimSpace(string(t))))
}
