package planner

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Encode renders the plan as indented JSON, or YAML when format is "yaml".
func Encode(plan *Plan, format string) ([]byte, error) {
	if plan == nil {
		return nil, errors.New("nil plan")
	}
	if f := strings.ToLower(format); f == "yaml" || f == "yml" {
		return yaml.Marshal(plan)
	}
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Save writes the plan to path. Files ending in .yaml or .yml get YAML.
func Save(plan *Plan, path string) error {
	format := "json"
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
		format = "yaml"
	}
	data, err := Encode(plan, format)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
