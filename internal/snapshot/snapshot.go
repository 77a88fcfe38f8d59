// Package snapshot archives zone inventories taken before changes are applied.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"zonekeeper/internal/records"
)

const timestampLayout = "20060102-150405"

var errEmptyZoneName = errors.New("zone name is required")

// Snapshot is the complete record inventory of a zone at one point in time.
type Snapshot struct {
	ZoneID     string           `json:"zone_id" yaml:"zone_id"`
	Zone       string           `json:"zone" yaml:"zone"`
	Credential string           `json:"credential,omitempty" yaml:"credential,omitempty"`
	Taken      time.Time        `json:"taken_at" yaml:"taken_at"`
	Reason     string           `json:"reason,omitempty" yaml:"reason,omitempty"`
	Records    []records.Record `json:"records" yaml:"records"`
}

// Validate checks the snapshot before it is persisted. An empty zone is a
// valid snapshot.
func (s *Snapshot) Validate() error {
	if s == nil {
		return errors.New("nil snapshot")
	}
	if strings.TrimSpace(s.Zone) == "" {
		return errEmptyZoneName
	}
	if s.Taken.IsZero() {
		s.Taken = time.Now().UTC()
	}
	return nil
}

// Encode serializes the snapshot to JSON or YAML.
func Encode(s *Snapshot, format string) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	switch strings.ToLower(format) {
	case "yaml", "yml":
		return yaml.Marshal(s)
	default:
		return json.MarshalIndent(s, "", "  ")
	}
}

// Decode parses a snapshot in the given format.
func Decode(data []byte, format string) (*Snapshot, error) {
	s := &Snapshot{}
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("decode yaml snapshot: %w", err)
		}
	default:
		if err := json.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("decode json snapshot: %w", err)
		}
	}
	return s, s.Validate()
}

// Load reads a snapshot file. Format is inferred from the extension when empty.
func Load(path, format string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if format == "" {
		format = FormatFromPath(path)
	}
	return Decode(data, format)
}

// FormatFromPath maps a file extension onto "yaml" or "json".
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

// FileName is the archive name of a snapshot: <zone>-<YYYYMMDD-HHMMSS>.<ext>.
func FileName(s *Snapshot, format string) string {
	ext := ".json"
	if f := strings.ToLower(format); f == "yaml" || f == "yml" {
		ext = ".yaml"
	}
	return fmt.Sprintf("%s-%s%s", s.Zone, s.Taken.UTC().Format(timestampLayout), ext)
}

// ZoneFromName recovers the zone from a FileName result or object key.
func ZoneFromName(key string) string {
	name := filepath.Base(key)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	// -YYYYMMDD-HHMMSS
	const stampLen = len(timestampLayout) + 1
	if len(name) > stampLen {
		stamp := name[len(name)-stampLen:]
		if stamp[0] == '-' && stamp[9] == '-' && isDigits(stamp[1:9]) && isDigits(stamp[10:]) {
			return name[:len(name)-stampLen]
		}
	}
	return name
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
