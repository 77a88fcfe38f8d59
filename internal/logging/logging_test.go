package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Level: "info", Format: "json", Output: &buf})
	require.NoError(t, err)

	log.Info("record created", "type", "A", "name", "example.org")
	log.V(1).Info("hidden at info level")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "record created", entry["msg"])
	assert.Equal(t, "example.org", entry["name"])
}

func TestVerbosityLevels(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Level: "2", Format: "console", Output: &buf})
	require.NoError(t, err)
	log.V(2).Info("page fetched")
	log.V(3).Info("too chatty")
	assert.Contains(t, buf.String(), "page fetched")
	assert.NotContains(t, buf.String(), "too chatty")
}

func TestInvalidOptions(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)
	_, err = New(Options{Format: "xml"})
	assert.Error(t, err)
}
