package snapshot

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zonekeeper/internal/records"
)

func sample() *Snapshot {
	return &Snapshot{
		ZoneID: "zone-1",
		Zone:   "example.org",
		Taken:  time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC),
		Records: []records.Record{
			{ID: "r1", Type: records.TypeA, Name: "example.org", Content: "185.199.108.153", TTL: 1, Proxied: records.Bool(false)},
			{ID: "r2", Type: records.TypeSRV, Name: "_sip._tls.example.org", Content: "1 443 sipdir.online.lync.com", TTL: 1,
				SRV: &records.SRVData{Priority: 100, Weight: 1, Port: 443, Target: "sipdir.online.lync.com"}},
		},
	}
}

func TestDirArchiveRoundTrip(t *testing.T) {
	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "snaps")
			where, err := DirArchive{Dir: dir, Format: format}.Save(context.Background(), sample())
			require.NoError(t, err)
			assert.Equal(t, "example.org", ZoneFromName(where))

			loaded, err := Load(where, "")
			require.NoError(t, err)
			assert.Equal(t, sample().Records, loaded.Records)
			assert.True(t, sample().Taken.Equal(loaded.Taken))
		})
	}
}

func TestValidate(t *testing.T) {
	_, err := Encode(&Snapshot{}, "json")
	assert.ErrorIs(t, err, errEmptyZoneName)

	empty := &Snapshot{Zone: "example.org"}
	require.NoError(t, empty.Validate())
	assert.False(t, empty.Taken.IsZero())
}

func TestZoneFromName(t *testing.T) {
	tests := map[string]string{
		"zone-snapshots/example.org-20261015-093000.json": "example.org",
		"my-zone.co.uk-20261015-093000.yaml":              "my-zone.co.uk",
		"notes.txt":                                       "notes",
		"example.org-2026-x.json":                         "example.org-2026-x",
	}
	for key, want := range tests {
		assert.Equal(t, want, ZoneFromName(key), key)
	}
}

func TestMinioArchiveKeys(t *testing.T) {
	_, err := NewMinioArchive(MinioConfig{Endpoint: "localhost:9000"}, logr.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")

	archive, err := NewMinioArchive(MinioConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "dns",
		Prefix:    "/prod/",
		Format:    "yaml",
	}, logr.Discard())
	require.NoError(t, err)
	assert.Equal(t, "prod/zone-snapshots/example.org-20261015-093000.yaml", archive.ObjectKey(sample()))
}
