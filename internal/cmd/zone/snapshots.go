package zone

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"zonekeeper/internal/records"
	"zonekeeper/internal/snapshot"
)

func runSnapshots(cmd *cobra.Command, args []string) error {
	if err := loadEnvFromFlag(cmd); err != nil {
		return err
	}
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	zone := ""
	if len(args) == 1 {
		zone = records.NormalizeName(args[0])
	}
	limit := mustGetIntFlag(cmd, "limit")

	var infos []snapshot.Info
	if dir := stringSetting(cmd, "snapshot-dir", "snapshot.dir"); dir != "" {
		infos, err = listSnapshotDir(dir, zone, limit)
	} else {
		var archive *snapshot.MinioArchive
		if archive, err = minioArchive(cmd); err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		infos, err = archive.List(ctx, zone, limit)
	}
	if err != nil {
		return err
	}

	if format != "text" {
		return writeStructured(cmd.OutOrStdout(), infos, format)
	}
	if len(infos) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No snapshots found.")
		return nil
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tZONE\tSIZE\tMODIFIED")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", info.Key, info.Zone, info.Size, info.LastModified.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func runShowSnapshot(cmd *cobra.Command, args []string) error {
	if err := loadEnvFromFlag(cmd); err != nil {
		return err
	}
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	var snap *snapshot.Snapshot
	if _, statErr := os.Stat(args[0]); statErr == nil {
		snap, err = snapshot.Load(args[0], "")
	} else {
		var archive *snapshot.MinioArchive
		if archive, err = minioArchive(cmd); err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		snap, err = archive.Download(ctx, args[0])
	}
	if err != nil {
		return err
	}
	if format != "text" {
		return writeStructured(cmd.OutOrStdout(), snap, format)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Zone %s (%s) taken %s: %s\n", snap.Zone, snap.ZoneID, snap.Taken.Format("2006-01-02 15:04:05"), snap.Reason)
	renderRecords(cmd.OutOrStdout(), snap.Records)
	return nil
}

func minioArchive(cmd *cobra.Command) (*snapshot.MinioArchive, error) {
	cfg := minioConfig(cmd)
	if cfg.Endpoint == "" {
		return nil, errors.New("no snapshot storage configured: set --snapshot-dir or --minio-endpoint")
	}
	log, err := buildLogger(cmd)
	if err != nil {
		return nil, err
	}
	return snapshot.NewMinioArchive(cfg, log.WithName("snapshot"))
}

func listSnapshotDir(dir, zone string, limit int) ([]snapshot.Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read snapshot directory: %w", err)
	}
	var out []snapshot.Info
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}
		name := snapshot.ZoneFromName(entry.Name())
		if zone != "" && name != zone {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, snapshot.Info{Key: filepath.Join(dir, entry.Name()), Zone: name, Size: fi.Size(), LastModified: fi.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastModified.After(out[j].LastModified)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
