package zone

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"zonekeeper/internal/catalog"
	"zonekeeper/internal/content"
	"zonekeeper/internal/engine"
	"zonekeeper/internal/records"
)

func filterFromFlags(cmd *cobra.Command) engine.Filter {
	return engine.Filter{
		ID:      strings.TrimSpace(mustGetStringFlag(cmd, "id")),
		Type:    records.Type(strings.ToUpper(strings.TrimSpace(mustGetStringFlag(cmd, "type")))),
		Name:    strings.TrimSpace(mustGetStringFlag(cmd, "name")),
		Content: mustGetStringFlag(cmd, "content"),
	}
}

func runList(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	eng, err := a.engine(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	recs, err := eng.List(ctx, args[0], filterFromFlags(cmd))
	if err != nil {
		return err
	}
	if format != "text" {
		return writeStructured(cmd.OutOrStdout(), recs, format)
	}
	if len(recs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No records match.")
		return nil
	}
	renderRecords(cmd.OutOrStdout(), recs)
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	eng, err := a.engine(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	rec, err := eng.Get(ctx, args[0], filterFromFlags(cmd))
	if err != nil {
		if errors.Is(err, engine.ErrAmbiguous) {
			return fmt.Errorf("%w (use list to see them)", err)
		}
		return err
	}
	if format != "text" {
		return writeStructured(cmd.OutOrStdout(), rec, format)
	}
	renderRecords(cmd.OutOrStdout(), []records.Record{rec})
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	eng, err := a.engine(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	zone := args[0]
	filter := filterFromFlags(cmd)
	opts := engine.RemoveOptions{
		DryRun:   mustGetBoolFlag(cmd, "dry-run"),
		All:      mustGetBoolFlag(cmd, "all"),
		Snapshot: mustGetBoolFlag(cmd, "snapshot"),
	}
	if !opts.DryRun && !mustGetBoolFlag(cmd, "yes") {
		matches, err := eng.List(ctx, zone, filter)
		if err != nil {
			return err
		}
		if len(matches) > 0 {
			renderRecords(cmd.ErrOrStderr(), matches)
			if err := confirm(cmd, fmt.Sprintf("Delete %d record(s) from %s?", len(matches), zone)); err != nil {
				return err
			}
		}
	}

	report, err := eng.Remove(ctx, zone, filter, opts)
	if len(report.Outcomes) > 0 {
		if format != "text" {
			if werr := writeStructured(cmd.OutOrStdout(), report, format); werr != nil {
				return werr
			}
		} else {
			renderReport(cmd.OutOrStdout(), report)
		}
	}
	return err
}

func setRequestFromFlags(cmd *cobra.Command) engine.SetRequest {
	req := engine.SetRequest{
		Type:    records.Type(strings.ToUpper(strings.TrimSpace(mustGetStringFlag(cmd, "type")))),
		Name:    mustGetStringFlag(cmd, "name"),
		Content: mustGetStringFlag(cmd, "content"),
		TTL:     mustGetIntFlag(cmd, "ttl"),
		Policy:  catalog.Policy(strings.ToLower(strings.TrimSpace(mustGetStringFlag(cmd, "policy")))),
	}
	if cmd.Flags().Changed("proxied") {
		req.Proxied = records.Bool(mustGetBoolFlag(cmd, "proxied"))
	}
	if cmd.Flags().Changed("priority") {
		if p := mustGetIntFlag(cmd, "priority"); p >= 0 && p <= 65535 {
			req.Priority = records.Uint16(uint16(p))
		}
	}
	if tag := strings.TrimSpace(mustGetStringFlag(cmd, "tag")); tag != "" {
		req.Tag = &content.TagRequirement{
			Tag:   tag,
			Value: strings.TrimSpace(mustGetStringFlag(cmd, "tag-value")),
			Mode:  content.MergeMode(strings.ToLower(strings.TrimSpace(mustGetStringFlag(cmd, "tag-mode")))),
		}
	}
	return req
}

func runSet(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	if p := mustGetIntFlag(cmd, "priority"); p < 0 || p > 65535 {
		return catalog.Invalid("priority %d is out of range", p)
	}
	entry, err := setRequestFromFlags(cmd).Entry()
	if err != nil {
		return err
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	eng, err := a.engine(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	opts := engine.EnforceOptions{
		DryRun:   mustGetBoolFlag(cmd, "dry-run"),
		Snapshot: mustGetBoolFlag(cmd, "snapshot"),
	}
	if !opts.DryRun {
		if err := confirm(cmd, fmt.Sprintf("Write %s %s in %s?", entry.Type, entry.Name, args[0])); err != nil {
			return err
		}
	}
	res, err := eng.Set(ctx, args[0], entry, opts)
	return printResult(cmd, res, err, format)
}
