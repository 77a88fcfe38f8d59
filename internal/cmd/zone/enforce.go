package zone

import (
	"fmt"

	"github.com/spf13/cobra"

	"zonekeeper/internal/audit"
	"zonekeeper/internal/engine"
	"zonekeeper/internal/planner"
)

func checklist(cmd *cobra.Command) []audit.Check {
	return audit.Checklist(audit.ChecklistOptions{
		SkipIPv6: boolSetting(cmd, "skip-ipv6", "skip_ipv6"),
		SkipSRV:  boolSetting(cmd, "skip-srv", "skip_srv"),
	})
}

// runAudit exits non-zero when any zone has a check that is not OK.
func runAudit(cmd *cobra.Command, args []string) error {
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

	var reports []audit.Report
	failing := 0
	for _, zone := range args {
		report, err := eng.Audit(ctx, zone)
		if err != nil {
			return fmt.Errorf("audit %s: %w", zone, err)
		}
		if !mustGetBoolFlag(cmd, "inventory") {
			report.Inventory = nil
		}
		if !report.OK() {
			failing++
		}
		if format == "text" {
			renderAudit(cmd.OutOrStdout(), report)
		}
		reports = append(reports, report)
	}
	if format != "text" {
		if err := writeStructured(cmd.OutOrStdout(), reports, format); err != nil {
			return err
		}
	}
	if failing > 0 {
		return fmt.Errorf("%d of %d zone(s) not compliant", failing, len(args))
	}
	return nil
}

func runPlan(cmd *cobra.Command, args []string) error {
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

	plan, err := eng.Plan(ctx, args[0])
	if err != nil {
		return err
	}
	if format == "text" {
		renderPlan(cmd.OutOrStdout(), plan)
	} else if err := writeStructured(cmd.OutOrStdout(), plan, format); err != nil {
		return err
	}
	if output := mustGetStringFlag(cmd, "output"); output != "" {
		if err := planner.Save(plan, output); err != nil {
			return fmt.Errorf("write plan: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Plan saved to %s\n", output)
	}
	return nil
}

func runEnforce(cmd *cobra.Command, args []string) error {
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
	opts := engine.EnforceOptions{
		DryRun:   mustGetBoolFlag(cmd, "dry-run"),
		Snapshot: mustGetBoolFlag(cmd, "snapshot"),
	}
	if !opts.DryRun && !mustGetBoolFlag(cmd, "yes") {
		preview, err := eng.Plan(ctx, zone)
		if err != nil {
			return err
		}
		renderPlan(cmd.ErrOrStderr(), preview)
		if preview.Converged() {
			fmt.Fprintf(cmd.OutOrStdout(), "Zone %s already matches the catalog\n", preview.Zone)
			return nil
		}
		if err := confirm(cmd, fmt.Sprintf("Apply these changes to %s?", preview.Zone)); err != nil {
			return err
		}
	}

	res, err := eng.Enforce(ctx, zone, opts)
	return printResult(cmd, res, err, format)
}

// printResult prints whatever was applied before returning the run error,
// so partial failures still show every outcome.
func printResult(cmd *cobra.Command, res *engine.Result, runErr error, format string) error {
	if res == nil {
		return runErr
	}
	if format != "text" {
		if err := writeStructured(cmd.OutOrStdout(), res, format); err != nil {
			return err
		}
		return runErr
	}
	if res.Snapshot != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Snapshot saved to %s\n", res.Snapshot)
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Plan.Summary())
	if len(res.Report.Outcomes) > 0 {
		renderReport(cmd.OutOrStdout(), res.Report)
	}
	return runErr
}
