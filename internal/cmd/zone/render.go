package zone

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"zonekeeper/internal/audit"
	"zonekeeper/internal/executor"
	"zonekeeper/internal/planner"
	"zonekeeper/internal/records"
)

func renderPlan(w io.Writer, plan *planner.Plan) {
	if plan == nil {
		return
	}
	fmt.Fprintf(w, "Zone %s: %s\n", plan.Zone, plan.Summary())
	for _, item := range plan.Items {
		fmt.Fprintf(w, "  %-9s %s", item.Action, describeItem(item))
		if item.Reason != "" {
			fmt.Fprintf(w, " (%s)", item.Reason)
		}
		fmt.Fprintln(w)
	}
}

func describeItem(item planner.Item) string {
	var b strings.Builder
	b.WriteString(item.Label())
	if item.Desired != nil && item.Desired.Content != "" {
		fmt.Fprintf(&b, " -> %s", item.Desired.Content)
	}
	if item.TargetID != "" {
		fmt.Fprintf(&b, " [id=%s]", item.TargetID)
	}
	return b.String()
}

// renderReport prints every outcome, including the provider's messages for
// failures.
func renderReport(w io.Writer, report executor.Report) {
	mode := "applied"
	if report.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(w, "Zone %s (%s): %d outcome(s), %d failed\n", report.Zone, mode, len(report.Outcomes), len(report.Failed()))
	for _, o := range report.Outcomes {
		fmt.Fprintf(w, "  %-12s %s", o.Status, o.Label())
		if id := outcomeID(o); id != "" {
			fmt.Fprintf(w, " [id=%s]", id)
		}
		if o.Error != "" {
			fmt.Fprintf(w, ": %s", o.Error)
		} else if o.Reason != "" {
			fmt.Fprintf(w, " (%s)", o.Reason)
		}
		fmt.Fprintln(w)
	}
}

func outcomeID(o executor.Outcome) string {
	if o.Result != nil && o.Result.ID != "" {
		return o.Result.ID
	}
	return o.TargetID
}

func renderAudit(w io.Writer, report audit.Report) {
	fmt.Fprintf(w, "Audit of %s: %d of %d check(s) compliant\n", report.Zone, len(report.Results)-report.Issues(), len(report.Results))
	for _, r := range report.Results {
		fmt.Fprintf(w, "  %-8s %s (%d/%d)\n", strings.ToUpper(string(r.Status)), r.Title, r.Present, r.Expected)
		for _, found := range r.Found {
			fmt.Fprintf(w, "           found:   %s\n", found)
		}
		for _, missing := range r.Missing {
			fmt.Fprintf(w, "           missing: %s\n", missing)
		}
		for _, detail := range r.Details {
			fmt.Fprintf(w, "           %s\n", detail)
		}
	}
	if len(report.Inventory) > 0 {
		fmt.Fprintln(w, "Inventory:")
		renderRecords(w, report.Inventory)
	}
}

func renderRecords(w io.Writer, recs []records.Record) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tNAME\tCONTENT\tTTL\tPROXIED\tPRIORITY")
	for _, rec := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.ID, rec.Type, rec.Name, rec.Content, ttlText(rec.TTL), boolText(rec.Proxied), priorityText(rec.Priority))
	}
	tw.Flush()
}

func ttlText(ttl int) string {
	if ttl <= 1 {
		return "auto"
	}
	return strconv.Itoa(ttl)
}

func boolText(v *bool) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatBool(*v)
}

func priorityText(v *uint16) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(int(*v))
}
