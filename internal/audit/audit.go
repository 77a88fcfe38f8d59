// Package audit classifies a zone against the compliance checklist without
// writing anything.
package audit

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"zonekeeper/internal/catalog"
	"zonekeeper/internal/content"
	"zonekeeper/internal/planner"
	"zonekeeper/internal/records"
)

// Status classifies one check.
type Status string

const (
	StatusOK               Status = "ok"
	StatusMissing          Status = "missing"
	StatusDiffers          Status = "differs"
	StatusPartiallyPresent Status = "partial"
)

// DumpTypes are the record types listed in the inventory section.
var DumpTypes = []records.Type{records.TypeA, records.TypeAAAA, records.TypeCNAME, records.TypeMX}

// Result is the outcome of one check.
type Result struct {
	ID       string   `json:"id" yaml:"id"`
	Title    string   `json:"title" yaml:"title"`
	Status   Status   `json:"status" yaml:"status"`
	Present  int      `json:"present" yaml:"present"`
	Expected int      `json:"expected" yaml:"expected"`
	Found    []string `json:"found,omitempty" yaml:"found,omitempty"`
	Missing  []string `json:"missing,omitempty" yaml:"missing,omitempty"`
	Details  []string `json:"details,omitempty" yaml:"details,omitempty"`
}

// Report is the audit of one zone.
type Report struct {
	Zone      string           `json:"zone" yaml:"zone"`
	Generated time.Time        `json:"generated_at" yaml:"generated_at"`
	Results   []Result         `json:"results" yaml:"results"`
	Inventory []records.Record `json:"inventory" yaml:"inventory"`
}

// Issues counts checks that are not OK.
func (r Report) Issues() int {
	n := 0
	for _, res := range r.Results {
		if res.Status != StatusOK {
			n++
		}
	}
	return n
}

// OK reports whether every check passed.
func (r Report) OK() bool {
	return r.Issues() == 0
}

// Run evaluates checks against inventory and leaves Generated for the caller
// to stamp. The checks are planned together
// as one catalog, so entry keys must be unique across checks.
func Run(zone string, inventory []records.Record, checks []Check) (Report, error) {
	cat := catalog.Catalog{Name: "audit"}
	for _, check := range checks {
		if len(check.Entries) == 0 {
			return Report{}, catalog.Invalid("check %q has no entries", check.ID)
		}
		cat.Entries = append(cat.Entries, check.Entries...)
	}
	plan, err := planner.Build(zone, inventory, cat)
	if err != nil {
		return Report{}, err
	}
	items := make(map[string]planner.Item, len(plan.Items))
	for _, item := range plan.Items {
		items[item.Key] = item
	}

	report := Report{Zone: plan.Zone}
	for _, check := range checks {
		report.Results = append(report.Results, classify(check, items))
	}
	report.Inventory = Dump(plan.Zone, inventory)
	return report, nil
}

func classify(check Check, items map[string]planner.Item) Result {
	res := Result{ID: check.ID, Title: check.Title, Expected: len(check.Entries)}
	updates := 0
	for _, entry := range check.Entries {
		item := items[entry.Key]
		switch item.Action {
		case planner.ActionSatisfied:
			res.Present++
			res.Found = append(res.Found, describe(item.Existing))
		case planner.ActionUpdate:
			updates++
			res.Found = append(res.Found, describe(item.Existing))
			res.Details = append(res.Details, item.Reason)
		default:
			res.Missing = append(res.Missing, expected(item))
		}
	}
	switch {
	case res.Present == res.Expected:
		res.Status = StatusOK
	case res.Present > 0:
		res.Status = StatusPartiallyPresent
	case updates > 0:
		res.Status = StatusDiffers
	default:
		res.Status = StatusMissing
	}
	return res
}

func describe(rec *records.Record) string {
	if rec == nil {
		return ""
	}
	if rec.SRV != nil {
		return fmt.Sprintf("%d %d %d %s", rec.SRV.Priority, rec.SRV.Weight, rec.SRV.Port, rec.SRV.Target)
	}
	return content.Canonical(rec.Content)
}

func expected(item planner.Item) string {
	if item.Desired == nil {
		return item.Label()
	}
	if item.Desired.SRV != nil {
		return fmt.Sprintf("%s %s", item.Name, item.Desired.SRV.Target)
	}
	return content.Canonical(item.Desired.Content)
}

// Dump lists the inventory records of DumpTypes, grouped by type and sorted
// by name. Records of one name keep their fetch order.
func Dump(zone string, inventory []records.Record) []records.Record {
	var out []records.Record
	for _, rec := range inventory {
		if slices.Contains(DumpTypes, rec.Type) {
			c := rec.Clone()
			c.Name = records.AbsoluteName(c.Name, zone)
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b records.Record) int {
		if d := slices.Index(DumpTypes, a.Type) - slices.Index(DumpTypes, b.Type); d != 0 {
			return d
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}
