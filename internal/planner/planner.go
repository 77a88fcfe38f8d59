package planner

import (
	"fmt"

	"zonekeeper/internal/catalog"
	"zonekeeper/internal/content"
	"zonekeeper/internal/records"
)

// Build decides, for every catalog entry, whether the zone already satisfies
// it, whether an existing record should be updated or whether a record must
// be created. It performs no I/O and reads no clock: the same inventory and
// catalog always give the same plan. Callers stamp Generated.
func Build(zone string, inventory []records.Record, cat catalog.Catalog) (*Plan, error) {
	bound, err := cat.ForZone(zone)
	if err != nil {
		return nil, err
	}
	zone = records.NormalizeName(zone)

	idx := newInventory(inventory, zone)
	plan := &Plan{
		Zone:    zone,
		Catalog: bound.Name,
		Items:   make([]Item, 0, len(bound.Entries)),
	}
	for _, entry := range bound.Entries {
		candidates := idx.lookup(entry.Type, entry.Name)
		var item Item
		switch entry.Policy {
		case catalog.PolicyExclusive:
			item = planExclusive(entry, candidates)
		case catalog.PolicyAdditive:
			item = planAdditive(entry, candidates)
		case catalog.PolicyMerge:
			item = planMerge(entry, candidates)
		case catalog.PolicyStructured:
			item = planStructured(entry, candidates)
		default:
			return nil, catalog.Invalid("entry %q: unknown policy %q", entry.Key, entry.Policy)
		}
		if err := item.finish(entry); err != nil {
			return nil, err
		}
		plan.Items = append(plan.Items, item)
	}
	return plan, nil
}

func planExclusive(entry catalog.Entry, candidates []records.Record) Item {
	selected := filter(candidates, entry.Select)
	var drifted *records.Record
	var driftReason string
	for i := range selected {
		rec := &selected[i]
		if !accepts(entry, rec) {
			continue
		}
		ok, why := attributesMatch(entry, *rec)
		if ok {
			return satisfied(*rec, "matching record present")
		}
		if drifted == nil {
			drifted, driftReason = rec, why
		}
	}
	if drifted != nil {
		return update(*drifted, drifted.Content, driftReason)
	}
	if len(selected) == 0 {
		return create(entry.Content, fmt.Sprintf("no %s record at %s", entry.Type, entry.Name))
	}
	target := preferEqual(entry, selected, entry.Content)
	reason := fmt.Sprintf("content %q does not match, replacing", content.Canonical(target.Content))
	if others := len(selected) - 1; others > 0 {
		reason += fmt.Sprintf("; %d other candidate(s) left untouched", others)
	}
	return update(target, entry.Content, reason)
}

func planAdditive(entry catalog.Entry, candidates []records.Record) Item {
	var drifted *records.Record
	var driftReason string
	for i := range candidates {
		rec := &candidates[i]
		if !sameContent(entry.Type, entry.Content, rec.Content) {
			continue
		}
		ok, why := attributesMatch(entry, *rec)
		if ok {
			return satisfied(*rec, "value present")
		}
		if drifted == nil {
			drifted, driftReason = rec, why
		}
	}
	if drifted != nil {
		return update(*drifted, entry.Content, driftReason)
	}
	reason := fmt.Sprintf("value %s missing", entry.Content)
	if n := len(candidates); n > 0 {
		reason += fmt.Sprintf(" (%d sibling value(s) kept)", n)
	}
	return create(entry.Content, reason)
}

func planMerge(entry catalog.Entry, candidates []records.Record) Item {
	req := *entry.Tag
	selected := filter(candidates, entry.Select)
	for _, rec := range selected {
		if content.HasTag(rec.Content, req) {
			return satisfied(rec, fmt.Sprintf("%s present", req))
		}
	}
	if len(selected) == 0 {
		return create(content.MergeTag(entry.Content, req), fmt.Sprintf("no %s record at %s", entry.Type, entry.Name))
	}
	target := preferEqual(entry, selected, entry.Content)
	return update(target, content.MergeTag(target.Content, req), fmt.Sprintf("%s missing, merging into existing tags", req))
}

func planStructured(entry catalog.Entry, candidates []records.Record) Item {
	spec := *entry.SRV
	for _, rec := range candidates {
		if spec.Matches(rec.SRV) {
			return satisfied(rec, "matching SRV data present")
		}
	}
	if len(candidates) == 0 {
		item := create("", fmt.Sprintf("no SRV record at %s", entry.Name))
		data := spec.Fill(nil)
		item.srv = &data
		return item
	}
	target := candidates[0]
	for _, rec := range candidates {
		if rec.SRV != nil && spec.Target != "" && content.EqualHost(spec.Target, rec.SRV.Target) {
			target = rec
			break
		}
	}
	item := update(target, "", "SRV data differs")
	data := spec.Fill(target.SRV)
	item.srv = &data
	return item
}

// accepts applies the entry's acceptance rule, defaulting to equal content.
// A record carrying the desired content is always accepted.
func accepts(entry catalog.Entry, rec *records.Record) bool {
	if sameContent(entry.Type, entry.Content, rec.Content) {
		return true
	}
	if entry.Accept != nil {
		return entry.Accept.Matches(rec.Content)
	}
	return sameContent(entry.Type, entry.Content, rec.Content)
}

// attributesMatch checks the proxy flag and priority the entry pins.
func attributesMatch(entry catalog.Entry, rec records.Record) (bool, string) {
	if entry.Proxied != nil {
		actual := rec.Proxied != nil && *rec.Proxied
		if actual != *entry.Proxied {
			return false, fmt.Sprintf("proxied is %t, want %t", actual, *entry.Proxied)
		}
	}
	if entry.Priority != nil && entry.Type == records.TypeMX {
		if rec.Priority == nil || *rec.Priority != *entry.Priority {
			have := "unset"
			if rec.Priority != nil {
				have = fmt.Sprint(*rec.Priority)
			}
			return false, fmt.Sprintf("priority is %s, want %d", have, *entry.Priority)
		}
	}
	return true, ""
}

// preferEqual picks the update target among several candidates: the first
// whose content already equals want, otherwise the first in inventory order.
func preferEqual(entry catalog.Entry, candidates []records.Record, want string) records.Record {
	for _, rec := range candidates {
		if sameContent(entry.Type, want, rec.Content) {
			return rec
		}
	}
	return candidates[0]
}

func sameContent(t records.Type, a, b string) bool {
	switch t {
	case records.TypeCNAME, records.TypeMX:
		return content.EqualHost(a, b)
	case records.TypeA, records.TypeAAAA:
		return sameAddress(a, b)
	default:
		return content.Equal(a, b)
	}
}

func filter(candidates []records.Record, rule *catalog.MatchRule) []records.Record {
	if rule == nil {
		return candidates
	}
	var out []records.Record
	for _, rec := range candidates {
		if rule.Matches(rec.Content) {
			out = append(out, rec)
		}
	}
	return out
}
