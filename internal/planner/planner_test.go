package planner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"zonekeeper/internal/catalog"
	"zonekeeper/internal/content"
	"zonekeeper/internal/records"
)

const zone = "example.org"

func additiveA(ips ...string) catalog.Catalog {
	var entries []catalog.Entry
	for i, ip := range ips {
		entries = append(entries, catalog.Entry{
			Key:     fmt.Sprintf("a-%d", i+1),
			Type:    records.TypeA,
			Name:    "@",
			Content: ip,
			Proxied: records.Bool(false),
			Policy:  catalog.PolicyAdditive,
		})
	}
	return catalog.Catalog{Name: "test", Entries: entries}
}

func aRecord(id, ip string) records.Record {
	return records.Record{ID: id, Type: records.TypeA, Name: zone, Content: ip, TTL: 1, Proxied: records.Bool(false)}
}

func countActions(plan *Plan) map[Action]int {
	counts := make(map[Action]int)
	for _, item := range plan.Items {
		counts[item.Action]++
	}
	return counts
}

func TestAdditiveEmptyInventoryCreatesEveryValue(t *testing.T) {
	plan, err := Build(zone, nil, additiveA("185.199.108.153", "185.199.109.153", "185.199.110.153", "185.199.111.153"))
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	if got, want := len(plan.Items), 4; got != want {
		t.Fatalf("expected %d items, got %d", want, got)
	}
	seen := make(map[string]bool)
	for _, item := range plan.Items {
		if item.Action != ActionCreate {
			t.Fatalf("expected create for %s, got %s", item.Key, item.Action)
		}
		if item.Desired == nil || item.Desired.Name != zone {
			t.Fatalf("create payload for %s has wrong name: %#v", item.Key, item.Desired)
		}
		seen[item.Desired.Content] = true
	}
	if len(seen) != 4 {
		t.Fatalf("expected 4 distinct contents, got %v", seen)
	}
}

func TestAdditiveNeverTouchesSiblings(t *testing.T) {
	inventory := []records.Record{aRecord("x", "10.0.0.1"), aRecord("z", "10.0.0.3")}
	plan, err := Build(zone, inventory, additiveA("10.0.0.1", "10.0.0.2", "10.0.0.3"))
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	counts := countActions(plan)
	if counts[ActionCreate] != 1 || counts[ActionUpdate] != 0 || counts[ActionSatisfied] != 2 {
		t.Fatalf("unexpected action counts: %v", counts)
	}
	created := plan.Items[1]
	if created.Action != ActionCreate || created.Desired.Content != "10.0.0.2" {
		t.Fatalf("expected create of 10.0.0.2, got %s %#v", created.Action, created.Desired)
	}
	if created.TargetID != "" {
		t.Fatalf("create must not target an existing record, got %q", created.TargetID)
	}
}

func TestAdditiveProxyDriftUpdatesSameValue(t *testing.T) {
	drifted := aRecord("x", "10.0.0.1")
	drifted.Proxied = records.Bool(true)
	sibling := aRecord("y", "10.0.0.9")
	plan, err := Build(zone, []records.Record{sibling, drifted}, additiveA("10.0.0.1"))
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	item := plan.Items[0]
	if item.Action != ActionUpdate || item.TargetID != "x" {
		t.Fatalf("expected update of record x, got %s %q", item.Action, item.TargetID)
	}
	if item.Desired.Proxied == nil || *item.Desired.Proxied {
		t.Fatalf("expected proxied=false in payload, got %#v", item.Desired.Proxied)
	}
}

func exclusiveMX() catalog.Catalog {
	return catalog.Catalog{Entries: []catalog.Entry{{
		Key:      "mx",
		Type:     records.TypeMX,
		Name:     "@",
		Content:  "{zone_dashed}.mail.protection.outlook.com",
		Priority: records.Uint16(0),
		Policy:   catalog.PolicyExclusive,
		Accept:   catalog.Suffix("mail.protection.outlook.com"),
	}}}
}

func mxRecord(id, host string, pref uint16) records.Record {
	return records.Record{ID: id, Type: records.TypeMX, Name: zone, Content: host, Priority: records.Uint16(pref)}
}

func TestExclusiveSingletonUpdatesInsteadOfCreating(t *testing.T) {
	plan, err := Build(zone, []records.Record{mxRecord("old", "mx.legacy-host.net", 10)}, exclusiveMX())
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	if got := countActions(plan); got[ActionUpdate] != 1 || got[ActionCreate] != 0 {
		t.Fatalf("expected exactly one update, got %v", got)
	}
	item := plan.Items[0]
	if item.TargetID != "old" {
		t.Fatalf("expected update target old, got %q", item.TargetID)
	}
	if item.Desired.Content != "example-org.mail.protection.outlook.com" || *item.Desired.Priority != 0 {
		t.Fatalf("unexpected payload: %#v", item.Desired)
	}
}

func TestExclusiveAcceptsTenantSpecificHost(t *testing.T) {
	plan, err := Build(zone, []records.Record{mxRecord("mx", "contoso-com01b.mail.protection.outlook.com", 0)}, exclusiveMX())
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	if plan.Items[0].Action != ActionSatisfied {
		t.Fatalf("expected satisfied, got %s (%s)", plan.Items[0].Action, plan.Items[0].Reason)
	}

	plan, err = Build(zone, []records.Record{mxRecord("mx", "contoso-com01b.mail.protection.outlook.com", 10)}, exclusiveMX())
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	item := plan.Items[0]
	if item.Action != ActionUpdate {
		t.Fatalf("expected update for priority drift, got %s", item.Action)
	}
	if item.Desired.Content != "contoso-com01b.mail.protection.outlook.com" {
		t.Fatalf("priority fix must keep the accepted host, got %q", item.Desired.Content)
	}
	if !strings.Contains(item.Reason, "priority") {
		t.Fatalf("reason should mention priority, got %q", item.Reason)
	}
}

func TestExclusiveTieBreakPrefersEqualContent(t *testing.T) {
	cat := catalog.Catalog{Entries: []catalog.Entry{{
		Key:     "www",
		Type:    records.TypeCNAME,
		Name:    "www",
		Content: "{zone}",
		Proxied: records.Bool(false),
		Policy:  catalog.PolicyExclusive,
	}}}
	inventory := []records.Record{
		{ID: "first", Type: records.TypeCNAME, Name: "www." + zone, Content: "elsewhere.net", Proxied: records.Bool(false)},
		{ID: "second", Type: records.TypeCNAME, Name: "www." + zone, Content: zone, Proxied: records.Bool(true)},
	}
	plan, err := Build(zone, inventory, cat)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	if item := plan.Items[0]; item.Action != ActionUpdate || item.TargetID != "second" {
		t.Fatalf("expected update of second, got %s %q", item.Action, item.TargetID)
	}

	inventory[1].Content = "another.net"
	for i := 0; i < 3; i++ {
		plan, err = Build(zone, inventory, cat)
		if err != nil {
			t.Fatalf("build plan: %v", err)
		}
		item := plan.Items[0]
		if item.TargetID != "first" {
			t.Fatalf("run %d: expected inventory-order target first, got %q", i, item.TargetID)
		}
		if !strings.Contains(item.Reason, "1 other candidate") {
			t.Fatalf("reason should mention the untouched candidate, got %q", item.Reason)
		}
	}
}

func TestExclusiveSelectorIgnoresUnrelatedTXT(t *testing.T) {
	cat := catalog.Catalog{Entries: []catalog.Entry{{
		Key:     "spf",
		Type:    records.TypeTXT,
		Name:    "@",
		Content: "v=spf1 include:spf.protection.outlook.com -all",
		Policy:  catalog.PolicyExclusive,
		Select:  catalog.Prefix("v=spf1"),
		Accept:  catalog.Contains("include:spf.protection.outlook.com"),
	}}}
	verification := records.Record{ID: "ms", Type: records.TypeTXT, Name: zone, Content: `"MS=ms12345"`}

	plan, err := Build(zone, []records.Record{verification}, cat)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	if plan.Items[0].Action != ActionCreate {
		t.Fatalf("verification TXT must not be rewritten, got %s", plan.Items[0].Action)
	}

	spf := records.Record{ID: "spf", Type: records.TypeTXT, Name: zone, Content: `"v=spf1 include:spf.protection.outlook.com include:other.example -all"`}
	plan, err = Build(zone, []records.Record{verification, spf}, cat)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	if plan.Items[0].Action != ActionSatisfied || plan.Items[0].Existing.ID != "spf" {
		t.Fatalf("expected spf satisfied, got %s", plan.Items[0].Action)
	}
}

func dmarcCatalog(req content.TagRequirement, base, prefix string) catalog.Catalog {
	return catalog.Catalog{Entries: []catalog.Entry{{
		Key:     "dmarc",
		Type:    records.TypeTXT,
		Name:    "_dmarc",
		Content: base,
		Policy:  catalog.PolicyMerge,
		Select:  catalog.Prefix(prefix),
		Tag:     &req,
	}}}
}

func TestMergeIncludesReportAddress(t *testing.T) {
	inventory := []records.Record{{ID: "d", Type: records.TypeTXT, Name: "_dmarc." + zone, Content: "v=X1; rua=mailto:a@ext"}}
	cat := dmarcCatalog(content.TagRequirement{Tag: "rua", Value: "mailto:internal@org", Mode: content.MergeInclude}, "v=X1; p=none", "v=X1")

	plan, err := Build(zone, inventory, cat)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	item := plan.Items[0]
	if item.Action != ActionUpdate || item.TargetID != "d" {
		t.Fatalf("expected update of d, got %s %q", item.Action, item.TargetID)
	}
	got := content.Canonical(item.Desired.Content)
	if !strings.Contains(got, "mailto:a@ext") || !strings.Contains(got, "mailto:internal@org") {
		t.Fatalf("merged content lost an address: %q", got)
	}
}

func TestMergePreservesForeignTags(t *testing.T) {
	inventory := []records.Record{{ID: "d", Type: records.TypeTXT, Name: "_dmarc." + zone, Content: `"a=1; foreign=xyz"`}}
	cat := dmarcCatalog(content.TagRequirement{Tag: "a", Value: "2"}, "a=1", "a=")

	plan, err := Build(zone, inventory, cat)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	if got := content.Canonical(plan.Items[0].Desired.Content); got != "a=2; foreign=xyz" {
		t.Fatalf("expected a=2; foreign=xyz, got %q", got)
	}
}

func TestMergeCreatesWhenAbsentAndSkipsWhenPresent(t *testing.T) {
	req := content.TagRequirement{Tag: "rua", Value: "mailto:dmarc@example.org", Mode: content.MergeInclude}
	plan, err := Build(zone, nil, dmarcCatalog(req, "v=DMARC1; p=none", "v=DMARC1"))
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	item := plan.Items[0]
	if item.Action != ActionCreate {
		t.Fatalf("expected create, got %s", item.Action)
	}
	if got := content.Canonical(item.Desired.Content); got != "v=DMARC1; p=none; rua=mailto:dmarc@example.org" {
		t.Fatalf("unexpected created content %q", got)
	}

	present := []records.Record{{ID: "d", Type: records.TypeTXT, Name: "_dmarc." + zone, Content: "v=DMARC1; p=reject; rua=mailto:x@y,mailto:dmarc@example.org"}}
	plan, err = Build(zone, present, dmarcCatalog(req, "v=DMARC1; p=none", "v=DMARC1"))
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	if plan.Items[0].Action != ActionSatisfied {
		t.Fatalf("expected satisfied, got %s", plan.Items[0].Action)
	}
}

func sipCatalog(spec catalog.SRVSpec) catalog.Catalog {
	return catalog.Catalog{Entries: []catalog.Entry{{
		Key:    "sip",
		Type:   records.TypeSRV,
		Name:   "_sip._tls",
		Policy: catalog.PolicyStructured,
		SRV:    &spec,
	}}}
}

func TestStructuredWildcardsAndUpdates(t *testing.T) {
	spec := catalog.SRVSpec{Port: records.Uint16(443), Target: "sipdir.online.lync.com"}
	existing := records.Record{
		ID:   "srv",
		Type: records.TypeSRV,
		Name: "_sip._tls." + zone,
		SRV:  &records.SRVData{Priority: 50, Weight: 5, Port: 443, Target: "sipdir.online.lync.com"},
	}
	plan, err := Build(zone, []records.Record{existing}, sipCatalog(spec))
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	if plan.Items[0].Action != ActionSatisfied {
		t.Fatalf("unspecified fields must be wildcards, got %s", plan.Items[0].Action)
	}

	existing.SRV.Port = 5061
	plan, err = Build(zone, []records.Record{existing}, sipCatalog(spec))
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	item := plan.Items[0]
	if item.Action != ActionUpdate || item.TargetID != "srv" {
		t.Fatalf("expected update of srv, got %s %q", item.Action, item.TargetID)
	}
	if srv := item.Desired.SRV; srv == nil || srv.Port != 443 || srv.Priority != 50 || srv.Weight != 5 {
		t.Fatalf("update should fix the port and keep wildcard fields: %#v", item.Desired.SRV)
	}

	plan, err = Build(zone, nil, sipCatalog(spec))
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	if plan.Items[0].Action != ActionCreate {
		t.Fatalf("expected create, got %s", plan.Items[0].Action)
	}
}

func TestRelativeInventoryNamesAreQualified(t *testing.T) {
	inventory := []records.Record{{ID: "a", Type: records.TypeA, Name: "@", Content: "10.0.0.1", Proxied: records.Bool(false)}}
	plan, err := Build(zone, inventory, additiveA("10.0.0.1"))
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	if plan.Items[0].Action != ActionSatisfied {
		t.Fatalf("expected apex record to satisfy entry, got %s", plan.Items[0].Action)
	}
}

func TestBuildRejectsInvalidCatalog(t *testing.T) {
	cat := catalog.Catalog{Entries: []catalog.Entry{{Key: "bad", Type: records.TypeA, Name: "@", Policy: catalog.PolicyAdditive}}}
	_, err := Build(zone, nil, cat)
	var verr *catalog.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

// converge applies a plan's payloads to an in-memory inventory the way the
// provider would.
func converge(t *testing.T, inventory []records.Record, plan *Plan) []records.Record {
	t.Helper()
	out := append([]records.Record{}, inventory...)
	for i, item := range plan.Items {
		if item.Action == ActionSatisfied {
			continue
		}
		f := item.Payload.Fields()
		rec := records.Record{Type: f.Type, Name: f.Name, Content: f.Content, TTL: f.TTL, Priority: f.Priority, Proxied: f.Proxied, SRV: f.SRV}
		switch item.Action {
		case ActionCreate:
			rec.ID = fmt.Sprintf("new-%d", i)
			out = append(out, rec)
		case ActionUpdate:
			for j := range out {
				if out[j].ID == item.TargetID {
					rec.ID = item.TargetID
					out[j] = rec
				}
			}
		}
	}
	return out
}

func TestStandardCatalogIsIdempotent(t *testing.T) {
	cat := catalog.Standard(catalog.StandardOptions{})
	inventory := []records.Record{
		mxRecord("mx", "mail.legacy.net", 10),
		{ID: "spf", Type: records.TypeTXT, Name: zone, Content: `"v=spf1 include:_spf.google.com ~all"`},
		{ID: "dmarc", Type: records.TypeTXT, Name: "_dmarc." + zone, Content: `"v=DMARC1; p=quarantine; ruf=mailto:f@x.net"`},
		aRecord("a1", "185.199.108.153"),
		aRecord("other", "203.0.113.9"),
	}

	first, err := Build(zone, inventory, cat)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	if first.Converged() {
		t.Fatalf("expected changes on first run")
	}
	for _, item := range first.Items {
		if item.TargetID == "other" {
			t.Fatalf("unrelated A record must never be targeted: %s", item.Key)
		}
	}

	second, err := Build(zone, converge(t, inventory, first), cat)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	for _, item := range second.Items {
		if item.Action != ActionSatisfied {
			t.Fatalf("second run not converged: %s %s (%s)", item.Key, item.Action, item.Reason)
		}
	}

	dmarc := converge(t, inventory, first)[2]
	if got := content.Canonical(dmarc.Content); got != "v=DMARC1; p=quarantine; ruf=mailto:f@x.net; rua=mailto:dmarc-rua@freeforcharity.org" {
		t.Fatalf("dmarc merge changed foreign tags: %q", got)
	}
}

func TestCustomMXHostConverges(t *testing.T) {
	cat := catalog.Standard(catalog.StandardOptions{MXHost: "mx.example.net", SkipIPv6: true, SkipSRV: true})
	first, err := Build(zone, nil, cat)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	second, err := Build(zone, converge(t, nil, first), cat)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	for _, item := range second.Items {
		if item.Action != ActionSatisfied {
			t.Fatalf("second run not converged: %s %s (%s)", item.Key, item.Action, item.Reason)
		}
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	inventory := []records.Record{mxRecord("mx", "mail.legacy.net", 10), aRecord("a1", "185.199.108.153")}
	cat := catalog.Standard(catalog.StandardOptions{})
	first, err := Build(zone, inventory, cat)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	second, err := Build(zone, inventory, cat)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	if !first.Generated.IsZero() {
		t.Fatalf("build must not stamp a time, got %s", first.Generated)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("plans differ for the same input:\n%#v\n%#v", first, second)
	}
}

func TestEncodeAndSave(t *testing.T) {
	plan, err := Build(zone, nil, additiveA("10.0.0.1"))
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	for _, format := range []string{"json", "yaml"} {
		data, err := Encode(plan, format)
		if err != nil {
			t.Fatalf("encode %s plan: %v", format, err)
		}
		if !strings.Contains(string(data), "10.0.0.1") {
			t.Fatalf("%s plan missing payload content: %s", format, data)
		}
	}

	path := filepath.Join(t.TempDir(), "plan.yaml")
	if err := Save(plan, path); err != nil {
		t.Fatalf("save plan: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read plan: %v", err)
	}
	if !strings.HasPrefix(string(data), "zone: ") {
		t.Fatalf("saved plan is not yaml: %s", data)
	}
	if _, err := Encode(nil, "json"); err == nil {
		t.Fatal("expected an error for a nil plan")
	}
}
