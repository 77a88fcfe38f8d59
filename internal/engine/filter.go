package engine

import (
	"net/netip"
	"strings"

	"zonekeeper/internal/catalog"
	"zonekeeper/internal/content"
	"zonekeeper/internal/records"
)

// Filter selects records for the single-record operations. Empty fields
// match anything; Name may be relative to the zone.
type Filter struct {
	ID      string
	Type    records.Type
	Name    string
	Content string
}

// Validate checks the filter's type.
func (f Filter) Validate() error {
	if f.Type == "" {
		return nil
	}
	if _, err := records.ParseType(string(f.Type)); err != nil {
		return catalog.Invalid("%v", err)
	}
	return nil
}

// Match reports whether rec, whose name is absolute, passes the filter.
func (f Filter) Match(rec records.Record, zone string) bool {
	if f.ID != "" && rec.ID != f.ID {
		return false
	}
	if f.Type != "" && !strings.EqualFold(string(f.Type), string(rec.Type)) {
		return false
	}
	if strings.TrimSpace(f.Name) != "" && !records.SameName(records.AbsoluteName(f.Name, zone), rec.Name) {
		return false
	}
	if f.Content != "" && !contentMatches(rec, f.Content) {
		return false
	}
	return true
}

func contentMatches(rec records.Record, want string) bool {
	switch rec.Type {
	case records.TypeA, records.TypeAAAA:
		a, errA := netip.ParseAddr(strings.TrimSpace(want))
		b, errB := netip.ParseAddr(strings.TrimSpace(rec.Content))
		if errA == nil && errB == nil {
			return a == b
		}
	case records.TypeCNAME, records.TypeMX:
		return content.EqualHost(want, rec.Content)
	case records.TypeSRV:
		if rec.SRV != nil && content.EqualHost(want, rec.SRV.Target) {
			return true
		}
	}
	return content.Equal(want, rec.Content)
}

// Select returns the inventory records matching f, in fetch order.
func Select(inventory []records.Record, zone string, f Filter) []records.Record {
	var out []records.Record
	for _, rec := range inventory {
		rec.Name = records.AbsoluteName(rec.Name, zone)
		if f.Match(rec, zone) {
			out = append(out, rec.Clone())
		}
	}
	return out
}
