package planner

import (
	"net/netip"
	"strings"

	"zonekeeper/internal/catalog"
	"zonekeeper/internal/records"
)

func satisfied(rec records.Record, reason string) Item {
	existing := rec.Clone()
	return Item{Action: ActionSatisfied, Existing: &existing, Reason: reason}
}

func update(target records.Record, value, reason string) Item {
	existing := target.Clone()
	return Item{Action: ActionUpdate, TargetID: target.ID, Existing: &existing, Reason: reason, value: value}
}

func create(value, reason string) Item {
	return Item{Action: ActionCreate, Reason: reason, value: value}
}

// finish stamps the entry identity on the item and builds the write payload.
func (i *Item) finish(entry catalog.Entry) error {
	i.Key = entry.Key
	i.Type = entry.Type
	i.Name = entry.Name
	i.Policy = entry.Policy
	i.Entry = entry
	if i.Action == ActionSatisfied {
		return nil
	}
	payload, err := records.NewPayload(i.fields(entry, i.value))
	if err != nil && i.value != entry.Content {
		// Existing content the provider accepted but we cannot re-express.
		payload, err = records.NewPayload(i.fields(entry, entry.Content))
	}
	if err != nil {
		return catalog.Invalid("entry %q: %v", entry.Key, err)
	}
	i.Payload = payload
	fields := payload.Fields()
	i.Desired = &fields
	return nil
}

func (i *Item) fields(entry catalog.Entry, value string) records.Fields {
	f := entry.Fields(value)
	if i.srv != nil {
		data := *i.srv
		f.SRV = &data
		f.Priority = records.Uint16(data.Priority)
	}
	return f
}

func sameAddress(a, b string) bool {
	x, errX := netip.ParseAddr(strings.TrimSpace(a))
	y, errY := netip.ParseAddr(strings.TrimSpace(b))
	if errX != nil || errY != nil {
		return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
	}
	return x == y
}

// inventory indexes records by type and absolute name, keeping fetch order.
type inventory struct {
	byKey map[string][]records.Record
}

func newInventory(recs []records.Record, zone string) inventory {
	idx := inventory{byKey: make(map[string][]records.Record)}
	for _, rec := range recs {
		rec = rec.Clone()
		rec.Name = records.AbsoluteName(rec.Name, zone)
		key := indexKey(rec.Type, rec.Name)
		idx.byKey[key] = append(idx.byKey[key], rec)
	}
	return idx
}

func (idx inventory) lookup(t records.Type, name string) []records.Record {
	return idx.byKey[indexKey(t, name)]
}

func indexKey(t records.Type, name string) string {
	return strings.ToUpper(string(t)) + "|" + records.NormalizeName(name)
}
