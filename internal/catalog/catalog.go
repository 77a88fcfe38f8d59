package catalog

import (
	"fmt"
	"strings"

	"zonekeeper/internal/content"
	"zonekeeper/internal/records"
)

// Placeholders substituted when a catalog is bound to a zone. The dashed form
// is the zone with dots replaced by dashes, as Microsoft 365 names tenant
// mail hosts.
const (
	ZonePlaceholder       = "{zone}"
	ZoneDashedPlaceholder = "{zone_dashed}"
)

// Policy decides how an entry is judged satisfied and whether drift is
// corrected by updating an existing record or creating a new one.
type Policy string

const (
	// PolicyExclusive keeps a single record of the type and name. A
	// non-matching candidate is updated rather than duplicated.
	PolicyExclusive Policy = "exclusive"
	// PolicyAdditive requires one value among several coexisting ones. A
	// missing value is always created; siblings are never rewritten.
	PolicyAdditive Policy = "additive"
	// PolicyMerge requires one tag inside a tag-list record and rewrites
	// only that tag.
	PolicyMerge Policy = "merge"
	// PolicyStructured compares SRV fields, treating unset ones as wildcards.
	PolicyStructured Policy = "structured"
)

func (p Policy) valid() bool {
	switch p {
	case PolicyExclusive, PolicyAdditive, PolicyMerge, PolicyStructured:
		return true
	}
	return false
}

// SRVSpec is the desired SRV data. Nil numbers and empty strings match any value.
type SRVSpec struct {
	Service  string  `json:"service,omitempty" yaml:"service,omitempty"`
	Proto    string  `json:"proto,omitempty" yaml:"proto,omitempty"`
	Priority *uint16 `json:"priority,omitempty" yaml:"priority,omitempty"`
	Weight   *uint16 `json:"weight,omitempty" yaml:"weight,omitempty"`
	Port     *uint16 `json:"port,omitempty" yaml:"port,omitempty"`
	Target   string  `json:"target,omitempty" yaml:"target,omitempty"`
}

// Matches reports whether data agrees with every field s sets.
func (s SRVSpec) Matches(data *records.SRVData) bool {
	if data == nil {
		return false
	}
	if s.Priority != nil && *s.Priority != data.Priority {
		return false
	}
	if s.Weight != nil && *s.Weight != data.Weight {
		return false
	}
	if s.Port != nil && *s.Port != data.Port {
		return false
	}
	if s.Target != "" && !content.EqualHost(s.Target, data.Target) {
		return false
	}
	if s.Service != "" && data.Service != "" && !strings.EqualFold(s.Service, data.Service) {
		return false
	}
	if s.Proto != "" && data.Proto != "" && !strings.EqualFold(s.Proto, data.Proto) {
		return false
	}
	return true
}

// Fill completes s from base, keeping the fields s sets.
func (s SRVSpec) Fill(base *records.SRVData) records.SRVData {
	var out records.SRVData
	if base != nil {
		out = *base
	}
	if s.Service != "" {
		out.Service = s.Service
	}
	if s.Proto != "" {
		out.Proto = s.Proto
	}
	if s.Priority != nil {
		out.Priority = *s.Priority
	}
	if s.Weight != nil {
		out.Weight = *s.Weight
	}
	if s.Port != nil {
		out.Port = *s.Port
	}
	if s.Target != "" {
		out.Target = s.Target
	}
	return out
}

// Entry is one required record.
type Entry struct {
	Key         string                  `json:"key" yaml:"key"`
	Description string                  `json:"description,omitempty" yaml:"description,omitempty"`
	Type        records.Type            `json:"type" yaml:"type"`
	Name        string                  `json:"name" yaml:"name"`
	Content     string                  `json:"content,omitempty" yaml:"content,omitempty"`
	SRV         *SRVSpec                `json:"srv,omitempty" yaml:"srv,omitempty"`
	Proxied     *bool                   `json:"proxied,omitempty" yaml:"proxied,omitempty"`
	Priority    *uint16                 `json:"priority,omitempty" yaml:"priority,omitempty"`
	TTL         int                     `json:"ttl,omitempty" yaml:"ttl,omitempty"`
	Policy      Policy                  `json:"policy" yaml:"policy"`
	Select      *MatchRule              `json:"select,omitempty" yaml:"select,omitempty"`
	Accept      *MatchRule              `json:"accept,omitempty" yaml:"accept,omitempty"`
	Tag         *content.TagRequirement `json:"tag,omitempty" yaml:"tag,omitempty"`
}

// Label is the short form used in reports.
func (e Entry) Label() string {
	return fmt.Sprintf("%s %s", e.Type, e.Name)
}

// Fields returns the write form of the entry with the given content.
func (e Entry) Fields(value string) records.Fields {
	f := records.Fields{
		Type:     e.Type,
		Name:     e.Name,
		Content:  value,
		TTL:      e.TTL,
		Priority: records.CopyUint16(e.Priority),
		Proxied:  records.CopyBool(e.Proxied),
	}
	if e.SRV != nil {
		data := e.SRV.Fill(nil)
		f.SRV = &data
	}
	return f
}

// bind substitutes the zone into every templated field and makes the name absolute.
func (e Entry) bind(zone string) Entry {
	replacer := strings.NewReplacer(
		ZoneDashedPlaceholder, strings.ReplaceAll(zone, ".", "-"),
		ZonePlaceholder, zone,
	)
	sub := replacer.Replace
	out := e
	out.Name = records.AbsoluteName(sub(e.Name), zone)
	out.Content = sub(e.Content)
	out.Proxied = records.CopyBool(e.Proxied)
	out.Priority = records.CopyUint16(e.Priority)
	if e.SRV != nil {
		srv := *e.SRV
		srv.Target = sub(srv.Target)
		out.SRV = &srv
	}
	if e.Select != nil {
		rule := MatchRule{Mode: e.Select.Mode, Value: sub(e.Select.Value)}
		out.Select = &rule
	}
	if e.Accept != nil {
		rule := MatchRule{Mode: e.Accept.Mode, Value: sub(e.Accept.Value)}
		out.Accept = &rule
	}
	if e.Tag != nil {
		tag := *e.Tag
		tag.Value = sub(tag.Value)
		out.Tag = &tag
	}
	return out
}

// Catalog is the ordered list of required records.
type Catalog struct {
	Name    string  `json:"name,omitempty" yaml:"name,omitempty"`
	Entries []Entry `json:"entries" yaml:"entries"`
}

// ForZone binds the catalog to zone and validates the result. The returned
// catalog has absolute names and no placeholders left.
func (c Catalog) ForZone(zone string) (Catalog, error) {
	zone = records.NormalizeName(zone)
	if zone == "" {
		return Catalog{}, &ValidationError{Problems: []string{"zone name is required"}}
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	bound := Catalog{Name: c.Name, Entries: make([]Entry, 0, len(c.Entries))}
	var problems []string
	for _, entry := range c.Entries {
		b := entry.bind(zone)
		if err := checkWritable(b); err != nil {
			problems = append(problems, fmt.Sprintf("entry %q: %v", entry.Key, err))
		} else if err := checkRecognized(b); err != nil {
			problems = append(problems, fmt.Sprintf("entry %q: %v", entry.Key, err))
		}
		bound.Entries = append(bound.Entries, b)
	}
	if len(problems) > 0 {
		return Catalog{}, &ValidationError{Problems: problems}
	}
	return bound, nil
}

// Lookup returns the entry with key.
func (c Catalog) Lookup(key string) (Entry, bool) {
	for _, entry := range c.Entries {
		if entry.Key == key {
			return entry, true
		}
	}
	return Entry{}, false
}

// checkWritable ensures the entry can produce a payload for a create.
func checkWritable(e Entry) error {
	_, err := records.NewPayload(e.Fields(e.written()))
	return err
}

// checkRecognized ensures the record the entry writes is one its own rules
// select and accept. An entry that fails this would rewrite or duplicate its
// record on every run.
func checkRecognized(e Entry) error {
	if e.Policy != PolicyExclusive && e.Policy != PolicyMerge {
		return nil
	}
	value := e.written()
	if e.Select != nil && !e.Select.Matches(value) {
		return fmt.Errorf("content %q does not satisfy its select rule (%s %q)", value, e.Select.Mode, e.Select.Value)
	}
	if e.Policy == PolicyExclusive && e.Accept != nil && !e.Accept.Matches(value) {
		return fmt.Errorf("content %q does not satisfy its accept rule (%s %q)", value, e.Accept.Mode, e.Accept.Value)
	}
	return nil
}

// written is the content a create for the entry would carry.
func (e Entry) written() string {
	if e.Policy == PolicyMerge && e.Tag != nil {
		return content.MergeTag(e.Content, *e.Tag)
	}
	return e.Content
}
