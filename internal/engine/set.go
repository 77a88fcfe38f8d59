package engine

import (
	"net/netip"
	"strings"

	"zonekeeper/internal/catalog"
	"zonekeeper/internal/content"
	"zonekeeper/internal/records"
)

// SetRequest is an ad-hoc record for Set.
type SetRequest struct {
	Type     records.Type
	Name     string
	Content  string
	TTL      int
	Proxied  *bool
	Priority *uint16
	// Policy overrides the per-type default: exclusive for A, AAAA and
	// CNAME, additive for MX and TXT, merge when Tag is set.
	Policy catalog.Policy
	// Tag is the tag a merge folds into the record whose leading tag matches
	// Content's, such as "v=DMARC1".
	Tag *content.TagRequirement
}

// Entry validates the request and turns it into a catalog entry.
func (r SetRequest) Entry() (catalog.Entry, error) {
	typ, err := records.ParseType(string(r.Type))
	if err != nil {
		return catalog.Entry{}, catalog.Invalid("%v", err)
	}
	if strings.TrimSpace(r.Name) == "" {
		return catalog.Entry{}, catalog.Invalid("record name is required (use @ for the apex)")
	}
	value := strings.TrimSpace(r.Content)
	if value == "" {
		return catalog.Entry{}, catalog.Invalid("content is required for %s records", typ)
	}
	switch typ {
	case records.TypeA, records.TypeAAAA:
		addr, err := netip.ParseAddr(value)
		if err != nil || (typ == records.TypeA) != addr.Is4() {
			return catalog.Entry{}, catalog.Invalid("invalid %s address %q", typ, value)
		}
	case records.TypeSRV:
		return catalog.Entry{}, catalog.Invalid("SRV records are managed through the catalog")
	}

	policy := r.Policy
	switch {
	case policy != "":
	case r.Tag != nil:
		policy = catalog.PolicyMerge
	case typ == records.TypeMX || typ == records.TypeTXT:
		policy = catalog.PolicyAdditive
	default:
		policy = catalog.PolicyExclusive
	}
	if r.Tag != nil && policy != catalog.PolicyMerge {
		return catalog.Entry{}, catalog.Invalid("a tag only applies to the merge policy, not %s", policy)
	}
	ttl := r.TTL
	if ttl <= 0 {
		ttl = 1
	}
	priority := records.CopyUint16(r.Priority)
	if typ == records.TypeMX && priority == nil {
		priority = records.Uint16(10)
	}
	entry := catalog.Entry{
		Key:      "set",
		Type:     typ,
		Name:     r.Name,
		Content:  value,
		TTL:      ttl,
		Proxied:  records.CopyBool(r.Proxied),
		Priority: priority,
		Policy:   policy,
	}
	if policy == catalog.PolicyMerge && r.Tag != nil {
		tag := *r.Tag
		entry.Tag = &tag
		entry.Select = catalog.Prefix(leadingTag(value))
	}
	if typ.Proxiable() && entry.Proxied == nil {
		entry.Proxied = records.Bool(false)
	}
	if err := (catalog.Catalog{Entries: []catalog.Entry{entry}}).Validate(); err != nil {
		return catalog.Entry{}, err
	}
	return entry, nil
}

// leadingTag is the first tag of a tag list, the version marker for DMARC
// and similar policy strings.
func leadingTag(value string) string {
	first, _, _ := strings.Cut(content.Canonical(value), ";")
	return strings.TrimSpace(first)
}
