package records

import (
	"strings"

	"golang.org/x/net/idna"
)

// Apex is the shorthand for the zone apex in relative names.
const Apex = "@"

var nameProfile = idna.New(idna.MapForLookup(), idna.StrictDomainName(false))

// NormalizeName lower-cases a name, drops the trailing dot and converts
// internationalized labels to their ASCII form.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimSuffix(name, ".")
	if name == "" {
		return ""
	}
	if !isASCII(name) {
		if ascii, err := nameProfile.ToASCII(name); err == nil {
			name = ascii
		}
	}
	return strings.ToLower(name)
}

// AbsoluteName expands a relative name against zone. "@" and the empty name
// map to the apex; names already inside the zone are returned normalized.
func AbsoluteName(name, zone string) string {
	zone = NormalizeName(zone)
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || trimmed == Apex {
		return zone
	}
	if strings.HasSuffix(trimmed, ".") {
		return NormalizeName(trimmed)
	}
	normalized := NormalizeName(trimmed)
	if zone == "" || normalized == zone || strings.HasSuffix(normalized, "."+zone) {
		return normalized
	}
	return normalized + "." + zone
}

// RelativeName strips the zone suffix from an absolute name, returning "@"
// for the apex.
func RelativeName(fqdn, zone string) string {
	fqdn = NormalizeName(fqdn)
	zone = NormalizeName(zone)
	if fqdn == zone {
		return Apex
	}
	if rel, ok := strings.CutSuffix(fqdn, "."+zone); ok {
		return rel
	}
	return fqdn
}

// SameName compares two absolute names after normalization.
func SameName(a, b string) bool {
	return NormalizeName(a) == NormalizeName(b)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
