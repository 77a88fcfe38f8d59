package catalog

import (
	"strings"

	"zonekeeper/internal/content"
)

// MatchMode is how a MatchRule compares canonical content.
type MatchMode string

const (
	MatchExact    MatchMode = "exact"
	MatchPrefix   MatchMode = "prefix"
	MatchSuffix   MatchMode = "suffix"
	MatchContains MatchMode = "contains"
	// MatchAny accepts every record; the value is ignored.
	MatchAny MatchMode = "any"
)

// MatchRule is a case-insensitive predicate over canonical record content.
type MatchRule struct {
	Mode  MatchMode `json:"mode" yaml:"mode"`
	Value string    `json:"value" yaml:"value"`
}

// Matches applies the rule to raw provider content.
func (r MatchRule) Matches(raw string) bool {
	have := strings.ToLower(strings.TrimSuffix(content.Canonical(raw), "."))
	want := strings.ToLower(strings.TrimSuffix(content.Canonical(r.Value), "."))
	switch r.Mode {
	case MatchAny:
		return true
	case MatchPrefix:
		return strings.HasPrefix(have, want)
	case MatchSuffix:
		return strings.HasSuffix(have, want)
	case MatchContains:
		return strings.Contains(have, want)
	default:
		return have == want
	}
}

func (m MatchMode) valid() bool {
	switch m {
	case MatchExact, MatchPrefix, MatchSuffix, MatchContains, MatchAny, "":
		return true
	}
	return false
}

// Exact, Prefix, Suffix and Contains build rules for catalog literals.
func Exact(v string) *MatchRule    { return &MatchRule{Mode: MatchExact, Value: v} }
func Prefix(v string) *MatchRule   { return &MatchRule{Mode: MatchPrefix, Value: v} }
func Suffix(v string) *MatchRule   { return &MatchRule{Mode: MatchSuffix, Value: v} }
func Contains(v string) *MatchRule { return &MatchRule{Mode: MatchContains, Value: v} }

// Any accepts whatever content is present.
func Any() *MatchRule { return &MatchRule{Mode: MatchAny} }
