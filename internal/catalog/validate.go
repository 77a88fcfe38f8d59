package catalog

import (
	"fmt"
	"strings"

	"zonekeeper/internal/content"
	"zonekeeper/internal/records"
)

// ValidationError reports malformed catalog entries or operator input. It
// is returned before any provider call is made.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "validation failed: " + e.Problems[0]
	}
	return fmt.Sprintf("validation failed (%d problems): %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

// Invalid builds a ValidationError with a single formatted problem.
func Invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Problems: []string{fmt.Sprintf(format, args...)}}
}

// Validate checks the structure of every entry. Content-level checks that
// need the zone happen in ForZone.
func (c Catalog) Validate() error {
	var problems []string
	if len(c.Entries) == 0 {
		problems = append(problems, "catalog has no entries")
	}
	seen := make(map[string]struct{}, len(c.Entries))
	for i, entry := range c.Entries {
		label := entry.Key
		if strings.TrimSpace(label) == "" {
			label = fmt.Sprintf("#%d", i+1)
			problems = append(problems, fmt.Sprintf("entry %s: key is required", label))
		} else if _, dup := seen[label]; dup {
			problems = append(problems, fmt.Sprintf("entry %q: duplicate key", label))
		}
		seen[label] = struct{}{}
		for _, p := range entry.problems() {
			problems = append(problems, fmt.Sprintf("entry %q: %s", label, p))
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func (e Entry) problems() []string {
	var out []string
	add := func(format string, args ...any) { out = append(out, fmt.Sprintf(format, args...)) }

	if _, err := records.ParseType(string(e.Type)); err != nil {
		add("%v", err)
	}
	if !e.Policy.valid() {
		add("unknown policy %q", e.Policy)
	}
	if e.Proxied != nil && !e.Type.Proxiable() {
		add("proxied is only valid for A, AAAA and CNAME")
	}
	if e.Priority != nil && e.Type != records.TypeMX && e.Type != records.TypeSRV {
		add("priority is only valid for MX and SRV")
	}
	for _, rule := range []*MatchRule{e.Select, e.Accept} {
		if rule == nil {
			continue
		}
		if !rule.Mode.valid() {
			add("unknown match mode %q", rule.Mode)
		}
		if rule.Mode != MatchAny && strings.TrimSpace(rule.Value) == "" {
			add("match rule value is required")
		}
	}

	switch e.Policy {
	case PolicyExclusive, PolicyAdditive:
		if strings.TrimSpace(e.Content) == "" {
			add("%s policy requires content", e.Policy)
		}
		if e.Type == records.TypeSRV {
			add("SRV entries must use the structured policy")
		}
		if e.Policy == PolicyAdditive && e.Accept != nil {
			add("additive entries match exact content; accept is not allowed")
		}
	case PolicyMerge:
		if e.Type != records.TypeTXT {
			add("merge policy requires a TXT entry")
		}
		if e.Tag == nil || strings.TrimSpace(e.Tag.Tag) == "" || strings.TrimSpace(e.Tag.Value) == "" {
			add("merge policy requires a tag and value")
		} else if e.Tag.Mode != "" && e.Tag.Mode != content.MergeSet && e.Tag.Mode != content.MergeInclude {
			add("unknown tag mode %q", e.Tag.Mode)
		}
	case PolicyStructured:
		if e.Type != records.TypeSRV {
			add("structured policy requires an SRV entry")
		}
		if e.SRV == nil {
			add("structured policy requires srv data")
		} else {
			if strings.TrimSpace(e.SRV.Target) == "" {
				add("srv target is required")
			}
			if e.SRV.Port == nil {
				add("srv port is required")
			}
		}
	}
	return out
}
