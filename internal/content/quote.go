package content

import "strings"

const quote = '"'

// Unquote strips provider quoting from free-text content. A run of quoted
// character-strings ("a" "b") is joined the way resolvers concatenate them;
// anything else only loses one matching pair of outer quotes.
func Unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != quote {
		return s
	}
	if parts, ok := splitQuoted(s); ok {
		return strings.Join(parts, "")
	}
	if s[len(s)-1] == quote {
		return s[1 : len(s)-1]
	}
	return s
}

// Quote wraps canonical content in a single pair of quotes, escaping
// embedded quotes. Content that is already quoted is returned unchanged.
func Quote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == quote {
		if _, ok := splitQuoted(s); ok {
			return s
		}
	}
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// Canonical is the comparison form of content: unquoted with whitespace runs
// collapsed to a single space.
func Canonical(s string) string {
	return strings.Join(strings.Fields(Unquote(s)), " ")
}

// Equal compares two contents in canonical form.
func Equal(a, b string) bool {
	return Canonical(a) == Canonical(b)
}

// EqualHost compares host-like contents (CNAME and MX targets), ignoring
// case and a trailing dot.
func EqualHost(a, b string) bool {
	return strings.EqualFold(strings.TrimSuffix(Canonical(a), "."), strings.TrimSuffix(Canonical(b), "."))
}

func splitQuoted(s string) ([]string, bool) {
	var parts []string
	i := 0
	for i < len(s) {
		for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i == len(s) {
			break
		}
		if s[i] != quote {
			return nil, false
		}
		i++
		var b strings.Builder
		closed := false
		for i < len(s) {
			c := s[i]
			if c == '\\' && i+1 < len(s) {
				b.WriteByte(s[i+1])
				i += 2
				continue
			}
			if c == quote {
				closed = true
				i++
				break
			}
			b.WriteByte(c)
			i++
		}
		if !closed {
			return nil, false
		}
		parts = append(parts, b.String())
	}
	return parts, len(parts) > 0
}
