// Package account maps zones onto the provider credentials that own them.
package account

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoCredentials is returned when a resolver has nothing to try.
var ErrNoCredentials = errors.New("no credentials configured")

// Credential is an opaque bearer token with a label for logs and reports.
type Credential struct {
	Label string
	Token string
}

// String never prints the token.
func (c Credential) String() string {
	return c.Label
}

// CredentialSet is an ordered list of credentials. Earlier entries win when
// several can see the same zone.
type CredentialSet []Credential

// Empty reports whether the set holds no usable token.
func (s CredentialSet) Empty() bool {
	return len(s) == 0
}

// Labels returns the credential labels in order.
func (s CredentialSet) Labels() []string {
	out := make([]string, 0, len(s))
	for _, c := range s {
		out = append(out, c.Label)
	}
	return out
}

// Add appends a token unless it is blank or already present. An empty label
// is replaced by a positional one.
func (s CredentialSet) Add(label, token string) CredentialSet {
	token = strings.TrimSpace(token)
	if token == "" {
		return s
	}
	for _, c := range s {
		if c.Token == token {
			return s
		}
	}
	label = strings.TrimSpace(label)
	if label == "" {
		label = fmt.Sprintf("token-%d", len(s)+1)
	}
	return append(s, Credential{Label: label, Token: token})
}

// ParseCredentials reads "label=token" or bare "token" specs. Blank specs
// are skipped and duplicate tokens collapse onto their first occurrence.
func ParseCredentials(specs ...string) (CredentialSet, error) {
	var set CredentialSet
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		label, token := "", spec
		if i := strings.Index(spec, "="); i >= 0 {
			label, token = spec[:i], spec[i+1:]
			if strings.TrimSpace(token) == "" {
				return nil, fmt.Errorf("credential %q has an empty token", label)
			}
		}
		set = set.Add(label, token)
	}
	return set, nil
}
