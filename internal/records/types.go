package records

import (
	"fmt"
	"strings"
)

// Type is a DNS record type handled by zonekeeper.
type Type string

const (
	TypeA     Type = "A"
	TypeAAAA  Type = "AAAA"
	TypeCNAME Type = "CNAME"
	TypeMX    Type = "MX"
	TypeTXT   Type = "TXT"
	TypeSRV   Type = "SRV"
)

var knownTypes = []Type{TypeA, TypeAAAA, TypeCNAME, TypeMX, TypeTXT, TypeSRV}

// ParseType converts user or provider input into a Type.
func ParseType(value string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(value)))
	for _, known := range knownTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unsupported record type %q", value)
}

// Proxiable reports whether the provider can intermediate traffic for the type.
func (t Type) Proxiable() bool {
	return t == TypeA || t == TypeAAAA || t == TypeCNAME
}

func (t Type) String() string { return string(t) }

// SRVData holds the structured part of an SRV record.
type SRVData struct {
	Service  string `json:"service,omitempty" yaml:"service,omitempty"`
	Proto    string `json:"proto,omitempty" yaml:"proto,omitempty"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Priority uint16 `json:"priority" yaml:"priority"`
	Weight   uint16 `json:"weight" yaml:"weight"`
	Port     uint16 `json:"port" yaml:"port"`
	Target   string `json:"target" yaml:"target"`
}

// Record is a record as it exists at the provider. Name is always absolute.
type Record struct {
	ID       string   `json:"id,omitempty" yaml:"id,omitempty"`
	Type     Type     `json:"type" yaml:"type"`
	Name     string   `json:"name" yaml:"name"`
	Content  string   `json:"content" yaml:"content"`
	TTL      int      `json:"ttl" yaml:"ttl"`
	Priority *uint16  `json:"priority,omitempty" yaml:"priority,omitempty"`
	Proxied  *bool    `json:"proxied,omitempty" yaml:"proxied,omitempty"`
	SRV      *SRVData `json:"srv,omitempty" yaml:"srv,omitempty"`
	Comment  string   `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// String renders a short description used in logs and reports.
func (r Record) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", r.Type, r.Name)
	switch {
	case r.SRV != nil:
		fmt.Fprintf(&b, " %d %d %d %s", r.SRV.Priority, r.SRV.Weight, r.SRV.Port, r.SRV.Target)
	case r.Content != "":
		fmt.Fprintf(&b, " %s", r.Content)
	}
	if r.Priority != nil {
		fmt.Fprintf(&b, " (priority %d)", *r.Priority)
	}
	if r.Proxied != nil && *r.Proxied {
		b.WriteString(" (proxied)")
	}
	return b.String()
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	clone := r
	clone.Priority = CopyUint16(r.Priority)
	clone.Proxied = CopyBool(r.Proxied)
	if r.SRV != nil {
		srv := *r.SRV
		clone.SRV = &srv
	}
	return clone
}

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// Uint16 returns a pointer to v.
func Uint16(v uint16) *uint16 { return &v }

func CopyBool(val *bool) *bool {
	if val == nil {
		return nil
	}
	copy := *val
	return &copy
}

func CopyUint16(val *uint16) *uint16 {
	if val == nil {
		return nil
	}
	copy := *val
	return &copy
}

func EqualBoolPtr(a, b *bool) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

func EqualUint16Ptr(a, b *uint16) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}
