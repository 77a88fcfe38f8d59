package records

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"zonekeeper/internal/content"
)

// Fields is the flat wire form of a write request.
type Fields struct {
	Type     Type     `json:"type" yaml:"type"`
	Name     string   `json:"name" yaml:"name"`
	Content  string   `json:"content,omitempty" yaml:"content,omitempty"`
	TTL      int      `json:"ttl" yaml:"ttl"`
	Priority *uint16  `json:"priority,omitempty" yaml:"priority,omitempty"`
	Proxied  *bool    `json:"proxied,omitempty" yaml:"proxied,omitempty"`
	SRV      *SRVData `json:"srv,omitempty" yaml:"srv,omitempty"`
}

// Payload is the body of a create or update for one record type. Each
// implementation only carries the attributes that type supports.
type Payload interface {
	Type() Type
	Name() string
	Fields() Fields
}

// AddressPayload writes an A or AAAA record.
type AddressPayload struct {
	Family  Type
	Host    string
	Address netip.Addr
	TTL     int
	Proxied *bool
}

func (p AddressPayload) Type() Type   { return p.Family }
func (p AddressPayload) Name() string { return p.Host }
func (p AddressPayload) Fields() Fields {
	return Fields{Type: p.Family, Name: p.Host, Content: p.Address.String(), TTL: p.TTL, Proxied: CopyBool(p.Proxied)}
}

// CNAMEPayload writes a CNAME record.
type CNAMEPayload struct {
	Host    string
	Target  string
	TTL     int
	Proxied *bool
}

func (p CNAMEPayload) Type() Type   { return TypeCNAME }
func (p CNAMEPayload) Name() string { return p.Host }
func (p CNAMEPayload) Fields() Fields {
	return Fields{Type: TypeCNAME, Name: p.Host, Content: p.Target, TTL: p.TTL, Proxied: CopyBool(p.Proxied)}
}

// MXPayload writes an MX record.
type MXPayload struct {
	Host       string
	Exchange   string
	Preference uint16
	TTL        int
}

func (p MXPayload) Type() Type   { return TypeMX }
func (p MXPayload) Name() string { return p.Host }
func (p MXPayload) Fields() Fields {
	return Fields{Type: TypeMX, Name: p.Host, Content: p.Exchange, TTL: p.TTL, Priority: Uint16(p.Preference)}
}

// TXTPayload writes a TXT record. Text is canonical and quoted on the wire.
type TXTPayload struct {
	Host string
	Text string
	TTL  int
}

func (p TXTPayload) Type() Type   { return TypeTXT }
func (p TXTPayload) Name() string { return p.Host }
func (p TXTPayload) Fields() Fields {
	return Fields{Type: TypeTXT, Name: p.Host, Content: content.Quote(p.Text), TTL: p.TTL}
}

// SRVPayload writes an SRV record.
type SRVPayload struct {
	Host string
	Data SRVData
	TTL  int
}

func (p SRVPayload) Type() Type   { return TypeSRV }
func (p SRVPayload) Name() string { return p.Host }
func (p SRVPayload) Fields() Fields {
	data := p.Data
	return Fields{
		Type:     TypeSRV,
		Name:     p.Host,
		Content:  fmt.Sprintf("%d %d %s", data.Weight, data.Port, data.Target),
		TTL:      p.TTL,
		Priority: Uint16(data.Priority),
		SRV:      &data,
	}
}

// ErrInvalidPayload is wrapped by every error NewPayload returns.
var ErrInvalidPayload = errors.New("invalid record payload")

// NewPayload builds the typed payload for flat fields, rejecting attribute
// combinations the record type does not support.
func NewPayload(f Fields) (Payload, error) {
	name := NormalizeName(f.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidPayload)
	}
	if f.Proxied != nil && !f.Type.Proxiable() {
		return nil, fmt.Errorf("%w: %s records cannot be proxied", ErrInvalidPayload, f.Type)
	}
	if f.Priority != nil && f.Type != TypeMX && f.Type != TypeSRV {
		return nil, fmt.Errorf("%w: %s records do not take a priority", ErrInvalidPayload, f.Type)
	}
	ttl := f.TTL
	if ttl <= 0 {
		ttl = 1
	}
	value := strings.TrimSpace(f.Content)

	switch f.Type {
	case TypeA, TypeAAAA:
		addr, err := netip.ParseAddr(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s content %q is not an IP address", ErrInvalidPayload, f.Type, value)
		}
		if f.Type == TypeA && !addr.Is4() {
			return nil, fmt.Errorf("%w: A content %q is not IPv4", ErrInvalidPayload, value)
		}
		if f.Type == TypeAAAA && (!addr.Is6() || addr.Is4In6()) {
			return nil, fmt.Errorf("%w: AAAA content %q is not IPv6", ErrInvalidPayload, value)
		}
		return AddressPayload{Family: f.Type, Host: name, Address: addr, TTL: ttl, Proxied: CopyBool(f.Proxied)}, nil
	case TypeCNAME:
		if value == "" {
			return nil, fmt.Errorf("%w: CNAME target is required", ErrInvalidPayload)
		}
		return CNAMEPayload{Host: name, Target: NormalizeName(value), TTL: ttl, Proxied: CopyBool(f.Proxied)}, nil
	case TypeMX:
		if value == "" {
			return nil, fmt.Errorf("%w: MX exchange is required", ErrInvalidPayload)
		}
		pref := uint16(10)
		if f.Priority != nil {
			pref = *f.Priority
		}
		return MXPayload{Host: name, Exchange: NormalizeName(value), Preference: pref, TTL: ttl}, nil
	case TypeTXT:
		text := content.Canonical(value)
		if text == "" {
			return nil, fmt.Errorf("%w: TXT content is required", ErrInvalidPayload)
		}
		return TXTPayload{Host: name, Text: text, TTL: ttl}, nil
	case TypeSRV:
		if f.SRV == nil || strings.TrimSpace(f.SRV.Target) == "" {
			return nil, fmt.Errorf("%w: SRV target is required", ErrInvalidPayload)
		}
		data := *f.SRV
		data.Target = NormalizeName(data.Target)
		if f.Priority != nil {
			data.Priority = *f.Priority
		}
		return SRVPayload{Host: name, Data: data, TTL: ttl}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported record type %q", ErrInvalidPayload, f.Type)
	}
}
