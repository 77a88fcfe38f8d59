package catalog

import (
	"fmt"
	"strings"

	"zonekeeper/internal/content"
	"zonekeeper/internal/records"
)

const (
	DefaultMXHost       = "{zone_dashed}.mail.protection.outlook.com"
	DefaultSPF          = "v=spf1 include:spf.protection.outlook.com -all"
	DefaultDMARCPolicy  = "v=DMARC1; p=none"
	DefaultDMARCReport  = "mailto:dmarc-rua@freeforcharity.org"
	DefaultPagesHost    = "{zone}"
	DefaultAutodiscover = "autodiscover.outlook.com"

	m365MXSuffix  = "mail.protection.outlook.com"
	m365SPFMember = "include:spf.protection.outlook.com"
)

// GitHubPagesIPv4 and GitHubPagesIPv6 are the apex addresses GitHub Pages
// serves custom domains from.
var (
	GitHubPagesIPv4 = []string{"185.199.108.153", "185.199.109.153", "185.199.110.153", "185.199.111.153"}
	GitHubPagesIPv6 = []string{"2606:50c0:8000::153", "2606:50c0:8001::153", "2606:50c0:8002::153", "2606:50c0:8003::153"}
)

// StandardOptions adjusts the built-in catalog. Empty fields use defaults.
type StandardOptions struct {
	MXHost      string
	DMARCReport string
	PagesHost   string
	SkipIPv6    bool
	SkipSRV     bool
}

// Standard returns the built-in catalog: Microsoft 365 mail routing and
// federation, GitHub Pages apex hosting and the www alias.
func Standard(opts StandardOptions) Catalog {
	mxHost := firstNonEmpty(opts.MXHost, DefaultMXHost)
	report := firstNonEmpty(opts.DMARCReport, DefaultDMARCReport)
	pages := firstNonEmpty(opts.PagesHost, DefaultPagesHost)

	// Any tenant host under the Exchange Online domain is accepted; a custom
	// host has to match exactly.
	var mxAccept *MatchRule
	if strings.HasSuffix(strings.ToLower(strings.TrimSuffix(mxHost, ".")), m365MXSuffix) {
		mxAccept = Suffix(m365MXSuffix)
	}

	entries := []Entry{
		{
			Key:         "m365-mx",
			Description: "Microsoft 365 mail exchange",
			Type:        records.TypeMX,
			Name:        records.Apex,
			Content:     mxHost,
			Priority:    records.Uint16(0),
			TTL:         1,
			Policy:      PolicyExclusive,
			Accept:      mxAccept,
		},
		{
			Key:         "m365-spf",
			Description: "SPF authorizing Microsoft 365 senders",
			Type:        records.TypeTXT,
			Name:        records.Apex,
			Content:     DefaultSPF,
			TTL:         1,
			Policy:      PolicyExclusive,
			Select:      Prefix("v=spf1"),
			Accept:      Contains(m365SPFMember),
		},
		{
			Key:         "dmarc",
			Description: "DMARC aggregate reporting",
			Type:        records.TypeTXT,
			Name:        "_dmarc",
			Content:     DefaultDMARCPolicy,
			TTL:         1,
			Policy:      PolicyMerge,
			Select:      Prefix("v=DMARC1"),
			Tag:         &content.TagRequirement{Tag: "rua", Value: report, Mode: content.MergeInclude},
		},
		{
			Key:         "m365-autodiscover",
			Description: "Outlook autodiscover alias",
			Type:        records.TypeCNAME,
			Name:        "autodiscover",
			Content:     DefaultAutodiscover,
			Proxied:     records.Bool(false),
			TTL:         1,
			Policy:      PolicyExclusive,
		},
	}

	for i, ip := range GitHubPagesIPv4 {
		entries = append(entries, pagesAddress(fmt.Sprintf("pages-a-%d", i+1), records.TypeA, ip))
	}
	if !opts.SkipIPv6 {
		for i, ip := range GitHubPagesIPv6 {
			entries = append(entries, pagesAddress(fmt.Sprintf("pages-aaaa-%d", i+1), records.TypeAAAA, ip))
		}
	}

	entries = append(entries, Entry{
		Key:         "www-cname",
		Description: "www alias for the site",
		Type:        records.TypeCNAME,
		Name:        "www",
		Content:     pages,
		Proxied:     records.Bool(false),
		TTL:         1,
		Policy:      PolicyExclusive,
	})

	if !opts.SkipSRV {
		entries = append(entries,
			Entry{
				Key:         "m365-sip",
				Description: "Teams/Skype SIP directory",
				Type:        records.TypeSRV,
				Name:        "_sip._tls",
				TTL:         1,
				Policy:      PolicyStructured,
				SRV:         &SRVSpec{Service: "_sip", Proto: "_tls", Priority: records.Uint16(100), Weight: records.Uint16(1), Port: records.Uint16(443), Target: "sipdir.online.lync.com"},
			},
			Entry{
				Key:         "m365-sipfederation",
				Description: "Teams/Skype federation",
				Type:        records.TypeSRV,
				Name:        "_sipfederationtls._tcp",
				TTL:         1,
				Policy:      PolicyStructured,
				SRV:         &SRVSpec{Service: "_sipfederationtls", Proto: "_tcp", Priority: records.Uint16(100), Weight: records.Uint16(1), Port: records.Uint16(5061), Target: "sipfed.online.lync.com"},
			},
		)
	}

	return Catalog{Name: "standard", Entries: entries}
}

func pagesAddress(key string, typ records.Type, ip string) Entry {
	return Entry{
		Key:         key,
		Description: "GitHub Pages apex address",
		Type:        typ,
		Name:        records.Apex,
		Content:     ip,
		Proxied:     records.Bool(false),
		TTL:         1,
		Policy:      PolicyAdditive,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
