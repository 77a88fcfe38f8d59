package audit

import (
	"fmt"

	"zonekeeper/internal/catalog"
	"zonekeeper/internal/records"
)

// Check is one line of the compliance checklist. A check with several
// entries passes only when all of them are present.
type Check struct {
	ID      string
	Title   string
	Entries []catalog.Entry
}

// ChecklistOptions trims optional checks.
type ChecklistOptions struct {
	SkipIPv6 bool
	SkipSRV  bool
}

// Checklist returns the fixed compliance checklist. Its entries are looser
// than the enforced catalog: they test presence of the service, not the
// exact values enforce would write.
func Checklist(opts ChecklistOptions) []Check {
	checks := []Check{
		{
			ID:    "m365-mx",
			Title: "Microsoft 365 MX record",
			Entries: []catalog.Entry{{
				Key: "m365-mx", Type: records.TypeMX, Name: records.Apex,
				Content: catalog.DefaultMXHost, Policy: catalog.PolicyExclusive,
				Accept: catalog.Suffix("mail.protection.outlook.com"),
			}},
		},
		{
			ID:    "m365-spf",
			Title: "Microsoft 365 SPF record",
			Entries: []catalog.Entry{{
				Key: "m365-spf", Type: records.TypeTXT, Name: records.Apex,
				Content: catalog.DefaultSPF, Policy: catalog.PolicyExclusive,
				Select: catalog.Prefix("v=spf1"),
				Accept: catalog.Contains("include:spf.protection.outlook.com"),
			}},
		},
		{
			ID:    "dmarc",
			Title: "DMARC record",
			Entries: []catalog.Entry{{
				Key: "dmarc", Type: records.TypeTXT, Name: "_dmarc",
				Content: catalog.DefaultDMARCPolicy, Policy: catalog.PolicyExclusive,
				Select: catalog.Prefix("v=DMARC1"),
				Accept: catalog.Prefix("v=DMARC1"),
			}},
		},
		{
			ID:      "pages-a",
			Title:   "GitHub Pages apex A records",
			Entries: addressEntries("pages-a", records.TypeA, catalog.GitHubPagesIPv4),
		},
	}
	if !opts.SkipIPv6 {
		checks = append(checks, Check{
			ID:      "pages-aaaa",
			Title:   "GitHub Pages apex AAAA records",
			Entries: addressEntries("pages-aaaa", records.TypeAAAA, catalog.GitHubPagesIPv6),
		})
	}
	checks = append(checks,
		Check{
			ID:    "www-cname",
			Title: "WWW CNAME record",
			Entries: []catalog.Entry{{
				Key: "www-cname", Type: records.TypeCNAME, Name: "www",
				Content: catalog.DefaultPagesHost, Policy: catalog.PolicyExclusive,
				Accept: catalog.Any(),
			}},
		},
		Check{
			ID:    "m365-autodiscover",
			Title: "Outlook autodiscover CNAME",
			Entries: []catalog.Entry{{
				Key: "m365-autodiscover", Type: records.TypeCNAME, Name: "autodiscover",
				Content: catalog.DefaultAutodiscover, Policy: catalog.PolicyExclusive,
			}},
		},
	)
	if !opts.SkipSRV {
		standard := catalog.Standard(catalog.StandardOptions{})
		var srv []catalog.Entry
		for _, key := range []string{"m365-sip", "m365-sipfederation"} {
			if entry, ok := standard.Lookup(key); ok {
				srv = append(srv, entry)
			}
		}
		checks = append(checks, Check{ID: "m365-federation", Title: "Teams/Skype federation SRV records", Entries: srv})
	}
	return checks
}

func addressEntries(prefix string, typ records.Type, ips []string) []catalog.Entry {
	out := make([]catalog.Entry, 0, len(ips))
	for i, ip := range ips {
		out = append(out, catalog.Entry{
			Key:     fmt.Sprintf("%s-%d", prefix, i+1),
			Type:    typ,
			Name:    records.Apex,
			Content: ip,
			Policy:  catalog.PolicyAdditive,
		})
	}
	return out
}
