package zone

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"zonekeeper/internal/catalog"
	"zonekeeper/internal/store"
)

type resolution struct {
	Host       string `json:"host" yaml:"host"`
	Zone       string `json:"zone,omitempty" yaml:"zone,omitempty"`
	ZoneID     string `json:"zone_id,omitempty" yaml:"zone_id,omitempty"`
	Credential string `json:"credential,omitempty" yaml:"credential,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	var (
		out    []resolution
		failed int
	)
	for _, host := range args {
		zone, err := a.resolver.ResolveHost(ctx, host)
		if err != nil {
			failed++
			out = append(out, resolution{Host: host, Error: err.Error()})
			continue
		}
		out = append(out, resolution{Host: host, Zone: zone.Name, ZoneID: zone.ID, Credential: zone.Credential.Label})
	}

	if format != "text" {
		if err := writeStructured(cmd.OutOrStdout(), out, format); err != nil {
			return err
		}
	} else {
		for _, r := range out {
			if r.Error != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", r.Host, r.Error)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%s) via %s\n", r.Host, r.Zone, r.ZoneID, r.Credential)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d host(s) could not be resolved", failed, len(args))
	}
	return nil
}

type tokenReport struct {
	Label  string            `json:"label" yaml:"label"`
	Token  store.TokenStatus `json:"token" yaml:"token"`
	Zones  []store.ZoneRef   `json:"zones,omitempty" yaml:"zones,omitempty"`
	Error  string            `json:"error,omitempty" yaml:"error,omitempty"`
	failed bool
}

func runVerifyToken(cmd *cobra.Command, _ []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	var (
		reports []tokenReport
		errs    []error
	)
	for _, cred := range a.creds {
		report := tokenReport{Label: cred.Label}
		client, err := store.NewClient(cred.Token, a.opts)
		if err == nil {
			report.Token, err = client.VerifyToken(ctx)
		}
		if err == nil && mustGetBoolFlag(cmd, "zones") {
			report.Zones, err = client.ListZones(ctx)
		}
		if err != nil {
			report.Error = err.Error()
			report.failed = true
			errs = append(errs, fmt.Errorf("%s: %w", cred.Label, err))
		}
		reports = append(reports, report)
	}

	if format != "text" {
		if err := writeStructured(cmd.OutOrStdout(), reports, format); err != nil {
			return err
		}
		return errors.Join(errs...)
	}
	w := cmd.OutOrStdout()
	for _, r := range reports {
		if r.failed {
			fmt.Fprintf(w, "%s: %s\n", r.Label, r.Error)
			continue
		}
		fmt.Fprintf(w, "%s: token %s status: %s\n", r.Label, r.Token.ID, r.Token.Status)
		if !r.Token.NotBefore.IsZero() {
			fmt.Fprintf(w, "  valid from: %s\n", r.Token.NotBefore.Format(time.RFC3339))
		}
		if !r.Token.ExpiresOn.IsZero() {
			fmt.Fprintf(w, "  expires on: %s\n", r.Token.ExpiresOn.Format(time.RFC3339))
		}
		for _, z := range r.Zones {
			fmt.Fprintf(w, "  zone %s (%s) %s\n", z.Name, z.ID, z.Status)
		}
	}
	return errors.Join(errs...)
}

func runCatalog(cmd *cobra.Command, _ []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	cat, err := loadCatalog(cmd)
	if err != nil {
		return err
	}
	if zone := mustGetStringFlag(cmd, "zone"); zone != "" {
		if cat, err = cat.ForZone(zone); err != nil {
			return err
		}
	} else if err := cat.Validate(); err != nil {
		return err
	}
	if format == "text" {
		format = "yaml"
	}
	data, err := catalog.Encode(cat, format)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
