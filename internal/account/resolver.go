package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"golang.org/x/net/publicsuffix"

	"zonekeeper/internal/records"
	"zonekeeper/internal/store"
)

// Zone is a zone bound to the credential that can see it. Store is the
// session opened with that credential and is used for the rest of the run.
type Zone struct {
	Name       string
	ID         string
	Credential Credential
	Store      store.API
}

// ZoneNotFoundError means no credential in the set could see the zone.
type ZoneNotFoundError struct {
	Zone  string
	Tried []string
	// Err joins the lookup failures of individual credentials, if any.
	Err error
}

func (e *ZoneNotFoundError) Error() string {
	msg := fmt.Sprintf("zone %s not found with any of %d credential(s)", e.Zone, len(e.Tried))
	if len(e.Tried) > 0 {
		msg += " [" + strings.Join(e.Tried, ", ") + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ZoneNotFoundError) Unwrap() error { return e.Err }

// Resolver finds which credential owns a zone.
type Resolver struct {
	creds CredentialSet
	open  store.Factory
	log   logr.Logger
}

// NewResolver returns a Resolver trying creds in order, opening store
// sessions through open.
func NewResolver(creds CredentialSet, open store.Factory, log logr.Logger) *Resolver {
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	return &Resolver{creds: creds, open: open, log: log}
}

// Resolve returns the zone handle from the first credential whose lookup of
// name is non-empty. A credential that fails the lookup is skipped.
func (r *Resolver) Resolve(ctx context.Context, name string) (Zone, error) {
	name = records.NormalizeName(name)
	if name == "" || name == records.Apex {
		return Zone{}, errors.New("zone name is required")
	}
	if r.creds.Empty() {
		return Zone{}, &ZoneNotFoundError{Zone: name, Err: ErrNoCredentials}
	}

	var (
		tried []string
		errs  []error
	)
	for _, cred := range r.creds {
		tried = append(tried, cred.Label)
		api, err := r.open(cred.Token)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", cred.Label, err))
			continue
		}
		zone, ok, err := lookup(ctx, api, cred, name)
		if err != nil {
			if ctx.Err() != nil {
				return Zone{}, ctx.Err()
			}
			r.log.Info("zone lookup failed, trying next credential", "zone", name, "credential", cred.Label, "error", err.Error())
			errs = append(errs, fmt.Errorf("%s: %w", cred.Label, err))
			continue
		}
		if ok {
			r.log.V(1).Info("zone resolved", "zone", name, "credential", cred.Label, "id", zone.ID)
			return zone, nil
		}
		r.log.V(1).Info("zone not visible to credential", "zone", name, "credential", cred.Label)
	}
	return Zone{}, &ZoneNotFoundError{Zone: name, Tried: tried, Err: errors.Join(errs...)}
}

// ResolveHost finds the zone that owns host by trying its candidate zones,
// most specific first, down to the registrable domain.
func (r *Resolver) ResolveHost(ctx context.Context, host string) (Zone, error) {
	clean := sanitizeHost(host)
	if clean == "" {
		return Zone{}, errors.New("host is required to resolve zone")
	}
	candidates := ZoneCandidates(clean)
	if r.creds.Empty() {
		return Zone{}, &ZoneNotFoundError{Zone: clean, Err: ErrNoCredentials}
	}

	var (
		tried []string
		errs  []error
	)
	for _, cred := range r.creds {
		tried = append(tried, cred.Label)
		api, err := r.open(cred.Token)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", cred.Label, err))
			continue
		}
		for _, candidate := range candidates {
			zone, ok, err := lookup(ctx, api, cred, candidate)
			if err != nil {
				if ctx.Err() != nil {
					return Zone{}, ctx.Err()
				}
				errs = append(errs, fmt.Errorf("%s: %w", cred.Label, err))
				break
			}
			if ok {
				return zone, nil
			}
		}
	}
	return Zone{}, &ZoneNotFoundError{Zone: clean, Tried: tried, Err: errors.Join(errs...)}
}

func lookup(ctx context.Context, api store.API, cred Credential, name string) (Zone, bool, error) {
	refs, err := api.LookupZone(ctx, name)
	if err != nil {
		return Zone{}, false, err
	}
	if len(refs) == 0 {
		return Zone{}, false, nil
	}
	return Zone{Name: refs[0].Name, ID: refs[0].ID, Credential: cred, Store: api}, true, nil
}

func sanitizeHost(host string) string {
	value := records.NormalizeName(host)
	value = strings.TrimPrefix(value, "*.")
	if value == records.Apex {
		return ""
	}
	return value
}

// ZoneCandidates lists the names that could be the zone apex for host, from
// host itself down to its registrable domain.
func ZoneCandidates(host string) []string {
	host = sanitizeHost(host)
	if host == "" {
		return nil
	}
	floor := ""
	if etld, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		floor = etld
	}

	seen := make(map[string]struct{})
	var candidates []string
	labels := strings.Split(host, ".")
	for i := 0; i <= len(labels)-2; i++ {
		candidate := strings.Join(labels[i:], ".")
		addCandidate(&candidates, seen, candidate)
		if candidate == floor {
			break
		}
	}
	if floor != "" {
		addCandidate(&candidates, seen, floor)
	}
	return candidates
}

func addCandidate(list *[]string, seen map[string]struct{}, candidate string) {
	if candidate == "" {
		return
	}
	if _, exists := seen[candidate]; exists {
		return
	}
	seen[candidate] = struct{}{}
	*list = append(*list, candidate)
}
