// Package engine runs the zone operations: audit, enforce and single-record
// management. Every operation resolves the zone once, reads the complete
// inventory once and makes all of its decisions against that inventory.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"zonekeeper/internal/account"
	"zonekeeper/internal/audit"
	"zonekeeper/internal/catalog"
	"zonekeeper/internal/executor"
	"zonekeeper/internal/planner"
	"zonekeeper/internal/records"
	"zonekeeper/internal/snapshot"
)

var (
	// ErrNoMatch is returned when a filter selects no record.
	ErrNoMatch = errors.New("no record matches")
	// ErrAmbiguous is returned when a filter meant to select one record selects several.
	ErrAmbiguous = errors.New("more than one record matches")
)

// Resolver finds the credential and store session that own a zone.
type Resolver interface {
	Resolve(ctx context.Context, name string) (account.Zone, error)
}

// Options configure an Engine.
type Options struct {
	// Catalog is what Enforce converges zones on.
	Catalog catalog.Catalog
	// Checklist is what Audit evaluates; nil uses audit.Checklist defaults.
	Checklist []audit.Check
	// Archive receives inventory snapshots before writes when requested.
	Archive snapshot.Archiver
	Logger  logr.Logger
	// Now stamps plans, audit reports and snapshots; nil uses time.Now.
	Now func() time.Time
}

// Engine orchestrates resolver, store, planner and executor.
type Engine struct {
	resolver  Resolver
	catalog   catalog.Catalog
	checklist []audit.Check
	archive   snapshot.Archiver
	log       logr.Logger
	now       func() time.Time
}

// New returns an Engine.
func New(resolver Resolver, opts Options) *Engine {
	log := opts.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	checklist := opts.Checklist
	if checklist == nil {
		checklist = audit.Checklist(audit.ChecklistOptions{})
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		resolver:  resolver,
		catalog:   opts.Catalog,
		checklist: checklist,
		archive:   opts.Archive,
		log:       log,
		now:       now,
	}
}

// EnforceOptions control a convergence run.
type EnforceOptions struct {
	DryRun bool
	// Snapshot archives the inventory before the first write.
	Snapshot bool
}

// Result is the outcome of Enforce or Set.
type Result struct {
	Zone       string          `json:"zone" yaml:"zone"`
	ZoneID     string          `json:"zone_id" yaml:"zone_id"`
	Credential string          `json:"credential" yaml:"credential"`
	Plan       *planner.Plan   `json:"plan" yaml:"plan"`
	Report     executor.Report `json:"report" yaml:"report"`
	Snapshot   string          `json:"snapshot,omitempty" yaml:"snapshot,omitempty"`
}

// OK reports whether every item was applied or skipped.
func (r *Result) OK() bool {
	return r != nil && r.Report.OK()
}

type session struct {
	zone      account.Zone
	inventory []records.Record
}

func (e *Engine) open(ctx context.Context, name string) (*session, error) {
	zone, err := e.resolver.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	inventory, err := zone.Store.ListAll(ctx, zone.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch inventory of %s: %w", zone.Name, err)
	}
	e.log.V(1).Info("inventory loaded", "zone", zone.Name, "credential", zone.Credential.Label, "records", len(inventory))
	return &session{zone: zone, inventory: inventory}, nil
}

// Audit classifies the zone against the checklist. It never writes.
func (e *Engine) Audit(ctx context.Context, name string) (audit.Report, error) {
	s, err := e.open(ctx, name)
	if err != nil {
		return audit.Report{}, err
	}
	report, err := audit.Run(s.zone.Name, s.inventory, e.checklist)
	if err != nil {
		return audit.Report{}, err
	}
	report.Generated = e.now().UTC()
	return report, nil
}

// Plan computes what Enforce would do without applying anything.
func (e *Engine) Plan(ctx context.Context, name string) (*planner.Plan, error) {
	if _, err := e.catalog.ForZone(name); err != nil {
		return nil, err
	}
	s, err := e.open(ctx, name)
	if err != nil {
		return nil, err
	}
	return e.plan(s, e.catalog)
}

func (e *Engine) plan(s *session, cat catalog.Catalog) (*planner.Plan, error) {
	plan, err := planner.Build(s.zone.Name, s.inventory, cat)
	if err != nil {
		return nil, err
	}
	plan.Generated = e.now().UTC()
	return plan, nil
}

// Enforce converges the zone on the catalog. The returned error is a
// *executor.PartialFailureError when some items failed; the Result is
// still returned so every outcome can be reported.
func (e *Engine) Enforce(ctx context.Context, name string, opts EnforceOptions) (*Result, error) {
	return e.converge(ctx, name, e.catalog, opts)
}

// Set upserts one ad-hoc entry through the same planner and executor.
func (e *Engine) Set(ctx context.Context, name string, entry catalog.Entry, opts EnforceOptions) (*Result, error) {
	if entry.Key == "" {
		entry.Key = "set"
	}
	return e.converge(ctx, name, catalog.Catalog{Name: "set", Entries: []catalog.Entry{entry}}, opts)
}

func (e *Engine) converge(ctx context.Context, name string, cat catalog.Catalog, opts EnforceOptions) (*Result, error) {
	// Reject a bad catalog before any provider call.
	if _, err := cat.ForZone(name); err != nil {
		return nil, err
	}
	s, err := e.open(ctx, name)
	if err != nil {
		return nil, err
	}
	plan, err := e.plan(s, cat)
	if err != nil {
		return nil, err
	}
	res := &Result{Zone: s.zone.Name, ZoneID: s.zone.ID, Credential: s.zone.Credential.Label, Plan: plan}
	e.log.Info("plan built", "zone", s.zone.Name, "catalog", cat.Name, "summary", plan.Summary().String(), "dry_run", opts.DryRun)

	if opts.Snapshot && !opts.DryRun && !plan.Converged() {
		where, err := e.saveSnapshot(ctx, s, "enforce "+cat.Name)
		if err != nil {
			return res, err
		}
		res.Snapshot = where
	}

	res.Report = executor.New(s.zone.Store, e.log).Apply(ctx, s.zone.ID, plan, opts.DryRun)
	return res, res.Report.Err()
}

// List returns the zone records matching f.
func (e *Engine) List(ctx context.Context, name string, f Filter) ([]records.Record, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	s, err := e.open(ctx, name)
	if err != nil {
		return nil, err
	}
	return Select(s.inventory, s.zone.Name, f), nil
}

// Get returns the single record matching f.
func (e *Engine) Get(ctx context.Context, name string, f Filter) (records.Record, error) {
	matches, err := e.List(ctx, name, f)
	if err != nil {
		return records.Record{}, err
	}
	switch len(matches) {
	case 0:
		return records.Record{}, ErrNoMatch
	case 1:
		return matches[0], nil
	default:
		return records.Record{}, fmt.Errorf("%w: %d records", ErrAmbiguous, len(matches))
	}
}

// RemoveOptions control Remove.
type RemoveOptions struct {
	DryRun bool
	// All allows removing several matching records at once.
	All      bool
	Snapshot bool
}

// Remove deletes the records matching f. The filter must name a record
// identifier, or a type and a name.
func (e *Engine) Remove(ctx context.Context, name string, f Filter, opts RemoveOptions) (executor.Report, error) {
	if err := f.Validate(); err != nil {
		return executor.Report{}, err
	}
	if f.ID == "" && (f.Type == "" || f.Name == "") {
		return executor.Report{}, catalog.Invalid("remove needs a record id, or a type and a name")
	}
	s, err := e.open(ctx, name)
	if err != nil {
		return executor.Report{}, err
	}
	matches := Select(s.inventory, s.zone.Name, f)
	if len(matches) == 0 {
		return executor.Report{}, ErrNoMatch
	}
	if len(matches) > 1 && !opts.All {
		return executor.Report{}, fmt.Errorf("%w: %d records, narrow the filter or remove all", ErrAmbiguous, len(matches))
	}
	if opts.Snapshot && !opts.DryRun {
		if _, err := e.saveSnapshot(ctx, s, "remove"); err != nil {
			return executor.Report{}, err
		}
	}
	report := executor.New(s.zone.Store, e.log).Delete(ctx, s.zone.Name, s.zone.ID, matches, opts.DryRun)
	return report, report.Err()
}

func (e *Engine) saveSnapshot(ctx context.Context, s *session, reason string) (string, error) {
	if e.archive == nil {
		return "", errors.New("snapshot requested but no snapshot storage is configured")
	}
	snap := &snapshot.Snapshot{
		ZoneID:     s.zone.ID,
		Zone:       s.zone.Name,
		Credential: s.zone.Credential.Label,
		Taken:      e.now().UTC(),
		Reason:     reason,
		Records:    s.inventory,
	}
	where, err := e.archive.Save(ctx, snap)
	if err != nil {
		return "", fmt.Errorf("snapshot %s before writing: %w", s.zone.Name, err)
	}
	e.log.Info("snapshot saved", "zone", s.zone.Name, "location", where)
	return where, nil
}
