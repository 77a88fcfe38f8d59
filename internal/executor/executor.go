// Package executor applies reconciliation plans to a record store.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"zonekeeper/internal/planner"
	"zonekeeper/internal/records"
)

// Writer is the subset of the record store the executor mutates through.
type Writer interface {
	Create(ctx context.Context, zoneID string, payload records.Payload) (records.Record, error)
	Update(ctx context.Context, zoneID, recordID string, payload records.Payload) (records.Record, error)
	Delete(ctx context.Context, zoneID, recordID string) error
}

// Executor turns plan items into store writes.
type Executor struct {
	store Writer
	log   logr.Logger
	now   func() time.Time
}

// New returns an Executor writing through w.
func New(w Writer, log logr.Logger) *Executor {
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	return &Executor{store: w, log: log, now: time.Now}
}

// Apply runs every item of plan in order. Satisfied items are skipped. In
// dry-run mode no store call is made and the would-be writes are reported.
// A failed item never stops the remaining ones; inspect Report.Err.
func (e *Executor) Apply(ctx context.Context, zoneID string, plan *planner.Plan, dryRun bool) Report {
	report := Report{DryRun: dryRun, Started: e.now()}
	if plan == nil {
		report.Finished = e.now()
		return report
	}
	report.Zone = plan.Zone
	for _, item := range plan.Items {
		outcome := e.applyItem(ctx, zoneID, item, dryRun)
		e.logOutcome(outcome)
		report.Outcomes = append(report.Outcomes, outcome)
	}
	report.Finished = e.now()
	return report
}

// Delete removes the given records, one outcome per record.
func (e *Executor) Delete(ctx context.Context, zone, zoneID string, recs []records.Record, dryRun bool) Report {
	report := Report{Zone: zone, DryRun: dryRun, Started: e.now()}
	for _, rec := range recs {
		existing := rec.Clone()
		outcome := Outcome{Type: rec.Type, Name: rec.Name, TargetID: rec.ID, Result: &existing}
		switch {
		case dryRun:
			outcome.Status = StatusWouldDelete
		case ctx.Err() != nil:
			fail(&outcome, ctx.Err())
		default:
			if err := e.store.Delete(ctx, zoneID, rec.ID); err != nil {
				fail(&outcome, err)
			} else {
				outcome.Status = StatusDeleted
			}
		}
		e.logOutcome(outcome)
		report.Outcomes = append(report.Outcomes, outcome)
	}
	report.Finished = e.now()
	return report
}

func (e *Executor) applyItem(ctx context.Context, zoneID string, item planner.Item, dryRun bool) Outcome {
	outcome := Outcome{
		Key:      item.Key,
		Type:     item.Type,
		Name:     item.Name,
		TargetID: item.TargetID,
		Reason:   item.Reason,
		Payload:  item.Desired,
	}
	if item.Action == planner.ActionSatisfied {
		outcome.Status = StatusSkipped
		outcome.Payload = nil
		outcome.Result = item.Existing
		return outcome
	}
	if item.Payload == nil {
		fail(&outcome, fmt.Errorf("%s: no payload to write", item.Label()))
		return outcome
	}

	switch item.Action {
	case planner.ActionCreate:
		if dryRun {
			outcome.Status = StatusWouldCreate
			return outcome
		}
		if err := ctx.Err(); err != nil {
			fail(&outcome, err)
			return outcome
		}
		rec, err := e.store.Create(ctx, zoneID, item.Payload)
		if err != nil {
			fail(&outcome, err)
			return outcome
		}
		outcome.Status = StatusCreated
		outcome.Result = &rec
	case planner.ActionUpdate:
		if item.TargetID == "" {
			fail(&outcome, errors.New("update target has no identifier"))
			return outcome
		}
		if dryRun {
			outcome.Status = StatusWouldUpdate
			return outcome
		}
		if err := ctx.Err(); err != nil {
			fail(&outcome, err)
			return outcome
		}
		rec, err := e.store.Update(ctx, zoneID, item.TargetID, item.Payload)
		if err != nil {
			fail(&outcome, err)
			return outcome
		}
		outcome.Status = StatusUpdated
		outcome.Result = &rec
	default:
		fail(&outcome, fmt.Errorf("unsupported action %q", item.Action))
	}
	return outcome
}

func fail(o *Outcome, err error) {
	o.Status = StatusFailed
	o.Err = err
	o.Error = err.Error()
}

func (e *Executor) logOutcome(o Outcome) {
	if o.Status == StatusFailed {
		e.log.Error(o.Err, "record not applied", "key", o.Key, "type", o.Type, "name", o.Name)
		return
	}
	e.log.V(1).Info("record processed", "key", o.Key, "type", o.Type, "name", o.Name, "status", o.Status)
}
