package executor

import (
	"fmt"
	"strings"
	"time"

	"zonekeeper/internal/records"
)

// Status is the result of applying one plan item.
type Status string

const (
	StatusSkipped     Status = "skipped"
	StatusWouldCreate Status = "would-create"
	StatusWouldUpdate Status = "would-update"
	StatusWouldDelete Status = "would-delete"
	StatusCreated     Status = "created"
	StatusUpdated     Status = "updated"
	StatusDeleted     Status = "deleted"
	StatusFailed      Status = "failed"
)

// Outcome records what happened to one plan item.
type Outcome struct {
	Key      string          `json:"key,omitempty" yaml:"key,omitempty"`
	Type     records.Type    `json:"type" yaml:"type"`
	Name     string          `json:"name" yaml:"name"`
	Status   Status          `json:"status" yaml:"status"`
	TargetID string          `json:"target_id,omitempty" yaml:"target_id,omitempty"`
	Payload  *records.Fields `json:"payload,omitempty" yaml:"payload,omitempty"`
	Result   *records.Record `json:"result,omitempty" yaml:"result,omitempty"`
	Reason   string          `json:"reason,omitempty" yaml:"reason,omitempty"`
	Error    string          `json:"error,omitempty" yaml:"error,omitempty"`

	Err error `json:"-" yaml:"-"`
}

// Label is the record type and name of the outcome.
func (o Outcome) Label() string {
	return fmt.Sprintf("%s %s", o.Type, o.Name)
}

// Report collects the outcomes of one Apply call in plan order.
type Report struct {
	Zone     string    `json:"zone" yaml:"zone"`
	DryRun   bool      `json:"dry_run" yaml:"dry_run"`
	Started  time.Time `json:"started_at" yaml:"started_at"`
	Finished time.Time `json:"finished_at" yaml:"finished_at"`
	Outcomes []Outcome `json:"outcomes" yaml:"outcomes"`
}

// OK reports whether no item failed.
func (r Report) OK() bool {
	return len(r.Failed()) == 0
}

// Failed returns the failed outcomes.
func (r Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			out = append(out, o)
		}
	}
	return out
}

// Count returns how many outcomes have status s.
func (r Report) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Err returns a *PartialFailureError when any item failed, nil otherwise.
func (r Report) Err() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}
	return &PartialFailureError{Zone: r.Zone, Total: len(r.Outcomes), Failed: failed}
}

// PartialFailureError lists the items that could not be applied. Items not
// listed were applied or skipped normally.
type PartialFailureError struct {
	Zone   string
	Total  int
	Failed []Outcome
}

func (e *PartialFailureError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, o := range e.Failed {
		parts = append(parts, fmt.Sprintf("%s: %s", o.Label(), o.Error))
	}
	return fmt.Sprintf("%s: %d of %d item(s) failed: %s", e.Zone, len(e.Failed), e.Total, strings.Join(parts, "; "))
}

// Unwrap exposes the per-item errors to errors.Is and errors.As.
func (e *PartialFailureError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, o := range e.Failed {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errs
}
