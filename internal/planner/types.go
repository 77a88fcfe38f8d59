package planner

import (
	"fmt"
	"time"

	"zonekeeper/internal/catalog"
	"zonekeeper/internal/records"
)

// Action is the decision taken for one catalog entry.
type Action string

const (
	ActionSatisfied Action = "satisfied"
	ActionUpdate    Action = "update"
	ActionCreate    Action = "create"
)

// Item is the reconciliation result for one catalog entry.
type Item struct {
	Key      string          `json:"key" yaml:"key"`
	Type     records.Type    `json:"type" yaml:"type"`
	Name     string          `json:"name" yaml:"name"`
	Policy   catalog.Policy  `json:"policy" yaml:"policy"`
	Action   Action          `json:"action" yaml:"action"`
	TargetID string          `json:"target_id,omitempty" yaml:"target_id,omitempty"`
	Existing *records.Record `json:"existing,omitempty" yaml:"existing,omitempty"`
	Desired  *records.Fields `json:"desired,omitempty" yaml:"desired,omitempty"`
	Reason   string          `json:"reason" yaml:"reason"`

	Entry   catalog.Entry   `json:"-" yaml:"-"`
	Payload records.Payload `json:"-" yaml:"-"`

	value string
	srv   *records.SRVData
}

// Label is the type and name of the record the item concerns.
func (i Item) Label() string {
	return fmt.Sprintf("%s %s", i.Type, i.Name)
}

// Plan is the ordered set of decisions for one zone, in catalog order.
type Plan struct {
	Zone      string    `json:"zone" yaml:"zone"`
	Catalog   string    `json:"catalog,omitempty" yaml:"catalog,omitempty"`
	Generated time.Time `json:"generated_at" yaml:"generated_at"`
	Items     []Item    `json:"items" yaml:"items"`
}

// Summary counts items per action.
type Summary struct {
	Satisfied int `json:"satisfied" yaml:"satisfied"`
	Updates   int `json:"updates" yaml:"updates"`
	Creates   int `json:"creates" yaml:"creates"`
}

func (s Summary) String() string {
	return fmt.Sprintf("Plan includes %d change(s): %d create, %d update, %d already satisfied",
		s.Creates+s.Updates, s.Creates, s.Updates, s.Satisfied)
}

// Summary tallies the plan.
func (p *Plan) Summary() Summary {
	var s Summary
	if p == nil {
		return s
	}
	for _, item := range p.Items {
		switch item.Action {
		case ActionSatisfied:
			s.Satisfied++
		case ActionUpdate:
			s.Updates++
		case ActionCreate:
			s.Creates++
		}
	}
	return s
}

// Converged reports whether every entry is already satisfied.
func (p *Plan) Converged() bool {
	s := p.Summary()
	return s.Creates == 0 && s.Updates == 0
}
