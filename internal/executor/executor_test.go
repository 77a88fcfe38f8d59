package executor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zonekeeper/internal/catalog"
	"zonekeeper/internal/planner"
	"zonekeeper/internal/records"
	"zonekeeper/internal/store"
)

const zone = "example.org"

type call struct {
	op   string
	id   string
	name string
}

type fakeWriter struct {
	calls  []call
	failOn map[string]error
	nextID int
}

func (f *fakeWriter) Create(_ context.Context, _ string, payload records.Payload) (records.Record, error) {
	f.calls = append(f.calls, call{op: "create", name: payload.Name()})
	if err := f.failOn[payload.Fields().Content]; err != nil {
		return records.Record{}, err
	}
	f.nextID++
	fields := payload.Fields()
	return records.Record{ID: fmt.Sprintf("new-%d", f.nextID), Type: fields.Type, Name: fields.Name, Content: fields.Content}, nil
}

func (f *fakeWriter) Update(_ context.Context, _ string, id string, payload records.Payload) (records.Record, error) {
	f.calls = append(f.calls, call{op: "update", id: id, name: payload.Name()})
	if err := f.failOn[id]; err != nil {
		return records.Record{}, err
	}
	fields := payload.Fields()
	return records.Record{ID: id, Type: fields.Type, Name: fields.Name, Content: fields.Content}, nil
}

func (f *fakeWriter) Delete(_ context.Context, _ string, id string) error {
	f.calls = append(f.calls, call{op: "delete", id: id})
	return f.failOn[id]
}

func testPlan(t *testing.T) *planner.Plan {
	t.Helper()
	cat := catalog.Catalog{Name: "test", Entries: []catalog.Entry{
		{Key: "a-1", Type: records.TypeA, Name: "@", Content: "10.0.0.1", Proxied: records.Bool(false), Policy: catalog.PolicyAdditive},
		{Key: "a-2", Type: records.TypeA, Name: "@", Content: "10.0.0.2", Proxied: records.Bool(false), Policy: catalog.PolicyAdditive},
		{Key: "a-3", Type: records.TypeA, Name: "@", Content: "10.0.0.3", Proxied: records.Bool(false), Policy: catalog.PolicyAdditive},
		{Key: "www", Type: records.TypeCNAME, Name: "www", Content: "{zone}", Proxied: records.Bool(false), Policy: catalog.PolicyExclusive},
	}}
	inventory := []records.Record{
		{ID: "a1", Type: records.TypeA, Name: zone, Content: "10.0.0.1", TTL: 1, Proxied: records.Bool(false)},
		{ID: "w1", Type: records.TypeCNAME, Name: "www." + zone, Content: "old.example.net", TTL: 1, Proxied: records.Bool(false)},
	}
	plan, err := planner.Build(zone, inventory, cat)
	require.NoError(t, err)
	return plan
}

func TestApplyWritesEveryChange(t *testing.T) {
	w := &fakeWriter{}
	report := New(w, logr.Discard()).Apply(context.Background(), "zone-1", testPlan(t), false)

	require.Len(t, report.Outcomes, 4)
	assert.Equal(t, StatusSkipped, report.Outcomes[0].Status)
	assert.Equal(t, StatusCreated, report.Outcomes[1].Status)
	assert.Equal(t, StatusCreated, report.Outcomes[2].Status)
	assert.Equal(t, StatusUpdated, report.Outcomes[3].Status)
	assert.Equal(t, "w1", report.Outcomes[3].Result.ID)
	assert.True(t, report.OK())
	assert.NoError(t, report.Err())
	assert.Equal(t, []call{
		{op: "create", name: zone},
		{op: "create", name: zone},
		{op: "update", id: "w1", name: "www." + zone},
	}, w.calls)
}

func TestApplyDryRunMakesNoCalls(t *testing.T) {
	w := &fakeWriter{}
	plan := testPlan(t)
	report := New(w, logr.Discard()).Apply(context.Background(), "zone-1", plan, true)

	assert.Empty(t, w.calls)
	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.Count(StatusSkipped))
	assert.Equal(t, 2, report.Count(StatusWouldCreate))
	assert.Equal(t, 1, report.Count(StatusWouldUpdate))
	for _, o := range report.Outcomes[1:] {
		require.NotNil(t, o.Payload, o.Label())
	}
	assert.Equal(t, "10.0.0.2", report.Outcomes[1].Payload.Content)
}

func TestApplyContinuesAfterFailure(t *testing.T) {
	providerErr := &store.ProviderError{Op: "create A example.org", StatusCode: http.StatusBadRequest, Messages: []string{"Record already exists."}}
	w := &fakeWriter{failOn: map[string]error{"10.0.0.2": providerErr}}
	report := New(w, logr.Discard()).Apply(context.Background(), "zone-1", testPlan(t), false)

	assert.Len(t, w.calls, 3, "later items still run")
	assert.Equal(t, StatusFailed, report.Outcomes[1].Status)
	assert.Contains(t, report.Outcomes[1].Error, "Record already exists.")
	assert.Equal(t, StatusCreated, report.Outcomes[2].Status)
	assert.Equal(t, StatusUpdated, report.Outcomes[3].Status)
	assert.False(t, report.OK())

	err := report.Err()
	var partial *PartialFailureError
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, 4, partial.Total)
	require.Len(t, partial.Failed, 1)
	assert.Contains(t, err.Error(), "A example.org")

	var perr *store.ProviderError
	require.True(t, errors.As(err, &perr), "provider error reachable through the partial failure")
	assert.Equal(t, http.StatusBadRequest, perr.StatusCode)
}

func TestApplyAfterCancellationFailsRemainingItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := &fakeWriter{}
	report := New(w, logr.Discard()).Apply(ctx, "zone-1", testPlan(t), false)

	assert.Empty(t, w.calls)
	assert.Equal(t, 3, report.Count(StatusFailed))
	assert.ErrorIs(t, report.Err(), context.Canceled)
}

func TestApplyNilPlan(t *testing.T) {
	report := New(&fakeWriter{}, logr.Discard()).Apply(context.Background(), "zone-1", nil, false)
	assert.Empty(t, report.Outcomes)
	assert.True(t, report.OK())
}

func TestDeleteRecords(t *testing.T) {
	recs := []records.Record{
		{ID: "r1", Type: records.TypeTXT, Name: zone, Content: `"stale"`},
		{ID: "r2", Type: records.TypeTXT, Name: zone, Content: `"locked"`},
	}
	w := &fakeWriter{failOn: map[string]error{"r2": errors.New("locked")}}
	exec := New(w, logr.Discard())

	preview := exec.Delete(context.Background(), zone, "zone-1", recs, true)
	assert.Empty(t, w.calls)
	assert.Equal(t, 2, preview.Count(StatusWouldDelete))

	report := exec.Delete(context.Background(), zone, "zone-1", recs, false)
	assert.Equal(t, StatusDeleted, report.Outcomes[0].Status)
	assert.Equal(t, StatusFailed, report.Outcomes[1].Status)
	assert.Error(t, report.Err())
}
