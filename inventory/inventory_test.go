package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/yairfalse/azruntime/inference"
	"github.com/yairfalse/azruntime/internal/filter"
	"github.com/yairfalse/azruntime/pkg/activity"
	"github.com/yairfalse/azruntime/pkg/resource"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func ago(h int) time.Time {
	return testNow.Add(-time.Duration(h) * time.Hour)
}

// fakeSource implements Source for testing. Maps are keyed by subscription
// id or VM id.
type fakeSource struct {
	subs      []resource.Subscription
	subsErr   error
	vms       map[string][]resource.VirtualMachine
	vmErr     map[string]error
	statuses  map[string][]string
	statusErr map[string]error
	events    map[string][]activity.LogEvent
	queryErr  map[string]error
	logErr    error

	mu      sync.Mutex
	queried []string
}

func (f *fakeSource) Subscriptions(context.Context) ([]resource.Subscription, error) {
	return f.subs, f.subsErr
}

func (f *fakeSource) VirtualMachines(_ context.Context, sub resource.Subscription) ([]resource.VirtualMachine, error) {
	if err := f.vmErr[sub.ID]; err != nil {
		return nil, err
	}
	return f.vms[sub.ID], nil
}

func (f *fakeSource) PowerStatuses(_ context.Context, vm resource.VirtualMachine) ([]string, error) {
	if err := f.statusErr[vm.ID]; err != nil {
		return nil, err
	}
	return f.statuses[vm.ID], nil
}

func (f *fakeSource) ActivityLog(resource.Subscription) (activity.Querier, error) {
	if f.logErr != nil {
		return nil, f.logErr
	}
	return activity.QuerierFunc(func(_ context.Context, id string, _ time.Time) ([]activity.LogEvent, error) {
		f.mu.Lock()
		f.queried = append(f.queried, id)
		f.mu.Unlock()
		if err := f.queryErr[id]; err != nil {
			return nil, err
		}
		return f.events[id], nil
	}), nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	passes  int
	vms     int
	queries int
	errors  int
}

func (r *fakeRecorder) RecordPass(context.Context, time.Duration, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passes++
}

func (r *fakeRecorder) RecordVM(context.Context, string, string, string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vms++
}

func (r *fakeRecorder) RecordQuery(_ context.Context, _ string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries++
	if err != nil {
		r.errors++
	}
}

var prod = resource.Subscription{ID: "sub-1", DisplayName: "Prod", State: "Enabled"}

func vm(name string) resource.VirtualMachine {
	return resource.VirtualMachine{
		ID:            "/subscriptions/sub-1/resourceGroups/rg/providers/Microsoft.Compute/virtualMachines/" + name,
		Name:          name,
		Subscription:  prod,
		ResourceGroup: "rg",
		Size:          "Standard_B2s",
		Location:      "westeurope",
	}
}

func newSource(vms ...resource.VirtualMachine) *fakeSource {
	return &fakeSource{
		subs:      []resource.Subscription{prod},
		vms:       map[string][]resource.VirtualMachine{prod.ID: vms},
		vmErr:     map[string]error{},
		statuses:  map[string][]string{},
		statusErr: map[string]error{},
		events:    map[string][]activity.LogEvent{},
		queryErr:  map[string]error{},
	}
}

func newTestAssembler(src Source, rec Recorder, opts Options) *Assembler {
	opts.Now = func() time.Time { return testNow }
	return NewAssembler(src, opts, rec)
}

func rowFor(t *testing.T, res *Result, name string) Row {
	t.Helper()
	for _, r := range res.Rows {
		if r.VM.Name == name {
			return r
		}
	}
	t.Fatalf("no row for %s", name)
	return Row{}
}

func TestRun_RunningWithMixedWindow(t *testing.T) {
	web := vm("web")
	src := newSource(web)
	src.statuses[web.ID] = []string{"ProvisioningState/succeeded", "PowerState/running"}
	src.events[web.ID] = []activity.LogEvent{
		activity.NewLogEvent(activity.OperationDeallocated, activity.OutcomeSucceeded, ago(40)),
		activity.NewLogEvent(activity.OperationStarted, activity.OutcomeSucceeded, ago(30)),
	}

	res, err := newTestAssembler(src, nil, Options{}).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)

	row := res.Rows[0]
	assert.Equal(t, "running", row.Status)
	assert.Equal(t, inference.PowerStateRunning, row.State)
	assert.Equal(t, "1 days, 6 hours", row.Duration.Text)
	assert.Equal(t, inference.Severity{Lineage: inference.LineageRunning, Tier: 1}, row.Duration.Severity)
	assert.NoError(t, row.Err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 1, res.Subscriptions)
}

func TestRun_DeallocatedEmptyWindow(t *testing.T) {
	db := vm("db")
	src := newSource(db)
	src.statuses[db.ID] = []string{"ProvisioningState/succeeded", "PowerState/deallocated"}

	res, err := newTestAssembler(src, nil, Options{}).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)

	row := res.Rows[0]
	assert.Equal(t, inference.NotFoundText, row.Duration.Text)
	assert.Equal(t, inference.Severity{Lineage: inference.LineageDeallocated, Tier: 2}, row.Duration.Severity)
}

func TestRun_UnknownSkipsLookup(t *testing.T) {
	ghost := vm("ghost")
	stopped := vm("stopped")
	src := newSource(ghost, stopped)
	src.statuses[ghost.ID] = nil
	src.statuses[stopped.ID] = []string{"ProvisioningState/succeeded", "PowerState/stopped"}

	res, err := newTestAssembler(src, nil, Options{}).Run(context.Background())
	require.NoError(t, err)

	g := rowFor(t, res, "ghost")
	assert.Equal(t, "Unknown", g.Status)
	assert.Equal(t, UnknownText, g.Duration.Text)
	assert.Equal(t, inference.SeverityNeutral, g.Duration.Severity)

	s := rowFor(t, res, "stopped")
	assert.Equal(t, "stopped", s.Status)
	assert.Equal(t, UnhandledText, s.Duration.Text)
	assert.Equal(t, inference.SeverityNeutral, s.Duration.Severity)

	assert.Empty(t, src.queried)
}

func TestRun_QueryErrorDegradesRow(t *testing.T) {
	bad, good := vm("bad"), vm("good")
	src := newSource(bad, good)
	src.statuses[bad.ID] = []string{"PowerState/running"}
	src.statuses[good.ID] = []string{"PowerState/running"}
	src.queryErr[bad.ID] = errors.New("throttled")
	src.events[good.ID] = []activity.LogEvent{
		activity.NewLogEvent(activity.OperationCreated, activity.OutcomeSucceeded, ago(5)),
	}
	rec := &fakeRecorder{}

	res, err := newTestAssembler(src, rec, Options{}).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, 1, res.Failed)

	b := rowFor(t, res, "bad")
	assert.Equal(t, ErrorText, b.Duration.Text)
	assert.Equal(t, inference.SeverityError, b.Duration.Severity)
	var qerr *inference.LogQueryError
	require.ErrorAs(t, b.Err, &qerr)
	assert.Equal(t, bad.ID, qerr.ResourceID)

	assert.Equal(t, "5 hours", rowFor(t, res, "good").Duration.Text)

	assert.Equal(t, 1, rec.passes)
	assert.Equal(t, 2, rec.vms)
	assert.Equal(t, 2, rec.queries)
	assert.Equal(t, 1, rec.errors)
}

func TestRun_InstanceViewErrorDegradesRow(t *testing.T) {
	web := vm("web")
	src := newSource(web)
	src.statusErr[web.ID] = errors.New("not found")

	res, err := newTestAssembler(src, nil, Options{}).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)

	row := res.Rows[0]
	assert.Equal(t, "Unknown", row.Status)
	assert.Equal(t, ErrorText, row.Duration.Text)
	assert.Equal(t, inference.SeverityError, row.Duration.Severity)
	assert.Error(t, row.Err)
	assert.Empty(t, src.queried)
}

func TestRun_ActivityLogUnavailableDegradesRows(t *testing.T) {
	web := vm("web")
	src := newSource(web)
	src.statuses[web.ID] = []string{"PowerState/deallocated"}
	src.logErr = errors.New("no monitor client")

	res, err := newTestAssembler(src, nil, Options{}).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, ErrorText, res.Rows[0].Duration.Text)
	assert.Equal(t, 1, res.Failed)
}

func TestRun_SubscriptionListingFails(t *testing.T) {
	src := newSource()
	src.subsErr = errors.New("unauthorized")

	_, err := newTestAssembler(src, nil, Options{}).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
}

func TestRun_SkipsSubscriptionWhenVMListingFails(t *testing.T) {
	web := vm("web")
	src := newSource(web)
	src.statuses[web.ID] = []string{"PowerState/running"}
	dev := resource.Subscription{ID: "sub-2", DisplayName: "Dev"}
	src.subs = append(src.subs, dev)
	src.vmErr[dev.ID] = errors.New("forbidden")

	res, err := newTestAssembler(src, nil, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"sub-2"}, res.SkippedSubscriptions)
	assert.Len(t, res.Rows, 1)
	assert.Equal(t, 2, res.Subscriptions)
}

func TestRun_Empty(t *testing.T) {
	res, err := newTestAssembler(newSource(), nil, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Zero(t, res.Failed)
}

func TestRun_RunningOnly(t *testing.T) {
	on, off := vm("on"), vm("off")
	src := newSource(on, off)
	src.statuses[on.ID] = []string{"PowerState/running"}
	src.statuses[off.ID] = []string{"PowerState/deallocated"}
	rec := &fakeRecorder{}

	res, err := newTestAssembler(src, rec, Options{RunningOnly: true}).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "on", res.Rows[0].VM.Name)
	assert.Equal(t, 2, rec.vms)
}

func TestRun_PreservesInventoryOrderUnderConcurrency(t *testing.T) {
	var vms []resource.VirtualMachine
	for _, n := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		vms = append(vms, vm(n))
	}
	src := newSource(vms...)
	for _, v := range vms {
		src.statuses[v.ID] = []string{"PowerState/running"}
	}

	var mu sync.Mutex
	var progress []int
	opts := Options{
		Concurrency: 3,
		OnProgress: func(p Progress) {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, len(vms), p.Total)
			progress = append(progress, p.Done)
		},
	}

	res, err := newTestAssembler(src, nil, opts).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Rows, len(vms))
	for i, r := range res.Rows {
		assert.Equal(t, vms[i].Name, r.VM.Name)
	}

	sort.Ints(progress)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, progress)
}

func TestRun_CancelledContext(t *testing.T) {
	web := vm("web")
	src := newSource(web)
	src.statuses[web.ID] = []string{"PowerState/running"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestAssembler(src, nil, Options{}).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRun_AppliesFilter(t *testing.T) {
	web, db := vm("web"), vm("db")
	db.ResourceGroup = "rg-db"
	src := newSource(web, db)
	src.statuses[web.ID] = []string{"PowerState/running"}
	src.statuses[db.ID] = []string{"PowerState/running"}

	opts := Options{Filter: filter.New(nil, []string{"RG-DB"}, nil)}
	res, err := newTestAssembler(src, nil, opts).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "web", res.Rows[0].VM.Name)
	assert.NotContains(t, src.queried, db.ID)
}

func TestRun_DegradedRowWarningCarriesRunAndTrace(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	bad := vm("bad")
	src := newSource(bad)
	src.statuses[bad.ID] = []string{"PowerState/running"}
	src.queryErr[bad.ID] = errors.New("throttled")

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	res, err := newTestAssembler(src, nil, Options{Tracer: tp.Tracer("test")}).Run(context.Background())
	require.NoError(t, err)

	var warning map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["message"] == "activity log query failed" {
			warning = entry
		}
	}
	require.NotNil(t, warning, "no degraded-row warning in %s", buf.String())
	assert.Equal(t, "warn", warning["level"])
	assert.Equal(t, res.RunID, warning["run_id"])
	assert.Equal(t, bad.ID, warning["vm"])
	assert.NotEmpty(t, warning["trace_id"])
	assert.NotEmpty(t, warning["span_id"])
}

func TestRun_InvalidStateFromRankerAbortsPass(t *testing.T) {
	web := vm("web")
	src := newSource(web)
	src.statuses[web.ID] = []string{"PowerState/running"}

	a := newTestAssembler(src, nil, Options{})
	a.rank = func(inference.TransitionResult, inference.PowerState, time.Time) (inference.RankedDuration, error) {
		return inference.RankedDuration{}, &inference.InvalidStateError{Op: "rank duration", State: inference.PowerStateUnknown}
	}

	res, err := a.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, res)
	var ise *inference.InvalidStateError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, "rank duration", ise.Op)
}

func TestRun_InvalidStateFromLookupAbortsPass(t *testing.T) {
	web, db := vm("web"), vm("db")
	src := newSource(web, db)
	src.statuses[web.ID] = []string{"PowerState/running"}
	src.statuses[db.ID] = []string{"PowerState/deallocated"}

	a := newTestAssembler(src, nil, Options{})
	a.find = func(_ context.Context, _ activity.Querier, id string, state inference.PowerState, _ time.Time) (inference.TransitionResult, error) {
		if id == db.ID {
			return inference.TransitionResult{}, &inference.InvalidStateError{Op: "find transition", State: state}
		}
		return inference.TransitionResult{}, nil
	}

	_, err := a.Run(context.Background())
	var ise *inference.InvalidStateError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, inference.PowerStateDeallocated, ise.State)
}
