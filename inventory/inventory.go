// Package inventory walks every subscription's virtual machines and turns
// each one into a report row: power state, time in that state and the
// severity used to highlight it.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/yairfalse/azruntime/inference"
	"github.com/yairfalse/azruntime/internal/filter"
	"github.com/yairfalse/azruntime/internal/telemetry"
	"github.com/yairfalse/azruntime/pkg/activity"
	"github.com/yairfalse/azruntime/pkg/resource"
)

// Placeholder texts for rows that carry no duration.
const (
	// UnknownText is shown when the VM reported no usable power state.
	UnknownText = "Unknown"
	// UnhandledText is shown for power states that are reported but not
	// ranked, such as stopped or starting.
	UnhandledText = "???"
	// ErrorText is shown when the VM's state or history could not be read.
	ErrorText = "error"
)

const defaultConcurrency = 8

// Source is the cloud inventory a pass walks.
type Source interface {
	Subscriptions(ctx context.Context) ([]resource.Subscription, error)
	VirtualMachines(ctx context.Context, sub resource.Subscription) ([]resource.VirtualMachine, error)
	PowerStatuses(ctx context.Context, vm resource.VirtualMachine) ([]string, error)
	ActivityLog(sub resource.Subscription) (activity.Querier, error)
}

// Recorder receives pass metrics. *telemetry.Provider implements it.
type Recorder interface {
	RecordPass(ctx context.Context, d time.Duration, vms int)
	RecordVM(ctx context.Context, subscription, state, lineage string, tier int)
	RecordQuery(ctx context.Context, subscription string, d time.Duration, err error)
}

// Row is one VM in the report.
type Row struct {
	VM       resource.VirtualMachine  `json:"vm"`
	State    inference.PowerState     `json:"-"`
	Status   string                   `json:"status"`
	Duration inference.RankedDuration `json:"time_in_state"`
	// Err is set when the row was degraded to ErrorText.
	Err error `json:"-"`
}

// Progress is reported after each VM is assembled.
type Progress struct {
	Done  int
	Total int
	VM    string
}

// Options tunes an inventory pass.
type Options struct {
	// Concurrency bounds parallel VM lookups. Zero uses a default.
	Concurrency int
	// RunningOnly drops every row whose VM is not running.
	RunningOnly bool
	// Filter narrows the VMs inspected. Nil inspects everything.
	Filter *filter.Filter
	// Now is the clock; the whole pass is evaluated against one reading.
	Now func() time.Time
	// OnProgress, when set, is called from worker goroutines.
	OnProgress func(Progress)
	// Tracer defaults to the global tracer provider.
	Tracer trace.Tracer
}

// Result is the outcome of one pass.
type Result struct {
	RunID         string
	Rows          []Row
	Subscriptions int
	// Failed counts rows degraded to ErrorText.
	Failed int
	// SkippedSubscriptions lists subscriptions whose VMs could not be listed.
	SkippedSubscriptions []string
	Duration             time.Duration
}

// Assembler runs inventory passes.
type Assembler struct {
	source   Source
	opts     Options
	recorder Recorder
	logger   *telemetry.Logger
	tracer   trace.Tracer

	find func(ctx context.Context, q activity.Querier, vmID string, state inference.PowerState, now time.Time) (inference.TransitionResult, error)
	rank func(result inference.TransitionResult, state inference.PowerState, now time.Time) (inference.RankedDuration, error)
}

// NewAssembler creates an assembler. recorder may be nil.
func NewAssembler(source Source, opts Options, recorder Recorder) *Assembler {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("azruntime/inventory")
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Assembler{
		source:   source,
		opts:     opts,
		recorder: recorder,
		logger:   telemetry.NewLogger("inventory"),
		tracer:   opts.Tracer,
		find:     inference.FindTransition,
		rank:     inference.RankDuration,
	}
}

// target is a VM paired with its subscription's activity log.
type target struct {
	vm      resource.VirtualMachine
	querier activity.Querier
}

// Run performs one pass. Per-VM failures degrade that row only; a failure to
// list subscriptions or a contract violation in the inference core aborts the
// whole pass.
func (a *Assembler) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	now := a.opts.Now().UTC()
	runID := uuid.NewString()
	logger := a.logger.With("run_id", runID)

	ctx, span := a.tracer.Start(ctx, "inventory.Run",
		trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	subs, err := a.source.Subscriptions(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list subscriptions failed")
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	logger.WithContext(ctx).Info().Int("subscriptions", len(subs)).Msg("starting inventory pass")

	result := &Result{RunID: runID, Subscriptions: len(subs)}

	targets, skipped, err := a.collect(ctx, logger, subs)
	if err != nil {
		return nil, err
	}
	result.SkippedSubscriptions = skipped

	rows := make([]Row, len(targets))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Concurrency)
	for i, t := range targets {
		g.Go(func() error {
			row, err := a.assemble(gctx, logger, t, now)
			if err != nil {
				return err
			}
			rows[i] = row

			if a.opts.OnProgress != nil {
				a.opts.OnProgress(Progress{Done: int(done.Add(1)), Total: len(targets), VM: t.vm.Name})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "inventory pass aborted")
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, row := range rows {
		a.recorder.RecordVM(ctx, row.VM.Subscription.Name(), row.Status,
			row.Duration.Severity.Lineage.String(), row.Duration.Severity.Tier)
		if row.Err != nil {
			result.Failed++
		}
		if a.opts.RunningOnly && row.State != inference.PowerStateRunning {
			continue
		}
		result.Rows = append(result.Rows, row)
	}

	result.Duration = time.Since(start)
	a.recorder.RecordPass(ctx, result.Duration, len(targets))
	span.SetAttributes(
		attribute.Int("vms", len(targets)),
		attribute.Int("failed", result.Failed),
	)

	logger.WithContext(ctx).Info().
		Int("vms", len(targets)).
		Int("rows", len(result.Rows)).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("inventory pass complete")

	return result, nil
}

// collect lists VMs for every subscription in parallel, keeping the
// subscription order stable in the output.
func (a *Assembler) collect(ctx context.Context, logger *telemetry.Logger, subs []resource.Subscription) ([]target, []string, error) {
	perSub := make([][]target, len(subs))
	failed := make([]bool, len(subs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Concurrency)
	for i, sub := range subs {
		g.Go(func() error {
			vms, err := a.source.VirtualMachines(gctx, sub)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.WithContext(gctx).Warn().Err(err).Str("subscription", sub.ID).Msg("skipping subscription")
				failed[i] = true
				return nil
			}

			vms = a.opts.Filter.FilterVMs(vms)
			q := a.querier(gctx, logger, sub)
			ts := make([]target, 0, len(vms))
			for _, vm := range vms {
				ts = append(ts, target{vm: vm, querier: q})
			}
			perSub[i] = ts

			logger.WithContext(gctx).Debug().
				Str("subscription", sub.ID).
				Int("vms", len(vms)).
				Msg("listed virtual machines")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var targets []target
	var skipped []string
	for i, ts := range perSub {
		if failed[i] {
			skipped = append(skipped, subs[i].ID)
			continue
		}
		targets = append(targets, ts...)
	}
	return targets, skipped, nil
}

// querier returns the subscription's activity log, instrumented. When the
// client cannot be built every lookup fails, which degrades rows instead of
// the pass.
func (a *Assembler) querier(ctx context.Context, logger *telemetry.Logger, sub resource.Subscription) activity.Querier {
	q, err := a.source.ActivityLog(sub)
	if err != nil {
		logger.WithContext(ctx).Warn().Err(err).Str("subscription", sub.ID).Msg("activity log unavailable")
		q = activity.QuerierFunc(func(context.Context, string, time.Time) ([]activity.LogEvent, error) {
			return nil, err
		})
	}
	return &instrumentedQuerier{next: q, subscription: sub.Name(), recorder: a.recorder}
}

// assemble builds the row for one VM. It only returns an error for failures
// that must abort the pass.
func (a *Assembler) assemble(ctx context.Context, logger *telemetry.Logger, t target, now time.Time) (row Row, err error) {
	const spanName = "inventory.Assemble"
	ctx, span := a.tracer.Start(ctx, spanName,
		trace.WithAttributes(attribute.String("azure.resource_id", t.vm.ID)))
	defer span.End()

	logger.LogSpanStart(ctx, spanName, attribute.String("vm", t.vm.ID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "assemble failed")
		}
		logger.LogSpanEnd(ctx, spanName, err)
	}()

	row = Row{VM: t.vm}
	log := logger.WithContext(ctx)

	statuses, err := a.source.PowerStatuses(ctx, t.vm)
	if err != nil {
		log.Warn().Err(err).Str("vm", t.vm.ID).Msg("instance view failed")
		row.Status = inference.PowerStateUnknown.String()
		row.Duration = errorDuration()
		row.Err = err
		return row, nil
	}

	cls := inference.ClassifyState(inference.StatusCode(statuses))
	row.State = cls.State
	row.Status = cls.Label

	if !cls.State.Ranked() {
		text := UnknownText
		if cls.Recognized {
			text = UnhandledText
		}
		row.Duration = inference.RankedDuration{Text: text, Severity: inference.SeverityNeutral}
		return row, nil
	}

	found, err := a.find(ctx, t.querier, t.vm.ID, cls.State, now)
	if err != nil {
		var qerr *inference.LogQueryError
		if errors.As(err, &qerr) {
			log.Warn().Err(err).Str("vm", t.vm.ID).Msg("activity log query failed")
			row.Duration = errorDuration()
			row.Err = err
			return row, nil
		}
		return Row{}, err
	}

	ranked, err := a.rank(found, cls.State, now)
	if err != nil {
		return Row{}, err
	}
	row.Duration = ranked
	return row, nil
}

func errorDuration() inference.RankedDuration {
	return inference.RankedDuration{Text: ErrorText, Severity: inference.SeverityError}
}

type instrumentedQuerier struct {
	next         activity.Querier
	subscription string
	recorder     Recorder
}

func (q *instrumentedQuerier) QueryActivityLogs(ctx context.Context, resourceID string, since time.Time) ([]activity.LogEvent, error) {
	start := time.Now()
	events, err := q.next.QueryActivityLogs(ctx, resourceID, since)
	q.recorder.RecordQuery(ctx, q.subscription, time.Since(start), err)
	return events, err
}

type nopRecorder struct{}

func (nopRecorder) RecordPass(context.Context, time.Duration, int) {}
func (nopRecorder) RecordVM(context.Context, string, string, string, int) {}
func (nopRecorder) RecordQuery(context.Context, string, time.Duration, error) {}
