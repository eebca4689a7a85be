package inference

import (
	"context"
	"time"

	"github.com/yairfalse/azruntime/pkg/activity"
)

// FindTransition looks up the activity log for vmID and returns the latest
// successful event that put the VM into state. The window carries no
// ordering guarantee, so the maximum timestamp is taken explicitly.
//
// An empty window or one without a qualifying event is not an error; it means
// the VM has been in its state longer than the log can show.
func FindTransition(ctx context.Context, q activity.Querier, vmID string, state PowerState, now time.Time) (TransitionResult, error) {
	if !state.Ranked() {
		return TransitionResult{}, &InvalidStateError{Op: "find transition", State: state}
	}

	since := now.Add(-LookbackWindow)
	events, err := q.QueryActivityLogs(ctx, vmID, since)
	if err != nil {
		return TransitionResult{}, &LogQueryError{ResourceID: vmID, Err: err}
	}

	return LatestTransition(events, state, since), nil
}

// LatestTransition scans a window for the newest event explaining entry into
// state. Events older than since are outside the window and ignored.
func LatestTransition(events []activity.LogEvent, state PowerState, since time.Time) TransitionResult {
	var result TransitionResult
	for _, ev := range events {
		if !entersState(ev, state) || ev.Timestamp.Before(since) {
			continue
		}
		if !result.Found || ev.Timestamp.After(result.Since) {
			result = TransitionResult{Found: true, Since: ev.Timestamp}
		}
	}
	return result
}

func entersState(ev activity.LogEvent, state PowerState) bool {
	if !ev.Succeeded() {
		return false
	}
	switch state {
	case PowerStateRunning:
		return ev.Operation == activity.OperationStarted || ev.Operation == activity.OperationCreated
	case PowerStateDeallocated:
		return ev.Operation == activity.OperationDeallocated
	default:
		return false
	}
}
