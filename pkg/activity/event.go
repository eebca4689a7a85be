// Package activity defines the normalized activity-log model shared by the
// inference core and the cloud adapters that feed it.
package activity

import (
	"context"
	"time"
)

// Operation is the kind of control-plane operation an event records.
type Operation int

const (
	OperationOther Operation = iota
	OperationStarted
	OperationCreated
	OperationDeallocated
)

func (o Operation) String() string {
	switch o {
	case OperationStarted:
		return "Started"
	case OperationCreated:
		return "Created"
	case OperationDeallocated:
		return "Deallocated"
	default:
		return "Other"
	}
}

// Outcome is the final status of an operation.
type Outcome int

const (
	OutcomeOther Outcome = iota
	OutcomeSucceeded
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "Succeeded"
	case OutcomeFailed:
		return "Failed"
	default:
		return "Other"
	}
}

// LogEvent is one activity-log record reduced to the fields the inference
// core needs. It is a value type; callers never mutate a window in place.
type LogEvent struct {
	Operation Operation `json:"operation"`
	Outcome   Outcome   `json:"outcome"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLogEvent builds an event with the timestamp normalized to UTC.
func NewLogEvent(op Operation, outcome Outcome, ts time.Time) LogEvent {
	return LogEvent{Operation: op, Outcome: outcome, Timestamp: ts.UTC()}
}

// Succeeded reports whether the operation completed successfully.
func (e LogEvent) Succeeded() bool {
	return e.Outcome == OutcomeSucceeded
}

// Querier fetches the activity-log window for a single resource.
// Implementations must be safe for concurrent use. The returned events
// carry no ordering guarantee.
type Querier interface {
	QueryActivityLogs(ctx context.Context, resourceID string, since time.Time) ([]LogEvent, error)
}

// QuerierFunc adapts a plain function to the Querier interface.
type QuerierFunc func(ctx context.Context, resourceID string, since time.Time) ([]LogEvent, error)

// QueryActivityLogs calls f.
func (f QuerierFunc) QueryActivityLogs(ctx context.Context, resourceID string, since time.Time) ([]LogEvent, error) {
	return f(ctx, resourceID, since)
}
