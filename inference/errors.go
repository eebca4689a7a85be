package inference

import "fmt"

// LogQueryError wraps a failure of the activity-log collaborator for one VM.
// It is not retried; callers decide how to surface the row.
type LogQueryError struct {
	ResourceID string
	Err        error
}

func (e *LogQueryError) Error() string {
	return fmt.Sprintf("query activity log for %s: %v", e.ResourceID, e.Err)
}

func (e *LogQueryError) Unwrap() error {
	return e.Err
}

// InvalidStateError means a component was asked to work on a state it has no
// table for. It signals a caller bug and must not be swallowed.
type InvalidStateError struct {
	Op    string
	State PowerState
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: invalid power state %q (want running or deallocated)", e.Op, e.State)
}
