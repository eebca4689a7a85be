// Package inference deduces how long a virtual machine has been in its
// current power state from a bounded, unordered activity-log window, and
// ranks that duration into a presentation severity.
package inference

import "time"

// LookbackWindow is how far back the activity log is searched. It stays one
// day inside the provider's 90 day retention so the query never trips the
// retention validation at the boundary.
const LookbackWindow = 89 * 24 * time.Hour

// LookbackDays is LookbackWindow expressed in whole days.
const LookbackDays = 89

// NotFoundText is rendered when no qualifying transition exists in the window.
const NotFoundText = "more than 89 observable days"

// PowerState is the coarse liveness of a VM.
type PowerState int

const (
	PowerStateUnknown PowerState = iota
	PowerStateRunning
	PowerStateDeallocated
)

func (s PowerState) String() string {
	switch s {
	case PowerStateRunning:
		return "running"
	case PowerStateDeallocated:
		return "deallocated"
	default:
		return "Unknown"
	}
}

// Ranked reports whether the state has a severity table.
func (s PowerState) Ranked() bool {
	return s == PowerStateRunning || s == PowerStateDeallocated
}

// Classification is the outcome of classifying a raw status code. Label is
// what gets displayed; for states the classifier does not rank it carries the
// provider's own word so new states still show up legibly.
type Classification struct {
	State PowerState
	Label string
	// Recognized is false when no status code was available at all.
	Recognized bool
}

// TransitionResult is the most recent moment the VM entered its state.
// Since is only meaningful when Found is true.
type TransitionResult struct {
	Found bool
	Since time.Time
}

// Lineage selects the severity table a tier belongs to.
type Lineage int

const (
	LineageNeutral Lineage = iota
	LineageRunning
	LineageDeallocated
	LineageError
)

func (l Lineage) String() string {
	switch l {
	case LineageRunning:
		return "running"
	case LineageDeallocated:
		return "deallocated"
	case LineageError:
		return "error"
	default:
		return "neutral"
	}
}

// Severity is an ordered presentation bucket. Higher tiers are more urgent
// within a lineage; tiers are not comparable across lineages.
type Severity struct {
	Lineage Lineage `json:"lineage"`
	Tier    int     `json:"tier"`
}

var (
	// SeverityNeutral marks rows whose state could not be ranked.
	SeverityNeutral = Severity{Lineage: LineageNeutral}
	// SeverityError marks rows whose activity-log lookup failed.
	SeverityError = Severity{Lineage: LineageError}
)

// RankedDuration is the displayable time-in-state and its severity.
type RankedDuration struct {
	Text     string   `json:"text"`
	Severity Severity `json:"severity"`
}
