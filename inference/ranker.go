package inference

import (
	"fmt"
	"time"
)

// tierStep assigns tier to every day count at or above minDays, up to the
// next step.
type tierStep struct {
	minDays int
	tier    int
}

type severityTable struct {
	lineage Lineage
	steps   []tierStep
}

// Running VMs grow more alarming the longer they stay on.
var runningTable = severityTable{
	lineage: LineageRunning,
	steps:   []tierStep{{0, 0}, {1, 1}, {2, 2}, {3, 3}},
}

// Deallocated VMs grow staler the longer they stay off.
var deallocatedTable = severityTable{
	lineage: LineageDeallocated,
	steps:   []tierStep{{0, 0}, {14, 1}, {29, 2}},
}

func (t severityTable) severity(days int) Severity {
	tier := t.steps[0].tier
	for _, s := range t.steps {
		if days >= s.minDays {
			tier = s.tier
		}
	}
	return Severity{Lineage: t.lineage, Tier: tier}
}

func (t severityTable) worst() Severity {
	return Severity{Lineage: t.lineage, Tier: t.steps[len(t.steps)-1].tier}
}

func tableFor(state PowerState) (severityTable, bool) {
	switch state {
	case PowerStateRunning:
		return runningTable, true
	case PowerStateDeallocated:
		return deallocatedTable, true
	default:
		return severityTable{}, false
	}
}

// RankDuration turns a transition lookup into display text and a severity.
// It is pure for a given now.
func RankDuration(result TransitionResult, state PowerState, now time.Time) (RankedDuration, error) {
	table, ok := tableFor(state)
	if !ok {
		return RankedDuration{}, &InvalidStateError{Op: "rank duration", State: state}
	}

	if !result.Found {
		return RankedDuration{Text: NotFoundText, Severity: table.worst()}, nil
	}

	hours := int(now.Sub(result.Since) / time.Hour)
	if hours < 0 {
		// Clock skew between us and the log source.
		hours = 0
	}
	days := hours / 24

	return RankedDuration{
		Text:     FormatElapsed(hours),
		Severity: table.severity(days),
	}, nil
}

// FormatElapsed renders whole hours as "5 hours" or "2 days, 12 hours".
func FormatElapsed(hours int) string {
	days, rem := hours/24, hours%24
	if days == 0 {
		return fmt.Sprintf("%d hours", rem)
	}
	return fmt.Sprintf("%d days, %d hours", days, rem)
}
