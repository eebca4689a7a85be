package inference

import "strings"

const powerStatePrefix = "PowerState/"

// ClassifyState maps a two-part instance-view code such as
// "PowerState/running" to a PowerState. Only the part after the single "/"
// matters; missing or malformed codes degrade to Unknown. Present but unranked states keep their lower-cased name as the
// label so they can still be displayed.
func ClassifyState(code string) Classification {
	code = strings.TrimSpace(code)
	if code == "" {
		return Classification{State: PowerStateUnknown, Label: PowerStateUnknown.String()}
	}

	_, state, ok := strings.Cut(code, "/")
	if !ok || state == "" || strings.Contains(state, "/") {
		return Classification{State: PowerStateUnknown, Label: PowerStateUnknown.String()}
	}

	state = strings.ToLower(state)
	switch state {
	case "running":
		return Classification{State: PowerStateRunning, Label: state, Recognized: true}
	case "deallocated":
		return Classification{State: PowerStateDeallocated, Label: state, Recognized: true}
	default:
		return Classification{State: PowerStateUnknown, Label: state, Recognized: true}
	}
}

// StatusCode picks the power-state code out of an instance view's status
// list. Instance views usually carry a provisioning status first and the
// power state second, but the list can be short or reordered.
func StatusCode(codes []string) string {
	for _, c := range codes {
		if strings.HasPrefix(strings.ToLower(c), strings.ToLower(powerStatePrefix)) {
			return c
		}
	}
	if len(codes) > 1 {
		return codes[1]
	}
	return ""
}
