package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyState(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		wantState  PowerState
		wantLabel  string
		recognized bool
	}{
		{"running", "PowerState/running", PowerStateRunning, "running", true},
		{"running upper", "PowerState/RUNNING", PowerStateRunning, "running", true},
		{"running mixed category", "anything/Running", PowerStateRunning, "running", true},
		{"deallocated", "PowerState/deallocated", PowerStateDeallocated, "deallocated", true},
		{"deallocated mixed", "PowerState/DeAllocated", PowerStateDeallocated, "deallocated", true},
		{"empty", "", PowerStateUnknown, "Unknown", false},
		{"whitespace", "   ", PowerStateUnknown, "Unknown", false},
		{"no separator", "running", PowerStateUnknown, "Unknown", false},
		{"empty state", "PowerState/", PowerStateUnknown, "Unknown", false},
		{"empty category running", "/running", PowerStateRunning, "running", true},
		{"empty category deallocated", "/deallocated", PowerStateDeallocated, "deallocated", true},
		{"three parts", "PowerState/running/extra", PowerStateUnknown, "Unknown", false},
		{"stopped surfaces as-is", "PowerState/stopped", PowerStateUnknown, "stopped", true},
		{"deallocating surfaces as-is", "PowerState/Deallocating", PowerStateUnknown, "deallocating", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyState(tt.code)
			assert.Equal(t, tt.wantState, got.State)
			assert.Equal(t, tt.wantLabel, got.Label)
			assert.Equal(t, tt.recognized, got.Recognized)
		})
	}
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, "PowerState/running",
		StatusCode([]string{"ProvisioningState/succeeded", "PowerState/running"}))
	assert.Equal(t, "PowerState/deallocated",
		StatusCode([]string{"PowerState/deallocated", "ProvisioningState/succeeded"}))
	assert.Equal(t, "Other/thing",
		StatusCode([]string{"ProvisioningState/succeeded", "Other/thing"}))
	assert.Equal(t, "", StatusCode([]string{"ProvisioningState/failed"}))
	assert.Equal(t, "", StatusCode(nil))
}

func TestPowerState_Ranked(t *testing.T) {
	assert.True(t, PowerStateRunning.Ranked())
	assert.True(t, PowerStateDeallocated.Ranked())
	assert.False(t, PowerStateUnknown.Ranked())
}
