// Package resource defines the cloud inventory model for azruntime.
package resource

import "strings"

// Subscription is a billing/access boundary that owns virtual machines.
type Subscription struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	State       string `json:"state"`
}

// Name returns the display name, falling back to the id.
func (s Subscription) Name() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.ID
}

// VirtualMachine holds the live attributes of one VM.
type VirtualMachine struct {
	ID            string       `json:"id"` // Full ARM resource id
	Name          string       `json:"name"`
	Subscription  Subscription `json:"subscription"`
	ResourceGroup string       `json:"resource_group"`
	Size          string       `json:"size"`
	Location      string       `json:"location"`
}

// ResourceGroupFromID extracts the resource group from an ARM resource id
// such as /subscriptions/<sub>/resourceGroups/<rg>/providers/.... The group
// is lower-cased because ARM treats it case-insensitively and ids come back
// in mixed case.
func ResourceGroupFromID(id string) string {
	parts := strings.Split(strings.Trim(id, "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		if strings.EqualFold(parts[i], "resourceGroups") {
			return strings.ToLower(parts[i+1])
		}
	}
	return ""
}
