// Package filter narrows an inventory pass to selected resource groups and
// locations.
package filter

import (
	"strings"

	"github.com/yairfalse/azruntime/pkg/resource"
)

// Filter controls which virtual machines a pass inspects. Names are
// compared case-insensitively, as ARM does.
type Filter struct {
	includeGroups map[string]bool
	excludeGroups map[string]bool
	locations     map[string]bool
}

// New creates a new Filter from the provided configuration.
func New(includeGroups, excludeGroups, locations []string) *Filter {
	return &Filter{
		includeGroups: set(includeGroups),
		excludeGroups: set(excludeGroups),
		locations:     set(locations),
	}
}

func set(values []string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			m[strings.ToLower(v)] = true
		}
	}
	return m
}

// ShouldInclude returns true if the VM passes the filters.
func (f *Filter) ShouldInclude(vm resource.VirtualMachine) bool {
	rg := strings.ToLower(vm.ResourceGroup)

	// Include groups - VM must be in one of them
	if len(f.includeGroups) > 0 && !f.includeGroups[rg] {
		return false
	}

	// Exclude groups win over includes
	if f.excludeGroups[rg] {
		return false
	}

	if len(f.locations) > 0 && !f.locations[strings.ToLower(vm.Location)] {
		return false
	}

	return true
}

// FilterVMs returns only VMs that pass the filter.
func (f *Filter) FilterVMs(vms []resource.VirtualMachine) []resource.VirtualMachine {
	if f == nil || f.IsEmpty() {
		return vms
	}

	filtered := make([]resource.VirtualMachine, 0, len(vms))
	for _, vm := range vms {
		if f.ShouldInclude(vm) {
			filtered = append(filtered, vm)
		}
	}
	return filtered
}

// IsEmpty returns true if no filters are configured.
func (f *Filter) IsEmpty() bool {
	return len(f.includeGroups) == 0 && len(f.excludeGroups) == 0 && len(f.locations) == 0
}
