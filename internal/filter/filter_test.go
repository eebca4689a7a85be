package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yairfalse/azruntime/pkg/resource"
)

func vm(name, rg, location string) resource.VirtualMachine {
	return resource.VirtualMachine{Name: name, ResourceGroup: rg, Location: location}
}

func names(vms []resource.VirtualMachine) []string {
	out := make([]string, 0, len(vms))
	for _, v := range vms {
		out = append(out, v.Name)
	}
	return out
}

func TestShouldInclude_NoFilters(t *testing.T) {
	f := New(nil, nil, nil)
	assert.True(t, f.IsEmpty())
	assert.True(t, f.ShouldInclude(vm("a", "rg-web", "westeurope")))
}

func TestShouldInclude_IncludeGroups(t *testing.T) {
	f := New([]string{"RG-Web"}, nil, nil)
	assert.True(t, f.ShouldInclude(vm("a", "rg-web", "westeurope")))
	assert.False(t, f.ShouldInclude(vm("b", "rg-db", "westeurope")))
}

func TestShouldInclude_ExcludeWinsOverInclude(t *testing.T) {
	f := New([]string{"rg-web"}, []string{"rg-web"}, nil)
	assert.False(t, f.ShouldInclude(vm("a", "rg-web", "westeurope")))
}

func TestShouldInclude_Locations(t *testing.T) {
	f := New(nil, nil, []string{"eastus", " WestEurope "})
	assert.True(t, f.ShouldInclude(vm("a", "rg", "westeurope")))
	assert.True(t, f.ShouldInclude(vm("b", "rg", "EastUS")))
	assert.False(t, f.ShouldInclude(vm("c", "rg", "japaneast")))
}

func TestNew_IgnoresBlankValues(t *testing.T) {
	f := New([]string{"", "  "}, nil, []string{""})
	assert.True(t, f.IsEmpty())
}

func TestFilterVMs(t *testing.T) {
	vms := []resource.VirtualMachine{
		vm("web-1", "rg-web", "westeurope"),
		vm("db-1", "rg-db", "westeurope"),
		vm("web-2", "rg-web", "eastus"),
	}

	f := New([]string{"rg-web"}, nil, []string{"westeurope"})
	assert.Equal(t, []string{"web-1"}, names(f.FilterVMs(vms)))

	f = New(nil, []string{"rg-db"}, nil)
	assert.Equal(t, []string{"web-1", "web-2"}, names(f.FilterVMs(vms)))
}

func TestFilterVMs_NilOrEmptyPassesThrough(t *testing.T) {
	vms := []resource.VirtualMachine{vm("a", "rg", "westeurope")}

	var f *Filter
	assert.Equal(t, vms, f.FilterVMs(vms))
	assert.Equal(t, vms, New(nil, nil, nil).FilterVMs(vms))
}
