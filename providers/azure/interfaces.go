package azure

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/monitor/armmonitor"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"
)

// SubscriptionsAPI is the subset of armsubscriptions.Client we use.
type SubscriptionsAPI interface {
	NewListPager(options *armsubscriptions.ClientListOptions) *runtime.Pager[armsubscriptions.ClientListResponse]
}

// VirtualMachinesAPI is the subset of armcompute.VirtualMachinesClient we use.
type VirtualMachinesAPI interface {
	NewListAllPager(options *armcompute.VirtualMachinesClientListAllOptions) *runtime.Pager[armcompute.VirtualMachinesClientListAllResponse]
	InstanceView(ctx context.Context, resourceGroupName string, vmName string, options *armcompute.VirtualMachinesClientInstanceViewOptions) (armcompute.VirtualMachinesClientInstanceViewResponse, error)
}

// ActivityLogsAPI is the subset of armmonitor.ActivityLogsClient we use.
type ActivityLogsAPI interface {
	NewListPager(filter string, options *armmonitor.ActivityLogsClientListOptions) *runtime.Pager[armmonitor.ActivityLogsClientListResponse]
}

// Compile-time checks that the SDK clients satisfy our seams.
var (
	_ SubscriptionsAPI   = (*armsubscriptions.Client)(nil)
	_ VirtualMachinesAPI = (*armcompute.VirtualMachinesClient)(nil)
	_ ActivityLogsAPI    = (*armmonitor.ActivityLogsClient)(nil)
)
