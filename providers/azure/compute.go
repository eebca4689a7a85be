package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/azruntime/pkg/resource"
)

// VirtualMachines lists every VM in the subscription.
func (p *Provider) VirtualMachines(ctx context.Context, sub resource.Subscription) ([]resource.VirtualMachine, error) {
	ctx, span := p.tracer.Start(ctx, "azure.ListVirtualMachines",
		trace.WithAttributes(attribute.String("azure.subscription_id", sub.ID)))
	defer span.End()

	client, err := p.vmClient(sub.ID)
	if err != nil {
		return nil, err
	}

	var vms []resource.VirtualMachine
	pager := client.NewListAllPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "list virtual machines failed")
			return nil, fmt.Errorf("list virtual machines in %s: %w", sub.ID, err)
		}
		for _, vm := range page.Value {
			if vm == nil {
				continue
			}
			vms = append(vms, convertVM(sub, vm))
		}
	}

	span.SetAttributes(attribute.Int("vms", len(vms)))
	return vms, nil
}

// PowerStatuses returns the status codes from the VM's instance view, e.g.
// ["ProvisioningState/succeeded", "PowerState/running"]. The list can be
// empty for VMs that failed to deploy.
func (p *Provider) PowerStatuses(ctx context.Context, vm resource.VirtualMachine) ([]string, error) {
	ctx, span := p.tracer.Start(ctx, "azure.InstanceView",
		trace.WithAttributes(attribute.String("azure.resource_id", vm.ID)))
	defer span.End()

	client, err := p.vmClient(vm.Subscription.ID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	resp, err := client.InstanceView(ctx, vm.ResourceGroup, vm.Name, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "instance view failed")
		return nil, fmt.Errorf("instance view for %s: %w", vm.Name, err)
	}

	statuses := make([]string, 0, len(resp.Statuses))
	for _, s := range resp.Statuses {
		if s == nil || s.Code == nil {
			continue
		}
		statuses = append(statuses, *s.Code)
	}
	return statuses, nil
}

func convertVM(sub resource.Subscription, vm *armcompute.VirtualMachine) resource.VirtualMachine {
	id := str(vm.ID)
	r := resource.VirtualMachine{
		ID:            id,
		Name:          str(vm.Name),
		Subscription:  sub,
		ResourceGroup: resource.ResourceGroupFromID(id),
		Location:      str(vm.Location),
	}
	if vm.Properties != nil && vm.Properties.HardwareProfile != nil && vm.Properties.HardwareProfile.VMSize != nil {
		r.Size = string(*vm.Properties.HardwareProfile.VMSize)
	}
	return r
}
