package azure

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/monitor/armmonitor"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/yairfalse/azruntime/pkg/activity"
	"github.com/yairfalse/azruntime/pkg/resource"
)

// Activity-log operation names that move a VM between power states.
const (
	OpStart      = "Microsoft.Compute/virtualMachines/start/action"
	OpWrite      = "Microsoft.Compute/virtualMachines/write"
	OpDeallocate = "Microsoft.Compute/virtualMachines/deallocate/action"
)

// Only the fields the inference core reads, to keep pages small.
const selectFields = "operationName,eventTimestamp,status"

// ActivityLog queries one subscription's activity log.
type ActivityLog struct {
	subscriptionID string
	client         ActivityLogsAPI
	limiter        *rate.Limiter
	timeout        time.Duration
	tracer         trace.Tracer
}

var _ activity.Querier = (*ActivityLog)(nil)

// ActivityLog returns the querier for a subscription.
func (p *Provider) ActivityLog(sub resource.Subscription) (activity.Querier, error) {
	client, err := p.newLogClient(sub.ID)
	if err != nil {
		return nil, fmt.Errorf("create activity log client for %s: %w", sub.ID, err)
	}
	return &ActivityLog{
		subscriptionID: sub.ID,
		client:         client,
		limiter:        p.limiter,
		timeout:        p.queryTimeout,
		tracer:         p.tracer,
	}, nil
}

// QueryActivityLogs returns the resource's events at or after since, in
// whatever order the service produced them.
func (a *ActivityLog) QueryActivityLogs(ctx context.Context, resourceID string, since time.Time) ([]activity.LogEvent, error) {
	ctx, span := a.tracer.Start(ctx, "azure.QueryActivityLogs",
		trace.WithAttributes(
			attribute.String("azure.subscription_id", a.subscriptionID),
			attribute.String("azure.resource_id", resourceID),
		))
	defer span.End()

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	pager := a.client.NewListPager(Filter(resourceID, since), &armmonitor.ActivityLogsClientListOptions{
		Select: to.Ptr(selectFields),
	})

	var events []activity.LogEvent
	for pager.More() {
		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				span.RecordError(err)
				return nil, fmt.Errorf("wait for query slot: %w", err)
			}
		}

		page, err := pager.NextPage(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "list activity logs failed")
			return nil, fmt.Errorf("list activity logs: %w", err)
		}

		for _, e := range page.Value {
			if ev, ok := convertEvent(e); ok {
				events = append(events, ev)
			}
		}
	}

	span.SetAttributes(attribute.Int("events", len(events)))
	return events, nil
}

// Filter builds the OData filter for a resource's events since a moment.
func Filter(resourceID string, since time.Time) string {
	return fmt.Sprintf("eventTimestamp ge '%s' and resourceUri eq '%s'",
		since.UTC().Format(time.RFC3339),
		strings.ReplaceAll(resourceID, "'", "''"))
}

// convertEvent normalizes an SDK event. Events without a timestamp carry no
// usable information and are dropped.
func convertEvent(e *armmonitor.EventData) (activity.LogEvent, bool) {
	if e == nil || e.EventTimestamp == nil {
		return activity.LogEvent{}, false
	}
	return activity.NewLogEvent(
		ParseOperation(localized(e.OperationName)),
		ParseOutcome(localized(e.Status)),
		*e.EventTimestamp,
	), true
}

func localized(s *armmonitor.LocalizableString) string {
	if s == nil {
		return ""
	}
	return str(s.Value)
}

// ParseOperation maps an activity-log operation name to an Operation.
func ParseOperation(name string) activity.Operation {
	switch {
	case strings.EqualFold(name, OpStart):
		return activity.OperationStarted
	case strings.EqualFold(name, OpWrite):
		return activity.OperationCreated
	case strings.EqualFold(name, OpDeallocate):
		return activity.OperationDeallocated
	default:
		return activity.OperationOther
	}
}

// ParseOutcome maps an activity-log status value to an Outcome.
func ParseOutcome(status string) activity.Outcome {
	switch {
	case strings.EqualFold(status, "Succeeded"):
		return activity.OutcomeSucceeded
	case strings.EqualFold(status, "Failed"):
		return activity.OutcomeFailed
	default:
		return activity.OutcomeOther
	}
}
