package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yairfalse/azruntime/pkg/resource"
)

// Subscriptions returns the subscriptions visible to the credential,
// restricted to the configured allow-list. Disabled and deleted
// subscriptions are skipped since their resources cannot be read.
func (p *Provider) Subscriptions(ctx context.Context) ([]resource.Subscription, error) {
	ctx, span := p.tracer.Start(ctx, "azure.ListSubscriptions")
	defer span.End()

	var subs []resource.Subscription
	seen := make(map[string]bool)

	pager := p.subsClient.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "list subscriptions failed")
			return nil, fmt.Errorf("list subscriptions: %w", err)
		}

		for _, s := range page.Value {
			if s == nil {
				continue
			}
			sub := convertSubscription(s)
			if sub.ID == "" || !p.allowed(sub.ID) {
				continue
			}
			seen[sub.ID] = true
			if !usable(sub.State) {
				p.logger.Debug().
					Str("subscription", sub.ID).
					Str("state", sub.State).
					Msg("skipping unusable subscription")
				continue
			}
			subs = append(subs, sub)
		}
	}

	for id := range p.allow {
		if !seen[id] {
			p.logger.Warn().Str("subscription", id).Msg("configured subscription not visible to credential")
		}
	}

	span.SetAttributes(attribute.Int("subscriptions", len(subs)))
	return subs, nil
}

func convertSubscription(s *armsubscriptions.Subscription) resource.Subscription {
	sub := resource.Subscription{
		ID:          str(s.SubscriptionID),
		DisplayName: str(s.DisplayName),
	}
	if s.State != nil {
		sub.State = string(*s.State)
	}
	return sub
}

func usable(state string) bool {
	switch armsubscriptions.SubscriptionState(state) {
	case armsubscriptions.SubscriptionStateDisabled, armsubscriptions.SubscriptionStateDeleted:
		return false
	default:
		return true
	}
}
