// Package azure implements the Azure inventory source: subscription and VM
// enumeration, instance-view power status, and the activity-log querier
// used by the inference core.
package azure

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/monitor/armmonitor"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/yairfalse/azruntime/internal/telemetry"
)

// Config holds Azure provider configuration.
type Config struct {
	Credential    string
	Subscriptions []string
	// QueryRate and QueryBurst throttle activity-log page fetches across
	// all subscriptions. A zero rate disables throttling.
	QueryRate    float64
	QueryBurst   int
	QueryTimeout time.Duration
}

// Provider lists Azure VMs and serves their activity logs. It is safe for
// concurrent use.
type Provider struct {
	subsClient   SubscriptionsAPI
	newVMClient  func(subscriptionID string) (VirtualMachinesAPI, error)
	newLogClient func(subscriptionID string) (ActivityLogsAPI, error)

	allow        map[string]bool
	limiter      *rate.Limiter
	queryTimeout time.Duration

	logger *telemetry.Logger
	tracer trace.Tracer

	mu        sync.Mutex
	vmClients map[string]VirtualMachinesAPI
}

// New creates a provider using the credential mode in cfg.
func New(cfg Config) (*Provider, error) {
	cred, err := NewCredential(cfg.Credential)
	if err != nil {
		return nil, err
	}
	return NewWithCredential(cred, cfg)
}

// NewWithCredential creates a provider from an existing credential.
func NewWithCredential(cred azcore.TokenCredential, cfg Config) (*Provider, error) {
	subs, err := armsubscriptions.NewClient(cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create subscriptions client: %w", err)
	}

	p := newProvider(cfg)
	p.subsClient = subs
	p.newVMClient = func(subscriptionID string) (VirtualMachinesAPI, error) {
		c, err := armcompute.NewVirtualMachinesClient(subscriptionID, cred, nil)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	p.newLogClient = func(subscriptionID string) (ActivityLogsAPI, error) {
		c, err := armmonitor.NewActivityLogsClient(subscriptionID, cred, nil)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return p, nil
}

func newProvider(cfg Config) *Provider {
	p := &Provider{
		allow:        make(map[string]bool),
		queryTimeout: cfg.QueryTimeout,
		logger:       telemetry.NewLogger("azure"),
		tracer:       otel.Tracer("azruntime/azure"),
		vmClients:    make(map[string]VirtualMachinesAPI),
	}
	for _, id := range cfg.Subscriptions {
		p.allow[id] = true
	}
	if cfg.QueryRate > 0 {
		burst := cfg.QueryBurst
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.QueryRate), burst)
	}
	return p
}

func (p *Provider) vmClient(subscriptionID string) (VirtualMachinesAPI, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.vmClients[subscriptionID]; ok {
		return c, nil
	}
	c, err := p.newVMClient(subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("create compute client for %s: %w", subscriptionID, err)
	}
	p.vmClients[subscriptionID] = c
	return c, nil
}

func (p *Provider) allowed(subscriptionID string) bool {
	return len(p.allow) == 0 || p.allow[subscriptionID]
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// withTimeout bounds ctx by the configured per-query timeout, if any.
func (p *Provider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.queryTimeout)
}
