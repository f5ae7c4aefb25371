package adapters

import (
	"fmt"
	"sort"
	"strings"

	"github.com/smallbiznis/lingohub/internal/payment/domain"
)

// Registry holds every checkout provider built into the binary. A deployment
// settles through exactly one of them, chosen by config; the rest stay known
// so that stray webhooks can be told apart from garbage.
type Registry struct {
	factories map[string]domain.GatewayFactory
}

func NewRegistry(factories ...domain.GatewayFactory) *Registry {
	registry := &Registry{factories: make(map[string]domain.GatewayFactory, len(factories))}
	for _, factory := range factories {
		if factory == nil {
			continue
		}
		if name := domain.NormalizeProvider(factory.Provider()); name != "" {
			registry.factories[name] = factory
		}
	}
	return registry
}

// Providers lists the registered provider names in sorted order.
func (r *Registry) Providers() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) ProviderExists(provider string) bool {
	if r == nil {
		return false
	}
	_, ok := r.factories[domain.NormalizeProvider(provider)]
	return ok
}

// CheckWebhook decides whether a delivery addressed to provider may be
// processed by a deployment settling through active.
func (r *Registry) CheckWebhook(provider, active string) error {
	provider = domain.NormalizeProvider(provider)
	if provider == "" || !r.ProviderExists(provider) {
		return domain.ErrProviderNotFound
	}
	if provider != domain.NormalizeProvider(active) {
		return fmt.Errorf("%w: %s (settling through %s)", domain.ErrProviderInactive, provider, domain.NormalizeProvider(active))
	}
	return nil
}

// NewGateway opens the checkout gateway for the configured provider.
func (r *Registry) NewGateway(provider string, cfg domain.GatewayConfig) (domain.Gateway, error) {
	factory, ok := r.lookup(provider)
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)", domain.ErrProviderNotFound, provider, strings.Join(r.Providers(), ", "))
	}
	return factory.NewGateway(cfg)
}

func (r *Registry) lookup(provider string) (domain.GatewayFactory, bool) {
	if r == nil {
		return nil, false
	}
	factory, ok := r.factories[domain.NormalizeProvider(provider)]
	return factory, ok
}
