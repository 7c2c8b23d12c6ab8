package kernel

import (
	"fmt"
	"log/slog"
	"sync"

	"veritas/pkg/veritas"
)

// moduleRecord stores module metadata and subscriptions managed by the kernel.
type moduleRecord struct {
	name    string
	module  veritas.Module
	granted map[veritas.Capability]struct{}

	subMu   sync.Mutex
	cancels []func()
}

// addSubscription tracks cancel functions so module shutdown can close
// subscriptions deterministically.
func (m *moduleRecord) addSubscription(cancel func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.cancels = append(m.cancels, cancel)
}

// closeSubscriptions cancels all tracked subscriptions. It clears the internal
// slice first so repeated shutdown paths stay idempotent.
func (m *moduleRecord) closeSubscriptions() {
	m.subMu.Lock()
	cancels := m.cancels
	m.cancels = nil
	m.subMu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// moduleRuntime is the kernel-owned implementation of veritas.ModuleRuntime.
type moduleRuntime struct {
	moduleName string
	logger     *slog.Logger
	services   veritas.ServiceRegistry
	bus        *EventBus
	record     *moduleRecord
}

// Logger returns a logger scoped to the module.
func (r *moduleRuntime) Logger() *slog.Logger {
	return r.logger
}

// Subscribe registers a module-owned subscription on the event bus.
func (r *moduleRuntime) Subscribe(spec veritas.SubscriptionSpec) (func(), error) {
	if spec.Name == "" {
		spec.Name = fmt.Sprintf("%s-subscription", r.moduleName)
	}

	cancel, err := r.bus.Subscribe(spec)
	if err != nil {
		return nil, fmt.Errorf("module %s subscribe %s: %w", r.moduleName, spec.Name, err)
	}

	r.record.addSubscription(cancel)

	return cancel, nil
}

// Service resolves a shared service, enforcing capability grants for the
// well-known capability-gated services.
func (r *moduleRuntime) Service(name string) (any, error) {
	if gate, gated := capabilityGates[name]; gated {
		if _, ok := r.record.granted[gate]; !ok {
			return nil, fmt.Errorf(
				"module %s resolve service %s: capability %s not granted: %w",
				r.moduleName, name, gate, veritas.ErrServiceNotFound,
			)
		}
	}

	svc, err := r.services.Service(name)
	if err != nil {
		return nil, fmt.Errorf("module %s resolve service %s: %w", r.moduleName, name, err)
	}

	return svc, nil
}

// Granted reports whether the module was granted a capability.
func (r *moduleRuntime) Granted(c veritas.Capability) bool {
	_, ok := r.record.granted[c]
	return ok
}

// capabilityGates maps well-known services to the capability a module must
// declare before resolving them.
var capabilityGates = map[string]veritas.Capability{
	veritas.ServiceOutbound: veritas.CapabilityOutbound,
	veritas.ServiceLLM:      veritas.CapabilityLLM,
	veritas.ServiceSearch:   veritas.CapabilitySearch,
}

// grantCapabilities grants the subset of requested capabilities whose backing
// service is registered.
func grantCapabilities(services veritas.ServiceRegistry, requested []veritas.Capability) map[veritas.Capability]struct{} {
	granted := make(map[veritas.Capability]struct{}, len(requested))
	for _, c := range requested {
		serviceName, gated := capabilityServiceName(c)
		if !gated {
			granted[c] = struct{}{}
			continue
		}
		if _, err := services.Service(serviceName); err == nil {
			granted[c] = struct{}{}
		}
	}

	return granted
}

// capabilityServiceName returns the registry name backing a capability.
func capabilityServiceName(c veritas.Capability) (string, bool) {
	for name, gate := range capabilityGates {
		if gate == c {
			return name, true
		}
	}
	return "", false
}
