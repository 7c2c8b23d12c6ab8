package kernel

import (
	"fmt"
	"sync"

	"veritas/pkg/veritas"
)

// ServiceRegistry is the default in-memory service registry implementation.
type ServiceRegistry struct {
	mu       sync.RWMutex
	services map[string]any
}

// NewServiceRegistry creates an empty service registry.
func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{
		services: make(map[string]any),
	}
}

// Register registers a named service singleton.
func (r *ServiceRegistry) Register(name string, svc any) error {
	if name == "" {
		return fmt.Errorf("register service: empty name")
	}
	if svc == nil {
		return fmt.Errorf("register service %s: nil service", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.services[name]; exists {
		return fmt.Errorf("register service %s: %w", name, veritas.ErrServiceExists)
	}

	r.services[name] = svc

	return nil
}

// Service returns a registered named service.
func (r *ServiceRegistry) Service(name string) (any, error) {
	if name == "" {
		return nil, fmt.Errorf("resolve service: empty name")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	svc, exists := r.services[name]
	if !exists {
		return nil, fmt.Errorf("resolve service %s: %w", name, veritas.ErrServiceNotFound)
	}

	return svc, nil
}
