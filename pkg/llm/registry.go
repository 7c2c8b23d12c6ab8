package llm

import (
	"fmt"
	"strings"

	"veritas/pkg/veritas"
)

// Registry resolves configured LLM providers by stable name.
//
// The provider map is copied on construction and remains immutable afterward,
// so Provider is concurrency-safe for parallel module workers.
type Registry struct {
	providers map[string]veritas.LLMProvider
}

// NewRegistry constructs one immutable LLM provider registry.
func NewRegistry(providers ...veritas.LLMProvider) (*Registry, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("new llm provider registry: no providers")
	}

	byName := make(map[string]veritas.LLMProvider, len(providers))
	for _, provider := range providers {
		if provider == nil {
			return nil, fmt.Errorf("new llm provider registry: nil provider")
		}
		name := strings.TrimSpace(provider.Name())
		if name == "" {
			return nil, fmt.Errorf("new llm provider registry: empty provider name")
		}
		if _, exists := byName[name]; exists {
			return nil, fmt.Errorf("new llm provider registry: duplicate provider name %s", name)
		}
		byName[name] = provider
	}

	return &Registry{providers: byName}, nil
}

// Provider returns one configured provider by name.
func (r *Registry) Provider(name string) (veritas.LLMProvider, error) {
	if r == nil {
		return nil, fmt.Errorf("resolve llm provider: nil registry")
	}

	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, fmt.Errorf("resolve llm provider: %w: empty provider name", veritas.ErrLLMProviderNotFound)
	}

	resolved, exists := r.providers[trimmed]
	if !exists {
		return nil, fmt.Errorf("resolve llm provider: %w: %s", veritas.ErrLLMProviderNotFound, trimmed)
	}

	return resolved, nil
}

var _ veritas.LLMRegistry = (*Registry)(nil)
