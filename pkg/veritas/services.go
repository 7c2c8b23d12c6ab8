package veritas

// Well-known service registry names.
const (
	// ServiceOutbound is the outbound message dispatcher.
	ServiceOutbound = "outbound"
	// ServiceLLM is the language model provider registry.
	ServiceLLM = "llm"
	// ServiceSearch is the web search client.
	ServiceSearch = "search"
)

// ServiceRegistry stores shared services that modules resolve by name.
type ServiceRegistry interface {
	// Register stores a service under a unique name.
	Register(name string, svc any) error
	// Service returns the service registered under name.
	Service(name string) (any, error)
}

// ServiceSource is anything that can resolve a service by name. Both
// ServiceRegistry and ModuleRuntime satisfy it.
type ServiceSource interface {
	Service(name string) (any, error)
}

// ResolveService looks up name in the source and asserts its type.
func ResolveService[T any](src ServiceSource, name string) (T, error) {
	var zero T
	svc, err := src.Service(name)
	if err != nil {
		return zero, err
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, ErrServiceType
	}
	return typed, nil
}
