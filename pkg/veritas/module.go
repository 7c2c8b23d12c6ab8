package veritas

import (
	"context"
	"fmt"
	"log/slog"
)

// Capability names an optional facility a module wants from the runtime.
type Capability string

const (
	// CapabilityOutbound lets a module send messages through drivers.
	CapabilityOutbound Capability = "outbound"
	// CapabilityLLM lets a module call language model providers.
	CapabilityLLM Capability = "llm"
	// CapabilitySearch lets a module call the web search service.
	CapabilitySearch Capability = "search"
)

// ModuleInfo describes a module for registration and logging.
type ModuleInfo struct {
	// Name is the unique module identifier.
	Name string
	// Description is a short human-readable summary.
	Description string
}

// ModuleRuntime is the narrow surface a module receives from the kernel.
type ModuleRuntime interface {
	// Logger returns a logger scoped to the module.
	Logger() *slog.Logger
	// Subscribe attaches the module to the event bus.
	Subscribe(spec SubscriptionSpec) (cancel func(), err error)
	// Service resolves a shared service by name.
	Service(name string) (any, error)
	// Granted reports whether a requested capability was granted.
	Granted(c Capability) bool
}

// Module is a pluggable unit of bot behavior.
type Module interface {
	// Info returns registration metadata.
	Info() ModuleInfo
	// Capabilities lists the facilities the module wants. The kernel grants
	// the subset it can provide.
	Capabilities() []Capability
	// OnRegister wires subscriptions and resolves services. Returning an
	// error aborts startup.
	OnRegister(ctx context.Context, rt ModuleRuntime) error
	// OnStart is called after every module registered successfully.
	OnStart(ctx context.Context) error
	// OnShutdown releases module resources.
	OnShutdown(ctx context.Context) error
}

// ValidateModuleInfo checks registration metadata.
func ValidateModuleInfo(info ModuleInfo) error {
	if info.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidModule)
	}
	return nil
}
