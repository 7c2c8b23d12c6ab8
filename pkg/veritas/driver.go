package veritas

import "context"

// EventPublisher accepts neutral events from drivers.
type EventPublisher interface {
	// Publish delivers one event to subscribed modules.
	Publish(ctx context.Context, ev *Event) error
}

// Driver connects one external platform to the kernel.
type Driver interface {
	// Name returns the driver instance identifier used in logs.
	Name() string
	// Start connects to the platform and blocks publishing events until ctx
	// is cancelled or a fatal error occurs.
	Start(ctx context.Context, sink EventPublisher) error
	// Shutdown releases platform resources.
	Shutdown(ctx context.Context) error
}
