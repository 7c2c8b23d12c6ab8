package veritas

import "errors"

// Protocol-level sentinel errors shared by the kernel, drivers, and modules.
var (
	// ErrInvalidEvent reports a malformed neutral event envelope.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrInvalidSubscription reports a malformed bus subscription spec.
	ErrInvalidSubscription = errors.New("invalid subscription")
	// ErrInvalidOutbound reports a malformed outbound request.
	ErrInvalidOutbound = errors.New("invalid outbound request")
	// ErrInvalidModule reports a module that fails registration checks.
	ErrInvalidModule = errors.New("invalid module")
	// ErrDuplicateModule reports a second registration under one module name.
	ErrDuplicateModule = errors.New("duplicate module")
	// ErrServiceNotFound reports a missing entry in the service registry.
	ErrServiceNotFound = errors.New("service not found")
	// ErrServiceExists reports a second registration under one service name.
	ErrServiceExists = errors.New("service already registered")
	// ErrServiceType reports a registry entry of an unexpected concrete type.
	ErrServiceType = errors.New("service has unexpected type")
	// ErrBusClosed reports publish or subscribe on a stopped event bus.
	ErrBusClosed = errors.New("event bus closed")
	// ErrQueueFull reports a publish rejected by backpressure policy.
	ErrQueueFull = errors.New("subscriber queue full")
)
