package veritas

import (
	"context"
	"fmt"
	"time"
)

// OverflowPolicy selects how a subscriber queue behaves when full.
type OverflowPolicy string

const (
	// OverflowDropNewest rejects the incoming event when the queue is full.
	OverflowDropNewest OverflowPolicy = "drop_newest"
	// OverflowDropOldest evicts the oldest queued event to admit the new one.
	OverflowDropOldest OverflowPolicy = "drop_oldest"
	// OverflowBlock blocks the publisher until queue space frees up.
	OverflowBlock OverflowPolicy = "block"
)

// EventFilter narrows which events a subscription receives. Empty slices
// match everything for that dimension.
type EventFilter struct {
	Kinds     []EventKind
	Platforms []Platform
}

// Matches reports whether the filter admits the event.
func (f EventFilter) Matches(ev *Event) bool {
	if ev == nil {
		return false
	}
	if len(f.Kinds) > 0 && !containsKind(f.Kinds, ev.Kind) {
		return false
	}
	if len(f.Platforms) > 0 && !containsPlatform(f.Platforms, ev.Platform) {
		return false
	}
	return true
}

func containsKind(kinds []EventKind, k EventKind) bool {
	for _, c := range kinds {
		if c == k {
			return true
		}
	}
	return false
}

func containsPlatform(platforms []Platform, p Platform) bool {
	for _, c := range platforms {
		if c == p {
			return true
		}
	}
	return false
}

// EventHandler processes one delivered event. The context carries the
// per-delivery deadline configured on the subscription.
type EventHandler func(ctx context.Context, ev *Event) error

// SubscriptionSpec describes one module subscription on the event bus.
type SubscriptionSpec struct {
	// Name labels the subscription in logs.
	Name string
	// Filter narrows delivered events.
	Filter EventFilter
	// Handler receives matching events.
	Handler EventHandler
	// QueueSize bounds the subscriber queue. Must be positive.
	QueueSize int
	// Workers is the number of concurrent handler goroutines. Must be positive.
	Workers int
	// Overflow selects the backpressure policy when the queue is full.
	Overflow OverflowPolicy
	// HandlerTimeout bounds one handler invocation. Zero means no deadline.
	HandlerTimeout time.Duration
}

// Validate checks the subscription spec for structural problems.
func (s SubscriptionSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidSubscription)
	}
	if s.Handler == nil {
		return fmt.Errorf("%w: missing handler", ErrInvalidSubscription)
	}
	if s.QueueSize <= 0 {
		return fmt.Errorf("%w: queue size must be positive", ErrInvalidSubscription)
	}
	if s.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive", ErrInvalidSubscription)
	}
	switch s.Overflow {
	case OverflowDropNewest, OverflowDropOldest, OverflowBlock:
	default:
		return fmt.Errorf("%w: unknown overflow policy %q", ErrInvalidSubscription, s.Overflow)
	}
	if s.HandlerTimeout < 0 {
		return fmt.Errorf("%w: handler timeout must not be negative", ErrInvalidSubscription)
	}
	return nil
}

// EventBus fans events out from drivers to module subscriptions.
type EventBus interface {
	// Publish enqueues the event for every matching subscription.
	Publish(ctx context.Context, ev *Event) error
	// Subscribe registers a new subscription. The returned cancel function
	// detaches it and drains its workers.
	Subscribe(spec SubscriptionSpec) (cancel func(), err error)
}
