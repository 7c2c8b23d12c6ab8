package kernel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"veritas/pkg/veritas"
)

// EventBus is the kernel asynchronous pub/sub implementation. Each
// subscription owns a bounded queue and a fixed worker pool.
type EventBus struct {
	mu             sync.RWMutex
	nextID         int64
	closed         bool
	subscriptions  map[int64]*busSubscription
	defaultQueue   int
	defaultWorkers int
	defaultTimeout time.Duration
	onAsyncError   func(ctx context.Context, scope string, err error)
}

// NewEventBus creates an asynchronous event bus with bounded queues.
func NewEventBus(
	defaultQueue int,
	defaultWorkers int,
	defaultTimeout time.Duration,
	onAsyncError func(ctx context.Context, scope string, err error),
) *EventBus {
	return &EventBus{
		subscriptions:  make(map[int64]*busSubscription),
		defaultQueue:   defaultQueue,
		defaultWorkers: defaultWorkers,
		defaultTimeout: defaultTimeout,
		onAsyncError:   onAsyncError,
	}
}

// Publish dispatches an event to every matching subscription.
func (b *EventBus) Publish(ctx context.Context, ev *veritas.Event) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	subs, err := b.snapshot()
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Kind, err)
	}

	var publishErrs []error
	for _, sub := range subs {
		if !sub.spec.Filter.Matches(ev) {
			continue
		}
		if err := sub.enqueue(ctx, ev); err != nil {
			if errors.Is(err, veritas.ErrQueueFull) {
				b.reportAsyncError(ctx, sub.spec.Name, err)
				continue
			}
			publishErrs = append(publishErrs, err)
		}
	}

	if len(publishErrs) > 0 {
		return fmt.Errorf("publish %s: %w", ev.Kind, errors.Join(publishErrs...))
	}

	return nil
}

// Subscribe registers a bounded asynchronous consumer and returns a cancel
// function that detaches it and waits for its workers.
func (b *EventBus) Subscribe(spec veritas.SubscriptionSpec) (func(), error) {
	spec = b.normalizeSpec(spec)
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", spec.Name, err)
	}

	subID := atomic.AddInt64(&b.nextID, 1)
	sub := newBusSubscription(subID, spec, b)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.signalClose()
		return nil, fmt.Errorf("subscribe %s: %w", spec.Name, veritas.ErrBusClosed)
	}
	b.subscriptions[subID] = sub
	b.mu.Unlock()

	cancel := func() {
		ctx, cancelWait := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelWait()
		_ = b.unsubscribe(ctx, subID)
	}

	return cancel, nil
}

// Close stops all subscriptions and rejects further publishes and subscribes.
func (b *EventBus) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*busSubscription, 0, len(b.subscriptions))
	for _, sub := range b.subscriptions {
		subs = append(subs, sub)
	}
	b.subscriptions = make(map[int64]*busSubscription)
	b.mu.Unlock()

	var closeErrs []error
	for _, sub := range subs {
		if err := sub.shutdown(ctx); err != nil {
			closeErrs = append(closeErrs, err)
		}
	}

	if len(closeErrs) > 0 {
		return fmt.Errorf("close event bus: %w", errors.Join(closeErrs...))
	}

	return nil
}

// snapshot returns a stable subscription copy for lock-free publish fan-out.
func (b *EventBus) snapshot() ([]*busSubscription, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, veritas.ErrBusClosed
	}

	subs := make([]*busSubscription, 0, len(b.subscriptions))
	for _, sub := range b.subscriptions {
		subs = append(subs, sub)
	}

	return subs, nil
}

// normalizeSpec applies bus defaults when callers omit optional fields.
func (b *EventBus) normalizeSpec(spec veritas.SubscriptionSpec) veritas.SubscriptionSpec {
	if spec.QueueSize <= 0 {
		spec.QueueSize = b.defaultQueue
	}
	if spec.Workers <= 0 {
		spec.Workers = b.defaultWorkers
	}
	if spec.HandlerTimeout <= 0 {
		spec.HandlerTimeout = b.defaultTimeout
	}
	if spec.Overflow == "" {
		spec.Overflow = veritas.OverflowDropNewest
	}

	return spec
}

// unsubscribe removes and shuts down a subscription by id.
func (b *EventBus) unsubscribe(ctx context.Context, subID int64) error {
	b.mu.Lock()
	sub, found := b.subscriptions[subID]
	if found {
		delete(b.subscriptions, subID)
	}
	b.mu.Unlock()

	if !found {
		return nil
	}

	if err := sub.shutdown(ctx); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", sub.spec.Name, err)
	}

	return nil
}

// reportAsyncError forwards background worker failures to the error sink.
func (b *EventBus) reportAsyncError(ctx context.Context, scope string, err error) {
	if b.onAsyncError != nil {
		b.onAsyncError(ctx, scope, err)
	}
}

// busSubscription owns queueing and worker lifecycle for one subscriber.
// Queue teardown is driven by context cancellation rather than channel close.
type busSubscription struct {
	id     int64
	spec   veritas.SubscriptionSpec
	queue  chan *veritas.Event
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	closed atomic.Bool
	once   sync.Once
	bus    *EventBus
}

// newBusSubscription creates a subscription and starts its workers.
func newBusSubscription(subID int64, spec veritas.SubscriptionSpec, bus *EventBus) *busSubscription {
	subCtx, cancel := context.WithCancel(context.Background())
	sub := &busSubscription{
		id:     subID,
		spec:   cloneSpec(spec),
		queue:  make(chan *veritas.Event, spec.QueueSize),
		ctx:    subCtx,
		cancel: cancel,
		done:   make(chan struct{}),
		bus:    bus,
	}

	sub.startWorkers()

	return sub
}

// cloneSpec copies owned slices so caller mutation does not affect matching.
func cloneSpec(spec veritas.SubscriptionSpec) veritas.SubscriptionSpec {
	cloned := spec
	if len(spec.Filter.Kinds) > 0 {
		cloned.Filter.Kinds = append([]veritas.EventKind(nil), spec.Filter.Kinds...)
	}
	if len(spec.Filter.Platforms) > 0 {
		cloned.Filter.Platforms = append([]veritas.Platform(nil), spec.Filter.Platforms...)
	}

	return cloned
}

// enqueue applies the configured overflow policy for the subscriber queue.
func (s *busSubscription) enqueue(ctx context.Context, ev *veritas.Event) error {
	if s.closed.Load() {
		return fmt.Errorf("enqueue %s: %w", s.spec.Name, veritas.ErrBusClosed)
	}

	switch s.spec.Overflow {
	case veritas.OverflowDropNewest:
		return s.enqueueDropNewest(ev)
	case veritas.OverflowDropOldest:
		return s.enqueueDropOldest(ev)
	case veritas.OverflowBlock:
		return s.enqueueBlock(ctx, ev)
	default:
		return fmt.Errorf("enqueue %s: %w", s.spec.Name, veritas.ErrInvalidSubscription)
	}
}

// enqueueDropNewest drops the incoming event when the queue is full.
func (s *busSubscription) enqueueDropNewest(ev *veritas.Event) error {
	select {
	case s.queue <- ev:
		return nil
	default:
		return fmt.Errorf("enqueue %s: %w", s.spec.Name, veritas.ErrQueueFull)
	}
}

// enqueueDropOldest evicts one queued event before enqueueing the new one.
func (s *busSubscription) enqueueDropOldest(ev *veritas.Event) error {
	select {
	case s.queue <- ev:
		return nil
	default:
	}

	select {
	case <-s.queue:
	default:
	}

	select {
	case s.queue <- ev:
		return nil
	default:
		return fmt.Errorf("enqueue %s: %w", s.spec.Name, veritas.ErrQueueFull)
	}
}

// enqueueBlock waits for queue capacity or caller context cancellation.
func (s *busSubscription) enqueueBlock(ctx context.Context, ev *veritas.Event) error {
	select {
	case s.queue <- ev:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue %s: %w", s.spec.Name, ctx.Err())
	}
}

// startWorkers launches worker goroutines and closes done after all exit.
func (s *busSubscription) startWorkers() {
	workerWG := &sync.WaitGroup{}
	for idx := 0; idx < s.spec.Workers; idx++ {
		workerID := idx
		workerWG.Add(1)
		go s.runWorker(workerWG, workerID)
	}

	go func() {
		workerWG.Wait()
		close(s.done)
	}()
}

// runWorker drains the queue until subscription context cancellation.
// Every handler failure is routed to the async error sink.
func (s *busSubscription) runWorker(workerWG *sync.WaitGroup, workerID int) {
	defer workerWG.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.queue:
			if err := s.handleEvent(s.ctx, workerID, ev); err != nil {
				s.bus.reportAsyncError(s.ctx, s.spec.Name, err)
			}
		}
	}
}

// handleEvent executes one handler call with timeout and panic recovery.
func (s *busSubscription) handleEvent(ctx context.Context, workerID int, ev *veritas.Event) error {
	handlerCtx := ctx
	cancel := func() {}
	if s.spec.HandlerTimeout > 0 {
		handlerCtx, cancel = context.WithTimeout(ctx, s.spec.HandlerTimeout)
	}
	defer cancel()

	scope := fmt.Sprintf("subscription %s worker %d", s.spec.Name, workerID)
	if err := runSafely(scope, func() error {
		return s.spec.Handler(handlerCtx, ev)
	}); err != nil {
		return fmt.Errorf("%s handle event %s: %w", scope, ev.Kind, err)
	}

	return nil
}

// signalClose marks the subscription closed exactly once and cancels workers.
func (s *busSubscription) signalClose() {
	s.once.Do(func() {
		s.closed.Store(true)
		s.cancel()
	})
}

// shutdown waits for worker exit or returns when the supplied context expires.
func (s *busSubscription) shutdown(ctx context.Context) error {
	s.signalClose()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown subscription %s: %w", s.spec.Name, ctx.Err())
	}
}
