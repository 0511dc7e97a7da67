package event

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/fleetlease/backend/internal/domain/shared"
)

// InMemoryEventBus fans ledger events out to registered handlers in the
// publishing goroutine. Billing events drive side effects like the audit
// log; a failing handler never rolls back the ledger write that raised
// the event, so Publish logs handler errors and keeps going.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	log      *zap.Logger
	running  atomic.Bool
	inFlight sync.WaitGroup
}

// NewInMemoryEventBus creates an event bus with an empty registry.
func NewInMemoryEventBus(log *zap.Logger) *InMemoryEventBus {
	return &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		log:      log,
	}
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)

// Publish delivers each event to every matching handler in registration
// order. It always returns nil; delivery problems are logged, not
// propagated, because the ledger mutation that raised the event has
// already committed.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, ev := range events {
		for _, h := range b.registry.GetHandlers(ev.EventType()) {
			if err := b.deliver(ctx, h, ev); err != nil {
				b.log.Error("event handler failed",
					zap.String("event_type", ev.EventType()),
					zap.String("event_id", ev.EventID().String()),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

// Subscribe registers a handler. With no explicit types the handler's own
// EventTypes decides; an empty answer there subscribes it to everything.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.log.Debug("event handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes the handler from every event type it was registered
// for, wildcard included.
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
	b.log.Debug("event handler unsubscribed")
}

// Start marks the bus running. Delivery is synchronous so there is no
// worker to spin up.
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.running.Store(true)
	b.log.Info("event bus started")
	return nil
}

// Stop waits for in-flight deliveries and marks the bus stopped.
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.running.Store(false)
	b.inFlight.Wait()
	b.log.Info("event bus stopped")
	return nil
}

// deliver invokes one handler, converting a panic into an error so one
// broken subscriber cannot take down the request that published.
func (b *InMemoryEventBus) deliver(ctx context.Context, handler shared.EventHandler, ev shared.DomainEvent) (err error) {
	b.inFlight.Add(1)
	defer b.inFlight.Done()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event handler panicked: %v", r)
		}
	}()
	return handler.Handle(ctx, ev)
}
