package shared

import "context"

// EventHandler consumes ledger events. EventTypes names the events the
// handler wants; an empty slice subscribes it to everything, which is
// how the billing audit logger listens.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	EventTypes() []string
}

// EventPublisher is the half the application services depend on. They
// publish after the ledger write commits and never block on delivery.
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventSubscriber registers handlers, optionally narrowed to specific
// event types.
type EventSubscriber interface {
	Subscribe(handler EventHandler, eventTypes ...string)
}

// EventBus is both ends together, what the in-memory bus implements.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
