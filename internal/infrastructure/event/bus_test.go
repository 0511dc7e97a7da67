package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fleetlease/backend/internal/domain/shared"
)

type ledgerEvent struct {
	shared.BaseDomainEvent
}

func newLedgerEvent(eventType string) *ledgerEvent {
	return &ledgerEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "Charge", uuid.New()),
	}
}

// recordingHandler collects every event it receives.
type recordingHandler struct {
	mu       sync.Mutex
	types    []string
	received []shared.DomainEvent
	fail     error
	panics   bool
}

func newRecordingHandler(types ...string) *recordingHandler {
	return &recordingHandler{types: types}
}

func (h *recordingHandler) Handle(ctx context.Context, ev shared.DomainEvent) error {
	if h.panics {
		panic("subscriber blew up")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = append(h.received, ev)
	return h.fail
}

func (h *recordingHandler) EventTypes() []string { return h.types }

func (h *recordingHandler) events() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent(nil), h.received...)
}

func TestInMemoryEventBus_DeliversToSubscribedHandler(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	audit := newRecordingHandler("ChargeCreated")
	bus.Subscribe(audit)

	ev := newLedgerEvent("ChargeCreated")
	require.NoError(t, bus.Publish(context.Background(), ev))

	got := audit.events()
	require.Len(t, got, 1)
	assert.Equal(t, ev, got[0])
}

func TestInMemoryEventBus_DeliversBatchInOrder(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	audit := newRecordingHandler("PaymentReceived", "PaymentApplied")
	bus.Subscribe(audit)

	received := newLedgerEvent("PaymentReceived")
	applied := newLedgerEvent("PaymentApplied")
	require.NoError(t, bus.Publish(context.Background(), received, applied))

	got := audit.events()
	require.Len(t, got, 2)
	assert.Equal(t, "PaymentReceived", got[0].EventType())
	assert.Equal(t, "PaymentApplied", got[1].EventType())
}

func TestInMemoryEventBus_EveryHandlerSeesTheEvent(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	audit := newRecordingHandler("InvoiceGenerated")
	notifier := newRecordingHandler("InvoiceGenerated")
	bus.Subscribe(audit)
	bus.Subscribe(notifier)

	require.NoError(t, bus.Publish(context.Background(), newLedgerEvent("InvoiceGenerated")))

	assert.Len(t, audit.events(), 1)
	assert.Len(t, notifier.events(), 1)
}

func TestInMemoryEventBus_WildcardHandlerSeesEverything(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	// No declared types subscribes to everything.
	audit := newRecordingHandler()
	bus.Subscribe(audit)

	require.NoError(t, bus.Publish(context.Background(),
		newLedgerEvent("ChargeCreated"),
		newLedgerEvent("CreditNoteIssued"),
	))

	assert.Len(t, audit.events(), 2)
}

func TestInMemoryEventBus_HandlerErrorDoesNotStopDelivery(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	bus := NewInMemoryEventBus(zap.New(core))

	broken := newRecordingHandler("ChargeDeleted")
	broken.fail = errors.New("audit sink unavailable")
	healthy := newRecordingHandler("ChargeDeleted")
	bus.Subscribe(broken)
	bus.Subscribe(healthy)

	require.NoError(t, bus.Publish(context.Background(), newLedgerEvent("ChargeDeleted")))

	assert.Len(t, healthy.events(), 1)
	require.Equal(t, 1, logs.FilterMessage("event handler failed").Len())
	entry := logs.FilterMessage("event handler failed").All()[0]
	assert.Equal(t, "ChargeDeleted", entry.ContextMap()["event_type"])
}

func TestInMemoryEventBus_PanickingHandlerIsContained(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	bus := NewInMemoryEventBus(zap.New(core))

	volatile := newRecordingHandler("PaymentApplied")
	volatile.panics = true
	healthy := newRecordingHandler("PaymentApplied")
	bus.Subscribe(volatile)
	bus.Subscribe(healthy)

	require.NoError(t, bus.Publish(context.Background(), newLedgerEvent("PaymentApplied")))

	assert.Len(t, healthy.events(), 1)
	require.Equal(t, 1, logs.FilterMessage("event handler failed").Len())
}

func TestInMemoryEventBus_NoMatchingHandlers(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	audit := newRecordingHandler("ChargeCreated")
	bus.Subscribe(audit)

	require.NoError(t, bus.Publish(context.Background(), newLedgerEvent("PaymentReceived")))
	assert.Empty(t, audit.events())
}

func TestInMemoryEventBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	audit := newRecordingHandler("ChargeUpdated")
	bus.Subscribe(audit)

	require.NoError(t, bus.Publish(context.Background(), newLedgerEvent("ChargeUpdated")))
	require.Len(t, audit.events(), 1)

	bus.Unsubscribe(audit)

	require.NoError(t, bus.Publish(context.Background(), newLedgerEvent("ChargeUpdated")))
	assert.Len(t, audit.events(), 1)
}

func TestInMemoryEventBus_StartStop(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, bus.Start(ctx))

	audit := newRecordingHandler("ChargeCreated")
	bus.Subscribe(audit)
	require.NoError(t, bus.Publish(ctx, newLedgerEvent("ChargeCreated")))
	assert.Len(t, audit.events(), 1)

	require.NoError(t, bus.Stop(ctx))
}
