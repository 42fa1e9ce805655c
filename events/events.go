package events

import (
	"context"
	"sync"

	"wagerbook/models"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeWagerCreated      EventType = "wager_created"
	EventTypeWagerMatched      EventType = "wager_matched"
	EventTypeWagerSettled      EventType = "wager_settled"
	EventTypeWagerCancelled    EventType = "wager_cancelled"
	EventTypeWagerStatusChange EventType = "wager_status_change"
	EventTypeEscrowUpdated     EventType = "escrow_updated"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// WagerCreatedEvent represents a newly created wager
type WagerCreatedEvent struct {
	WagerID    int64
	CreatorID  string
	OpponentID string
	TotalValue int64
	IsPublic   bool
}

func (e WagerCreatedEvent) Type() EventType {
	return EventTypeWagerCreated
}

// WagerMatchedEvent represents an opponent winning the acceptance race
type WagerMatchedEvent struct {
	WagerID    int64
	CreatorID  string
	OpponentID string
	TotalValue int64
}

func (e WagerMatchedEvent) Type() EventType {
	return EventTypeWagerMatched
}

// WagerSettledEvent represents a wager that was settled
type WagerSettledEvent struct {
	WagerID  int64
	WinnerID string
	LoserID  string
	Amount   int64
}

func (e WagerSettledEvent) Type() EventType {
	return EventTypeWagerSettled
}

// WagerCancelledEvent represents a creator cancelling an open wager
type WagerCancelledEvent struct {
	WagerID   int64
	CreatorID string
}

func (e WagerCancelledEvent) Type() EventType {
	return EventTypeWagerCancelled
}

// WagerStatusChangeEvent represents any state machine transition
type WagerStatusChangeEvent struct {
	WagerID   int64
	OldStatus models.WagerStatus
	NewStatus models.WagerStatus
}

func (e WagerStatusChangeEvent) Type() EventType {
	return EventTypeWagerStatusChange
}

// EscrowUpdatedEvent represents an escrow account status change
type EscrowUpdatedEvent struct {
	EscrowID  string
	WagerID   int64
	OldStatus models.EscrowStatus
	NewStatus models.EscrowStatus
	Reference string
}

func (e EscrowUpdatedEvent) Type() EventType {
	return EventTypeEscrowUpdated
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make([]Handler, 0)
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	// Call handlers asynchronously to avoid blocking
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus stashes events published during a unit of work and flushes
// them to the underlying bus only after the database commit succeeds.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Flush emits all pending events. Called after a successful commit.
func (b *TransactionalBus) Flush(ctx context.Context) error {
	log.WithFields(log.Fields{
		"pendingEventCount": len(b.pending),
	}).Debug("Flushing pending events from transactional bus")

	// Events outlive the transaction context, so emit on a fresh one
	eventCtx := context.Background()

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// Discard drops pending events. Called after rollback.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
