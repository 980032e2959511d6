// Package events is the in-process lifecycle event bus. Reservation and
// invoice transitions publish named events; the automation engine and the
// invoicing service subscribe. Dispatch is synchronous and runs after the
// publishing transaction has committed; a subscriber failure never
// propagates back to the publisher.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

// Lifecycle event names published by the engine.
const (
	ReservationPending         = "reservation.pending"
	ReservationConfirmed       = "reservation.confirmed"
	ReservationCheckIn         = "reservation.check_in"
	ReservationCheckOut        = "reservation.check_out"
	ReservationCancelled       = "reservation.cancelled"
	ReservationNoShow          = "reservation.no_show"
	ReservationPaymentAdded    = "reservation.payment_added"
	ReservationPaymentRefunded = "reservation.payment_refunded"
	InvoiceAccepted            = "invoice.accepted"
	InvoiceRejected            = "invoice.rejected"
	RoomStatusChanged          = "room.status_changed"
)

// Event is one lifecycle occurrence with its payload.
type Event struct {
	Name       string
	TenantID   snowflake.ID
	PropertyID snowflake.ID
	Actor      string
	OccurredAt time.Time
	Payload    map[string]any
}

// Publisher emits lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

// Subscriber receives every published event and filters by name itself.
type Subscriber func(ctx context.Context, evt Event)

// Bus fans events out to subscribers in registration order.
type Bus struct {
	log *zap.Logger

	mu   sync.RWMutex
	subs []Subscriber
}

func NewBus(log *zap.Logger) *Bus {
	return &Bus{log: log.Named("events.bus")}
}

// Subscribe registers a subscriber. Registration happens during fx startup;
// subscribing after publishing has begun is safe but unusual.
func (b *Bus) Subscribe(fn Subscriber) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
}

// Publish delivers the event to every subscriber. Panics are contained so
// one consumer cannot take down the publishing request.
func (b *Bus) Publish(ctx context.Context, evt Event) {
	b.mu.RLock()
	subs := make([]Subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, fn := range subs {
		b.dispatch(ctx, fn, evt)
	}
}

func (b *Bus) dispatch(ctx context.Context, fn Subscriber, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event subscriber panicked",
				zap.String("event", evt.Name),
				zap.Any("panic", r),
			)
		}
	}()
	fn(ctx, evt)
}
