// Package notify delivers booking confirmations to interested parties.
// Delivery is best-effort: callers log failures and never undo a booking
// because a notification could not be sent.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/sicilystay/stayservice/internal/domain"
)

// EventBookingReserved is the event type carried by published payloads.
const EventBookingReserved = "booking.reserved"

// Notifier announces a reserved booking
type Notifier interface {
	BookingReserved(ctx context.Context, booking domain.Booking) error
}

// Event is the serialized form of a booking notification
type Event struct {
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Booking    domain.Booking `json:"booking"`
}

// NewEvent wraps a booking into a reservation event
func NewEvent(booking domain.Booking, now time.Time) Event {
	return Event{
		Type:       EventBookingReserved,
		OccurredAt: now.UTC(),
		Booking:    booking,
	}
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) BookingReserved(ctx context.Context, booking domain.Booking) error {
	var errs []error
	for _, n := range m {
		if err := n.BookingReserved(ctx, booking); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards notifications.
type Nop struct{}

func (Nop) BookingReserved(context.Context, domain.Booking) error { return nil }
