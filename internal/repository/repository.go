package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sicilystay/stayservice/internal/domain"
)

var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a booking id is already stored
	ErrDuplicate = errors.New("duplicate booking id")
)

// Filter narrows a booking listing. Zero values mean "no bound".
type Filter struct {
	// CheckInFrom and CheckInTo bound the check-in day, both inclusive.
	CheckInFrom time.Time
	CheckInTo   time.Time
	Limit       int
}

// Matches reports whether b passes the date bounds of f.
func (f Filter) Matches(b domain.Booking) bool {
	if !f.CheckInFrom.IsZero() && b.CheckIn.Before(f.CheckInFrom) {
		return false
	}
	if !f.CheckInTo.IsZero() && b.CheckIn.After(f.CheckInTo) {
		return false
	}
	return true
}

// BookingRepository stores reserved bookings
type BookingRepository interface {
	// Insert stores a new booking. Storing the same id twice yields ErrDuplicate.
	Insert(ctx context.Context, booking domain.Booking) error

	// Get retrieves a booking by id
	Get(ctx context.Context, id string) (domain.Booking, error)

	// List returns bookings ordered by creation time, oldest first
	List(ctx context.Context, filter Filter) ([]domain.Booking, error)

	// Ping checks that the backing store is reachable
	Ping(ctx context.Context) error

	// Close releases resources held by the repository
	Close() error
}
