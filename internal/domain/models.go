package domain

import (
	"time"
)

// BookingStatus represents the lifecycle state of a booking.
type BookingStatus string

const (
	// BookingStatusReserved is the only status a booking can have; there is no
	// cancellation or modification path.
	BookingStatusReserved BookingStatus = "reserved"
)

// Customer identifies who made a booking
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Booking is a completed reservation as handed to persistence and notification
type Booking struct {
	ID         string        `json:"booking_id"`
	ProductID  string        `json:"product"`
	RoomType   string        `json:"room_type"`
	CheckIn    time.Time     `json:"checkin"`
	CheckOut   time.Time     `json:"checkout"`
	Nights     int           `json:"nights"`
	Guests     int           `json:"guests"`
	Coupon     string        `json:"coupon,omitempty"`
	TotalPrice float64       `json:"total_price"`
	Currency   string        `json:"currency"`
	Customer   Customer      `json:"customer"`
	Status     BookingStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
}

// IsValidStatus checks if the booking status is known
func (b Booking) IsValidStatus() bool {
	switch b.Status {
	case BookingStatusReserved:
		return true
	default:
		return false
	}
}
