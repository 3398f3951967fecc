package domain

import (
	"errors"
	"fmt"
	"time"
)

// Reason is the machine-readable category of a rejected request.
type Reason string

const (
	ReasonInvalidRoomType   Reason = "invalid_room_type"
	ReasonInvalidGuestCount Reason = "invalid_guest_count"
	ReasonStayTooShort      Reason = "stay_too_short"
	ReasonStayTooLong       Reason = "stay_too_long"
	ReasonDateBlackedOut    Reason = "date_blacked_out"
	ReasonCapacityExceeded  Reason = "capacity_exceeded"
	ReasonMalformedDate     Reason = "malformed_date"
	ReasonInvalidCustomer   Reason = "invalid_customer"
)

// Rejection is a local validation outcome. It is never retried and always maps
// to a client-side error.
// Date and Limit are zero when the reason carries no day or bound.
type Rejection struct {
	Reason  Reason
	Message string
	Date    time.Time
	Limit   int
	Value   string
}

// Error implements the error interface
func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Reason, r.Message)
}

// NewInvalidRoomType rejects an unknown room type identifier
func NewInvalidRoomType(roomType string) *Rejection {
	return &Rejection{
		Reason:  ReasonInvalidRoomType,
		Message: fmt.Sprintf("unknown room type %q", roomType),
		Value:   roomType,
	}
}

// NewInvalidGuestCount rejects a guest count outside [1, max]
func NewInvalidGuestCount(guests, max int) *Rejection {
	return &Rejection{
		Reason:  ReasonInvalidGuestCount,
		Message: fmt.Sprintf("invalid number of guests %d (allowed 1-%d)", guests, max),
		Limit:   max,
		Value:   fmt.Sprint(guests),
	}
}

// NewStayTooShort rejects a stay below the minimum number of nights
func NewStayTooShort(nights, min int) *Rejection {
	return &Rejection{
		Reason:  ReasonStayTooShort,
		Message: fmt.Sprintf("stay too short: %d nights, minimum %d", nights, min),
		Limit:   min,
		Value:   fmt.Sprint(nights),
	}
}

// NewStayTooLong rejects a stay above the maximum number of nights
func NewStayTooLong(nights, max int) *Rejection {
	return &Rejection{
		Reason:  ReasonStayTooLong,
		Message: fmt.Sprintf("stay too long: %d nights, maximum %d", nights, max),
		Limit:   max,
		Value:   fmt.Sprint(nights),
	}
}

// NewDateBlackedOut rejects a stay touching a blackout day
func NewDateBlackedOut(day time.Time) *Rejection {
	return &Rejection{
		Reason:  ReasonDateBlackedOut,
		Message: fmt.Sprintf("date not available: %s", day.Format("2006-01-02")),
		Date:    day,
	}
}

// NewCapacityExceeded rejects a stay touching a day that is fully booked
func NewCapacityExceeded(day time.Time, capacity int) *Rejection {
	return &Rejection{
		Reason:  ReasonCapacityExceeded,
		Message: fmt.Sprintf("capacity exceeded for day: %s", day.Format("2006-01-02")),
		Date:    day,
		Limit:   capacity,
	}
}

// NewMalformedDate rejects a date string no accepted layout matches
func NewMalformedDate(field, value string) *Rejection {
	return &Rejection{
		Reason:  ReasonMalformedDate,
		Message: fmt.Sprintf("%s: expected YYYY-MM-DD or DD/MM/YYYY, got %q", field, value),
		Value:   value,
	}
}

// NewInvalidCustomer rejects missing or malformed customer details
func NewInvalidCustomer(details string) *Rejection {
	return &Rejection{
		Reason:  ReasonInvalidCustomer,
		Message: details,
	}
}

// AsRejection extracts a Rejection from an error chain
func AsRejection(err error) (*Rejection, bool) {
	var rejection *Rejection
	if errors.As(err, &rejection) {
		return rejection, true
	}
	return nil, false
}

// PersistenceError reports that a booking committed capacity but could not be
// stored. The seat stays taken.
type PersistenceError struct {
	BookingID string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist booking %s: %v", e.BookingID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// AsPersistenceError extracts a PersistenceError from an error chain
func AsPersistenceError(err error) (*PersistenceError, bool) {
	var persistErr *PersistenceError
	if errors.As(err, &persistErr) {
		return persistErr, true
	}
	return nil, false
}
