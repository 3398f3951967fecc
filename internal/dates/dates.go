package dates

import (
	"fmt"
	"strings"
	"time"
)

const (
	// ISOLayout is the canonical wire format for calendar days.
	ISOLayout = "2006-01-02"
	// EuropeanLayout is accepted as a fallback on input only.
	EuropeanLayout = "02/01/2006"
)

var layouts = []string{ISOLayout, EuropeanLayout}

// ParseError is returned when a value matches none of the accepted layouts.
type ParseError struct {
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid date %q: expected YYYY-MM-DD or DD/MM/YYYY", e.Input)
}

// Parse reads a calendar day, trying YYYY-MM-DD first and DD/MM/YYYY second.
// The result is midnight UTC.
func Parse(s string) (time.Time, error) {
	value := strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &ParseError{Input: s}
}

// MustParse is Parse for fixtures and static defaults.
func MustParse(s string) time.Time {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Format renders a day as YYYY-MM-DD.
func Format(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// Day truncates an instant to its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Today returns the current UTC day according to now. A nil now uses the wall clock.
func Today(now func() time.Time) time.Time {
	if now == nil {
		now = time.Now
	}
	return Day(now())
}

const secondsPerDay = 24 * 60 * 60

// DaysBetween counts whole days from -> to. Negative when to precedes from.
// Works on Unix seconds so ranges wider than a time.Duration do not saturate.
func DaysBetween(from, to time.Time) int {
	return int((Day(to).Unix() - Day(from).Unix()) / secondsPerDay)
}

// AddDays shifts a day by n calendar days.
func AddDays(t time.Time, n int) time.Time {
	return Day(t).AddDate(0, 0, n)
}
