package dates

import "time"

// Range is the half-open interval [CheckIn, CheckOut).
type Range struct {
	CheckIn  time.Time
	CheckOut time.Time
}

func NewRange(checkIn, checkOut time.Time) Range {
	return Range{CheckIn: Day(checkIn), CheckOut: Day(checkOut)}
}

// Nights is the number of days in the range. Zero or negative for empty or inverted ranges.
func (r Range) Nights() int {
	return DaysBetween(r.CheckIn, r.CheckOut)
}

// Days lists every day in [CheckIn, CheckOut), one per night.
func (r Range) Days() []time.Time {
	n := r.Nights()
	if n <= 0 {
		return nil
	}
	out := make([]time.Time, 0, n)
	for d := Day(r.CheckIn); d.Before(r.CheckOut); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// Contains reports whether day falls inside the half-open range.
func (r Range) Contains(day time.Time) bool {
	day = Day(day)
	return !day.Before(r.CheckIn) && day.Before(r.CheckOut)
}

func (r Range) String() string {
	return Format(r.CheckIn) + ".." + Format(r.CheckOut)
}
