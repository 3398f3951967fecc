package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/sicilystay/stayservice/internal/dates"
)

// Ledger tracks committed bookings per calendar day. Counts only ever grow.
type Ledger interface {
	// Count returns the number of bookings covering day.
	Count(ctx context.Context, day time.Time) (int, error)

	// HasCapacity reports whether Count(day) < capacity.
	HasCapacity(ctx context.Context, day time.Time, capacity int) (bool, error)

	// Snapshot reads the counts for every day in r.
	Snapshot(ctx context.Context, r dates.Range) (Snapshot, error)

	// Commit re-checks every day in r against capacity and, only when all of
	// them have room, increments each by one. Check and increment are a
	// single atomic step with respect to other commits. A full day is
	// reported as *FullError and leaves every count untouched.
	Commit(ctx context.Context, r dates.Range, capacity int) error
}

// FullError reports the first day of a range that had no capacity left at commit time.
type FullError struct {
	Day      time.Time
	Capacity int
}

func (e *FullError) Error() string {
	return fmt.Sprintf("ledger: day %s is at capacity %d", dates.Format(e.Day), e.Capacity)
}

// Snapshot is a point-in-time copy of per-day counts.
type Snapshot map[string]int

// CountOn returns the count captured for day, zero if absent.
func (s Snapshot) CountOn(day time.Time) int {
	return s[dates.Format(day)]
}
