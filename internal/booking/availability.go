package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/sicilystay/stayservice/internal/dates"
	"github.com/sicilystay/stayservice/internal/domain"
)

// ReasonBlackout marks a day that cannot be booked regardless of capacity.
const ReasonBlackout = "blackout"

// Availability describes one calendar day.
type Availability struct {
	Date      time.Time
	Available bool
	Slots     int
	Reason    string
}

// Availability reports the remaining capacity for a single day.
func (s *Service) Availability(ctx context.Context, rawDate string) (Availability, error) {
	day, err := dates.Parse(rawDate)
	if err != nil {
		rej := domain.NewMalformedDate("date", rawDate)
		s.recordFailure(ctx, "availability", rej)
		return Availability{}, rej
	}

	catalog := s.Catalog()
	if catalog.IsBlackout(day) {
		return Availability{Date: day, Available: false, Reason: ReasonBlackout}, nil
	}

	count, err := s.ledger.Count(ctx, day)
	if err != nil {
		err = fmt.Errorf("failed to read capacity for %s: %w", dates.Format(day), err)
		s.recordFailure(ctx, "availability", err)
		return Availability{}, err
	}

	slots := catalog.Policy().CapacityPerDay - count
	if slots < 0 {
		slots = 0
	}
	return Availability{Date: day, Available: slots > 0, Slots: slots}, nil
}
