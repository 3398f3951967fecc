package pricing

import (
	"math"
	"time"

	"github.com/sicilystay/stayservice/internal/dates"
	"github.com/sicilystay/stayservice/internal/domain"
)

const (
	// includedGuests is the number of guests covered by the base price.
	includedGuests = 2
	// extraGuestSurcharge is added to the stay total for every guest beyond includedGuests.
	extraGuestSurcharge = 0.10
)

// CountView is a read-only view of committed bookings per day.
type CountView interface {
	CountOn(day time.Time) int
}

// Quote is an accepted price for a stay.
type Quote struct {
	ProductID  string
	RoomType   string
	Nights     int
	TotalPrice float64
	Currency   string
	Breakdown  Breakdown
}

// Breakdown records the intermediate factors that produced TotalPrice.
type Breakdown struct {
	NightlySum       float64
	GuestFactor      float64
	DaysUntilCheckIn int
	AdvanceDiscount  float64
	CouponDiscount   float64
	CouponApplied    bool
}

// Calculator computes validity and price for stay requests. It holds no
// mutable state and is safe for concurrent use.
type Calculator struct {
	catalog *Catalog
	now     func() time.Time
}

func NewCalculator(catalog *Catalog) *Calculator {
	return &Calculator{catalog: catalog, now: time.Now}
}

// Catalog returns the configuration the calculator prices against.
func (c *Calculator) Catalog() *Catalog {
	return c.catalog
}

// Evaluate validates req against the catalog and counts, then prices it.
// The first failed check is returned as a *domain.Rejection; no partial
// result is produced. Identical inputs always yield identical output.
func (c *Calculator) Evaluate(req StayRequest, counts CountView) (Quote, error) {
	room, nights, err := c.checkRequest(req)
	if err != nil {
		return Quote{}, err
	}

	policy := c.catalog.policy
	stay := req.Range()
	days := stay.Days()
	for _, day := range days {
		if c.catalog.IsBlackout(day) {
			return Quote{}, domain.NewDateBlackedOut(day)
		}
		if counts != nil && counts.CountOn(day) >= policy.CapacityPerDay {
			return Quote{}, domain.NewCapacityExceeded(day, policy.CapacityPerDay)
		}
	}

	var b Breakdown
	for _, day := range days {
		b.NightlySum += room.BasePrice * c.catalog.SeasonFactor(day)
	}
	total := b.NightlySum

	b.GuestFactor = 1
	if req.Guests > includedGuests {
		b.GuestFactor = 1 + extraGuestSurcharge*float64(req.Guests-includedGuests)
		total *= b.GuestFactor
	}

	today := req.Today
	if today.IsZero() {
		today = dates.Today(c.now)
	}
	b.DaysUntilCheckIn = dates.DaysBetween(today, stay.CheckIn)
	b.AdvanceDiscount = c.catalog.AdvanceDiscount(b.DaysUntilCheckIn)
	total *= 1 - b.AdvanceDiscount

	if req.Coupon != "" {
		if discount, ok := c.catalog.CouponDiscount(req.Coupon); ok {
			b.CouponDiscount = discount
			b.CouponApplied = true
			total *= 1 - discount
		}
	}

	return Quote{
		ProductID:  c.catalog.productID,
		RoomType:   room.ID,
		Nights:     nights,
		TotalPrice: roundCents(total),
		Currency:   c.catalog.currency,
		Breakdown:  b,
	}, nil
}

// Precheck runs the checks that need no booking counts: room type, guest
// count and stay length. Callers run it before reading the ledger so a bad
// request never touches storage.
func (c *Calculator) Precheck(req StayRequest) error {
	_, _, err := c.checkRequest(req)
	return err
}

func (c *Calculator) checkRequest(req StayRequest) (RoomType, int, error) {
	room, ok := c.catalog.Room(req.RoomType)
	if !ok {
		return RoomType{}, 0, domain.NewInvalidRoomType(req.RoomType)
	}

	if req.Guests < 1 || req.Guests > room.MaxGuests {
		return RoomType{}, 0, domain.NewInvalidGuestCount(req.Guests, room.MaxGuests)
	}

	policy := c.catalog.policy
	nights := req.Range().Nights()
	minNights := max(policy.MinStayNights, 1)
	if nights < minNights {
		return RoomType{}, 0, domain.NewStayTooShort(nights, minNights)
	}
	if nights > policy.MaxStayNights {
		return RoomType{}, 0, domain.NewStayTooLong(nights, policy.MaxStayNights)
	}
	return room, nights, nil
}

// roundCents rounds to 2 decimals, ties to even.
func roundCents(amount float64) float64 {
	return math.RoundToEven(amount*100) / 100
}
