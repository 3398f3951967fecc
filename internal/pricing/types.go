package pricing

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sicilystay/stayservice/internal/dates"
)

const (
	// DefaultCurrency is used when the catalog does not name one.
	DefaultCurrency = "EUR"
	// DefaultMaxStayNights caps a stay when the policy sets no maximum.
	DefaultMaxStayNights = 365
)

// ErrInvalidCatalog is returned when catalog configuration breaks an invariant.
var ErrInvalidCatalog = errors.New("invalid pricing catalog")

// RoomType is a bookable room category.
type RoomType struct {
	ID        string
	BasePrice float64
	MaxGuests int
}

// SeasonWindow multiplies the nightly price for every day in [From, To].
type SeasonWindow struct {
	From   time.Time
	To     time.Time
	Factor float64
}

// Contains reports whether day is inside the inclusive window.
func (s SeasonWindow) Contains(day time.Time) bool {
	day = dates.Day(day)
	return !day.Before(s.From) && !day.After(s.To)
}

// AdvanceTier grants Discount when check-in is at least Days away.
type AdvanceTier struct {
	Days     int
	Discount float64
}

// Coupon maps a code to a discount fraction.
type Coupon struct {
	Code     string
	Discount float64
}

// Policy holds the product-wide booking rules.
type Policy struct {
	MinStayNights  int
	MaxStayNights  int
	CapacityPerDay int
	Blackouts      []time.Time
}

// StayRequest is one quote or booking attempt. A zero Today means the current UTC day.
type StayRequest struct {
	CheckIn  time.Time
	CheckOut time.Time
	Guests   int
	RoomType string
	Coupon   string
	Today    time.Time
}

// Range returns the stay as a half-open date range.
func (r StayRequest) Range() dates.Range {
	return dates.NewRange(r.CheckIn, r.CheckOut)
}

// CatalogConfig is the raw input to NewCatalog.
type CatalogConfig struct {
	ProductID string
	Currency  string
	Rooms     []RoomType
	Seasons   []SeasonWindow
	Tiers     []AdvanceTier
	Coupons   []Coupon
	Policy    Policy
}

// Catalog is the immutable pricing configuration shared by all requests.
type Catalog struct {
	productID string
	currency  string
	rooms     map[string]RoomType
	roomIDs   []string
	seasons   []SeasonWindow
	tiers     []AdvanceTier
	coupons   map[string]float64
	policy    Policy
	blackouts map[string]struct{}
}

// NewCatalog validates cfg and freezes it. Season windows keep their order;
// tiers must be strictly descending by Days.
func NewCatalog(cfg CatalogConfig) (*Catalog, error) {
	if cfg.ProductID == "" {
		return nil, fmt.Errorf("%w: product id is required", ErrInvalidCatalog)
	}
	if len(cfg.Rooms) == 0 {
		return nil, fmt.Errorf("%w: at least one room type is required", ErrInvalidCatalog)
	}
	if cfg.Policy.CapacityPerDay <= 0 {
		return nil, fmt.Errorf("%w: capacity per day must be positive", ErrInvalidCatalog)
	}
	if cfg.Policy.MinStayNights < 0 {
		return nil, fmt.Errorf("%w: minimum stay cannot be negative", ErrInvalidCatalog)
	}
	maxNights := cfg.Policy.MaxStayNights
	switch {
	case maxNights < 0:
		return nil, fmt.Errorf("%w: maximum stay cannot be negative", ErrInvalidCatalog)
	case maxNights == 0:
		maxNights = DefaultMaxStayNights
	}
	if maxNights < max(cfg.Policy.MinStayNights, 1) {
		return nil, fmt.Errorf("%w: maximum stay %d is below the minimum stay", ErrInvalidCatalog, maxNights)
	}

	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}

	c := &Catalog{
		productID: cfg.ProductID,
		currency:  currency,
		rooms:     make(map[string]RoomType, len(cfg.Rooms)),
		coupons:   make(map[string]float64, len(cfg.Coupons)),
		blackouts: make(map[string]struct{}, len(cfg.Policy.Blackouts)),
	}

	for _, room := range cfg.Rooms {
		key := strings.ToLower(strings.TrimSpace(room.ID))
		if key == "" {
			return nil, fmt.Errorf("%w: room type id is required", ErrInvalidCatalog)
		}
		if room.BasePrice <= 0 {
			return nil, fmt.Errorf("%w: room %q base price must be positive", ErrInvalidCatalog, room.ID)
		}
		if room.MaxGuests <= 0 {
			return nil, fmt.Errorf("%w: room %q max guests must be positive", ErrInvalidCatalog, room.ID)
		}
		if _, dup := c.rooms[key]; dup {
			return nil, fmt.Errorf("%w: duplicate room type %q", ErrInvalidCatalog, room.ID)
		}
		c.rooms[key] = room
		c.roomIDs = append(c.roomIDs, room.ID)
	}

	for i, s := range cfg.Seasons {
		if s.Factor <= 0 {
			return nil, fmt.Errorf("%w: season %d factor must be positive", ErrInvalidCatalog, i)
		}
		window := SeasonWindow{From: dates.Day(s.From), To: dates.Day(s.To), Factor: s.Factor}
		if window.To.Before(window.From) {
			return nil, fmt.Errorf("%w: season %d ends before it starts", ErrInvalidCatalog, i)
		}
		c.seasons = append(c.seasons, window)
	}

	for i, tier := range cfg.Tiers {
		if tier.Days < 1 {
			return nil, fmt.Errorf("%w: tier %d must require at least one day ahead", ErrInvalidCatalog, i)
		}
		if tier.Discount < 0 || tier.Discount >= 1 {
			return nil, fmt.Errorf("%w: tier %d discount must be in [0,1)", ErrInvalidCatalog, i)
		}
		if i > 0 && tier.Days >= cfg.Tiers[i-1].Days {
			return nil, fmt.Errorf("%w: tiers must be strictly descending by days", ErrInvalidCatalog)
		}
		c.tiers = append(c.tiers, tier)
	}

	for _, coupon := range cfg.Coupons {
		if coupon.Code == "" {
			return nil, fmt.Errorf("%w: coupon code is required", ErrInvalidCatalog)
		}
		if coupon.Discount < 0 || coupon.Discount >= 1 {
			return nil, fmt.Errorf("%w: coupon %q discount must be in [0,1)", ErrInvalidCatalog, coupon.Code)
		}
		c.coupons[coupon.Code] = coupon.Discount
	}

	blackouts := make([]time.Time, 0, len(cfg.Policy.Blackouts))
	for _, day := range cfg.Policy.Blackouts {
		day = dates.Day(day)
		c.blackouts[dates.Format(day)] = struct{}{}
		blackouts = append(blackouts, day)
	}
	sort.Slice(blackouts, func(i, j int) bool { return blackouts[i].Before(blackouts[j]) })
	c.policy = Policy{
		MinStayNights:  cfg.Policy.MinStayNights,
		MaxStayNights:  maxNights,
		CapacityPerDay: cfg.Policy.CapacityPerDay,
		Blackouts:      blackouts,
	}

	return c, nil
}

func (c *Catalog) ProductID() string { return c.productID }

func (c *Catalog) Currency() string { return c.currency }

// Policy returns a copy of the booking policy.
func (c *Catalog) Policy() Policy {
	p := c.policy
	p.Blackouts = append([]time.Time(nil), c.policy.Blackouts...)
	return p
}

// Room looks up a room type, ignoring case.
func (c *Catalog) Room(id string) (RoomType, bool) {
	room, ok := c.rooms[strings.ToLower(strings.TrimSpace(id))]
	return room, ok
}

// RoomIDs lists room type ids in configuration order.
func (c *Catalog) RoomIDs() []string {
	return append([]string(nil), c.roomIDs...)
}

// IsBlackout reports whether no stay may occupy day.
func (c *Catalog) IsBlackout(day time.Time) bool {
	_, ok := c.blackouts[dates.Format(day)]
	return ok
}

// SeasonFactor is the factor of the first window containing day, or 1.
func (c *Catalog) SeasonFactor(day time.Time) float64 {
	for _, s := range c.seasons {
		if s.Contains(day) {
			return s.Factor
		}
	}
	return 1.0
}

// AdvanceDiscount is the discount of the first tier whose threshold is met.
// A check-in on or before the reference day never earns one.
func (c *Catalog) AdvanceDiscount(daysUntilCheckIn int) float64 {
	if daysUntilCheckIn <= 0 {
		return 0
	}
	for _, tier := range c.tiers {
		if daysUntilCheckIn >= tier.Days {
			return tier.Discount
		}
	}
	return 0
}

// CouponDiscount looks up a coupon code exactly as configured.
func (c *Catalog) CouponDiscount(code string) (float64, bool) {
	discount, ok := c.coupons[code]
	return discount, ok
}
