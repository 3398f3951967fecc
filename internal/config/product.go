package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/sicilystay/stayservice/internal/dates"
	"github.com/sicilystay/stayservice/internal/pricing"
)

// ProductConfig is the single product being sold. Dates are YYYY-MM-DD or
// DD/MM/YYYY strings.
type ProductConfig struct {
	ID              string         `mapstructure:"id"`
	Currency        string         `mapstructure:"currency"`
	DefaultRoomType string         `mapstructure:"default_room_type"`
	MinStayNights   int            `mapstructure:"min_stay_nights"`
	MaxStayNights   int            `mapstructure:"max_stay_nights"`
	CapacityPerDay  int            `mapstructure:"capacity_per_day"`
	Blackouts       []string       `mapstructure:"blackouts"`
	Rooms           []RoomConfig   `mapstructure:"rooms"`
	Seasons         []SeasonConfig `mapstructure:"seasons"`
	AdvanceTiers    []TierConfig   `mapstructure:"advance_tiers"`
	Coupons         []CouponConfig `mapstructure:"coupons"`
}

// RoomConfig describes a room type
type RoomConfig struct {
	ID        string  `mapstructure:"id"`
	BasePrice float64 `mapstructure:"base_price"`
	MaxGuests int     `mapstructure:"max_guests"`
}

// SeasonConfig is an inclusive window with a price factor
type SeasonConfig struct {
	From   string  `mapstructure:"from"`
	To     string  `mapstructure:"to"`
	Factor float64 `mapstructure:"factor"`
}

// TierConfig grants Discount when check-in is at least Days away
type TierConfig struct {
	Days     int     `mapstructure:"days"`
	Discount float64 `mapstructure:"discount"`
}

// CouponConfig maps a case-sensitive code to a discount. Coupons are a list
// because viper lower-cases map keys.
type CouponConfig struct {
	Code     string  `mapstructure:"code"`
	Discount float64 `mapstructure:"discount"`
}

func setProductDefaults(v *viper.Viper) {
	v.SetDefault("product.id", "sicily-stay-car-01")
	v.SetDefault("product.currency", pricing.DefaultCurrency)
	v.SetDefault("product.default_room_type", "standard")
	v.SetDefault("product.min_stay_nights", 2)
	v.SetDefault("product.max_stay_nights", 30)
	v.SetDefault("product.capacity_per_day", 5)
	v.SetDefault("product.blackouts", []string{"2025-08-15"})
	v.SetDefault("product.rooms", []map[string]any{
		{"id": "standard", "base_price": 70.0, "max_guests": 2},
		{"id": "deluxe", "base_price": 95.0, "max_guests": 3},
		{"id": "family", "base_price": 110.0, "max_guests": 4},
	})
	v.SetDefault("product.seasons", []map[string]any{
		{"from": "2025-06-01", "to": "2025-09-15", "factor": 1.25},
		{"from": "2025-12-20", "to": "2026-01-06", "factor": 1.20},
	})
	v.SetDefault("product.advance_tiers", []map[string]any{
		{"days": 120, "discount": 0.10},
		{"days": 60, "discount": 0.06},
		{"days": 30, "discount": 0.03},
	})
	v.SetDefault("product.coupons", []map[string]any{
		{"code": "WELCOME10", "discount": 0.10},
		{"code": "STUDENT5", "discount": 0.05},
	})
}

// Catalog converts the product section into a validated pricing catalog.
func (c *Config) Catalog() (*pricing.Catalog, error) {
	p := c.Product

	blackouts := make([]time.Time, 0, len(p.Blackouts))
	for _, raw := range p.Blackouts {
		d, err := dates.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("product.blackouts: %w", err)
		}
		blackouts = append(blackouts, d)
	}

	rooms := make([]pricing.RoomType, 0, len(p.Rooms))
	for _, r := range p.Rooms {
		rooms = append(rooms, pricing.RoomType{ID: r.ID, BasePrice: r.BasePrice, MaxGuests: r.MaxGuests})
	}

	seasons := make([]pricing.SeasonWindow, 0, len(p.Seasons))
	for i, s := range p.Seasons {
		from, err := dates.Parse(s.From)
		if err != nil {
			return nil, fmt.Errorf("product.seasons[%d].from: %w", i, err)
		}
		to, err := dates.Parse(s.To)
		if err != nil {
			return nil, fmt.Errorf("product.seasons[%d].to: %w", i, err)
		}
		seasons = append(seasons, pricing.SeasonWindow{From: from, To: to, Factor: s.Factor})
	}

	tiers := make([]pricing.AdvanceTier, 0, len(p.AdvanceTiers))
	for _, t := range p.AdvanceTiers {
		tiers = append(tiers, pricing.AdvanceTier{Days: t.Days, Discount: t.Discount})
	}

	coupons := make([]pricing.Coupon, 0, len(p.Coupons))
	for _, cp := range p.Coupons {
		coupons = append(coupons, pricing.Coupon{Code: cp.Code, Discount: cp.Discount})
	}

	catalog, err := pricing.NewCatalog(pricing.CatalogConfig{
		ProductID: p.ID,
		Currency:  p.Currency,
		Rooms:     rooms,
		Seasons:   seasons,
		Tiers:     tiers,
		Coupons:   coupons,
		Policy: pricing.Policy{
			MinStayNights:  p.MinStayNights,
			MaxStayNights:  p.MaxStayNights,
			CapacityPerDay: p.CapacityPerDay,
			Blackouts:      blackouts,
		},
	})
	if err != nil {
		return nil, err
	}

	if p.DefaultRoomType != "" {
		if _, ok := catalog.Room(p.DefaultRoomType); !ok {
			return nil, fmt.Errorf("%w: default room type %q is not configured", pricing.ErrInvalidCatalog, p.DefaultRoomType)
		}
	}
	return catalog, nil
}
