package notify

import (
	"context"
	"errors"

	"github.com/sicilystay/stayservice/internal/circuitbreaker"
	"github.com/sicilystay/stayservice/internal/domain"
	"github.com/sicilystay/stayservice/internal/metrics"
)

// Guarded skips a channel while its circuit breaker is open.
type Guarded struct {
	channel string
	next    Notifier
	breaker *circuitbreaker.CircuitBreaker
}

// NewGuarded wraps next with a breaker named after the channel
func NewGuarded(channel string, next Notifier, cfg circuitbreaker.Config) *Guarded {
	return &Guarded{
		channel: channel,
		next:    next,
		breaker: circuitbreaker.New("notify."+channel, cfg),
	}
}

func (g *Guarded) BookingReserved(ctx context.Context, booking domain.Booking) error {
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.next.BookingReserved(ctx, booking)
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		metrics.RecordNotification(g.channel, "skipped")
	}
	return err
}

// Breaker exposes the underlying breaker
func (g *Guarded) Breaker() *circuitbreaker.CircuitBreaker {
	return g.breaker
}
