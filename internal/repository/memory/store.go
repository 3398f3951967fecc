package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/sicilystay/stayservice/internal/domain"
	"github.com/sicilystay/stayservice/internal/repository"
)

// Store keeps bookings in process memory. Contents are lost on restart.
type Store struct {
	mu       sync.RWMutex
	bookings map[string]domain.Booking
	order    []string
}

var _ repository.BookingRepository = (*Store)(nil)

func NewStore() *Store {
	return &Store{bookings: make(map[string]domain.Booking)}
}

func (s *Store) Insert(ctx context.Context, booking domain.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bookings[booking.ID]; exists {
		return repository.ErrDuplicate
	}
	s.bookings[booking.ID] = booking
	s.order = append(s.order, booking.ID)
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return domain.Booking{}, repository.ErrNotFound
	}
	return b, nil
}

func (s *Store) List(ctx context.Context, filter repository.Filter) ([]domain.Booking, error) {
	s.mu.RLock()
	out := make([]domain.Booking, 0, len(s.order))
	for _, id := range s.order {
		b := s.bookings[id]
		if filter.Matches(b) {
			out = append(out, b)
		}
	}
	s.mu.RUnlock()

	// insertion order already follows creation, stable sort keeps ties in it
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }
