package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sicilystay/stayservice/internal/dates"
	"github.com/sicilystay/stayservice/internal/domain"
	"github.com/sicilystay/stayservice/internal/repository"
)

func booking(id, checkIn string, created time.Time) domain.Booking {
	in := dates.MustParse(checkIn)
	return domain.Booking{
		ID:         id,
		ProductID:  "sicily-stay-car-01",
		RoomType:   "standard",
		CheckIn:    in,
		CheckOut:   dates.AddDays(in, 2),
		Nights:     2,
		Guests:     2,
		TotalPrice: 140,
		Currency:   "EUR",
		Customer:   domain.Customer{Name: "Ada", Email: "ada@example.com"},
		Status:     domain.BookingStatusReserved,
		CreatedAt:  created,
	}
}

func TestStore_InsertGet(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	b := booking("BK-1", "2025-07-01", time.Now())

	require.NoError(t, s.Insert(ctx, b))

	got, err := s.Get(ctx, "BK-1")
	require.NoError(t, err)
	assert.Equal(t, b, got)

	assert.ErrorIs(t, s.Insert(ctx, b), repository.ErrDuplicate)

	_, err = s.Get(ctx, "BK-missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_List(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Insert(ctx, booking("BK-b", "2025-07-10", base.Add(time.Minute))))
	require.NoError(t, s.Insert(ctx, booking("BK-a", "2025-07-01", base)))
	require.NoError(t, s.Insert(ctx, booking("BK-c", "2025-08-01", base.Add(2*time.Minute))))

	tests := []struct {
		name   string
		filter repository.Filter
		want   []string
	}{
		{name: "all", filter: repository.Filter{}, want: []string{"BK-a", "BK-b", "BK-c"}},
		{name: "from", filter: repository.Filter{CheckInFrom: dates.MustParse("2025-07-10")}, want: []string{"BK-b", "BK-c"}},
		{name: "to inclusive", filter: repository.Filter{CheckInTo: dates.MustParse("2025-07-10")}, want: []string{"BK-a", "BK-b"}},
		{name: "limit", filter: repository.Filter{Limit: 1}, want: []string{"BK-a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]string, len(got))
			for i, b := range got {
				ids[i] = b.ID
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestStore_ConcurrentInsert(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	done := make(chan error)
	for i := 0; i < 20; i++ {
		go func(i int) {
			done <- s.Insert(ctx, booking(fmt.Sprintf("BK-%d", i), "2025-07-01", time.Now()))
		}(i)
	}
	for i := 0; i < 20; i++ {
		require.NoError(t, <-done)
	}

	all, err := s.List(ctx, repository.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 20)
}
