package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sicilystay/stayservice/internal/dates"
)

// runLedgerContract exercises the behaviour every Ledger must share.
func runLedgerContract(t *testing.T, newLedger func(t *testing.T) Ledger) {
	ctx := context.Background()
	stay := dates.NewRange(dates.MustParse("2025-07-01"), dates.MustParse("2025-07-03"))

	t.Run("empty ledger", func(t *testing.T) {
		l := newLedger(t)
		n, err := l.Count(ctx, dates.MustParse("2025-07-01"))
		require.NoError(t, err)
		assert.Zero(t, n)

		ok, err := l.HasCapacity(ctx, dates.MustParse("2025-07-01"), 5)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("commit increments every night once", func(t *testing.T) {
		l := newLedger(t)
		require.NoError(t, l.Commit(ctx, stay, 5))
		require.NoError(t, l.Commit(ctx, stay, 5))

		snap, err := l.Snapshot(ctx, dates.NewRange(dates.MustParse("2025-06-30"), dates.MustParse("2025-07-04")))
		require.NoError(t, err)
		assert.Equal(t, 0, snap.CountOn(dates.MustParse("2025-06-30")))
		assert.Equal(t, 2, snap.CountOn(dates.MustParse("2025-07-01")))
		assert.Equal(t, 2, snap.CountOn(dates.MustParse("2025-07-02")))
		// checkout day is not occupied
		assert.Equal(t, 0, snap.CountOn(dates.MustParse("2025-07-03")))
	})

	t.Run("full day rejects whole range atomically", func(t *testing.T) {
		l := newLedger(t)
		second := dates.NewRange(dates.MustParse("2025-07-02"), dates.MustParse("2025-07-03"))
		for i := 0; i < 3; i++ {
			require.NoError(t, l.Commit(ctx, second, 3))
		}

		err := l.Commit(ctx, stay, 3)
		var full *FullError
		require.True(t, errors.As(err, &full), "expected FullError, got %v", err)
		assert.Equal(t, "2025-07-02", dates.Format(full.Day))
		assert.Equal(t, 3, full.Capacity)

		n, err := l.Count(ctx, dates.MustParse("2025-07-01"))
		require.NoError(t, err)
		assert.Zero(t, n, "no day may be incremented when any day is full")

		ok, err := l.HasCapacity(ctx, dates.MustParse("2025-07-02"), 3)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("empty range is a no-op", func(t *testing.T) {
		l := newLedger(t)
		empty := dates.NewRange(dates.MustParse("2025-07-01"), dates.MustParse("2025-07-01"))
		require.NoError(t, l.Commit(ctx, empty, 1))
		snap, err := l.Snapshot(ctx, empty)
		require.NoError(t, err)
		assert.Empty(t, snap)
	})

	t.Run("concurrent commits never oversell", func(t *testing.T) {
		l := newLedger(t)
		const capacity = 5
		const attempts = 40

		var wg sync.WaitGroup
		var accepted, rejected atomic.Int32
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := l.Commit(ctx, stay, capacity)
				var full *FullError
				switch {
				case err == nil:
					accepted.Add(1)
				case errors.As(err, &full):
					rejected.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.EqualValues(t, capacity, accepted.Load())
		assert.EqualValues(t, attempts-capacity, rejected.Load())
		for _, day := range stay.Days() {
			n, err := l.Count(ctx, day)
			require.NoError(t, err)
			assert.Equal(t, capacity, n)
		}
	})
}

func TestMemoryLedger(t *testing.T) {
	runLedgerContract(t, func(t *testing.T) Ledger { return NewMemory() })
}
