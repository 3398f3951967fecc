package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/sicilystay/stayservice/internal/dates"
)

// Memory is a process-local ledger. A single mutex serializes every
// check-and-increment, so two commits can never both take the last slot.
type Memory struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewMemory() *Memory {
	return &Memory{counts: make(map[string]int)}
}

func (m *Memory) Count(_ context.Context, day time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[dates.Format(day)], nil
}

func (m *Memory) HasCapacity(ctx context.Context, day time.Time, capacity int) (bool, error) {
	n, err := m.Count(ctx, day)
	if err != nil {
		return false, err
	}
	return n < capacity, nil
}

func (m *Memory) Snapshot(_ context.Context, r dates.Range) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(Snapshot, r.Nights())
	for _, day := range r.Days() {
		key := dates.Format(day)
		out[key] = m.counts[key]
	}
	return out, nil
}

func (m *Memory) Commit(_ context.Context, r dates.Range, capacity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	days := r.Days()
	for _, day := range days {
		if m.counts[dates.Format(day)] >= capacity {
			return &FullError{Day: day, Capacity: capacity}
		}
	}
	for _, day := range days {
		m.counts[dates.Format(day)]++
	}
	return nil
}
