package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sicilystay/stayservice/internal/dates"
	"github.com/sicilystay/stayservice/internal/domain"
	"github.com/sicilystay/stayservice/internal/ledger"
	"github.com/sicilystay/stayservice/internal/pricing"
	"github.com/sicilystay/stayservice/internal/repository"
	"github.com/sicilystay/stayservice/internal/repository/memory"
	"github.com/sicilystay/stayservice/internal/retry"
)

func day(s string) time.Time { return dates.MustParse(s) }

func testCatalog(t *testing.T) *pricing.Catalog {
	t.Helper()
	catalog, err := pricing.NewCatalog(pricing.CatalogConfig{
		ProductID: "sicily-stay-car-01",
		Rooms: []pricing.RoomType{
			{ID: "standard", BasePrice: 70, MaxGuests: 2},
			{ID: "deluxe", BasePrice: 95, MaxGuests: 3},
			{ID: "family", BasePrice: 110, MaxGuests: 4},
		},
		Seasons: []pricing.SeasonWindow{
			{From: day("2025-06-01"), To: day("2025-09-15"), Factor: 1.25},
		},
		Tiers: []pricing.AdvanceTier{
			{Days: 120, Discount: 0.10},
			{Days: 60, Discount: 0.06},
			{Days: 30, Discount: 0.03},
		},
		Coupons: []pricing.Coupon{{Code: "WELCOME10", Discount: 0.10}},
		Policy: pricing.Policy{
			MinStayNights:  2,
			CapacityPerDay: 5,
			Blackouts:      []time.Time{day("2025-08-15")},
		},
	})
	require.NoError(t, err)
	return catalog
}

// recordingNotifier collects delivered bookings.
type recordingNotifier struct {
	mu       sync.Mutex
	bookings []domain.Booking
	err      error
}

func (n *recordingNotifier) BookingReserved(_ context.Context, b domain.Booking) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bookings = append(n.bookings, b)
	return n.err
}

func (n *recordingNotifier) delivered() []domain.Booking {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Booking(nil), n.bookings...)
}

// failingRepo rejects every insert.
type failingRepo struct {
	*memory.Store
	attempts atomic.Int32
}

func (r *failingRepo) Insert(context.Context, domain.Booking) error {
	r.attempts.Add(1)
	return errors.New("connection refused")
}

// staleLedger hides committed counts from Snapshot, simulating a request that
// read capacity before a concurrent booking committed.
type staleLedger struct {
	ledger.Ledger
}

func (staleLedger) Snapshot(context.Context, dates.Range) (ledger.Snapshot, error) {
	return ledger.Snapshot{}, nil
}

// unreadableLedger fails every read and counts the attempts.
type unreadableLedger struct {
	ledger.Ledger
	snapshots atomic.Int32
}

func (l *unreadableLedger) Snapshot(context.Context, dates.Range) (ledger.Snapshot, error) {
	l.snapshots.Add(1)
	return nil, errors.New("ledger unavailable")
}

type fixture struct {
	svc      *Service
	ledger   ledger.Ledger
	repo     repository.BookingRepository
	notifier *recordingNotifier
}

func newFixture(t *testing.T, opts ...func(*fixture)) *fixture {
	t.Helper()
	f := &fixture{
		ledger:   ledger.NewMemory(),
		repo:     memory.NewStore(),
		notifier: &recordingNotifier{},
	}
	for _, opt := range opts {
		opt(f)
	}

	cfg := DefaultConfig()
	cfg.Retry = retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}

	f.svc = NewService(pricing.NewCalculator(testCatalog(t)), f.ledger, f.repo, f.notifier, cfg,
		WithClock(func() time.Time { return time.Date(2025, 6, 30, 9, 0, 0, 0, time.UTC) }))
	return f
}

func stayInput() QuoteInput {
	return QuoteInput{CheckIn: "2025-07-01", CheckOut: "2025-07-03", Guests: 2, RoomType: "standard"}
}

func bookInput() BookInput {
	return BookInput{
		QuoteInput: stayInput(),
		Customer:   domain.Customer{Name: "Ada Lovelace", Email: "Ada <ada@example.com>"},
	}
}

func requireReason(t *testing.T, err error, want domain.Reason) {
	t.Helper()
	rej, ok := domain.AsRejection(err)
	require.True(t, ok, "expected rejection %s, got %v", want, err)
	assert.Equal(t, want, rej.Reason)
}

func TestService_Quote(t *testing.T) {
	tests := []struct {
		name      string
		in        QuoteInput
		wantTotal float64
		wantRoom  string
	}{
		{name: "iso dates", in: stayInput(), wantTotal: 175.00, wantRoom: "standard"},
		{name: "european dates", in: QuoteInput{CheckIn: "01/07/2025", CheckOut: "03/07/2025", Guests: 2, RoomType: "standard"}, wantTotal: 175.00, wantRoom: "standard"},
		{name: "coupon", in: QuoteInput{CheckIn: "2025-07-01", CheckOut: "2025-07-03", Guests: 2, RoomType: "standard", Coupon: "WELCOME10"}, wantTotal: 157.50, wantRoom: "standard"},
		{name: "unknown coupon ignored", in: QuoteInput{CheckIn: "2025-07-01", CheckOut: "2025-07-03", Guests: 2, RoomType: "standard", Coupon: "welcome10"}, wantTotal: 175.00, wantRoom: "standard"},
		{name: "default room type", in: QuoteInput{CheckIn: "2025-07-01", CheckOut: "2025-07-03", Guests: 1}, wantTotal: 175.00, wantRoom: "standard"},
		{name: "room type case-insensitive", in: QuoteInput{CheckIn: "2025-07-01", CheckOut: "2025-07-03", Guests: 2, RoomType: "DELUXE"}, wantTotal: 237.50, wantRoom: "deluxe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			q, err := f.svc.Quote(context.Background(), tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, q.TotalPrice)
			assert.Equal(t, tt.wantRoom, q.RoomType)
			assert.Equal(t, 2, q.Nights)
			assert.Equal(t, "EUR", q.Currency)
			assert.Equal(t, "sicily-stay-car-01", q.ProductID)
		})
	}
}

func TestService_QuoteRejections(t *testing.T) {
	tests := []struct {
		name string
		in   QuoteInput
		want domain.Reason
	}{
		{name: "malformed checkin", in: QuoteInput{CheckIn: "2025/07/01", CheckOut: "2025-07-03", Guests: 2}, want: domain.ReasonMalformedDate},
		{name: "missing checkout", in: QuoteInput{CheckIn: "2025-07-01", Guests: 2}, want: domain.ReasonMalformedDate},
		{name: "unknown room", in: QuoteInput{CheckIn: "2025-07-01", CheckOut: "2025-07-03", Guests: 2, RoomType: "suite"}, want: domain.ReasonInvalidRoomType},
		{name: "too many guests", in: QuoteInput{CheckIn: "2025-07-01", CheckOut: "2025-07-03", Guests: 3, RoomType: "standard"}, want: domain.ReasonInvalidGuestCount},
		{name: "one night", in: QuoteInput{CheckIn: "2025-07-01", CheckOut: "2025-07-02", Guests: 2}, want: domain.ReasonStayTooShort},
		{name: "full calendar", in: QuoteInput{CheckIn: "0001-01-01", CheckOut: "9999-12-31", Guests: 2}, want: domain.ReasonStayTooLong},
		{name: "blackout night", in: QuoteInput{CheckIn: "2025-08-14", CheckOut: "2025-08-16", Guests: 2}, want: domain.ReasonDateBlackedOut},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Quote(context.Background(), tt.in)
			requireReason(t, err, tt.want)
		})
	}
}

func TestService_RequestChecksRunBeforeLedgerRead(t *testing.T) {
	tests := []struct {
		name string
		in   QuoteInput
		want domain.Reason
	}{
		{name: "unknown room", in: QuoteInput{CheckIn: "2025-07-01", CheckOut: "2025-07-03", Guests: 2, RoomType: "suite"}, want: domain.ReasonInvalidRoomType},
		{name: "too many guests over full calendar", in: QuoteInput{CheckIn: "0001-01-01", CheckOut: "9999-12-31", Guests: 9}, want: domain.ReasonInvalidGuestCount},
		{name: "full calendar", in: QuoteInput{CheckIn: "0001-01-01", CheckOut: "9999-12-31", Guests: 2}, want: domain.ReasonStayTooLong},
		{name: "one night", in: QuoteInput{CheckIn: "2025-07-01", CheckOut: "2025-07-02", Guests: 2}, want: domain.ReasonStayTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			broken := &unreadableLedger{}
			f := newFixture(t, func(f *fixture) { f.ledger = broken })

			_, err := f.svc.Quote(context.Background(), tt.in)
			requireReason(t, err, tt.want)

			_, err = f.svc.Book(context.Background(), BookInput{QuoteInput: tt.in, Customer: bookInput().Customer})
			requireReason(t, err, tt.want)
			assert.Zero(t, broken.snapshots.Load())
		})
	}
}

func TestService_QuoteLedgerReadFailure(t *testing.T) {
	broken := &unreadableLedger{}
	f := newFixture(t, func(f *fixture) { f.ledger = broken })

	_, err := f.svc.Quote(context.Background(), stayInput())
	require.Error(t, err)
	_, isRejection := domain.AsRejection(err)
	assert.False(t, isRejection)
	assert.Equal(t, int32(1), broken.snapshots.Load())
}

func TestService_QuoteDoesNotMutateLedger(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 10; i++ {
		_, err := f.svc.Quote(context.Background(), stayInput())
		require.NoError(t, err)
	}
	n, err := f.ledger.Count(context.Background(), day("2025-07-01"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestService_Book(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before, err := f.svc.Availability(ctx, "2025-07-02")
	require.NoError(t, err)

	in := bookInput()
	in.Coupon = "WELCOME10"
	b, err := f.svc.Book(ctx, in)
	require.NoError(t, err)
	f.svc.Wait()

	assert.Regexp(t, `^BK-[0-9a-f-]{36}$`, b.ID)
	assert.Equal(t, 157.50, b.TotalPrice)
	assert.Equal(t, "WELCOME10", b.Coupon)
	assert.Equal(t, domain.BookingStatusReserved, b.Status)
	assert.Equal(t, "ada@example.com", b.Customer.Email)
	assert.Equal(t, "Ada Lovelace", b.Customer.Name)
	assert.Equal(t, day("2025-07-01"), b.CheckIn)
	assert.Equal(t, day("2025-07-03"), b.CheckOut)

	stored, err := f.repo.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b, stored)

	delivered := f.notifier.delivered()
	require.Len(t, delivered, 1)
	assert.Equal(t, b.ID, delivered[0].ID)

	after, err := f.svc.Availability(ctx, "2025-07-02")
	require.NoError(t, err)
	assert.Equal(t, before.Slots-1, after.Slots)

	checkout, err := f.svc.Availability(ctx, "2025-07-03")
	require.NoError(t, err)
	assert.Equal(t, 5, checkout.Slots, "checkout day is not occupied")
}

func TestService_BookUniqueIDs(t *testing.T) {
	f := newFixture(t)
	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		b, err := f.svc.Book(context.Background(), bookInput())
		require.NoError(t, err)
		assert.False(t, seen[b.ID], "duplicate id %s", b.ID)
		seen[b.ID] = true
	}
}

func TestService_BookInvalidCustomer(t *testing.T) {
	tests := []struct {
		name     string
		customer domain.Customer
	}{
		{name: "missing name", customer: domain.Customer{Email: "ada@example.com"}},
		{name: "missing email", customer: domain.Customer{Name: "Ada"}},
		{name: "bad email", customer: domain.Customer{Name: "Ada", Email: "not-an-address"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := bookInput()
			in.Customer = tt.customer
			_, err := f.svc.Book(context.Background(), in)
			requireReason(t, err, domain.ReasonInvalidCustomer)

			n, err := f.ledger.Count(context.Background(), day("2025-07-01"))
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestService_BookSixthIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.svc.Book(ctx, bookInput())
		require.NoError(t, err, "booking %d", i+1)
	}

	_, err := f.svc.Book(ctx, bookInput())
	requireReason(t, err, domain.ReasonCapacityExceeded)

	avail, err := f.svc.Availability(ctx, "2025-07-01")
	require.NoError(t, err)
	assert.False(t, avail.Available)
	assert.Zero(t, avail.Slots)
}

func TestService_BookLostRaceIsCapacityExceeded(t *testing.T) {
	shared := ledger.NewMemory()
	for i := 0; i < 5; i++ {
		require.NoError(t, shared.Commit(context.Background(), dates.NewRange(day("2025-07-02"), day("2025-07-03")), 5))
	}

	f := newFixture(t, func(f *fixture) { f.ledger = staleLedger{Ledger: shared} })

	_, err := f.svc.Book(context.Background(), bookInput())
	requireReason(t, err, domain.ReasonCapacityExceeded)

	rej, _ := domain.AsRejection(err)
	assert.Equal(t, day("2025-07-02"), rej.Date)

	n, err := shared.Count(context.Background(), day("2025-07-01"))
	require.NoError(t, err)
	assert.Zero(t, n, "no partial commit")
}

func TestService_ConcurrentBookingsNeverOversell(t *testing.T) {
	f := newFixture(t)
	const attempts = 30

	var (
		wg       sync.WaitGroup
		reserved atomic.Int32
		full     atomic.Int32
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := bookInput()
			in.Customer.Name = fmt.Sprintf("Guest %d", i)
			_, err := f.svc.Book(context.Background(), in)
			if err == nil {
				reserved.Add(1)
				return
			}
			if rej, ok := domain.AsRejection(err); ok && rej.Reason == domain.ReasonCapacityExceeded {
				full.Add(1)
				return
			}
			t.Errorf("unexpected error: %v", err)
		}(i)
	}
	wg.Wait()
	f.svc.Wait()

	assert.EqualValues(t, 5, reserved.Load())
	assert.EqualValues(t, attempts-5, full.Load())

	for _, d := range []string{"2025-07-01", "2025-07-02"} {
		n, err := f.ledger.Count(context.Background(), day(d))
		require.NoError(t, err)
		assert.Equal(t, 5, n)
	}

	stored, err := f.repo.List(context.Background(), repository.Filter{})
	require.NoError(t, err)
	assert.Len(t, stored, 5)
}

func TestService_BookPersistenceFailureKeepsCapacity(t *testing.T) {
	repo := &failingRepo{Store: memory.NewStore()}
	f := newFixture(t, func(f *fixture) { f.repo = repo })

	_, err := f.svc.Book(context.Background(), bookInput())

	perr, ok := domain.AsPersistenceError(err)
	require.True(t, ok, "expected PersistenceError, got %v", err)
	assert.Regexp(t, `^BK-`, perr.BookingID)
	_, isRejection := domain.AsRejection(err)
	assert.False(t, isRejection)
	assert.EqualValues(t, 2, repo.attempts.Load(), "persistence is retried")

	n, err := f.ledger.Count(context.Background(), day("2025-07-01"))
	require.NoError(t, err)
	assert.Equal(t, 1, n, "seat stays taken")

	f.svc.Wait()
	assert.Empty(t, f.notifier.delivered(), "failed bookings are not announced")
}

func TestService_BookNotificationFailureIsSwallowed(t *testing.T) {
	f := newFixture(t, func(f *fixture) { f.notifier.err = errors.New("smtp down") })

	b, err := f.svc.Book(context.Background(), bookInput())
	require.NoError(t, err)
	f.svc.Wait()

	assert.Len(t, f.notifier.delivered(), 1)
	_, err = f.repo.Get(context.Background(), b.ID)
	assert.NoError(t, err)
}

func TestService_BookWithFixedIDs(t *testing.T) {
	f := newFixture(t)
	f.svc.newID = func() string { return "BK-fixed" }

	_, err := f.svc.Book(context.Background(), bookInput())
	require.NoError(t, err)

	// a duplicate id is not retried and surfaces as a persistence failure
	_, err = f.svc.Book(context.Background(), bookInput())
	perr, ok := domain.AsPersistenceError(err)
	require.True(t, ok)
	assert.ErrorIs(t, perr, repository.ErrDuplicate)
}

func TestService_Ready(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.svc.Ready(context.Background()))
}
