package booking

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sicilystay/stayservice/internal/dates"
	"github.com/sicilystay/stayservice/internal/domain"
	"github.com/sicilystay/stayservice/internal/ledger"
	"github.com/sicilystay/stayservice/internal/log"
	"github.com/sicilystay/stayservice/internal/metrics"
	"github.com/sicilystay/stayservice/internal/notify"
	"github.com/sicilystay/stayservice/internal/pricing"
	"github.com/sicilystay/stayservice/internal/repository"
	"github.com/sicilystay/stayservice/internal/retry"
	"github.com/sicilystay/stayservice/internal/tracing"
)

// IDPrefix starts every booking id.
const IDPrefix = "BK-"

// Config tunes the booking service
type Config struct {
	// DefaultRoomType is used when a request names no room type.
	DefaultRoomType string
	// NotifyTimeout bounds one asynchronous notification.
	NotifyTimeout time.Duration
	// PersistTimeout bounds all persistence attempts of one booking.
	PersistTimeout time.Duration
	// Retry drives repeated persistence attempts.
	Retry retry.Config
}

// DefaultConfig returns the service defaults
func DefaultConfig() Config {
	return Config{
		DefaultRoomType: "standard",
		NotifyTimeout:   10 * time.Second,
		PersistTimeout:  15 * time.Second,
		Retry:           retry.DefaultConfig(),
	}
}

// QuoteInput is a raw quote request as received from a client.
type QuoteInput struct {
	CheckIn  string
	CheckOut string
	Guests   int
	RoomType string
	Coupon   string
}

// BookInput is a raw booking request.
type BookInput struct {
	QuoteInput
	Customer domain.Customer
}

// Option customises a Service
type Option func(*Service)

// WithClock replaces the wall clock used for the reference day and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces booking id generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// Service implements availability, quoting and booking for one product.
// It is safe for concurrent use.
type Service struct {
	calc     *pricing.Calculator
	ledger   ledger.Ledger
	repo     repository.BookingRepository
	notifier notify.Notifier
	cfg      Config

	now   func() time.Time
	newID func() string

	pending sync.WaitGroup
}

// NewService creates a booking service
func NewService(
	calc *pricing.Calculator,
	l ledger.Ledger,
	repo repository.BookingRepository,
	notifier notify.Notifier,
	cfg Config,
	opts ...Option,
) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	s := &Service{
		calc:     calc,
		ledger:   l,
		repo:     repo,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		newID:    func() string { return IDPrefix + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog exposes the pricing configuration in use
func (s *Service) Catalog() *pricing.Catalog {
	return s.calc.Catalog()
}

// Quote prices a stay without mutating anything.
func (s *Service) Quote(ctx context.Context, in QuoteInput) (pricing.Quote, error) {
	ctx, span := tracing.StartSpan(ctx, "booking.Quote",
		attribute.String("checkin", in.CheckIn),
		attribute.String("checkout", in.CheckOut),
		attribute.Int("guests", in.Guests))
	defer span.End()

	quote, err := s.evaluate(ctx, in)
	if err != nil {
		s.recordFailure(ctx, "quote", err)
		metrics.RecordQuote("rejected")
		return pricing.Quote{}, err
	}

	metrics.RecordQuote("accepted")
	log.L(ctx).Debug("Quote computed",
		zap.String("room_type", quote.RoomType),
		zap.Int("nights", quote.Nights),
		zap.Float64("total_price", quote.TotalPrice),
		zap.Float64("nightly_sum", quote.Breakdown.NightlySum),
		zap.Float64("advance_discount", quote.Breakdown.AdvanceDiscount),
		zap.Bool("coupon_applied", quote.Breakdown.CouponApplied))
	return quote, nil
}

// Book reserves a stay. Capacity is committed atomically before the booking
// is stored; a storage failure after that point is reported as
// *domain.PersistenceError and the committed capacity is kept.
func (s *Service) Book(ctx context.Context, in BookInput) (domain.Booking, error) {
	ctx, span := tracing.StartSpan(ctx, "booking.Book",
		attribute.String("checkin", in.CheckIn),
		attribute.String("checkout", in.CheckOut),
		attribute.Int("guests", in.Guests))
	defer span.End()

	customer, err := validateCustomer(in.Customer)
	if err != nil {
		s.recordFailure(ctx, "book", err)
		metrics.RecordBooking("rejected", "", 0)
		return domain.Booking{}, err
	}

	quote, err := s.evaluate(ctx, in.QuoteInput)
	if err != nil {
		s.recordFailure(ctx, "book", err)
		metrics.RecordBooking("rejected", "", 0)
		return domain.Booking{}, err
	}

	// evaluate already parsed both dates successfully
	checkIn, _ := dates.Parse(in.CheckIn)
	checkOut, _ := dates.Parse(in.CheckOut)
	stay := dates.NewRange(checkIn, checkOut)

	if err := s.commit(ctx, stay); err != nil {
		s.recordFailure(ctx, "book", err)
		metrics.RecordBooking("rejected", "", 0)
		return domain.Booking{}, err
	}

	b := domain.Booking{
		ID:         s.newID(),
		ProductID:  quote.ProductID,
		RoomType:   quote.RoomType,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Nights:     quote.Nights,
		Guests:     in.Guests,
		TotalPrice: quote.TotalPrice,
		Currency:   quote.Currency,
		Customer:   customer,
		Status:     domain.BookingStatusReserved,
		CreatedAt:  s.now().UTC(),
	}
	if quote.Breakdown.CouponApplied {
		b.Coupon = in.Coupon
	}
	ctx = log.WithBookingID(ctx, b.ID)
	span.SetAttributes(attribute.String("booking_id", b.ID))

	if err := s.persist(ctx, b); err != nil {
		perr := &domain.PersistenceError{BookingID: b.ID, Err: err}
		s.recordFailure(ctx, "book", perr)
		metrics.RecordBooking("failed", b.Currency, b.TotalPrice)
		return domain.Booking{}, perr
	}

	metrics.RecordBooking("reserved", b.Currency, b.TotalPrice)
	log.L(ctx).Info("Booking reserved",
		zap.String("room_type", b.RoomType),
		zap.String("stay", stay.String()),
		zap.Int("guests", b.Guests),
		zap.Float64("total_price", b.TotalPrice))

	s.notifyAsync(ctx, b)
	return b, nil
}

// Wait blocks until all notifications dispatched so far have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

// Ready reports whether the ledger and repository are reachable.
func (s *Service) Ready(ctx context.Context) error {
	if _, err := s.ledger.Count(ctx, dates.Today(s.now)); err != nil {
		return fmt.Errorf("ledger not ready: %w", err)
	}
	if err := s.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository not ready: %w", err)
	}
	return nil
}

func (s *Service) evaluate(ctx context.Context, in QuoteInput) (pricing.Quote, error) {
	checkIn, err := dates.Parse(in.CheckIn)
	if err != nil {
		return pricing.Quote{}, domain.NewMalformedDate("checkin", in.CheckIn)
	}
	checkOut, err := dates.Parse(in.CheckOut)
	if err != nil {
		return pricing.Quote{}, domain.NewMalformedDate("checkout", in.CheckOut)
	}

	roomType := strings.TrimSpace(in.RoomType)
	if roomType == "" {
		roomType = s.cfg.DefaultRoomType
	}

	req := pricing.StayRequest{
		CheckIn:  checkIn,
		CheckOut: checkOut,
		Guests:   in.Guests,
		RoomType: roomType,
		Coupon:   strings.TrimSpace(in.Coupon),
		Today:    dates.Today(s.now),
	}
	if err := s.calc.Precheck(req); err != nil {
		return pricing.Quote{}, err
	}

	snapshot, err := s.ledger.Snapshot(ctx, req.Range())
	if err != nil {
		return pricing.Quote{}, fmt.Errorf("failed to read capacity: %w", err)
	}
	return s.calc.Evaluate(req, snapshot)
}

func (s *Service) commit(ctx context.Context, stay dates.Range) error {
	capacity := s.Catalog().Policy().CapacityPerDay

	start := time.Now()
	err := s.ledger.Commit(ctx, stay, capacity)

	var full *ledger.FullError
	switch {
	case err == nil:
		metrics.RecordLedgerCommit("committed", time.Since(start))
		return nil
	case errors.As(err, &full):
		metrics.RecordLedgerCommit("full", time.Since(start))
		return domain.NewCapacityExceeded(full.Day, full.Capacity)
	default:
		metrics.RecordLedgerCommit("error", time.Since(start))
		return fmt.Errorf("failed to commit capacity: %w", err)
	}
}

func (s *Service) persist(ctx context.Context, b domain.Booking) error {
	// capacity is already committed: a client going away must not abandon the write
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.PersistTimeout)
	defer cancel()

	return retry.Do(ctx, s.cfg.Retry, func(ctx context.Context) error {
		err := s.repo.Insert(ctx, b)
		if errors.Is(err, repository.ErrDuplicate) {
			return retry.Permanent(err)
		}
		return err
	})
}

func (s *Service) notifyAsync(ctx context.Context, b domain.Booking) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.NotifyTimeout)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer cancel()

		if err := s.notifier.BookingReserved(ctx, b); err != nil {
			metrics.RecordError("notification", "booking")
			log.L(ctx).Warn("Booking notification failed", zap.Error(err))
		}
	}()
}

func (s *Service) recordFailure(ctx context.Context, operation string, err error) {
	if rej, ok := domain.AsRejection(err); ok {
		metrics.RecordRejection(operation, string(rej.Reason))
		log.L(ctx).Info("Request rejected",
			zap.String("operation", operation),
			zap.String("reason", string(rej.Reason)),
			zap.String("detail", rej.Message))
		return
	}

	tracing.RecordError(ctx, err)
	metrics.RecordError("internal", operation)
	log.L(ctx).Error("Request failed", zap.String("operation", operation), zap.Error(err))
}

func validateCustomer(c domain.Customer) (domain.Customer, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return domain.Customer{}, domain.NewInvalidCustomer("customer name is required")
	}
	email := strings.TrimSpace(c.Email)
	if email == "" {
		return domain.Customer{}, domain.NewInvalidCustomer("customer email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return domain.Customer{}, domain.NewInvalidCustomer(fmt.Sprintf("customer email %q is not valid", email))
	}
	return domain.Customer{Name: name, Email: addr.Address}, nil
}
