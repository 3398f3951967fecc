package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sicilystay/stayservice/internal/circuitbreaker"
	"github.com/sicilystay/stayservice/internal/dates"
	"github.com/sicilystay/stayservice/internal/domain"
	"github.com/sicilystay/stayservice/internal/retry"
)

func testBooking() domain.Booking {
	return domain.Booking{
		ID:         "BK-123",
		ProductID:  "sicily-stay-car-01",
		RoomType:   "deluxe",
		CheckIn:    dates.MustParse("2025-10-01"),
		CheckOut:   dates.MustParse("2025-10-04"),
		Nights:     3,
		Guests:     3,
		TotalPrice: 313.50,
		Currency:   "EUR",
		Customer:   domain.Customer{Name: "Ada Lovelace", Email: "ada@example.com"},
		Status:     domain.BookingStatusReserved,
	}
}

type recordingNotifier struct {
	calls int
	err   error
}

func (r *recordingNotifier) BookingReserved(context.Context, domain.Booking) error {
	r.calls++
	return r.err
}

func TestMulti(t *testing.T) {
	boom := errors.New("boom")
	ok := &recordingNotifier{}
	failing := &recordingNotifier{err: boom}
	last := &recordingNotifier{}

	err := Multi{ok, failing, last}.BookingReserved(context.Background(), testBooking())

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, ok.calls)
	assert.Equal(t, 1, last.calls, "later notifiers still run after a failure")
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, NewLogNotifier().BookingReserved(context.Background(), testBooking()))
}

func TestKafkaNotifier_Publishes(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "bookings" {
			return errors.New("unexpected topic " + msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "BK-123" {
			return errors.New("unexpected key " + string(key))
		}
		value, _ := msg.Value.Encode()
		var evt Event
		if err := json.Unmarshal(value, &evt); err != nil {
			return err
		}
		if evt.Type != EventBookingReserved || evt.Booking.ID != "BK-123" {
			return errors.New("unexpected payload")
		}
		return nil
	})

	n := NewKafkaNotifierWithProducer(producer, "bookings")
	n.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, n.BookingReserved(context.Background(), testBooking()))
	require.NoError(t, n.Close())
}

func TestKafkaNotifier_RetriesThenFails(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	for i := 0; i < 2; i++ {
		producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	}

	n := NewKafkaNotifierWithProducer(producer, "bookings")
	n.retry = retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}

	err := n.BookingReserved(context.Background(), testBooking())
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, n.Close())
}

func TestSMTPNotifier(t *testing.T) {
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	n := NewSMTPNotifier(SMTPConfig{Host: "mail.local", Port: 2525, From: "stay@example.com"})
	n.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		assert.Nil(t, a, "no auth without credentials")
		return nil
	}

	require.NoError(t, n.BookingReserved(context.Background(), testBooking()))

	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.Equal(t, []string{"ada@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Booking BK-123 confirmed")
	assert.Contains(t, gotMsg, "Check-in:  2025-10-01")
	assert.Contains(t, gotMsg, "Total:     313.50 EUR")
	assert.True(t, strings.HasPrefix(gotMsg, "From: stay@example.com\r\n"))
}

func TestSMTPNotifier_Failure(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{Host: "mail.local", Port: 25, Username: "u", Password: "p", From: "stay@example.com"})
	n.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	err := n.BookingReserved(context.Background(), testBooking())
	assert.ErrorContains(t, err, "BK-123")
}

func TestGuarded_SkipsChannelWhileOpen(t *testing.T) {
	down := &recordingNotifier{err: errors.New("broker unreachable")}
	g := NewGuarded("kafka", down, circuitbreaker.Config{MaxFailures: 2, Timeout: time.Hour, SuccessThreshold: 1})
	ctx := context.Background()

	assert.Error(t, g.BookingReserved(ctx, testBooking()))
	assert.Error(t, g.BookingReserved(ctx, testBooking()))
	err := g.BookingReserved(ctx, testBooking())

	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, 2, down.calls, "open breaker does not call the channel")
	assert.Equal(t, circuitbreaker.StateOpen, g.Breaker().State())
}

func TestGuarded_PassesThroughWhenHealthy(t *testing.T) {
	ok := &recordingNotifier{}
	g := NewGuarded("smtp", ok, circuitbreaker.DefaultConfig())

	require.NoError(t, g.BookingReserved(context.Background(), testBooking()))
	assert.Equal(t, 1, ok.calls)
}
