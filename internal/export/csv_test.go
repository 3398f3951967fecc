package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sicilystay/stayservice/internal/dates"
	"github.com/sicilystay/stayservice/internal/domain"
)

func TestWriteCSV(t *testing.T) {
	bookings := []domain.Booking{
		{
			ID:         "BK-1",
			ProductID:  "sicily-stay-car-01",
			RoomType:   "standard",
			CheckIn:    dates.MustParse("2025-07-01"),
			CheckOut:   dates.MustParse("2025-07-03"),
			Nights:     2,
			Guests:     2,
			Coupon:     "WELCOME10",
			TotalPrice: 157.5,
			Currency:   "EUR",
			Customer:   domain.Customer{Name: "Rossi, Maria", Email: "maria@example.com"},
			Status:     domain.BookingStatusReserved,
			CreatedAt:  time.Date(2025, 6, 30, 9, 15, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, bookings))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, Header, records[0])
	assert.Equal(t, []string{
		"BK-1", "sicily-stay-car-01", "standard", "2025-07-01", "2025-07-03", "2", "2",
		"WELCOME10", "157.50", "EUR", "Rossi, Maria", "maria@example.com", "reserved", "2025-06-30T09:15:00Z",
	}, records[1])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "booking_id,product,room_type,checkin,checkout,nights,guests,coupon,total_price,currency,customer_name,customer_email,status,created_at\n", buf.String())
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteCSV_WriterError(t *testing.T) {
	assert.Error(t, WriteCSV(brokenWriter{}, nil))
}
