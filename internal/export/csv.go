// Package export renders stored bookings for back-office tools.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/sicilystay/stayservice/internal/dates"
	"github.com/sicilystay/stayservice/internal/domain"
)

// Header is the first row of every export.
var Header = []string{
	"booking_id", "product", "room_type", "checkin", "checkout", "nights", "guests",
	"coupon", "total_price", "currency", "customer_name", "customer_email", "status", "created_at",
}

// WriteCSV writes a header row followed by one row per booking.
func WriteCSV(w io.Writer, bookings []domain.Booking) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, b := range bookings {
		if err := cw.Write(row(b)); err != nil {
			return fmt.Errorf("failed to write booking %s: %w", b.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

func row(b domain.Booking) []string {
	return []string{
		b.ID,
		b.ProductID,
		b.RoomType,
		dates.Format(b.CheckIn),
		dates.Format(b.CheckOut),
		strconv.Itoa(b.Nights),
		strconv.Itoa(b.Guests),
		b.Coupon,
		strconv.FormatFloat(b.TotalPrice, 'f', 2, 64),
		b.Currency,
		b.Customer.Name,
		b.Customer.Email,
		string(b.Status),
		b.CreatedAt.UTC().Format(time.RFC3339),
	}
}
