package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/sicilystay/stayservice/internal/dates"
	"github.com/sicilystay/stayservice/internal/domain"
	"github.com/sicilystay/stayservice/internal/log"
	"github.com/sicilystay/stayservice/internal/metrics"
)

// LogNotifier writes booking confirmations to the structured log
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) BookingReserved(ctx context.Context, b domain.Booking) error {
	log.L(ctx).Info("Booking reserved",
		zap.String("booking_id", b.ID),
		zap.String("product", b.ProductID),
		zap.String("room_type", b.RoomType),
		zap.String("checkin", dates.Format(b.CheckIn)),
		zap.String("checkout", dates.Format(b.CheckOut)),
		zap.Int("guests", b.Guests),
		zap.Float64("total_price", b.TotalPrice),
		zap.String("currency", b.Currency),
		zap.String("customer_email", b.Customer.Email))
	metrics.RecordNotification("log", "sent")
	return nil
}
