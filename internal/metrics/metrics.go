package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Pricing metrics
	QuotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stay_quotes_total",
			Help: "Total number of quote requests by outcome",
		},
		[]string{"result"},
	)

	// Booking metrics
	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stay_bookings_total",
			Help: "Total number of booking attempts by outcome",
		},
		[]string{"result"},
	)

	BookingValue = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stay_booking_value",
			Help:    "Total price distribution of reserved bookings",
			Buckets: []float64{100, 200, 300, 500, 750, 1000, 2000, 5000},
		},
		[]string{"currency"},
	)

	RejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stay_rejections_total",
			Help: "Total number of rejected requests by operation and reason",
		},
		[]string{"operation", "reason"},
	)

	// Ledger metrics
	LedgerCommitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_commit_duration_seconds",
			Help:    "Capacity ledger commit duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	// Storage metrics
	RepositoryOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repository_operation_duration_seconds",
			Help:    "Booking repository operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)

	// Notification metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stay_notifications_total",
			Help: "Total number of booking notifications by channel and status",
		},
		[]string{"channel", "status"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors",
		},
		[]string{"type", "component"},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordQuote records a quote outcome ("accepted" or "rejected").
func RecordQuote(result string) {
	QuotesTotal.WithLabelValues(result).Inc()
}

// RecordBooking records a booking outcome. Amount is only observed for
// reserved bookings.
func RecordBooking(result, currency string, amount float64) {
	BookingsTotal.WithLabelValues(result).Inc()
	if result == "reserved" {
		BookingValue.WithLabelValues(currency).Observe(amount)
	}
}

// RecordRejection records a rejection reason for an operation
func RecordRejection(operation, reason string) {
	RejectionsTotal.WithLabelValues(operation, reason).Inc()
}

// RecordLedgerCommit records a ledger commit
func RecordLedgerCommit(result string, duration time.Duration) {
	LedgerCommitDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordRepositoryOperation records a repository call
func RecordRepositoryOperation(operation, status string, duration time.Duration) {
	RepositoryOperationDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// RecordNotification records a notification delivery attempt
func RecordNotification(channel, status string) {
	NotificationsTotal.WithLabelValues(channel, status).Inc()
}

// RecordError records an error
func RecordError(errorType, component string) {
	ErrorsTotal.WithLabelValues(errorType, component).Inc()
}
