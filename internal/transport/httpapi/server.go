package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/sicilystay/stayservice/internal/audit"
	"github.com/sicilystay/stayservice/internal/booking"
	"github.com/sicilystay/stayservice/internal/domain"
	"github.com/sicilystay/stayservice/internal/pricing"
	"github.com/sicilystay/stayservice/internal/ratelimit"
	"github.com/sicilystay/stayservice/internal/repository"
)

// BookingService is the engine behind the public endpoints
type BookingService interface {
	Availability(ctx context.Context, rawDate string) (booking.Availability, error)
	Quote(ctx context.Context, in booking.QuoteInput) (pricing.Quote, error)
	Book(ctx context.Context, in booking.BookInput) (domain.Booking, error)
	Ready(ctx context.Context) error
}

// BookingLister reads stored bookings for the admin export
type BookingLister interface {
	List(ctx context.Context, filter repository.Filter) ([]domain.Booking, error)
}

// TokenValidator checks admin bearer tokens and returns the subject
type TokenValidator interface {
	Validate(ctx context.Context, token string) (string, error)
}

// Options configures the HTTP surface
type Options struct {
	Port           int
	Mode           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	// BookLimiter throttles POST /book per client address when set
	BookLimiter ratelimit.Limiter
	// Audit receives admin access events; defaults to the request logger
	Audit *audit.Trail
}

// NewRouter builds the gin engine with middleware and routes. The admin
// export is only mounted when both lister and validator are given.
func NewRouter(opts Options, svc BookingService, lister BookingLister, admin TokenValidator) *gin.Engine {
	configureGinMode(opts.Mode)

	trail := opts.Audit
	if trail == nil {
		trail = audit.NewTrail(audit.NewZapLogger(nil))
	}
	h := &handler{svc: svc, lister: lister, trail: trail}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(Tracing())
	router.Use(AccessLog())
	router.Use(Metrics())
	router.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	router.GET("/healthz", h.healthz)
	router.GET("/readyz", h.readyz)

	router.GET("/availability", h.availability)
	router.POST("/quote", h.quote)
	if opts.BookLimiter != nil {
		router.POST("/book", RateLimit("book", opts.BookLimiter), h.book)
	} else {
		router.POST("/book", h.book)
	}

	if lister != nil && admin != nil {
		adminGroup := router.Group("/admin", AdminAuth(admin, trail))
		adminGroup.GET("/bookings.csv", h.exportCSV)
	}

	return router
}

// NewServer wraps the router in an http.Server
func NewServer(opts Options, router http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           router,
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "Content-Type", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func configureGinMode(mode string) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test", "testing":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}
}
