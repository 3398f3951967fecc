package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sicilystay/stayservice/internal/auth"
	"github.com/sicilystay/stayservice/internal/booking"
	"github.com/sicilystay/stayservice/internal/config"
	"github.com/sicilystay/stayservice/internal/log"
	"github.com/sicilystay/stayservice/internal/metrics"
	"github.com/sicilystay/stayservice/internal/pricing"
	"github.com/sicilystay/stayservice/internal/tracing"
	"github.com/sicilystay/stayservice/internal/transport/httpapi"
)

// App represents the application
type App struct {
	config        *config.Config
	logger        *zap.Logger
	service       *booking.Service
	router        *gin.Engine
	httpServer    *http.Server
	metricsServer *metrics.Server
	redis         *redis.Client
	closers       []closer
	stopTracing   func(context.Context) error
}

// New creates a new application instance
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := log.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger := log.L(ctx)

	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}

	logger.Info("Initializing stay service",
		zap.String("product", catalog.ProductID()),
		zap.Int("port", cfg.Server.Port),
		zap.String("ledger", cfg.Ledger.Backend),
		zap.String("storage", cfg.Storage.Backend),
		zap.Strings("notify", cfg.Notify.Channels))

	a := &App{config: cfg, logger: logger}

	tcfg := tracing.DefaultConfig()
	tcfg.Enabled = cfg.Tracing.Enabled
	tcfg.Environment = cfg.Tracing.Environment
	tcfg.SamplingRatio = cfg.Tracing.SamplingRatio
	if a.stopTracing, err = tracing.Init(tcfg, logger); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	l, err := a.newLedger(ctx, catalog)
	if err != nil {
		a.closeAll()
		return nil, err
	}

	repo, err := a.newRepository(ctx)
	if err != nil {
		a.closeAll()
		return nil, err
	}

	notifier, err := a.newNotifier()
	if err != nil {
		a.closeAll()
		return nil, err
	}

	bcfg := booking.DefaultConfig()
	bcfg.DefaultRoomType = cfg.Product.DefaultRoomType
	bcfg.NotifyTimeout = cfg.Booking.NotifyTimeout
	bcfg.PersistTimeout = cfg.Booking.PersistTimeout
	bcfg.Retry.MaxAttempts = cfg.Booking.PersistRetries
	a.service = booking.NewService(pricing.NewCalculator(catalog), l, repo, notifier, bcfg)

	var admin httpapi.TokenValidator
	if cfg.Admin.TokenSecret != "" {
		v, err := auth.NewAdminValidator(cfg.Admin.TokenSecret)
		if err != nil {
			a.closeAll()
			return nil, err
		}
		admin = v
	} else {
		logger.Warn("Admin token secret not configured, admin export disabled")
	}

	limiter, err := a.newBookLimiter(ctx)
	if err != nil {
		a.closeAll()
		return nil, err
	}

	opts := httpapi.Options{
		Port:           cfg.Server.Port,
		Mode:           cfg.Server.Mode,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		BookLimiter:    limiter,
	}
	a.router = httpapi.NewRouter(opts, a.service, repo, admin)
	a.httpServer = httpapi.NewServer(opts, a.router)

	if cfg.Metrics.Enabled {
		a.metricsServer = metrics.NewServer(cfg.Metrics.Addr, logger)
	}

	return a, nil
}

// Handler exposes the HTTP router
func (a *App) Handler() http.Handler {
	return a.router
}

// Run serves HTTP until ctx is cancelled or a server fails
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting stay service", zap.String("addr", a.httpServer.Addr))

	errCh := make(chan error, 2)
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()
	if a.metricsServer != nil {
		go func() {
			if err := a.metricsServer.Start(); err != nil {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down stay service")

	var errs []error
	if err := a.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	// let in-flight notifications finish before closing their producers
	done := make(chan struct{})
	go func() {
		a.service.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("Pending notifications abandoned at shutdown")
	}

	a.closeAll()

	if a.stopTracing != nil {
		if err := a.stopTracing(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
		}
	}

	a.logger.Info("Application shutdown complete")
	_ = log.Sync()
	return errors.Join(errs...)
}

func (a *App) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			a.logger.Error("Failed to close "+c.name, zap.Error(err))
		}
	}
	a.closers = nil
}
