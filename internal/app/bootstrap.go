package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sicilystay/stayservice/internal/circuitbreaker"
	"github.com/sicilystay/stayservice/internal/ledger"
	"github.com/sicilystay/stayservice/internal/notify"
	"github.com/sicilystay/stayservice/internal/pricing"
	"github.com/sicilystay/stayservice/internal/ratelimit"
	"github.com/sicilystay/stayservice/internal/repository"
	"github.com/sicilystay/stayservice/internal/repository/memory"
	"github.com/sicilystay/stayservice/internal/repository/postgres"
)

type closer struct {
	name  string
	close func() error
}

func (a *App) onClose(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, close: fn})
}

// newLedger creates the capacity ledger selected by ledger.backend
func (a *App) newLedger(ctx context.Context, catalog *pricing.Catalog) (ledger.Ledger, error) {
	switch a.config.Ledger.Backend {
	case "memory":
		a.logger.Warn("Using in-memory capacity ledger; counts are lost on restart and not shared between instances")
		return ledger.NewMemory(), nil
	case "redis":
		client, err := a.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		a.logger.Info("Using Redis capacity ledger", zap.String("redis_addr", a.config.Redis.GetRedisAddr()))
		return ledger.NewRedis(client, a.config.Ledger.KeyPrefix, catalog.ProductID()), nil
	default:
		return nil, fmt.Errorf("unsupported ledger backend: %s", a.config.Ledger.Backend)
	}
}

// newRepository creates the booking store selected by storage.backend
func (a *App) newRepository(ctx context.Context) (repository.BookingRepository, error) {
	switch a.config.Storage.Backend {
	case "memory":
		return memory.NewStore(), nil
	case "postgres":
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		dbCfg := postgres.DefaultConfig()
		dbCfg.DSN = a.config.Database.GetDSN()
		if a.config.Database.MaxConns > 0 {
			dbCfg.MaxConns = a.config.Database.MaxConns
		}
		store, err := postgres.NewStore(ctx, dbCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		a.onClose("database pool", store.Close)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", a.config.Storage.Backend)
	}
}

// newBookLimiter returns the /book throttle, or nil when rate limiting is off
func (a *App) newBookLimiter(ctx context.Context) (ratelimit.Limiter, error) {
	cfg := a.config.Limits
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Backend {
	case "memory":
		return ratelimit.NewMemory(cfg.Window, cfg.RequestsPerWindow), nil
	case "redis":
		client, err := a.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return ratelimit.NewRedis(client, "ratelimit", cfg.Window, cfg.RequestsPerWindow), nil
	default:
		return nil, fmt.Errorf("unsupported rate limit backend: %s", cfg.Backend)
	}
}

// newNotifier builds the fan-out of configured notification channels.
// Remote channels sit behind a circuit breaker.
func (a *App) newNotifier() (notify.Notifier, error) {
	bcfg := circuitbreaker.Config{
		MaxFailures:      a.config.Notify.Breaker.MaxFailures,
		Timeout:          a.config.Notify.Breaker.OpenFor,
		SuccessThreshold: a.config.Notify.Breaker.SuccessThreshold,
	}

	var out notify.Multi
	for _, channel := range a.config.Notify.Channels {
		switch channel {
		case "log":
			out = append(out, notify.NewLogNotifier())
		case "kafka":
			k, err := notify.NewKafkaNotifier(notify.KafkaConfig{
				Brokers:  a.config.Kafka.Brokers,
				Topic:    a.config.Kafka.Topic,
				ClientID: a.config.Kafka.ClientID,
			})
			if err != nil {
				return nil, err
			}
			a.onClose("kafka producer", k.Close)
			out = append(out, notify.NewGuarded(channel, k, bcfg))
		case "smtp":
			smtp := notify.NewSMTPNotifier(notify.SMTPConfig{
				Host:     a.config.SMTP.Host,
				Port:     a.config.SMTP.Port,
				Username: a.config.SMTP.Username,
				Password: a.config.SMTP.Password,
				From:     a.config.SMTP.From,
			})
			out = append(out, notify.NewGuarded(channel, smtp, bcfg))
		default:
			return nil, fmt.Errorf("unsupported notify channel: %s", channel)
		}
	}
	if len(out) == 0 {
		return notify.Nop{}, nil
	}
	return out, nil
}

// redisClient connects on first use and is shared by the ledger and the limiter
func (a *App) redisClient(ctx context.Context) (*redis.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	client, err := initializeRedis(ctx, a.config.Redis.GetRedisAddr(), a.config.Redis.Password, a.config.Redis.DB)
	if err != nil {
		return nil, err
	}
	a.onClose("redis client", client.Close)
	a.redis = client
	return client, nil
}

// initializeRedis initializes the Redis client
func initializeRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		DB:       db,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}
