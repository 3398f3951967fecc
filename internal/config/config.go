package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the stay service
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Log      LogConfig      `mapstructure:"log"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Limits   LimitConfig    `mapstructure:"rate_limit"`
	Booking  BookingConfig  `mapstructure:"booking"`
	Product  ProductConfig  `mapstructure:"product"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	Mode            string        `mapstructure:"mode"`
}

// MetricsConfig holds Prometheus server configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	Environment   string  `mapstructure:"environment"`
	SamplingRatio float64 `mapstructure:"sampling_ratio"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LedgerConfig selects the capacity ledger backend: "memory" or "redis"
type LedgerConfig struct {
	Backend   string `mapstructure:"backend"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StorageConfig selects the booking repository: "memory" or "postgres"
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// NotifyConfig lists the channels a reserved booking is announced on:
// any of "log", "kafka", "smtp".
type NotifyConfig struct {
	Channels []string      `mapstructure:"channels"`
	Breaker  BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig trips a kafka or smtp channel after consecutive failures
type BreakerConfig struct {
	MaxFailures      int           `mapstructure:"max_failures"`
	OpenFor          time.Duration `mapstructure:"open_for"`
	SuccessThreshold int           `mapstructure:"success_threshold"`
}

// KafkaConfig holds Kafka producer configuration
type KafkaConfig struct {
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	ClientID string   `mapstructure:"client_id"`
}

// SMTPConfig holds the confirmation mail relay
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// AdminConfig holds admin endpoint configuration
type AdminConfig struct {
	TokenSecret string `mapstructure:"token_secret"`
}

// LimitConfig throttles booking requests per client address. Backend
// "redis" shares the window between instances.
type LimitConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Backend           string        `mapstructure:"backend"`
	RequestsPerWindow int           `mapstructure:"requests_per_window"`
	Window            time.Duration `mapstructure:"window"`
}

// BookingConfig tunes the booking flow
type BookingConfig struct {
	NotifyTimeout  time.Duration `mapstructure:"notify_timeout"`
	PersistTimeout time.Duration `mapstructure:"persist_timeout"`
	PersistRetries int           `mapstructure:"persist_retries"`
}

// Load loads configuration from file and environment variables. An empty
// path skips the file and uses defaults plus environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STAY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 20*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.mode", "release")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("tracing.enabled", true)
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("tracing.sampling_ratio", 1.0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("ledger.backend", "memory")
	v.SetDefault("ledger.key_prefix", "ledger")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.backend", "memory")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "stay")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "stay")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("notify.channels", []string{"log"})
	v.SetDefault("notify.breaker.max_failures", 5)
	v.SetDefault("notify.breaker.open_for", 30*time.Second)
	v.SetDefault("notify.breaker.success_threshold", 2)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "bookings.reserved")
	v.SetDefault("kafka.client_id", "stayservice")

	v.SetDefault("smtp.host", "localhost")
	v.SetDefault("smtp.port", 25)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "bookings@sicilystay.example")

	v.SetDefault("admin.token_secret", "")

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("rate_limit.requests_per_window", 30)
	v.SetDefault("rate_limit.window", time.Minute)

	v.SetDefault("booking.notify_timeout", 10*time.Second)
	v.SetDefault("booking.persist_timeout", 15*time.Second)
	v.SetDefault("booking.persist_retries", 3)

	setProductDefaults(v)
}

// Validate checks the service settings. Product rules are validated when the
// catalog is built.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Ledger.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("ledger.backend %q must be memory or redis", c.Ledger.Backend))
	}
	switch c.Storage.Backend {
	case "memory", "postgres":
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q must be memory or postgres", c.Storage.Backend))
	}
	for _, ch := range c.Notify.Channels {
		switch ch {
		case "log", "smtp":
		case "kafka":
			if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
				errs = append(errs, errors.New("kafka notifications need kafka.brokers and kafka.topic"))
			}
		default:
			errs = append(errs, fmt.Errorf("notify channel %q must be log, kafka or smtp", ch))
		}
	}
	if c.Limits.Enabled {
		switch c.Limits.Backend {
		case "memory", "redis":
		default:
			errs = append(errs, fmt.Errorf("rate_limit.backend %q must be memory or redis", c.Limits.Backend))
		}
		if c.Limits.RequestsPerWindow < 1 || c.Limits.Window <= 0 {
			errs = append(errs, errors.New("rate_limit needs a positive requests_per_window and window"))
		}
	}
	if c.Booking.PersistRetries < 1 {
		errs = append(errs, errors.New("booking.persist_retries must be at least 1"))
	}
	if _, err := c.Catalog(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GetRedisAddr returns the Redis connection address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
