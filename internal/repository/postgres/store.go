package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sicilystay/stayservice/internal/domain"
	"github.com/sicilystay/stayservice/internal/log"
	"github.com/sicilystay/stayservice/internal/metrics"
	"github.com/sicilystay/stayservice/internal/repository"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS bookings (
	id             TEXT PRIMARY KEY,
	product_id     TEXT NOT NULL,
	room_type      TEXT NOT NULL,
	checkin        DATE NOT NULL,
	checkout       DATE NOT NULL,
	nights         INTEGER NOT NULL,
	guests         INTEGER NOT NULL,
	coupon         TEXT NOT NULL DEFAULT '',
	total_price    NUMERIC(12,2) NOT NULL,
	currency       TEXT NOT NULL,
	customer_name  TEXT NOT NULL,
	customer_email TEXT NOT NULL,
	status         TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS bookings_checkin_idx ON bookings (checkin);
`

const bookingColumns = `id, product_id, room_type, checkin, checkout, nights, guests, coupon,
	total_price::float8, currency, customer_name, customer_email, status, created_at`

// Config represents database pool configuration
type Config struct {
	DSN               string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// DefaultConfig returns a default database configuration
func DefaultConfig() Config {
	return Config{
		MaxConns:          10,
		MinConns:          2,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   30 * time.Minute,
		HealthCheckPeriod: time.Minute,
	}
}

// Store is the PostgreSQL booking repository
type Store struct {
	db *pgxpool.Pool
}

var _ repository.BookingRepository = (*Store)(nil)

// NewStore opens a connection pool and verifies connectivity
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info(ctx, "Database pool created successfully",
		zap.Int32("max_conns", poolConfig.MaxConns),
		zap.Int32("min_conns", poolConfig.MinConns))

	return &Store{db: pool}, nil
}

// EnsureSchema creates the bookings table if it does not exist
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create bookings schema: %w", err)
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, b domain.Booking) (err error) {
	defer observe("insert", time.Now(), &err)

	_, err = s.db.Exec(ctx, `
		INSERT INTO bookings (id, product_id, room_type, checkin, checkout, nights, guests, coupon,
			total_price, currency, customer_name, customer_email, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		b.ID, b.ProductID, b.RoomType, b.CheckIn, b.CheckOut, b.Nights, b.Guests, b.Coupon,
		b.TotalPrice, b.Currency, b.Customer.Name, b.Customer.Email, string(b.Status), b.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to insert booking %s: %w", b.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (b domain.Booking, err error) {
	defer observe("get", time.Now(), &err)

	row := s.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	b, err = scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Booking{}, repository.ErrNotFound
	}
	if err != nil {
		return domain.Booking{}, fmt.Errorf("failed to get booking %s: %w", id, err)
	}
	return b, nil
}

func (s *Store) List(ctx context.Context, filter repository.Filter) (out []domain.Booking, err error) {
	defer observe("list", time.Now(), &err)

	query, args := buildListQuery(filter)
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.db.Ping(ctx)
}

// Close closes the database pool
func (s *Store) Close() error {
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

func buildListQuery(filter repository.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if !filter.CheckInFrom.IsZero() {
		args = append(args, filter.CheckInFrom)
		where = append(where, fmt.Sprintf("checkin >= $%d", len(args)))
	}
	if !filter.CheckInTo.IsZero() {
		args = append(args, filter.CheckInTo)
		where = append(where, fmt.Sprintf("checkin <= $%d", len(args)))
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + bookingColumns + " FROM bookings")
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY created_at, id")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	return sb.String(), args
}

func scanBooking(row pgx.Row) (domain.Booking, error) {
	var (
		b      domain.Booking
		status string
	)
	err := row.Scan(&b.ID, &b.ProductID, &b.RoomType, &b.CheckIn, &b.CheckOut, &b.Nights, &b.Guests,
		&b.Coupon, &b.TotalPrice, &b.Currency, &b.Customer.Name, &b.Customer.Email, &status, &b.CreatedAt)
	if err != nil {
		return domain.Booking{}, err
	}
	b.Status = domain.BookingStatus(status)
	b.CheckIn = b.CheckIn.UTC()
	b.CheckOut = b.CheckOut.UTC()
	return b, nil
}

func observe(operation string, start time.Time, err *error) {
	status := "ok"
	if *err != nil && !errors.Is(*err, repository.ErrNotFound) {
		status = "error"
	}
	metrics.RecordRepositoryOperation(operation, status, time.Since(start))
}
