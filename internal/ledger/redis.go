package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sicilystay/stayservice/internal/dates"
)

// commitScript checks every key against the capacity and increments them all
// only if none is full. Returns 0 on success or the 1-based index of the
// first full key.
var commitScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
for i, key in ipairs(KEYS) do
	local n = tonumber(redis.call('GET', key) or '0')
	if n >= capacity then
		return i
	end
end
for _, key in ipairs(KEYS) do
	redis.call('INCR', key)
end
return 0
`)

// Redis keeps counts in Redis so that several service instances share one
// ledger. Keys of one product share a hash slot so the commit script can
// touch them all on a cluster.
type Redis struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedis creates a Redis-backed ledger. Keys look like
// <prefix>:{<productID>}:<YYYY-MM-DD>.
func NewRedis(client redis.UniversalClient, prefix, productID string) *Redis {
	if prefix == "" {
		prefix = "ledger"
	}
	return &Redis{
		client:    client,
		keyPrefix: fmt.Sprintf("%s:{%s}", prefix, productID),
	}
}

func (l *Redis) key(day time.Time) string {
	return l.keyPrefix + ":" + dates.Format(day)
}

func (l *Redis) Count(ctx context.Context, day time.Time) (int, error) {
	n, err := l.client.Get(ctx, l.key(day)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read ledger count: %w", err)
	}
	return n, nil
}

func (l *Redis) HasCapacity(ctx context.Context, day time.Time, capacity int) (bool, error) {
	n, err := l.Count(ctx, day)
	if err != nil {
		return false, err
	}
	return n < capacity, nil
}

func (l *Redis) Snapshot(ctx context.Context, r dates.Range) (Snapshot, error) {
	days := r.Days()
	out := make(Snapshot, len(days))
	if len(days) == 0 {
		return out, nil
	}

	keys := make([]string, len(days))
	for i, day := range days {
		keys[i] = l.key(day)
	}

	values, err := l.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger snapshot: %w", err)
	}

	for i, v := range values {
		n := 0
		if s, ok := v.(string); ok {
			n, err = strconv.Atoi(s)
			if err != nil {
				return nil, fmt.Errorf("corrupt ledger value for %s: %w", keys[i], err)
			}
		}
		out[dates.Format(days[i])] = n
	}
	return out, nil
}

func (l *Redis) Commit(ctx context.Context, r dates.Range, capacity int) error {
	days := r.Days()
	if len(days) == 0 {
		return nil
	}

	keys := make([]string, len(days))
	for i, day := range days {
		keys[i] = l.key(day)
	}

	full, err := commitScript.Run(ctx, l.client, keys, capacity).Int()
	if err != nil {
		return fmt.Errorf("failed to commit ledger range %s: %w", r, err)
	}
	if full > 0 {
		return &FullError{Day: days[full-1], Capacity: capacity}
	}
	return nil
}
