// Package ratelimit counts requests per key in fixed time windows.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter reports whether one more request for key fits in the current window
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Memory is a process-local fixed window limiter
type Memory struct {
	mu          sync.Mutex
	window      time.Duration
	maxRequests int
	counts      map[string]windowCount
	now         func() time.Time
}

type windowCount struct {
	start time.Time
	n     int
}

// NewMemory allows maxRequests per key in each window
func NewMemory(window time.Duration, maxRequests int) *Memory {
	return &Memory{
		window:      window,
		maxRequests: maxRequests,
		counts:      make(map[string]windowCount),
		now:         time.Now,
	}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := m.now().Truncate(m.window)
	c := m.counts[key]
	if !c.start.Equal(start) {
		c = windowCount{start: start}
		m.evict(start)
	}
	if c.n >= m.maxRequests {
		return false, nil
	}
	c.n++
	m.counts[key] = c
	return true, nil
}

// evict drops counters from earlier windows
func (m *Memory) evict(current time.Time) {
	for k, c := range m.counts {
		if c.start.Before(current) {
			delete(m.counts, k)
		}
	}
}

// fixedWindowScript increments the window counter only while it is below the
// limit, and sets the expiry when the window is first seen.
var fixedWindowScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
	return 0
end
current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 1
`)

// Redis is a fixed window limiter shared by every instance using the same server
type Redis struct {
	client      redis.UniversalClient
	window      time.Duration
	maxRequests int
	keyPrefix   string
	now         func() time.Time
}

// NewRedis allows maxRequests per key in each window
func NewRedis(client redis.UniversalClient, keyPrefix string, window time.Duration, maxRequests int) *Redis {
	return &Redis{
		client:      client,
		window:      window,
		maxRequests: maxRequests,
		keyPrefix:   keyPrefix,
		now:         time.Now,
	}
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	windowStart := r.now().Truncate(r.window)
	redisKey := r.Key(key, windowStart)

	res, err := fixedWindowScript.Run(ctx, r.client, []string{redisKey},
		r.maxRequests, r.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}
	return res == 1, nil
}

// Key returns the counter key for key in the window starting at windowStart
func (r *Redis) Key(key string, windowStart time.Time) string {
	return fmt.Sprintf("%s:%s:%d", r.keyPrefix, key, windowStart.Unix())
}
