// Package ratelimit implements a per-client fixed-window request counter in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter increments a windowed counter and returns its value after the increment.
type Counter interface {
	IncrWithExpire(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Redis is a Counter over a go-redis client.
type Redis struct {
	client redis.UniversalClient
}

// Options configures a Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewRedis connects and pings.
func NewRedis(ctx context.Context, o Options) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: o.Addr, Password: o.Password, DB: o.DB})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &Redis{client: client}, nil
}

// IncrWithExpire increments key and arms its expiry in one pipeline.
func (r *Redis) IncrWithExpire(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := r.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Close releases the connection pool.
func (r *Redis) Close() error { return r.client.Close() }

// Decision is the outcome of one Limiter.Take.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Limiter admits at most PerWindow requests per key per Window.
type Limiter struct {
	counter   Counter
	perWindow int
	window    time.Duration
	now       func() time.Time
}

// New constructs a Limiter allowing perMinute requests per client per minute.
func New(c Counter, perMinute int) *Limiter {
	return &Limiter{counter: c, perWindow: perMinute, window: time.Minute, now: time.Now}
}

// Take counts one request for client. A counter error is returned with an
// allowing decision so callers can fail open.
func (l *Limiter) Take(ctx context.Context, client string) (Decision, error) {
	now := l.now()
	bucket := now.Truncate(l.window)
	d := Decision{Allowed: true, Limit: l.perWindow, Remaining: l.perWindow, Reset: bucket.Add(l.window)}

	key := fmt.Sprintf("ratelimit:%s:%d", client, bucket.Unix())
	n, err := l.counter.IncrWithExpire(ctx, key, l.window)
	if err != nil {
		return d, err
	}
	d.Remaining = max(l.perWindow-int(n), 0)
	d.Allowed = int(n) <= l.perWindow
	return d, nil
}
