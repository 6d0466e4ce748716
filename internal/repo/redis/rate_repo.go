package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RateRepo backs the swipe limiter with fixed-window counters. A window is a
// single key that INCRs on every hit and expires when the window ends.
type RateRepo struct {
	client *goredis.Client
}

func NewRateRepo(client *goredis.Client) *RateRepo {
	return &RateRepo{client: client}
}

// IncrementWindow counts a hit against the window key and reports the total
// hits plus the time left until the window resets.
func (r *RateRepo) IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if r.client == nil {
		return 0, 0, fmt.Errorf("redis client is not configured")
	}
	if key == "" || window <= 0 {
		return 0, 0, fmt.Errorf("rate window needs a key and a positive duration")
	}

	hits, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("incr %s: %w", key, err)
	}
	// The first hit opens the window; the key then lives exactly one window.
	if hits == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("expire %s: %w", key, err)
		}
	}

	remaining, err := r.windowTTL(ctx, key)
	if err != nil {
		return 0, 0, err
	}

	return hits, remaining, nil
}

// WindowState reads a window without counting a hit. A missing key means the
// window is closed: zero hits, zero remaining.
func (r *RateRepo) WindowState(ctx context.Context, key string) (int64, time.Duration, error) {
	if r.client == nil {
		return 0, 0, fmt.Errorf("redis client is not configured")
	}
	if key == "" {
		return 0, 0, fmt.Errorf("rate key is required")
	}

	hits, err := r.client.Get(ctx, key).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("get %s: %w", key, err)
	}

	remaining, err := r.windowTTL(ctx, key)
	if err != nil {
		return 0, 0, err
	}

	return hits, remaining, nil
}

func (r *RateRepo) windowTTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("ttl %s: %w", key, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}
