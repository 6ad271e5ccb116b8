// Package ratelimit guards providers that sit on unofficial endpoints with a
// shared daily quota. The counter lives in Redis so multiple runs (scheduled
// and manual) see the same budget.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Conn opens and pings a Redis client.
func Conn(ctx context.Context, addr, pass string, db int, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: timeout,
		Password:    pass,
		DB:          db,
	})
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	if pong != "PONG" {
		return nil, fmt.Errorf("expected PONG, got %s", pong)
	}
	return client, nil
}

// DailyQuota counts calls per UTC day under a namespaced key. When Redis is
// unreachable it denies, pushing the caller down its fallback chain rather
// than hammering the quota-limited endpoint blind.
type DailyQuota struct {
	client *redis.Client
	prefix string
	limit  int64
}

func NewDailyQuota(client *redis.Client, prefix string, limit int64) *DailyQuota {
	return &DailyQuota{client: client, prefix: prefix, limit: limit}
}

// Allow consumes one unit of today's quota. It returns false once the limit
// is exhausted or Redis cannot be reached.
func (q *DailyQuota) Allow(ctx context.Context) bool {
	if q.client == nil {
		return false
	}
	key := fmt.Sprintf("%s:%s", q.prefix, time.Now().UTC().Format("2006-01-02"))
	n, err := q.client.Incr(ctx, key).Result()
	if err != nil {
		return false
	}
	if n == 1 {
		// First hit of the day sets the expiry so stale keys age out.
		q.client.Expire(ctx, key, 24*time.Hour)
	}
	return n <= q.limit
}
