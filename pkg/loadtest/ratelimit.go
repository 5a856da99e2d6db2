package loadtest

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

const limiterPrefix = "qaload"

// RateLimiter caps iterations per second across all VUs. Backed by Redis, the
// budget is shared by every generator using the same key.
type RateLimiter struct {
	lim *limiter.Limiter
	key string
}

func NewRateLimiter(rps int, store limiter.Store, key string) *RateLimiter {
	if store == nil {
		store = NewMemoryStore()
	}
	return &RateLimiter{
		lim: limiter.New(store, limiter.Rate{Period: time.Second, Limit: int64(rps)}),
		key: key,
	}
}

func NewMemoryStore() limiter.Store {
	return memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          limiterPrefix,
		CleanUpInterval: time.Minute,
	})
}

func NewRedisStore(redisURL string) (limiter.Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return sredis.NewStoreWithOptions(redis.NewClient(opts), limiter.StoreOptions{
		Prefix: limiterPrefix,
	})
}

// Wait blocks until the current period has budget left or ctx ends.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		lc, err := r.lim.Get(ctx, r.key)
		if err != nil {
			return err
		}
		if !lc.Reached {
			return nil
		}
		wait := time.Until(time.Unix(lc.Reset, 0))
		if wait <= 0 {
			wait = 10 * time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
