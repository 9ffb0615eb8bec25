// Package redisclient holds the Redis connection and the per-slot lockers
// used by the booking engine.
package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/slot-booking/internal/config"
)

func NewRedisClient(cfg config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Username:     cfg.RedisUsername,
		Password:     cfg.RedisPassword,
		DB:           0,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.RedisAddr, err)
	}

	return rdb, nil
}

// NewLocker picks the lock backend named by cfg.LockBackend. The redis
// client is required only for the redis backend.
func NewLocker(cfg config.Config, rdb *redis.Client) (Locker, error) {
	switch cfg.LockBackend {
	case config.LockRedis:
		if rdb == nil {
			return nil, fmt.Errorf("lock backend %q needs a redis client", cfg.LockBackend)
		}
		return NewRedisSlotLocker(rdb, cfg.LockTTL, cfg.LockWait), nil
	case config.LockLocal, "":
		return NewLocalSlotLocker(), nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.LockBackend)
	}
}
