package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection configuration. The checkout service
// uses Redis for completion leases, so each service picks its own logical DB.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int

	// DialTimeout bounds the initial connection. Zero means 5s.
	DialTimeout time.Duration
}

// DefaultRedisConfig returns development defaults.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Host:        "localhost",
		Port:        6379,
		Password:    "",
		DB:          0,
		DialTimeout: 5 * time.Second,
	}
}

// Addr returns the Redis address string.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewRedisClient creates a Redis client and verifies the connection with a
// ping. The caller owns the returned client and must Close it on shutdown.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}
