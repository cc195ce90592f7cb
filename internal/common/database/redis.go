// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"franchise-ledger/internal/common/config"
)

// RedisClient holds the connection used for derived read models such as the
// fundraising snapshot cache. Nothing authoritative lives in Redis.
type RedisClient struct {
	Client *redis.Client
}

// NewRedis builds a pooled client. The connection is lazy; call Ping to check it.
func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is empty")
	}
	io := config.GetDuration(cfg.IOTimeout)
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  config.GetDuration(cfg.DialTimeout),
		ReadTimeout:  io,
		WriteTimeout: io,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})
	return &RedisClient{Client: rdb}, nil
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", c.Client.Options().Addr, err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}
