// Package rediswr builds Redis clients from configuration.
package rediswr

import (
	"context"
	"strings"

	"github.com/code19m/errx"
	"github.com/redis/go-redis/v9"
)

// New creates a Redis client. A single address yields a plain client,
// several addresses or cluster mode yield a cluster client.
func New(cfg Config) redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:         strings.Split(cfg.Addrs, ","),
		Username:      cfg.Username,
		Password:      cfg.Password,
		DB:            cfg.DB,
		IsClusterMode: cfg.IsClusterMode,
	})
}

// Ping verifies the connection.
func Ping(ctx context.Context, client redis.Cmdable) error {
	return errx.Wrap(client.Ping(ctx).Err())
}
