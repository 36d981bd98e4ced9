// Package redis builds the client backing the conversation mirror and the
// ask rate limiter.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/datasen-project/datasen/internal/config"
)

// NewClient connects to redis and verifies the connection. Both consumers
// tolerate redis loss at runtime (the mirror logs and moves on, the limiter
// fails open), but a bad address at boot is a config error worth failing
// fast on.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Addr(), err)
	}

	slog.Info("connected to redis", "addr", cfg.Addr(), "db", cfg.DB)
	return client, nil
}
