package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Config holds the connection settings for one Redis instance.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects and pings. The gateway opens two of these: one for
// the shared matchmaking store and one dedicated to pub/sub, since a
// subscribed connection cannot issue regular commands.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return rdb, nil
}
