package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Connect opens a client and checks the server answers before handing it
// to the invalidation bus.
func Connect(ctx context.Context, address, username, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Username: username,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", address, err)
	}
	log.Info().Str("address", address).Msg("connected to redis")
	return client, nil
}
