package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores values as plain string keys, optionally namespaced by a
// prefix.
type Redis struct {
	client *redis.Client
	Prefix string
}

// OpenRedis connects to the server at the specified redis:// URL and checks
// that it is reachable.
func OpenRedis(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Redis{client: client, Prefix: "mixtape:"}, nil
}

// Get implements the Storage interface.
func (store *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := store.client.Get(ctx, store.Prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return b, err
}

// Set implements the Storage interface.
func (store *Redis) Set(ctx context.Context, key string, value []byte) error {
	return store.client.Set(ctx, store.Prefix+key, value, 0).Err()
}

// Close implements the Storage interface.
func (store *Redis) Close() error {
	return store.client.Close()
}
