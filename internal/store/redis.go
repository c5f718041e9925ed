package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisBackend keeps each collection in one Redis hash named prefix+collection.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedis wraps a connected client. The backend takes ownership of client.
func NewRedis(client *redis.Client, prefix string) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix}
}

// Name identifies the backend in logs.
func (b *RedisBackend) Name() string { return "redis" }

// Collection returns the hash-backed collection called name.
func (b *RedisBackend) Collection(name string) Collection {
	return &redisCollection{client: b.client, key: b.prefix + name}
}

// Ping checks connectivity.
func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close releases the client.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

// Client exposes the underlying client for middleware sharing the connection.
func (b *RedisBackend) Client() *redis.Client {
	return b.client
}

type redisCollection struct {
	client *redis.Client
	key    string
}

func (c *redisCollection) Get(ctx context.Context, key string) (string, error) {
	value, err := c.client.HGet(ctx, c.key, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return value, err
}

func (c *redisCollection) Put(ctx context.Context, key, value string) error {
	return c.client.HSet(ctx, c.key, key, value).Err()
}

func (c *redisCollection) PutIfAbsent(ctx context.Context, key, value string) (bool, error) {
	return c.client.HSetNX(ctx, c.key, key, value).Result()
}

func (c *redisCollection) Delete(ctx context.Context, key string) error {
	return c.client.HDel(ctx, c.key, key).Err()
}

func (c *redisCollection) All(ctx context.Context) (map[string]string, error) {
	return c.client.HGetAll(ctx, c.key).Result()
}
