// Package cache provides the best-effort key-value acceleration layer.
// The cache is never authoritative: every error here is non-fatal and
// callers proceed as if the operation had not happened.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("cache miss")

// Cache is the adapter interface used by the service layer.
type Cache interface {
	// Get returns the value stored at key, or ErrMiss when absent.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key with the given expiration.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes a single key.
	Delete(ctx context.Context, key string) error

	// DeleteByPattern removes every key matching the glob pattern and
	// returns the count of keys actually deleted. Keys that fail to delete
	// are skipped, not retried.
	DeleteByPattern(ctx context.Context, pattern string) (int, error)
}

// Redis implements Cache on a Redis server.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a Redis cache adapter.
func NewRedis(addr, password string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	return &Redis{client: client}
}

// Ping verifies the connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the client's resources.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Get returns the value stored at key, or ErrMiss when absent.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrMiss
		}
		return "", err
	}
	return value, nil
}

// Set stores value at key with the given expiration.
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Delete removes a single key.
func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// DeleteByPattern scans for keys matching the glob pattern and deletes
// each, returning the count of successful deletions.
func (r *Redis) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()

	deleted := 0
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}

	return deleted, nil
}
