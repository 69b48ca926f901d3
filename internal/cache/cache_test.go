package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func setupTestCache(t *testing.T) *Redis {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	c := NewRedis(addr, os.Getenv("TEST_REDIS_PASSWORD"))

	ctx := context.Background()
	if err := c.Ping(ctx); err != nil {
		c.Close()
		t.Skipf("Failed to ping test cache: %v", err)
	}

	// Clean up keys from previous runs
	if _, err := c.DeleteByPattern(ctx, "cachetest:*"); err != nil {
		c.Close()
		t.Fatalf("Failed to clean up test keys: %v", err)
	}

	t.Cleanup(func() { c.Close() })
	return c
}

func TestRedis_SetGet(t *testing.T) {
	c := setupTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "cachetest:key", "value", time.Minute); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}

	value, err := c.Get(ctx, "cachetest:key")
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if value != "value" {
		t.Errorf("Expected value, got %q", value)
	}
}

func TestRedis_GetMiss(t *testing.T) {
	c := setupTestCache(t)

	_, err := c.Get(context.Background(), "cachetest:absent")
	if !errors.Is(err, ErrMiss) {
		t.Errorf("Expected ErrMiss, got %v", err)
	}
}

func TestRedis_Delete(t *testing.T) {
	c := setupTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "cachetest:gone", "x", time.Minute); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}
	if err := c.Delete(ctx, "cachetest:gone"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}

	if _, err := c.Get(ctx, "cachetest:gone"); !errors.Is(err, ErrMiss) {
		t.Errorf("Expected ErrMiss after delete, got %v", err)
	}

	// Deleting an absent key is not an error
	if err := c.Delete(ctx, "cachetest:gone"); err != nil {
		t.Errorf("Expected no error deleting an absent key, got %v", err)
	}
}

func TestRedis_DeleteByPattern(t *testing.T) {
	c := setupTestCache(t)
	ctx := context.Background()

	keys := []string{
		"cachetest:page:1",
		"cachetest:page:2",
		"cachetest:page:3",
	}
	for _, key := range keys {
		if err := c.Set(ctx, key, "x", time.Minute); err != nil {
			t.Fatalf("Failed to set %s: %v", key, err)
		}
	}
	if err := c.Set(ctx, "cachetest:other", "x", time.Minute); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}

	deleted, err := c.DeleteByPattern(ctx, "cachetest:page:*")
	if err != nil {
		t.Fatalf("Failed to delete by pattern: %v", err)
	}
	if deleted != 3 {
		t.Errorf("Expected 3 deletions, got %d", deleted)
	}

	for _, key := range keys {
		if _, err := c.Get(ctx, key); !errors.Is(err, ErrMiss) {
			t.Errorf("Expected %s to be gone, got %v", key, err)
		}
	}

	// Non-matching keys survive
	if _, err := c.Get(ctx, "cachetest:other"); err != nil {
		t.Errorf("Expected cachetest:other to survive, got %v", err)
	}

	// An empty match deletes nothing
	deleted, err = c.DeleteByPattern(ctx, "cachetest:nomatch:*")
	if err != nil {
		t.Fatalf("Failed to delete by pattern: %v", err)
	}
	if deleted != 0 {
		t.Errorf("Expected 0 deletions, got %d", deleted)
	}
}

func TestRedis_TTLExpires(t *testing.T) {
	c := setupTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "cachetest:ttl", "x", 50*time.Millisecond); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if _, err := c.Get(ctx, "cachetest:ttl"); !errors.Is(err, ErrMiss) {
		t.Errorf("Expected the entry to expire, got %v", err)
	}
}
