package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by JSON.Get when the key is absent.
var ErrMiss = errors.New("cache miss")

// JSON stores values of type T as JSON under prefix-qualified keys.
type JSON[T any] struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewJSON returns a JSON cache. A zero ttl stores keys without expiry.
func NewJSON[T any](client redis.Cmdable, prefix string, ttl time.Duration) *JSON[T] {
	return &JSON[T]{client: client, prefix: prefix, ttl: ttl}
}

// Key returns the full Redis key for id.
func (c *JSON[T]) Key(id string) string {
	return c.prefix + ":" + id
}

// Get loads the value stored under id. It returns ErrMiss when absent; a
// value that no longer decodes is deleted and reported as a miss.
func (c *JSON[T]) Get(ctx context.Context, id string) (T, error) {
	var v T

	raw, err := c.client.Get(ctx, c.Key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return v, ErrMiss
	}
	if err != nil {
		return v, fmt.Errorf("cache get %s: %w", c.Key(id), err)
	}

	if err := json.Unmarshal(raw, &v); err != nil {
		_ = c.client.Del(ctx, c.Key(id)).Err()
		return v, ErrMiss
	}
	return v, nil
}

// Set stores v under id.
func (c *JSON[T]) Set(ctx context.Context, id string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", c.Key(id), err)
	}
	if err := c.client.Set(ctx, c.Key(id), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", c.Key(id), err)
	}
	return nil
}

// Delete removes id.
func (c *JSON[T]) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, c.Key(id)).Err()
}
