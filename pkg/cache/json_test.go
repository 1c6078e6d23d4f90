package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func newTestCache(t *testing.T, ttl time.Duration) (*JSON[category], *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewJSON[category](client, "storefront:category", ttl), mr
}

func TestJSON_RoundTrip(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	_, err := c.Get(ctx, "5")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, "5", category{ID: 5, Name: "Toys"}))
	assert.True(t, mr.Exists("storefront:category:5"))
	assert.Equal(t, time.Minute, mr.TTL("storefront:category:5"))

	got, err := c.Get(ctx, "5")
	require.NoError(t, err)
	assert.Equal(t, category{ID: 5, Name: "Toys"}, got)

	require.NoError(t, c.Delete(ctx, "5"))
	_, err = c.Get(ctx, "5")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestJSON_Expiry(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "5", category{ID: 5, Name: "Toys"}))
	mr.FastForward(2 * time.Minute)

	_, err := c.Get(ctx, "5")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestJSON_CorruptEntryIsEvicted(t *testing.T) {
	c, mr := newTestCache(t, 0)
	require.NoError(t, mr.Set("storefront:category:7", "{not json"))

	_, err := c.Get(context.Background(), "7")
	assert.ErrorIs(t, err, ErrMiss)
	assert.False(t, mr.Exists("storefront:category:7"))
}

func TestJSON_ServerDown(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	mr.Close()

	_, err := c.Get(context.Background(), "5")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := DefaultRedisConfig()
	cfg.Host = mr.Host()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	cfg.Port = port

	client, err := NewRedisClient(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	assert.Equal(t, mr.Addr(), cfg.Addr())

	mr.Close()
	_, err = NewRedisClient(context.Background(), cfg)
	assert.Error(t, err)
}
