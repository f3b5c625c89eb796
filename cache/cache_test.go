package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewFromClient(client), mr
}

func TestCacheJSONRoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Score int    `json:"score"`
	}

	require.NoError(t, c.SetJSON(ctx, "dashboard:u1", payload{Name: "ayu", Score: 87}, time.Minute))

	var got payload
	require.NoError(t, c.GetJSON(ctx, "dashboard:u1", &got))
	assert.Equal(t, payload{Name: "ayu", Score: 87}, got)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, c.GetJSON(ctx, "dashboard:u1", &got), ErrCacheMiss)
}

func TestCacheDeleteAndEmptyKey(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "k", 1, 0))
	require.NoError(t, c.Delete(ctx, "k"))

	var v int
	assert.ErrorIs(t, c.GetJSON(ctx, "k", &v), ErrCacheMiss)
	assert.ErrorIs(t, c.SetJSON(ctx, "", 1, 0), ErrCacheKeyEmpty)
	assert.NoError(t, c.Delete(ctx))
	assert.NoError(t, c.Ping(ctx))
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(context.Background(), "not a url")
	assert.Error(t, err)
}
