package cachesvc

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func TestNoop(t *testing.T) {
	ctx := context.Background()
	var c Noop

	require.NoError(t, c.Set(ctx, "k", item{ID: 1}, time.Minute))
	var got item
	found, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, c.Delete(ctx, "k"))
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	c := NewRedisCache(rdb)

	want := []item{{ID: 1, Name: "X IPA 1"}, {ID: 2, Name: "X IPA 2"}}
	require.NoError(t, c.Set(ctx, "test:classes", want, time.Minute))

	var got []item
	found, err := c.Get(ctx, "test:classes", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)

	require.NoError(t, c.Delete(ctx, "test:classes"))
	found, err = c.Get(ctx, "test:classes", &got)
	require.NoError(t, err)
	assert.False(t, found)
}
