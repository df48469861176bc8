package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_ExpiryAndInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Date(2026, 1, 22, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(time.Minute)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "entry expires at its ttl")

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx))
	next, err := c.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, gen+1, next)
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestNewRedisCacheWithClient_DefaultPrefix(t *testing.T) {
	c := NewRedisCacheWithClient(nil, "")
	assert.Equal(t, defaultKeyPrefix+"generation", c.generationKey())
}

func TestMemoryCache_SetSweepsExpiredKeys(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Date(2026, 1, 22, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	for _, key := range []string{"report:0:1:2", "report:0:2:3", "report:0:3:4"} {
		require.NoError(t, c.Set(ctx, key, []byte("r"), time.Minute))
	}
	require.Equal(t, 3, c.Len())

	now = now.Add(30 * time.Second)
	require.NoError(t, c.Set(ctx, "report:0:4:5", []byte("r"), time.Minute))
	assert.Equal(t, 4, c.Len(), "live entries survive")

	now = now.Add(45 * time.Second)
	require.NoError(t, c.Set(ctx, "report:0:5:6", []byte("r"), time.Minute))
	assert.Equal(t, 2, c.Len(), "only the expired keys are dropped")

	_, ok, err := c.Get(ctx, "report:0:4:5")
	require.NoError(t, err)
	assert.True(t, ok)
}
