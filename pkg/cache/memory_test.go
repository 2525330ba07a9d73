package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheRoundTripsJSON(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "dirs", map[string]string{"GBPUSD": "LONG"}, 0))
	var got map[string]string
	require.NoError(t, mc.Get(ctx, "dirs", &got))
	assert.Equal(t, "LONG", got["GBPUSD"])

	var s string
	require.NoError(t, mc.Set(ctx, "raw", "hello", 0))
	require.NoError(t, mc.Get(ctx, "raw", &s))
	assert.Equal(t, "hello", s)

	assert.ErrorIs(t, mc.Get(ctx, "missing", &s), ErrCacheMiss)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc := NewMemoryCache(WithMemoryClock(func() time.Time { return now }))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "k", "v", time.Minute))
	ok, err := mc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = mc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheIncrementAndEviction(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc := NewMemoryCache(WithMemoryMaxSize(2), WithMemoryClock(func() time.Time { return now }))
	defer mc.Close()

	n, err := mc.Increment(ctx, "count")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = mc.Increment(ctx, "count")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	now = now.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "a", "1", 0))
	now = now.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "b", "2", 0)) // evicts "count"

	ok, _ := mc.Exists(ctx, "count")
	assert.False(t, ok)
	ok, _ = mc.Exists(ctx, "a", "b")
	assert.True(t, ok)

	assert.Equal(t, "correlations:directions", GenerateKey("correlations", "directions"))
}
