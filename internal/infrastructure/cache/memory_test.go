package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_GetSet(t *testing.T) {
	c := NewMemoryCache(0)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", "v1", time.Minute))

	var got string
	require.NoError(t, c.Get(ctx, "k1", &got))
	assert.Equal(t, "v1", got)
}

func TestMemoryCache_GetExpired(t *testing.T) {
	c := NewMemoryCache(0)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", "v1", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	var got string
	err := c.Get(ctx, "k1", &got)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCache_SetOperations(t *testing.T) {
	c := NewMemoryCache(0)
	ctx := context.Background()

	require.NoError(t, c.SAdd(ctx, "set1", "sess-1", "sess-2"))

	members, err := c.SMembers(ctx, "set1")
	require.NoError(t, err)
	// Members round-trip as the plain IDs, not JSON-quoted strings.
	assert.ElementsMatch(t, []string{"sess-1", "sess-2"}, members)

	count, err := c.SCard(ctx, "set1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, c.SRem(ctx, "set1", "sess-1"))
	members, err = c.SMembers(ctx, "set1")
	require.NoError(t, err)
	assert.Equal(t, []string{"sess-2"}, members)
}

func TestMemoryCache_TTL(t *testing.T) {
	c := NewMemoryCache(0)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", "v1", time.Hour))

	ttl, err := c.TTL(ctx, "k1")
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestMemoryCache_Flush(t *testing.T) {
	c := NewMemoryCache(0)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", "v1", time.Minute))
	require.NoError(t, c.Flush(ctx))

	exists, err := c.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, exists)
}
