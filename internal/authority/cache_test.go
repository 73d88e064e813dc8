package authority

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	_, ok, err := c.Get(ctx, "mit")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "mit", mitLookup()))
	l, ok, err := c.Get(ctx, "mit")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Q49108", l.QID)

	n, _ := c.Len(ctx)
	assert.Equal(t, 1, n)
	require.NoError(t, c.Close(ctx))
	n, _ = c.Len(ctx)
	assert.Zero(t, n)
}

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), RedisOptions{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	return c, mr
}

func TestRedisCache_RoundTripAndMiss(t *testing.T) {
	ctx := context.Background()
	c, _ := newRedisCache(t)
	defer c.Close(ctx)

	_, ok, err := c.Get(ctx, "mit")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "mit", mitLookup()))
	require.NoError(t, c.Set(ctx, "nobody", &Lookup{}))

	l, ok, err := c.Get(ctx, "mit")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, mitLookup(), l)

	miss, ok, err := c.Get(ctx, "nobody")
	require.NoError(t, err)
	assert.True(t, ok, "misses are cached too")
	assert.False(t, miss.Matched())
}

func TestRedisCache_CloseDropsRunNamespace(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)
	require.NoError(t, mr.Set("unrelated", "keep"))

	require.NoError(t, c.Set(ctx, "a", &Lookup{}))
	require.NoError(t, c.Set(ctx, "b", &Lookup{}))
	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, strings.HasPrefix(c.Namespace(), "paperkg:authority:"))

	require.NoError(t, c.Close(ctx))
	assert.Equal(t, []string{"unrelated"}, mr.Keys())
}

func TestRedisCache_RunsAreIsolated(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	a, err := NewRedisCache(ctx, RedisOptions{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	b, err := NewRedisCache(ctx, RedisOptions{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	defer a.Close(ctx)
	defer b.Close(ctx)

	require.NoError(t, a.Set(ctx, "mit", mitLookup()))
	_, ok, err := b.Get(ctx, "mit")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_ConnectFailure(t *testing.T) {
	_, err := NewRedisCache(context.Background(), RedisOptions{URL: "redis://127.0.0.1:1"})
	assert.Error(t, err)
}

func TestResolver_RedisBackedCache(t *testing.T) {
	c, _ := newRedisCache(t)
	m := &fakeMatcher{lookups: map[string]*Lookup{"MIT": mitLookup()}}
	r := NewResolver(m, c)
	ctx := context.Background()
	defer c.Close(ctx)

	assert.Equal(t, KindOrganization, r.Classify(ctx, "MIT"))
	assert.Equal(t, KindOrganization, r.Classify(ctx, "mit"))
	assert.Equal(t, int64(1), m.calls.Load())
}
