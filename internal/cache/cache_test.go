package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type document struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	c, err := New(srv.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, srv
}

func TestNewFailsWhenUnreachable(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	_, err := New(addr, "", 0)
	assert.Error(t, err)
}

func TestGetMissLeavesDestUntouched(t *testing.T) {
	c, _ := newTestCache(t)

	dest := document{Name: "sentinel"}
	hit, err := c.Get(context.Background(), "absent", &dest)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "sentinel", dest.Name)
}

func TestSetGetRoundTrip(t *testing.T) {
	c, srv := newTestCache(t)
	ctx := context.Background()

	in := document{Name: "bitcoin", Value: 50000}
	require.NoError(t, c.Set(ctx, "price:bitcoin", in, 5*time.Minute))

	var out document
	hit, err := c.Get(ctx, "price:bitcoin", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, in, out)

	// the entry carries the requested expiry
	assert.Equal(t, 5*time.Minute, srv.TTL("price:bitcoin"))
}

func TestGetExpiredKeyIsMiss(t *testing.T) {
	c, srv := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "price:bitcoin", document{Value: 1}, time.Minute))
	srv.FastForward(2 * time.Minute)

	var out document
	hit, err := c.Get(ctx, "price:bitcoin", &out)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestGetCorruptValueIsError(t *testing.T) {
	c, srv := newTestCache(t)

	require.NoError(t, srv.Set("broken", "{not json"))

	var out document
	_, err := c.Get(context.Background(), "broken", &out)
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	c, srv := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", document{}, time.Minute))
	require.NoError(t, c.Set(ctx, "b", document{}, time.Minute))

	require.NoError(t, c.Delete(ctx, "a", "b"))
	assert.False(t, srv.Exists("a"))
	assert.False(t, srv.Exists("b"))

	// no keys is a no-op
	require.NoError(t, c.Delete(ctx))
}

func TestDeletePrefix(t *testing.T) {
	c, srv := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "coingecko:coins", document{}, time.Minute))
	require.NoError(t, c.Set(ctx, "coingecko:exchanges", document{}, time.Minute))
	require.NoError(t, c.Set(ctx, "compare:bitcoin:default", document{}, time.Minute))

	removed, err := c.DeletePrefix(ctx, "coingecko:")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	assert.False(t, srv.Exists("coingecko:coins"))
	assert.False(t, srv.Exists("coingecko:exchanges"))
	assert.True(t, srv.Exists("compare:bitcoin:default"))

	// nothing left to match
	removed, err = c.DeletePrefix(ctx, "coingecko:")
	require.NoError(t, err)
	assert.Zero(t, removed)
}
