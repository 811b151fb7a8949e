package kvupstream

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return New(Config{Addr: mr.Addr()}, nil)
}

func TestGetReturnsNotFoundForAbsentKey(t *testing.T) {
	c := newTestClient(t)
	_, ok, err := c.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetGetRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "top", []byte("42"), time.Minute))

	val, ok, err := c.Get(ctx, "top")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("42"), val)
}

func TestIncrCreatesAtOneThenIncrements(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	n, err := c.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = c.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestDecrSymmetricToIncr(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	_, err := c.Incr(ctx, "counter")
	require.NoError(t, err)

	n, err := c.Decr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestDeleteRemovesKey(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "top", []byte("42"), time.Minute))
	require.NoError(t, c.Delete(ctx, "top"))

	_, ok, err := c.Get(ctx, "top")
	require.NoError(t, err)
	assert.False(t, ok)
}
