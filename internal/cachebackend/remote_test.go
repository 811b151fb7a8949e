package cachebackend

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRemote(t *testing.T) *Remote {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	r, err := NewRemote(&RemoteConfig{
		Addr:         mr.Addr(),
		PoolSize:     2,
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRemoteSetGetRoundTrip(t *testing.T) {
	r := newTestRemote(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, []Entry{{Key: "page_a", Value: []byte("HELLO")}}, time.Minute))

	got, err := r.Get(ctx, []string{"page_a", "missing"})
	require.NoError(t, err)
	assert.Equal(t, []byte("HELLO"), got["page_a"])
	_, present := got["missing"]
	assert.False(t, present)
}

func TestRemoteDeleteAndFlush(t *testing.T) {
	r := newTestRemote(t)
	ctx := context.Background()
	require.NoError(t, r.Set(ctx, []Entry{{Key: "k", Value: []byte("v")}}, time.Minute))

	require.NoError(t, r.Delete(ctx, []string{"k"}))
	got, err := r.Get(ctx, []string{"k"})
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, r.Set(ctx, []Entry{{Key: "a", Value: []byte("1")}}, time.Minute))
	require.NoError(t, r.Flush(ctx))
	got, err = r.Get(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewRemoteRejectsInvalidConfig(t *testing.T) {
	_, err := NewRemote(&RemoteConfig{Addr: ""}, nil)
	assert.Error(t, err)
}
