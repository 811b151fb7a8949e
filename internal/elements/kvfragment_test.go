package elements

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twicecache/twice/internal/kvupstream"
	"github.com/twicecache/twice/internal/model"
)

func newTestKVFragmentKind(t *testing.T) *KVFragmentKind {
	t.Helper()
	mr := miniredis.RunT(t)
	client := kvupstream.New(kvupstream.Config{Addr: mr.Addr()}, nil)
	return NewKVFragmentKind("kv", client, nil)
}

func TestKVFragmentHashRequiresNonEmptyID(t *testing.T) {
	k := newTestKVFragmentKind(t)
	_, ok := k.Hash(context.Background(), &model.Request{}, "")
	assert.False(t, ok)

	id, ok := k.Hash(context.Background(), &model.Request{}, "top")
	assert.True(t, ok)
	assert.Equal(t, "top", id)
}

func TestKVFragmentFetchAbsentWhenUnset(t *testing.T) {
	k := newTestKVFragmentKind(t)
	val, err := k.Fetch(context.Background(), &model.Request{}, "top")
	require.NoError(t, err)
	assert.True(t, val.Absent)
}

func TestKVFragmentIncrementCreatesThenIncrements(t *testing.T) {
	k := newTestKVFragmentKind(t)
	ctx := context.Background()
	v, err := k.Increment(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	v, err = k.Increment(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestKVFragmentSetIfAbsentThenFetch(t *testing.T) {
	k := newTestKVFragmentKind(t)
	ctx := context.Background()
	require.NoError(t, k.SetIfAbsent(ctx, "top", "widget-7"))

	val, err := k.Fetch(ctx, &model.Request{}, "top")
	require.NoError(t, err)
	assert.Equal(t, "widget-7", val.Scalar())
}

func TestKVFragmentExtractTTLIs30Seconds(t *testing.T) {
	k := newTestKVFragmentKind(t)
	_, cacheable, ttl, err := k.Extract(context.Background(), &model.Request{}, "top", Value{Bytes: []byte("x")})
	require.NoError(t, err)
	assert.True(t, cacheable)
	assert.Equal(t, 30*time.Second, ttl)
}
