package datastore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twicecache/twice/internal/cachebackend"
	"github.com/twicecache/twice/internal/elements"
	"github.com/twicecache/twice/internal/model"
)

type fakeKind struct {
	name        string
	fetchCalls  int
	fetchResult elements.Value
	cacheable   bool
	ttl         time.Duration
	validateOK  bool
}

func (f *fakeKind) Name() string { return f.name }
func (f *fakeKind) Hash(ctx context.Context, req *model.Request, id string) (string, bool) {
	return id, true
}
func (f *fakeKind) Fetch(ctx context.Context, req *model.Request, id string) (elements.Value, error) {
	f.fetchCalls++
	return f.fetchResult, nil
}
func (f *fakeKind) Validate(ctx context.Context, id string, cached elements.Value, now time.Time) bool {
	return f.validateOK
}
func (f *fakeKind) NeedsBackgroundRefresh(id string, cached elements.Value, now time.Time) bool {
	return false
}
func (f *fakeKind) Extract(ctx context.Context, req *model.Request, id string, fetched elements.Value) (elements.Value, bool, time.Duration, error) {
	return fetched, f.cacheable, f.ttl, nil
}

func TestGetReturnsCachedHitWithoutFetching(t *testing.T) {
	backend := cachebackend.NewMemory()
	ctx := context.Background()
	raw, err := elements.Marshal(elements.Value{Bytes: []byte("cached")})
	require.NoError(t, err)
	require.NoError(t, backend.Set(ctx, []cachebackend.Entry{{Key: "widget_1", Value: raw}}, time.Minute))

	kind := &fakeKind{name: "widget", validateOK: true}
	reg := elements.NewRegistry()
	reg.Register(kind)

	ds := New(backend, reg, nil, nil, nil, nil)
	result, err := ds.Get(ctx, []string{"widget_1"}, &model.Request{})
	require.NoError(t, err)
	assert.Equal(t, "cached", string(result["widget_1"].Bytes))
	assert.Equal(t, 0, kind.fetchCalls)
}

func TestGetFetchesOnMissAndStoresCacheableResult(t *testing.T) {
	backend := cachebackend.NewMemory()
	ctx := context.Background()

	kind := &fakeKind{name: "widget", fetchResult: elements.Value{Bytes: []byte("fresh")}, cacheable: true, ttl: time.Minute}
	reg := elements.NewRegistry()
	reg.Register(kind)

	ds := New(backend, reg, nil, nil, nil, nil)
	result, err := ds.Get(ctx, []string{"widget_1"}, &model.Request{})
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(result["widget_1"].Bytes))
	assert.Equal(t, 1, kind.fetchCalls)
	assert.Equal(t, 1, backend.Len())
}

func TestGetRefetchesInvalidEntries(t *testing.T) {
	backend := cachebackend.NewMemory()
	ctx := context.Background()
	raw, err := elements.Marshal(elements.Value{Bytes: []byte("stale")})
	require.NoError(t, err)
	require.NoError(t, backend.Set(ctx, []cachebackend.Entry{{Key: "widget_1", Value: raw}}, time.Minute))

	kind := &fakeKind{name: "widget", validateOK: false, fetchResult: elements.Value{Bytes: []byte("fresh")}, cacheable: true, ttl: time.Minute}
	reg := elements.NewRegistry()
	reg.Register(kind)

	ds := New(backend, reg, nil, nil, nil, nil)
	result, err := ds.Get(ctx, []string{"widget_1"}, &model.Request{})
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(result["widget_1"].Bytes))
	assert.Equal(t, 1, kind.fetchCalls)
}

func TestGetSkipsKeysWithUnregisteredKind(t *testing.T) {
	backend := cachebackend.NewMemory()
	reg := elements.NewRegistry()
	ds := New(backend, reg, nil, nil, nil, nil)

	result, err := ds.Get(context.Background(), []string{"unknown_1"}, &model.Request{})
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestGetDoesNotFailBatchOnMalformedKey(t *testing.T) {
	backend := cachebackend.NewMemory()
	kind := &fakeKind{name: "widget", fetchResult: elements.Value{Bytes: []byte("fresh")}, cacheable: true, ttl: time.Minute}
	reg := elements.NewRegistry()
	reg.Register(kind)
	ds := New(backend, reg, nil, nil, nil, nil)

	result, err := ds.Get(context.Background(), []string{"noprefix", "widget_1"}, &model.Request{})
	require.NoError(t, err)
	assert.Len(t, result, 1)
	assert.Equal(t, "fresh", string(result["widget_1"].Bytes))
}
