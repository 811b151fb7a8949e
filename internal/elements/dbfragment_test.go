package elements

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twicecache/twice/internal/model"
)

type fakeFragmentStore struct {
	values map[string]string
}

func (f *fakeFragmentStore) GetSession(ctx context.Context, id string) (map[string]string, bool, error) {
	return nil, false, nil
}
func (f *fakeFragmentStore) GetFragment(ctx context.Context, kind, id string) (string, bool, error) {
	v, ok := f.values[kind+"_"+id]
	return v, ok, nil
}
func (f *fakeFragmentStore) Close() error { return nil }

func TestDBFragmentHashRequiresNonEmptyID(t *testing.T) {
	k := NewDBFragmentKind("favorite", &fakeFragmentStore{}, nil)
	_, ok := k.Hash(context.Background(), &model.Request{}, "")
	assert.False(t, ok)
}

func TestDBFragmentFetchReturnsStoredValue(t *testing.T) {
	store := &fakeFragmentStore{values: map[string]string{"favorite_top": "widget-7"}}
	k := NewDBFragmentKind("favorite", store, nil)
	val, err := k.Fetch(context.Background(), &model.Request{}, "top")
	require.NoError(t, err)
	assert.Equal(t, "widget-7", val.Scalar())
}

func TestDBFragmentFetchAbsentWhenNoRow(t *testing.T) {
	k := NewDBFragmentKind("favorite", &fakeFragmentStore{}, nil)
	val, err := k.Fetch(context.Background(), &model.Request{}, "missing")
	require.NoError(t, err)
	assert.True(t, val.Absent)
}

func TestDBFragmentExtractDoesNotCacheAbsent(t *testing.T) {
	k := NewDBFragmentKind("favorite", &fakeFragmentStore{}, nil)
	_, cacheable, _, err := k.Extract(context.Background(), &model.Request{}, "top", Value{Absent: true})
	require.NoError(t, err)
	assert.False(t, cacheable)
}
