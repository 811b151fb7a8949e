package elements

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitOnFirstUnderscore(t *testing.T) {
	kind, id, ok := Split("page_localhost/a//u=1")
	assert.True(t, ok)
	assert.Equal(t, "page", kind)
	assert.Equal(t, "localhost/a//u=1", id)
}

func TestSplitRejectsKeyWithoutUnderscore(t *testing.T) {
	_, _, ok := Split("noprefix")
	assert.False(t, ok)
}

func TestMakeKeyRoundTripsWithSplit(t *testing.T) {
	key := MakeKey("favorite", "42")
	kind, id, ok := Split(key)
	assert.True(t, ok)
	assert.Equal(t, "favorite", kind)
	assert.Equal(t, "42", id)
}
