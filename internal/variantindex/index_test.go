package variantindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddAndKeys(t *testing.T) {
	idx := New()
	idx.Add("/a", "page_localhost/a")
	idx.Add("/a", "page_localhost/a//u=1")

	keys := idx.Keys("/a")
	assert.ElementsMatch(t, []string{"page_localhost/a", "page_localhost/a//u=1"}, keys)
}

func TestDeleteRemovesEntry(t *testing.T) {
	idx := New()
	idx.Add("/a", "page_localhost/a")
	idx.Delete("/a")
	assert.Empty(t, idx.Keys("/a"))
	assert.Equal(t, 0, idx.Len())
}

func TestFlushClearsEverything(t *testing.T) {
	idx := New()
	idx.Add("/a", "page_localhost/a")
	idx.Add("/b", "page_localhost/b")
	idx.Flush()
	assert.Equal(t, 0, idx.Len())
}
