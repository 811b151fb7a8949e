// Package variantindex implements the C6 URL→variant-keys reverse index
// and the purge protocol that consumes it.
package variantindex

import "sync"

// Index maps a URI to the set of page-variant cache keys observed for it.
// Index is single-writer from the pipeline's completion callbacks, with
// purge reads racing writes; a plain mutex is enough since neither side
// holds it for long.
type Index struct {
	mu   sync.Mutex
	data map[string]map[string]struct{}
}

// New builds an empty Index.
func New() *Index {
	return &Index{data: make(map[string]map[string]struct{})}
}

// Add records that key is a known variant of uri.
func (idx *Index) Add(uri, key string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	set, ok := idx.data[uri]
	if !ok {
		set = make(map[string]struct{})
		idx.data[uri] = set
	}
	set[key] = struct{}{}
}

// Keys returns every known variant key for uri, in no particular order.
// Readers observe "at least the entries present at some earlier point"
// — callers must not assume the snapshot is current by the
// time they act on it.
func (idx *Index) Keys(uri string) []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	set, ok := idx.data[uri]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

// Delete removes the entire entry for uri. A purge-by-url request
// removes the variant-index entry after deleting its backing keys.
func (idx *Index) Delete(uri string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.data, uri)
}

// Flush clears the whole index (used by purge-by-"*").
func (idx *Index) Flush() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.data = make(map[string]map[string]struct{})
}

// Len reports how many URIs currently have at least one known variant,
// for tests and diagnostics.
func (idx *Index) Len() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.data)
}
