package elements

import (
	"context"
	"time"

	"github.com/twicecache/twice/internal/model"
)

// Kind implements the four element-registry operations for one element
// kind. Adding a kind means writing one of these and
// registering it — no reflection, no string-dispatch.
type Kind interface {
	// Name is the key prefix this Kind answers for ("page", "session",
	// or a configured kv/db fragment kind).
	Name() string

	// Hash derives the id portion of the cache key (the caller prefixes
	// Name()+"_"). id is ignored for "page" (derived from req alone);
	// ok is false when no key applies (e.g. "session" with no session
	// cookie present).
	Hash(ctx context.Context, req *model.Request, id string) (resolvedID string, ok bool)

	// Fetch produces the authoritative value for id.
	Fetch(ctx context.Context, req *model.Request, id string) (Value, error)

	// Validate is asked for each cached value; false forces a refetch.
	Validate(ctx context.Context, id string, cached Value, now time.Time) bool

	// NeedsBackgroundRefresh reports whether a value Validate accepted
	// should also trigger an async refresh (soft-stale pages only;
	// every other kind returns false — expiry is enforced by the cache
	// backend reporting absent).
	NeedsBackgroundRefresh(id string, cached Value, now time.Time) bool

	// Extract post-processes a freshly fetched value into cacheable
	// form, reporting whether it should be written to the cache backend
	// and, if so, under what backend TTL.
	Extract(ctx context.Context, req *model.Request, id string, fetched Value) (stored Value, cacheable bool, backendTTL time.Duration, err error)
}

// Registry is the kind-name -> Kind lookup table.
type Registry struct {
	kinds map[string]Kind
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{kinds: make(map[string]Kind)}
}

// Register adds (or replaces) the Kind under its own Name().
func (r *Registry) Register(k Kind) {
	r.kinds[k.Name()] = k
}

// Lookup returns the Kind registered for name, if any.
func (r *Registry) Lookup(name string) (Kind, bool) {
	k, ok := r.kinds[name]
	return k, ok
}

// IsFragmentKind reports whether name is neither "page" nor "session" —
// the scan step (step 4) uses this to decide which markers
// name fragments worth prefetching.
func IsFragmentKind(name string) bool {
	return name != "page" && name != "session"
}
