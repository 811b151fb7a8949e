package pipeline

import (
	"context"
	"fmt"

	"github.com/twicecache/twice/internal/elements"
)

// incrementer is implemented by element kinds that support the
// template evaluator's incr/decr side effects (currently only kv-backed
// fragment kinds; see elements.KVFragmentKind).
type incrementer interface {
	Increment(ctx context.Context, id string) (string, error)
	Decrement(ctx context.Context, id string) (string, error)
	SetIfAbsent(ctx context.Context, id, value string) error
}

// RegistrySideEffects adapts the element registry to evaluator.SideEffects,
// dispatching each call to whichever Kind registered under the given name.
type RegistrySideEffects struct {
	registry *elements.Registry
}

// NewSideEffects builds an evaluator.SideEffects backed by registry.
func NewSideEffects(registry *elements.Registry) *RegistrySideEffects {
	return &RegistrySideEffects{registry: registry}
}

func (r *RegistrySideEffects) lookup(kind string) (incrementer, error) {
	k, ok := r.registry.Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("pipeline: no registered kind %q", kind)
	}
	inc, ok := k.(incrementer)
	if !ok {
		return nil, fmt.Errorf("pipeline: kind %q has no increment/decrement side effect", kind)
	}
	return inc, nil
}

func (r *RegistrySideEffects) Increment(ctx context.Context, kind, id string) (string, error) {
	inc, err := r.lookup(kind)
	if err != nil {
		return "", err
	}
	return inc.Increment(ctx, id)
}

func (r *RegistrySideEffects) Decrement(ctx context.Context, kind, id string) (string, error) {
	inc, err := r.lookup(kind)
	if err != nil {
		return "", err
	}
	return inc.Decrement(ctx, id)
}

func (r *RegistrySideEffects) SetIfAbsent(ctx context.Context, kind, id, value string) error {
	inc, err := r.lookup(kind)
	if err != nil {
		return err
	}
	return inc.SetIfAbsent(ctx, id, value)
}
