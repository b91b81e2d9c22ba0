package cart

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultRegistrySize is how many engines a Registry keeps open.
const DefaultRegistrySize = 10_000

// Registry keeps up to size recently used engines open, rehydrating from the
// store on a miss. An evicted cart loses nothing: every mutation was saved
// before it became visible.
type Registry struct {
	store   Store
	catalog Catalog
	opts    []Option
	engines *lru.Cache[string, *Engine]
	loads   singleflight.Group
}

func NewRegistry(store Store, catalog Catalog, size int, opts ...Option) (*Registry, error) {
	engines, err := lru.New[string, *Engine](size)
	if err != nil {
		return nil, fmt.Errorf("create engine cache: %w", err)
	}

	return &Registry{
		store:   store,
		catalog: catalog,
		opts:    opts,
		engines: engines,
	}, nil
}

// Get returns the open engine for profileID. Concurrent misses for the same
// profile share one store load; loads for other profiles do not wait on it.
func (r *Registry) Get(ctx context.Context, profileID string) (*Engine, error) {
	if e, ok := r.engines.Get(profileID); ok {
		return e, nil
	}

	v, err, _ := r.loads.Do(profileID, func() (any, error) {
		if e, ok := r.engines.Get(profileID); ok {
			return e, nil
		}

		e, err := Open(ctx, profileID, r.store, r.catalog, r.opts...)
		if err != nil {
			return nil, err
		}

		if prev, ok, _ := r.engines.PeekOrAdd(profileID, e); ok {
			return prev, nil
		}
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Engine), nil
}

// Len reports how many engines are open.
func (r *Registry) Len() int {
	return r.engines.Len()
}
