package crx_arm

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// DhRegistry caches DH parameters per arm model. Concurrent lookups of an uncached
// model share one fetch; failed fetches are not cached so the next lookup retries.
type DhRegistry struct {
	entries map[ArmModel]DhParameters
	mu      sync.RWMutex
	group   singleflight.Group
}

func NewDhRegistry() *DhRegistry {
	return &DhRegistry{
		entries: make(map[ArmModel]DhParameters),
	}
}

// Get returns the cached parameters for model, calling fetch on a miss.
func (r *DhRegistry) Get(ctx context.Context, model ArmModel, fetch func(context.Context, ArmModel) (DhParameters, error)) (DhParameters, error) {
	if params, ok := r.Cached(model); ok {
		return params, nil
	}

	v, err, _ := r.group.Do(model.String(), func() (interface{}, error) {
		// a previous flight may have filled the entry while we were waiting
		if params, ok := r.Cached(model); ok {
			return params, nil
		}
		params, err := fetch(ctx, model)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.entries[model] = params
		r.mu.Unlock()
		return params, nil
	})
	if err != nil {
		return DhParameters{}, err
	}
	return v.(DhParameters), nil
}

// Cached returns the parameters for model without fetching.
func (r *DhRegistry) Cached(model ArmModel) (DhParameters, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	params, ok := r.entries[model]
	return params, ok
}

// Forget drops a cached model, forcing the next Get to fetch again.
func (r *DhRegistry) Forget(model ArmModel) {
	r.mu.Lock()
	delete(r.entries, model)
	r.mu.Unlock()
}

// Len returns the number of cached models.
func (r *DhRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
