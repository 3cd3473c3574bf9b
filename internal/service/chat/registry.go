package chat

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/zhouzirui/dadmind/backend/internal/storage"
)

// Registry hands out one restored Store per owner.
type Registry struct {
	kv    storage.KV
	opts  []Option
	group singleflight.Group

	mu     sync.RWMutex
	stores map[string]*Store
}

func NewRegistry(kv storage.KV, opts ...Option) *Registry {
	return &Registry{
		kv:     kv,
		opts:   opts,
		stores: make(map[string]*Store),
	}
}

// Store returns the owner's store, restoring it from storage on first use.
// Concurrent first calls for the same owner share a single restore. Storage
// reads never inherit the caller's cancellation.
func (r *Registry) Store(ctx context.Context, owner string) *Store {
	ctx = context.WithoutCancel(ctx)

	r.mu.RLock()
	store, ok := r.stores[owner]
	r.mu.RUnlock()
	if ok {
		store.Retry(ctx)
		return store
	}

	v, _, _ := r.group.Do(owner, func() (any, error) {
		r.mu.RLock()
		existing, ok := r.stores[owner]
		r.mu.RUnlock()
		if ok {
			return existing, nil
		}

		store := NewStore(r.kv, owner, r.opts...)
		store.Restore(ctx)

		r.mu.Lock()
		r.stores[owner] = store
		r.mu.Unlock()
		return store, nil
	})
	return v.(*Store)
}
