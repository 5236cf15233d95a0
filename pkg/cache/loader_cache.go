// Package cache provides a generic loader cache: LRU storage plus singleflight so concurrent
// misses for the same key share one load.
package cache

import (
	"context"
	"slices"

	"github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// LoaderCache loads values on miss via a callback. Concurrent misses for one key run a single
// load and share its result. Failed loads are not cached.
type LoaderCache[K comparable, V any] struct {
	lru         *lru.Cache[string, V]
	group       singleflight.Group
	keyToString func(K) string
	clone       func(V) V
}

// NewLoaderCache creates a loader cache with the given max entries and key serializer.
func NewLoaderCache[K comparable, V any](maxEntries int, keyToString func(K) string) (*LoaderCache[K, V], error) {
	lruCache, err := lru.New[string, V](maxEntries)
	if err != nil {
		return nil, err
	}

	return &LoaderCache[K, V]{
		lru:         lruCache,
		keyToString: keyToString,
	}, nil
}

// NewVectorCache creates a cache of embedding vectors keyed by the embedded text.
// Returned vectors are copies, so callers may modify them.
func NewVectorCache(maxEntries int) (*LoaderCache[string, []float32], error) {
	c, err := NewLoaderCache[string, []float32](maxEntries, func(s string) string { return s })
	if err != nil {
		return nil, err
	}

	c.clone = slices.Clone[[]float32]

	return c, nil
}

// Get returns the value for key, loading it via load on cache miss. hit reports whether the value
// came from the cache; a caller that shared another caller's in-flight load sees hit false.
func (c *LoaderCache[K, V]) Get(ctx context.Context, key K, load func(context.Context, K) (V, error)) (v V, hit bool, err error) {
	keyStr := c.keyToString(key)
	if cached, ok := c.lru.Get(keyStr); ok {
		return c.copyOf(cached), true, nil
	}

	val, err, _ := c.group.Do(keyStr, func() (any, error) {
		loaded, loadErr := load(ctx, key)
		if loadErr != nil {
			return nil, loadErr
		}

		c.lru.Add(keyStr, loaded)

		return loaded, nil
	})
	if err != nil {
		var zero V

		return zero, false, err
	}

	return c.copyOf(val.(V)), false, nil
}

func (c *LoaderCache[K, V]) copyOf(v V) V {
	if c.clone == nil {
		return v
	}

	return c.clone(v)
}
