// Package cache is the read-through cache shared by the execution history
// stores. Entries are invalidated explicitly after the transaction that
// changed their source rows commits.
package cache

import (
	"context"
	"sync"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
)

const DefaultCapacity = 1024

// GoCache is an LRU cache of string keys. A key may hold a single value
// or a set of values addressed by subkey.
type GoCache struct {
	items   *ttlcache.Cache[string, any]
	locks   *KeyLock
	metrics *Metrics
	logger  *zap.Logger
}

type subkeyMap struct {
	mu     sync.Mutex
	values map[string]any
}

func NewGoCache(capacity uint64, metrics *Metrics, logger *zap.Logger) *GoCache {
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &GoCache{
		items: ttlcache.New(
			ttlcache.WithCapacity[string, any](capacity),
			ttlcache.WithTTL[string, any](ttlcache.NoTTL),
		),
		locks:   NewKeyLock(),
		metrics: metrics,
		logger:  logger,
	}
	c.items.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, any]) {
		if reason == ttlcache.EvictionReasonCapacityReached {
			c.logger.Debug("cache entry evicted", zap.String("key", item.Key()))
		}
		c.metrics.setEntries(c.items.Len())
	})
	return c
}

// Lock acquires the mutex guarding key and returns its release function.
// Loads and invalidations of the same key hold it so that a load never
// stores a value read before a committed invalidation.
func (c *GoCache) Lock(key string) func() {
	return c.locks.Lock(key)
}

func (c *GoCache) Get(key string) (any, bool) {
	item := c.items.Get(key)
	if item == nil {
		c.metrics.miss(key)
		return nil, false
	}
	if _, ok := item.Value().(*subkeyMap); ok {
		c.metrics.miss(key)
		return nil, false
	}
	c.metrics.hit(key)
	return item.Value(), true
}

func (c *GoCache) Put(key string, value any) {
	c.items.Set(key, value, ttlcache.DefaultTTL)
	c.metrics.setEntries(c.items.Len())
}

func (c *GoCache) GetSub(key, subkey string) (any, bool) {
	item := c.items.Get(key)
	if item == nil {
		c.metrics.miss(key)
		return nil, false
	}
	sm, ok := item.Value().(*subkeyMap)
	if !ok {
		c.metrics.miss(key)
		return nil, false
	}
	sm.mu.Lock()
	v, ok := sm.values[subkey]
	sm.mu.Unlock()
	if !ok {
		c.metrics.miss(key)
		return nil, false
	}
	c.metrics.hit(key)
	return v, true
}

func (c *GoCache) PutSub(key, subkey string, value any) {
	var sm *subkeyMap
	if item := c.items.Get(key); item != nil {
		sm, _ = item.Value().(*subkeyMap)
	}
	if sm == nil {
		sm = &subkeyMap{values: make(map[string]any)}
		c.items.Set(key, sm, ttlcache.DefaultTTL)
	}
	sm.mu.Lock()
	sm.values[subkey] = value
	sm.mu.Unlock()
	c.metrics.setEntries(c.items.Len())
}

func (c *GoCache) Remove(key string) {
	c.items.Delete(key)
	c.metrics.setEntries(c.items.Len())
}

func (c *GoCache) RemoveSub(key, subkey string) {
	item := c.items.Get(key)
	if item == nil {
		return
	}
	if sm, ok := item.Value().(*subkeyMap); ok {
		sm.mu.Lock()
		delete(sm.values, subkey)
		sm.mu.Unlock()
	}
}

// RemoveAll removes each key while holding its lock.
func (c *GoCache) RemoveAll(keys ...string) {
	for _, key := range keys {
		unlock := c.Lock(key)
		c.Remove(key)
		unlock()
	}
}

func (c *GoCache) Clear() {
	c.items.DeleteAll()
	c.metrics.setEntries(0)
}

func (c *GoCache) Len() int {
	return c.items.Len()
}

func (c *GoCache) Has(key string) bool {
	return c.items.Has(key)
}

// Load returns the cached value under key, calling loader and caching
// its result on a miss. Values pass through clone on the way in and out
// so callers never share cached state.
func Load[T any](c *GoCache, key string, clone func(T) T, loader func() (T, error)) (T, error) {
	unlock := c.Lock(key)
	defer unlock()
	if v, ok := c.Get(key); ok {
		return clone(v.(T)), nil
	}
	v, err := loader()
	if err != nil {
		return v, err
	}
	c.Put(key, clone(v))
	return v, nil
}

// LoadSub is Load for a value stored under key and subkey.
func LoadSub[T any](c *GoCache, key, subkey string, clone func(T) T, loader func() (T, error)) (T, error) {
	unlock := c.Lock(key)
	defer unlock()
	if v, ok := c.GetSub(key, subkey); ok {
		return clone(v.(T)), nil
	}
	v, err := loader()
	if err != nil {
		return v, err
	}
	c.PutSub(key, subkey, clone(v))
	return v, nil
}

// Identity is the clone function for immutable values.
func Identity[T any](v T) T { return v }
