package cache

// AfterCommitter registers a callback that runs once the enclosing
// transaction commits.
type AfterCommitter interface {
	AfterCommit(func())
}

// LazyCache is a named group of entries that is flushed as a whole.
type LazyCache struct {
	cache *GoCache
	name  string
}

func NewLazyCache(c *GoCache, name string) *LazyCache {
	return &LazyCache{cache: c, name: name}
}

func LazyGet[T any](lc *LazyCache, key string, clone func(T) T, loader func() (T, error)) (T, error) {
	return LoadSub(lc.cache, lc.name, key, clone, loader)
}

func (lc *LazyCache) Flush() {
	lc.cache.RemoveAll(lc.name)
}

func (lc *LazyCache) FlushOnCommit(tx AfterCommitter) {
	tx.AfterCommit(lc.Flush)
}
