package cache

import "sync"

// KeyLock hands out one mutex per key. Mutexes are dropped once no
// goroutine holds or waits on them.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*keyMutex
}

type keyMutex struct {
	sync.Mutex
	refs int
}

func NewKeyLock() *KeyLock {
	return &KeyLock{locks: make(map[string]*keyMutex)}
}

func (kl *KeyLock) Lock(key string) func() {
	kl.mu.Lock()
	km, ok := kl.locks[key]
	if !ok {
		km = &keyMutex{}
		kl.locks[key] = km
	}
	km.refs++
	kl.mu.Unlock()

	km.Lock()
	return func() {
		km.Unlock()
		kl.mu.Lock()
		km.refs--
		if km.refs == 0 {
			delete(kl.locks, key)
		}
		kl.mu.Unlock()
	}
}

func (kl *KeyLock) size() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.locks)
}
