package ledger

import (
	"context"
	"sync"
)

// KeyLock provides per-key locking so two workers never act on the same
// ledger key at once.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*keyEntry
}

type keyEntry struct {
	slot chan struct{}
	refs int
}

// NewKeyLock creates a new KeyLock.
func NewKeyLock() *KeyLock {
	return &KeyLock{
		locks: make(map[string]*keyEntry),
	}
}

// TryAcquire attempts to acquire a lock for the given key.
// Returns true if the lock was acquired, false if already held.
func (k *KeyLock) TryAcquire(key string) bool {
	e := k.ref(key)
	select {
	case e.slot <- struct{}{}:
		return true
	default:
		k.unref(key, e)
		return false
	}
}

// Lock blocks until the key is free or ctx is done.
func (k *KeyLock) Lock(ctx context.Context, key string) error {
	e := k.ref(key)
	select {
	case e.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		k.unref(key, e)
		return ctx.Err()
	}
}

// Release releases the lock for the given key.
func (k *KeyLock) Release(key string) {
	k.mu.Lock()
	e, ok := k.locks[key]
	k.mu.Unlock()
	if !ok {
		return
	}
	select {
	case <-e.slot:
		k.unref(key, e)
	default:
	}
}

func (k *KeyLock) ref(key string) *keyEntry {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyEntry{slot: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	return e
}

func (k *KeyLock) unref(key string, e *keyEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}

// held returns how many keys are tracked. Used in tests.
func (k *KeyLock) held() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
