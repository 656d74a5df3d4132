package filelock

import "sync"

// Keyed hands out one sync.RWMutex per key. Writers to one key are serialized
// while other keys proceed independently. The zero value is ready to use.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.RWMutex
	refs int
}

// Lock acquires the write lock for key and returns its release func.
func (k *Keyed) Lock(key string) func() {
	entry := k.ref(key)
	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.unref(key)
	}
}

// RLock acquires the read lock for key and returns its release func.
func (k *Keyed) RLock(key string) func() {
	entry := k.ref(key)
	entry.mu.RLock()
	return func() {
		entry.mu.RUnlock()
		k.unref(key)
	}
}

func (k *Keyed) ref(key string) *keyedEntry {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedEntry)
	}
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyedEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	return entry
}

func (k *Keyed) unref(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	entry, ok := k.locks[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs == 0 {
		delete(k.locks, key)
	}
}
