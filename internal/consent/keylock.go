package consent

import "sync"

// keyMutex hands out one mutex per key so transitions for distinct
// (individual, party) pairs never contend on a shared lock. Entries are kept
// for the life of the process; the population is bounded by the number of
// pairs ever submitted.
type keyMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyMutex() *keyMutex {
	return &keyMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyMutex) lock(key string) *sync.Mutex {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m
}
