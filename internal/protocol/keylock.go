package protocol

import "sync"

// keyedMutex serializes work per entity lineage within one process. The
// authoritative cross-process serialization is the row lock taken on the
// lineage bid inside the apply transaction; this keeps goroutines in the
// same process from piling up on that lock. Different lineages proceed
// fully in parallel; there is no global lock.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: make(map[string]*lockEntry)}
}

// Lock blocks until the key is held and returns the matching unlock func.
// Entries are reference counted so idle keys do not accumulate.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.entries[key]
	if !ok {
		entry = &lockEntry{}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
