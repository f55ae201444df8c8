package session

import "sync"

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Locks serializes turn processing per session ID. Entries are created
// on demand and dropped once the last holder releases.
type Locks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

func NewLocks() *Locks {
	return &Locks{entries: make(map[string]*lockEntry)}
}

// Acquire blocks until the session's lock is held and returns the
// release function. Release exactly once.
func (l *Locks) Acquire(id string) func() {
	l.mu.Lock()
	entry, ok := l.entries[id]
	if !ok {
		entry = &lockEntry{}
		l.entries[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, id)
		}
		l.mu.Unlock()
	}
}
