package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.RWMutex
	entries   map[string]memoryEntry
	nextSweep time.Time
}

type memoryEntry struct {
	entry   Entry
	expires time.Time
}

// NewMemoryStore creates a MemoryStore. Entries older than ttl are dropped;
// zero keeps them forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Load(_ context.Context, key string) (*Entry, error) {
	s.mu.RLock()
	me, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !me.expires.IsZero() && s.now().After(me.expires) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, nil
	}
	e := me.entry
	e.Result = me.entry.Result.Clone()
	return &e, nil
}

func (s *MemoryStore) Save(_ context.Context, key string, e *Entry) error {
	me := memoryEntry{entry: Entry{Result: e.Result.Clone(), CompletedAt: e.CompletedAt}}
	if s.ttl > 0 {
		me.expires = s.now().Add(s.ttl)
	}
	s.mu.Lock()
	s.sweepLocked()
	s.entries[key] = me
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) Close() error { return nil }

// sweepLocked drops expired entries, at most once per ttl. Keys that are
// never loaded again, such as generated one-shot sessions, go here.
func (s *MemoryStore) sweepLocked() {
	if s.ttl <= 0 {
		return
	}
	now := s.now()
	if now.Before(s.nextSweep) {
		return
	}
	for k, me := range s.entries {
		if now.After(me.expires) {
			delete(s.entries, k)
		}
	}
	s.nextSweep = now.Add(s.ttl)
}
