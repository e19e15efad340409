// Package cache provides the bounded, insertion-ordered store backing the
// lookup engine, plus its hit/miss statistics.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Entry is one cached lookup result. Entries are never mutated after
// creation; invalidation deletes them and a later miss recreates them.
type Entry struct {
	Key      Key
	Payload  any // *html.Node or *dom.Collection
	CachedAt time.Time
}

// Store is a bounded key/payload map with FIFO eviction: when the store is
// full, the oldest-inserted entry is dropped to make room. Access order is
// deliberately ignored (this is not an LRU).
type Store struct {
	mu        sync.Mutex
	maxSize   int
	entries   map[Key]*list.Element // values are *Entry
	order     *list.List            // front = oldest inserted
	evictions uint64
	log       *logrus.Entry
}

// NewStore creates a store holding at most maxSize entries.
func NewStore(maxSize int, log *logrus.Entry) *Store {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Store{
		maxSize: maxSize,
		entries: make(map[Key]*list.Element, maxSize),
		order:   list.New(),
		log:     log,
	}
}

// Get returns the payload cached under k, if any.
func (s *Store) Get(k Key) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.entries[k]
	if !ok {
		return nil, false
	}
	return el.Value.(*Entry).Payload, true
}

// Set inserts a fresh entry under k, evicting the oldest entry first if the
// store is at capacity. An existing entry under k is replaced and the key
// re-enters at the back of the insertion order.
func (s *Store) Set(k Key, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[k]; ok {
		s.order.Remove(el)
		delete(s.entries, k)
	}
	for len(s.entries) >= s.maxSize {
		s.evictOldestLocked()
	}
	entry := &Entry{Key: k, Payload: payload, CachedAt: time.Now()}
	s.entries[k] = s.order.PushBack(entry)
}

func (s *Store) evictOldestLocked() {
	front := s.order.Front()
	if front == nil {
		return
	}
	entry := front.Value.(*Entry)
	s.order.Remove(front)
	delete(s.entries, entry.Key)
	s.evictions++
	s.log.WithField("key", entry.Key.String()).Debug("Cache full, evicted oldest entry")
}

// Delete removes the entry under k, reporting whether one existed.
func (s *Store) Delete(k Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.entries[k]
	if !ok {
		return false
	}
	s.order.Remove(el)
	delete(s.entries, k)
	return true
}

// DeleteAll empties the store.
func (s *Store) DeleteAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[Key]*list.Element, s.maxSize)
	s.order.Init()
}

// Keys returns all keys in insertion order.
func (s *Store) Keys() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]Key, 0, len(s.entries))
	for el := s.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*Entry).Key)
	}
	return keys
}

// Snapshot returns the composite string form of every key, in insertion
// order, for debugging.
func (s *Store) Snapshot() []string {
	keys := s.Keys()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Evictions returns the number of capacity evictions so far.
func (s *Store) Evictions() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictions
}

// SetMaxSize changes the capacity, evicting oldest entries if the store is
// over the new bound.
func (s *Store) SetMaxSize(n int) {
	if n < 1 {
		n = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxSize = n
	for len(s.entries) > s.maxSize {
		s.evictOldestLocked()
	}
}
