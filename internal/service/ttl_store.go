package service

import (
	"sync"
	"time"
)

type ttlEntry[T any] struct {
	value   T
	savedAt time.Time
}

// ttlStore keeps short-lived values in memory, such as timetable proposals and
// coverage undo snapshots. Expired entries are dropped lazily on read.
type ttlStore[T any] struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	items map[string]ttlEntry[T]
}

func newTTLStore[T any](ttl time.Duration) *ttlStore[T] {
	return &ttlStore[T]{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]ttlEntry[T]),
	}
}

func (s *ttlStore[T]) Save(id string, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = ttlEntry[T]{value: value, savedAt: s.now()}
}

func (s *ttlStore[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	entry, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		var zero T
		return zero, false
	}
	if s.now().Sub(entry.savedAt) > s.ttl {
		s.Delete(id)
		var zero T
		return zero, false
	}
	return entry.value, true
}

func (s *ttlStore[T]) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

func (s *ttlStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
