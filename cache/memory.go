package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryStoreConfig configures a MemoryStore.
type MemoryStoreConfig struct {
	// Capacity is the maximum number of entries.
	// Default: 256
	Capacity int

	// Now is the clock used for expiry.
	// Default: time.Now
	Now func() time.Time
}

// MemoryStore is a bounded in-process LRU tier. Expired entries are dropped
// lazily on access; when full, the least recently used entry is evicted.
type MemoryStore struct {
	capacity int
	now      func() time.Time

	mu        sync.Mutex
	ll        *list.List
	items     map[string]*list.Element
	evictions int64
}

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// NewMemoryStore creates a new bounded in-memory store.
func NewMemoryStore(config MemoryStoreConfig) *MemoryStore {
	if config.Capacity <= 0 {
		config.Capacity = DefaultCapacity
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &MemoryStore{
		capacity: config.Capacity,
		now:      config.Now,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Name returns "memory".
func (s *MemoryStore) Name() string { return "memory" }

// Get retrieves a value. Returns (nil, false, nil) on miss or expiry.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	e := el.Value.(*memoryEntry)
	if !s.now().Before(e.expiresAt) {
		s.removeLocked(el)
		return nil, false, nil
	}
	s.ll.MoveToFront(el)
	return e.value, true, nil
}

// Set stores a copy of value. A non-positive TTL stores nothing.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if ttl <= 0 {
		return nil
	}

	v := make([]byte, len(value))
	copy(v, value)
	expiresAt := s.now().Add(ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[key]; ok {
		e := el.Value.(*memoryEntry)
		e.value = v
		e.expiresAt = expiresAt
		s.ll.MoveToFront(el)
		return nil
	}

	s.items[key] = s.ll.PushFront(&memoryEntry{key: key, value: v, expiresAt: expiresAt})
	for s.ll.Len() > s.capacity {
		s.removeLocked(s.ll.Back())
		s.evictions++
	}
	return nil
}

// Delete removes a value. Idempotent - no error on miss.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.items[key]; ok {
		s.removeLocked(el)
	}
	return nil
}

// Len returns the number of entries, including expired entries not yet
// dropped.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ll.Len()
}

// Capacity returns the maximum number of entries.
func (s *MemoryStore) Capacity() int {
	return s.capacity
}

// Evictions returns how many entries were evicted for capacity.
func (s *MemoryStore) Evictions() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictions
}

// Purge drops every expired entry and returns how many were dropped.
func (s *MemoryStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for el := s.ll.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*memoryEntry).expiresAt) {
			s.removeLocked(el)
			n++
		}
		el = prev
	}
	return n
}

func (s *MemoryStore) removeLocked(el *list.Element) {
	s.ll.Remove(el)
	delete(s.items, el.Value.(*memoryEntry).key)
}

var _ Store = (*MemoryStore)(nil)
