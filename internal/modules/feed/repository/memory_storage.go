package repository

import (
	"sync"
	"time"

	"github.com/kyuhyunIm/daily-geek-news-bot/internal/modules/feed/domain"
)

type entry struct {
	items      []domain.Item
	insertedAt time.Time
}

// MemoryStorage implements feed.Repository with a TTL-bounded in-memory map
type MemoryStorage struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]entry
}

// NewMemoryStorage creates a new in-memory feed cache
func NewMemoryStorage(ttl time.Duration) Repository {
	return &MemoryStorage{
		ttl:     ttl,
		entries: make(map[string]entry),
	}
}

// Get returns the cached items for key. An entry strictly older than the TTL
// is absent and gets deleted on the way out.
func (s *MemoryStorage) Get(key string) ([]domain.Item, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if s.expired(e) {
		s.mu.Lock()
		if cur, ok := s.entries[key]; ok && s.expired(cur) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false
	}
	return e.items, true
}

// Set stores items under key, stamping the entry with the current time.
// An existing entry is overwritten unconditionally.
func (s *MemoryStorage) Set(key string, items []domain.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{items: items, insertedAt: time.Now()}
}

// GetAll concatenates the items of every fresh entry, deleting expired ones
func (s *MemoryStorage) GetAll() []domain.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []domain.Item
	for key, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, key)
			continue
		}
		all = append(all, e.items...)
	}
	return all
}

// Status reports per-key item counts and the oldest live insertion time
func (s *MemoryStorage) Status() (map[string]int, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int)
	var oldest time.Time
	for key, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, key)
			continue
		}
		counts[key] = len(e.items)
		if oldest.IsZero() || e.insertedAt.Before(oldest) {
			oldest = e.insertedAt
		}
	}
	return counts, oldest
}

func (s *MemoryStorage) expired(e entry) bool {
	return time.Since(e.insertedAt) > s.ttl
}
