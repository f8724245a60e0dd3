package kv

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore 是Store的进程内实现，提供与Redis实现一致的TTL语义。
// 它用于本地开发和测试，不适合多实例部署。
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry

	// Now 可以在测试中替换，用于推进时间以触发TTL过期。
	Now func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time // 零值表示永不过期
}

// NewMemoryStore 创建一个空的内存Store。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		Now:     time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && !s.Now().Before(entry.expiresAt) {
		delete(s.entries, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = s.Now().Add(ttl)
	}
	s.entries[key] = entry
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, prefix string, cursor uint64, limit int64) ([]string, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	var keys []string
	for k, entry := range s.entries {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			continue
		}
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	// 排序以获得稳定的分页顺序
	sort.Strings(keys)

	start := int(cursor)
	if start >= len(keys) {
		return nil, 0, nil
	}
	end := len(keys)
	if limit > 0 && start+int(limit) < end {
		end = start + int(limit)
	}
	next := uint64(end)
	if end == len(keys) {
		next = 0
	}
	return keys[start:end], next, nil
}
