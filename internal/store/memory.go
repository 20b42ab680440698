package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vidsource/internal/media"
)

// Memory implements Cache and Catalog in process memory.
type Memory struct {
	mu      sync.Mutex
	entries map[string]media.CacheEntry
	content map[string]media.Content
	now     func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory(opts ...Option) *Memory {
	o := buildOptions(opts)
	return &Memory{
		entries: make(map[string]media.CacheEntry),
		content: make(map[string]media.Content),
		now:     o.now,
	}
}

// Get returns the live cache entry for key.
func (m *Memory) Get(_ context.Context, key media.CacheKey) (*media.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key.String()]
	if !ok || !e.ExpiresAt.After(m.now()) {
		return nil, nil
	}
	return &e, nil
}

// Upsert writes entry, replacing any entry with the same key.
func (m *Memory) Upsert(_ context.Context, entry media.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.Key.String()] = entry
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func contentKey(id int64, kind media.Kind) string {
	return fmt.Sprintf("%d/%s", id, kind)
}

// GetContent returns the catalog row for id and kind.
func (m *Memory) GetContent(_ context.Context, id int64, kind media.Kind) (*media.Content, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.content[contentKey(id, kind)]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// InsertContent adds c unless a row with the same id and kind exists.
func (m *Memory) InsertContent(_ context.Context, c media.Content) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := contentKey(c.ContentID, c.Kind)
	if _, ok := m.content[k]; ok {
		return false, nil
	}
	m.content[k] = c
	return true, nil
}
