package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrMiss is returned by Store.Load when nothing has been cached for a key.
var ErrMiss = errors.New("cache miss")

// Entry is one cached collection snapshot.
type Entry struct {
	Data      []byte
	FetchedAt time.Time
	Stale     bool
}

// Store persists entries. Implementations must be safe for concurrent use.
type Store interface {
	Load(ctx context.Context, key string) (Entry, error)
	Save(ctx context.Context, key string, e Entry) error
	// MarkStale flags an existing entry; a missing key is not an error.
	MarkStale(ctx context.Context, key string) error
}

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (m *MemoryStore) Load(_ context.Context, key string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return Entry{}, ErrMiss
	}
	e.Data = append([]byte(nil), e.Data...)
	return e, nil
}

func (m *MemoryStore) Save(_ context.Context, key string, e Entry) error {
	e.Data = append([]byte(nil), e.Data...)
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) MarkStale(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		e.Stale = true
		m.entries[key] = e
	}
	return nil
}
