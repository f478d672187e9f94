package session

import (
	"context"
	"sync"
	"time"

	"github.com/jo-hoe/signtracker/internal/inspection"
)

type memoryEntry struct {
	session   *inspection.Session
	expiresAt time.Time
}

type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]memoryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*inspection.Session, error) {
	m.mu.RLock()
	entry, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && m.now().After(entry.expiresAt) {
		_ = m.Delete(ctx, id)
		return nil, ErrNotFound
	}
	return entry.session, nil
}

func (m *MemoryStore) Save(ctx context.Context, s *inspection.Session) error {
	entry := memoryEntry{session: s}
	if m.ttl > 0 {
		entry.expiresAt = m.now().Add(m.ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = entry
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]memoryEntry)
	return nil
}
