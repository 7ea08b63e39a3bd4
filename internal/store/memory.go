package store

import (
	"context"
	"sync"
	"time"
)

// sessionTTL bounds how long an idle transcript stays in memory.
var sessionTTL = 30 * time.Minute

type memorySession struct {
	messages  []Message
	updatedAt time.Time
}

type MemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string]*memorySession
	maxMessages int
	now         func() time.Time
}

func NewMemoryStore(maxMessages int) *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[string]*memorySession),
		maxMessages: maxMessages,
		now:         time.Now,
	}
}

func (m *MemoryStore) Append(_ context.Context, sessionID string, msg Message) error {
	if sessionID == "" {
		return ErrInvalidSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked()
	s, ok := m.sessions[sessionID]
	if !ok {
		s = &memorySession{}
		m.sessions[sessionID] = s
	}
	s.messages = lastN(append(s.messages, stamp(msg)), m.maxMessages)
	s.updatedAt = m.now()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, sessionID string) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok || m.now().Sub(s.updatedAt) > sessionTTL {
		return []Message{}, nil
	}
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

// expireLocked drops idle sessions. Callers hold the write lock.
func (m *MemoryStore) expireLocked() {
	now := m.now()
	for id, s := range m.sessions {
		if now.Sub(s.updatedAt) > sessionTTL {
			delete(m.sessions, id)
		}
	}
}
