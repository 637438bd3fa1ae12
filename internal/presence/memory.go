package presence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memEntry struct {
	conversation uuid.UUID
	expires      time.Time
	conns        map[string]uuid.UUID
}

// holds reports whether any socket of the entry has conversationID open.
func (e *memEntry) holds(conversationID uuid.UUID) bool {
	for _, conv := range e.conns {
		if conv == conversationID {
			return true
		}
	}
	return false
}

// Memory is a single-process Store with the same expiry rules as the Redis one.
type Memory struct {
	mu    sync.Mutex
	ttl   time.Duration
	users map[uuid.UUID]*memEntry
	now   func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	return &Memory{
		ttl:   ttl,
		users: make(map[uuid.UUID]*memEntry),
		now:   time.Now,
	}
}

// SetClock replaces the time source. Tests only.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// live returns the unexpired entry for a user, dropping it if stale. Callers hold mu.
func (m *Memory) live(userID uuid.UUID) *memEntry {
	e, ok := m.users[userID]
	if !ok {
		return nil
	}
	if !m.now().Before(e.expires) {
		delete(m.users, userID)
		return nil
	}
	return e
}

func (m *Memory) MarkOnline(_ context.Context, userID, conversationID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live(userID)
	if e == nil {
		e = &memEntry{conns: make(map[string]uuid.UUID)}
		m.users[userID] = e
	}
	e.conversation = conversationID
	e.expires = m.now().Add(m.ttl)
	return nil
}

func (m *Memory) MarkOffline(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	delete(m.users, userID)
	m.mu.Unlock()
	return nil
}

// Refresh slides the expiry for one socket and recreates its entry if it
// already lapsed. A live entry keeps its open conversation.
func (m *Memory) Refresh(_ context.Context, userID, conversationID uuid.UUID, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live(userID)
	if e == nil {
		e = &memEntry{conversation: conversationID, conns: make(map[string]uuid.UUID)}
		m.users[userID] = e
	}
	e.conns[clientID] = conversationID
	e.expires = m.now().Add(m.ttl)
	return nil
}

func (m *Memory) IsOnline(_ context.Context, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live(userID) != nil, nil
}

func (m *Memory) IsViewing(_ context.Context, userID, conversationID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live(userID)
	return e != nil && e.conversation == conversationID, nil
}

func (m *Memory) BatchIsViewing(_ context.Context, userIDs []uuid.UUID, conversationID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []uuid.UUID
	for _, id := range userIDs {
		if e := m.live(id); e != nil && e.conversation == conversationID {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *Memory) TrackConnection(_ context.Context, userID, conversationID uuid.UUID, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live(userID)
	if e == nil {
		e = &memEntry{conns: make(map[string]uuid.UUID)}
		m.users[userID] = e
	}
	e.conns[clientID] = conversationID
	e.conversation = conversationID
	e.expires = m.now().Add(m.ttl)
	return nil
}

func (m *Memory) RemoveConnection(_ context.Context, userID uuid.UUID, clientID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live(userID)
	if e == nil {
		return 0, nil
	}
	delete(e.conns, clientID)
	if len(e.conns) == 0 {
		delete(m.users, userID)
		return 0, nil
	}
	if !e.holds(e.conversation) {
		for _, conv := range e.conns {
			e.conversation = conv
			break
		}
	}
	return int64(len(e.conns)), nil
}
