package calllog

import (
	"context"
	"sync"
	"time"

	"github.com/dechrm/callrelay/internal/domain"
)

// Memory keeps open call records in process memory. Useful for single-node
// deployments and tests; records vanish on restart by design.
type Memory struct {
	mu     sync.RWMutex
	active map[domain.RoomID]*domain.CallSession
}

func NewMemory() *Memory {
	return &Memory{active: make(map[domain.RoomID]*domain.CallSession)}
}

func (m *Memory) RecordStart(_ context.Context, session domain.CallSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// A duplicate accept for the same room keeps the first record.
	if _, ok := m.active[session.RoomID]; ok {
		return nil
	}
	m.active[session.RoomID] = &session
	return nil
}

func (m *Memory) RecordEnd(_ context.Context, roomID domain.RoomID, endedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.active[roomID]; ok {
		s.EndedAt = endedAt
		delete(m.active, roomID)
	}
	return nil
}

// Active snapshots the currently open records.
func (m *Memory) Active() []domain.CallSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.CallSession, 0, len(m.active))
	for _, s := range m.active {
		out = append(out, *s)
	}
	return out
}
