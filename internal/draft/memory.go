package draft

import (
	"context"
	"sync"
	"time"

	"github.com/interfix/helpdesk/internal/domain"
)

// MemoryStore keeps drafts in process memory. It is lost on restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Snapshot
	now      func() time.Time
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Snapshot), now: time.Now}
}

// WithClock replaces the clock used to stamp saved stages.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

func (m *MemoryStore) SaveStage(_ context.Context, sessionID string, stage domain.Stage, payload any) error {
	entry, err := encodeEntry(payload, m.now())
	if err != nil {
		return unavailable("save stage", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.sessions[sessionID]
	if !ok {
		snap = Snapshot{}
		m.sessions[sessionID] = snap
	}
	snap[stage] = entry
	return nil
}

func (m *MemoryStore) GetStage(_ context.Context, sessionID string, stage domain.Stage) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[sessionID][stage]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (m *MemoryStore) GetAll(_ context.Context, sessionID string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := Snapshot{}
	for stage, entry := range m.sessions[sessionID] {
		out[stage] = entry
	}
	return out, nil
}

func (m *MemoryStore) DropStages(_ context.Context, sessionID string, stages ...domain.Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	for _, stage := range stages {
		delete(snap, stage)
	}
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}
