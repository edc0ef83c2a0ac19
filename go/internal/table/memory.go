package table

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/tablestakes/go/internal/models"
)

// MemoryRepository is a map-backed session store for tests and single-node
// runs without Postgres. Reads and writes exchange deep copies so callers
// always see a full pre- or post-mutation snapshot.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*models.Session
}

// NewMemoryRepository creates an empty in-memory session store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[uuid.UUID]*models.Session)}
}

var _ SessionRepository = (*MemoryRepository)(nil)

func (m *MemoryRepository) CreateSession(_ context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[session.ID]; exists {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	m.sessions[session.ID] = session.Clone()
	return nil
}

func (m *MemoryRepository) GetSession(_ context.Context, id uuid.UUID) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return s.Clone(), nil
}

func (m *MemoryRepository) UpdateSession(_ context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; !ok {
		return fmt.Errorf("session %s: %w", session.ID, ErrNotFound)
	}
	m.sessions[session.ID] = session.Clone()
	return nil
}

func (m *MemoryRepository) ListSessionIDs(_ context.Context, statuses ...models.SessionStatus) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []uuid.UUID
	for id, s := range m.sessions {
		if len(statuses) == 0 {
			ids = append(ids, id)
			continue
		}
		for _, st := range statuses {
			if s.Status == st {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids, nil
}
