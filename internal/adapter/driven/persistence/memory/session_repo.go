package memory

import (
	"context"
	"sync"

	"github.com/Wyydra/huddle/internal/core/domain"
)

// SessionRepository keys sessions by connection; Put overwrites.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[domain.ConnID]domain.Session
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions: make(map[domain.ConnID]domain.Session),
	}
}

func (r *SessionRepository) Put(ctx context.Context, s domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ConnID] = s
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, connID domain.ConnID) (domain.Session, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[connID]
	return s, ok, nil
}

func (r *SessionRepository) Delete(ctx context.Context, connID domain.ConnID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, connID)
	return nil
}

func (r *SessionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
