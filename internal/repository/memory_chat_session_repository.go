package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/supportdesk-io/supportdesk/internal/domain"
)

// MemoryChatSessionRepository is an in-memory implementation of
// ChatSessionRepository for testing.
type MemoryChatSessionRepository struct {
	sessions map[string]*domain.ChatSession
	mu       sync.RWMutex
}

// NewMemoryChatSessionRepository creates a new in-memory chat session
// repository.
func NewMemoryChatSessionRepository() *MemoryChatSessionRepository {
	return &MemoryChatSessionRepository{sessions: make(map[string]*domain.ChatSession)}
}

func (r *MemoryChatSessionRepository) Create(_ context.Context, session *domain.ChatSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session.ID = uuid.NewString()
	session.CreatedAt = time.Now().UTC()
	session.Resolved = false

	sessionCopy := *session
	r.sessions[session.ID] = &sessionCopy
	return nil
}

func (r *MemoryChatSessionRepository) GetByID(_ context.Context, id string) (*domain.ChatSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, pgx.ErrNoRows
	}
	sessionCopy := *session
	return &sessionCopy, nil
}

func (r *MemoryChatSessionRepository) End(_ context.Context, id string, resolved bool) (*domain.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[id]
	if !exists || session.Status != domain.ChatStatusActive {
		return nil, pgx.ErrNoRows
	}
	now := time.Now().UTC()
	session.Status = domain.ChatStatusEnded
	session.Resolved = resolved
	session.EndedAt = &now

	sessionCopy := *session
	return &sessionCopy, nil
}
