package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/supportdesk-io/supportdesk/internal/domain"
)

// MemoryAgentSessionRepository is an in-memory implementation of
// AgentSessionRepository for testing. Sessions are kept in creation
// order so CurrentByAgent can break login_at ties the way the SQL
// implementation's ORDER BY does.
type MemoryAgentSessionRepository struct {
	sessions []*domain.AgentSession
	byID     map[string]*domain.AgentSession
	mu       sync.RWMutex
}

// NewMemoryAgentSessionRepository creates a new in-memory agent session
// repository.
func NewMemoryAgentSessionRepository() *MemoryAgentSessionRepository {
	return &MemoryAgentSessionRepository{byID: make(map[string]*domain.AgentSession)}
}

func (r *MemoryAgentSessionRepository) Create(_ context.Context, session *domain.AgentSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	session.ID = uuid.NewString()
	session.LoginAt = now
	session.CreatedAt = now
	session.ReplyCount = 0
	session.LogoutAt = nil
	session.Duration = nil

	sessionCopy := *session
	r.sessions = append(r.sessions, &sessionCopy)
	r.byID[session.ID] = &sessionCopy
	return nil
}

func (r *MemoryAgentSessionRepository) GetByID(_ context.Context, id string) (*domain.AgentSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.byID[id]
	if !exists {
		return nil, pgx.ErrNoRows
	}
	sessionCopy := *session
	return &sessionCopy, nil
}

func (r *MemoryAgentSessionRepository) CurrentByAgent(_ context.Context, agentID string) (*domain.AgentSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Latest created open session wins, matching ORDER BY login_at DESC.
	for i := len(r.sessions) - 1; i >= 0; i-- {
		session := r.sessions[i]
		if session.AgentID == agentID && session.LogoutAt == nil {
			sessionCopy := *session
			return &sessionCopy, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *MemoryAgentSessionRepository) Close(_ context.Context, id string) (*domain.AgentSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.byID[id]
	if !exists || session.LogoutAt != nil {
		return nil, pgx.ErrNoRows
	}
	now := time.Now().UTC()
	duration := int64(now.Sub(session.LoginAt) / time.Second)
	session.LogoutAt = &now
	session.Duration = &duration

	sessionCopy := *session
	return &sessionCopy, nil
}

func (r *MemoryAgentSessionRepository) IncrementReply(_ context.Context, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.sessions) - 1; i >= 0; i-- {
		session := r.sessions[i]
		if session.AgentID == agentID && session.LogoutAt == nil {
			session.ReplyCount++
			return nil
		}
	}
	return nil
}
