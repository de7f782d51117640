package repository

import (
	"context"

	"github.com/supportdesk-io/supportdesk/internal/domain"
)

const agentSessionColumns = `id, agent_id, login_at, logout_at, duration, reply_count, ip_address, user_agent, created_at`

// AgentSessionRepository tracks agent working sessions. Close and
// IncrementReply are single conditional statements so that concurrent
// callers cannot close a session twice or bump a closed session.
type AgentSessionRepository interface {
	Create(ctx context.Context, session *domain.AgentSession) error
	GetByID(ctx context.Context, id string) (*domain.AgentSession, error)
	// CurrentByAgent returns the most recently started open session.
	// Absence surfaces as pgx.ErrNoRows; callers decide whether that is
	// an error.
	CurrentByAgent(ctx context.Context, agentID string) (*domain.AgentSession, error)
	// Close stamps logout_at and computes duration from the stored
	// login_at in the same statement. Returns pgx.ErrNoRows when the
	// session is already closed, leaving the original duration intact.
	Close(ctx context.Context, id string) (*domain.AgentSession, error)
	// IncrementReply bumps reply_count on the agent's open session.
	// No open session is a silent no-op.
	IncrementReply(ctx context.Context, agentID string) error
}

type agentSessionRepository struct {
	db DB
}

// NewAgentSessionRepository instantiates repository.
func NewAgentSessionRepository(db DB) AgentSessionRepository {
	return &agentSessionRepository{db: db}
}

func (r *agentSessionRepository) Create(ctx context.Context, session *domain.AgentSession) error {
	const query = `
        INSERT INTO agent_sessions (agent_id, ip_address, user_agent)
        VALUES ($1,$2,$3)
        RETURNING id, login_at, reply_count, created_at`
	return r.db.QueryRow(ctx, query,
		session.AgentID,
		session.IPAddress,
		session.UserAgent,
	).Scan(&session.ID, &session.LoginAt, &session.ReplyCount, &session.CreatedAt)
}

func (r *agentSessionRepository) GetByID(ctx context.Context, id string) (*domain.AgentSession, error) {
	query := `SELECT ` + agentSessionColumns + ` FROM agent_sessions WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *agentSessionRepository) CurrentByAgent(ctx context.Context, agentID string) (*domain.AgentSession, error) {
	query := `SELECT ` + agentSessionColumns + `
        FROM agent_sessions
        WHERE agent_id=$1 AND logout_at IS NULL
        ORDER BY login_at DESC
        LIMIT 1`
	return r.fetchSingle(ctx, query, agentID)
}

func (r *agentSessionRepository) Close(ctx context.Context, id string) (*domain.AgentSession, error) {
	query := `
        UPDATE agent_sessions SET
            logout_at = NOW(),
            duration = FLOOR(EXTRACT(EPOCH FROM (NOW() - login_at)))::BIGINT
        WHERE id=$1 AND logout_at IS NULL
        RETURNING ` + agentSessionColumns
	return r.fetchSingle(ctx, query, id)
}

func (r *agentSessionRepository) IncrementReply(ctx context.Context, agentID string) error {
	const query = `
        UPDATE agent_sessions SET reply_count = reply_count + 1
        WHERE id = (
            SELECT id FROM agent_sessions
            WHERE agent_id=$1 AND logout_at IS NULL
            ORDER BY login_at DESC
            LIMIT 1
        )`
	_, err := r.db.Exec(ctx, query, agentID)
	return err
}

func (r *agentSessionRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.AgentSession, error) {
	var session domain.AgentSession
	if err := r.db.QueryRow(ctx, query, args...).Scan(
		&session.ID,
		&session.AgentID,
		&session.LoginAt,
		&session.LogoutAt,
		&session.Duration,
		&session.ReplyCount,
		&session.IPAddress,
		&session.UserAgent,
		&session.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &session, nil
}
