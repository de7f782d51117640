package repository

import (
	"context"

	"github.com/supportdesk-io/supportdesk/internal/domain"
)

const chatSessionColumns = `id, requester_id, status, resolved, created_at, ended_at`

// ChatSessionRepository persists chat sessions. End is conditional on
// the session still being ACTIVE so two racing closers cannot both
// stamp ended_at.
type ChatSessionRepository interface {
	Create(ctx context.Context, session *domain.ChatSession) error
	GetByID(ctx context.Context, id string) (*domain.ChatSession, error)
	// End moves ACTIVE to ENDED. Returns pgx.ErrNoRows when the session
	// is absent or already ended; callers tell the two apart with GetByID.
	End(ctx context.Context, id string, resolved bool) (*domain.ChatSession, error)
}

type chatSessionRepository struct {
	db DB
}

// NewChatSessionRepository instantiates repository.
func NewChatSessionRepository(db DB) ChatSessionRepository {
	return &chatSessionRepository{db: db}
}

func (r *chatSessionRepository) Create(ctx context.Context, session *domain.ChatSession) error {
	const query = `
        INSERT INTO chat_sessions (requester_id, status)
        VALUES ($1,$2)
        RETURNING id, resolved, created_at`
	return r.db.QueryRow(ctx, query,
		session.RequesterID,
		session.Status,
	).Scan(&session.ID, &session.Resolved, &session.CreatedAt)
}

func (r *chatSessionRepository) GetByID(ctx context.Context, id string) (*domain.ChatSession, error) {
	query := `SELECT ` + chatSessionColumns + ` FROM chat_sessions WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *chatSessionRepository) End(ctx context.Context, id string, resolved bool) (*domain.ChatSession, error) {
	query := `
        UPDATE chat_sessions SET status='ENDED', resolved=$2, ended_at=NOW()
        WHERE id=$1 AND status='ACTIVE'
        RETURNING ` + chatSessionColumns
	return r.fetchSingle(ctx, query, id, resolved)
}

func (r *chatSessionRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.ChatSession, error) {
	var session domain.ChatSession
	if err := r.db.QueryRow(ctx, query, args...).Scan(
		&session.ID,
		&session.RequesterID,
		&session.Status,
		&session.Resolved,
		&session.CreatedAt,
		&session.EndedAt,
	); err != nil {
		return nil, err
	}
	return &session, nil
}
