package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/supportdesk-io/supportdesk/internal/domain"
)

const chatMessageColumns = `id, session_id, role, content, was_helpful, created_at`

// ChatMessageRepository persists chat turns. Lookups are scoped to a
// session id so a message from another conversation is simply absent.
// ReplaceContent swaps content and clears was_helpful in one statement
// to keep a stale flag from surviving a regenerate.
type ChatMessageRepository interface {
	Create(ctx context.Context, message *domain.ChatMessage) error
	GetBySession(ctx context.Context, sessionID, messageID string) (*domain.ChatMessage, error)
	ListBySession(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)
	SetFeedback(ctx context.Context, sessionID, messageID string, wasHelpful bool) error
	ReplaceContent(ctx context.Context, sessionID, messageID, content string) error
}

type chatMessageRepository struct {
	db DB
}

// NewChatMessageRepository instantiates repository.
func NewChatMessageRepository(db DB) ChatMessageRepository {
	return &chatMessageRepository{db: db}
}

func (r *chatMessageRepository) Create(ctx context.Context, message *domain.ChatMessage) error {
	const query = `
        INSERT INTO chat_messages (session_id, role, content, was_helpful)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		message.SessionID,
		message.Role,
		message.Content,
		message.WasHelpful,
	).Scan(&message.ID, &message.CreatedAt)
}

func (r *chatMessageRepository) GetBySession(ctx context.Context, sessionID, messageID string) (*domain.ChatMessage, error) {
	query := `SELECT ` + chatMessageColumns + ` FROM chat_messages WHERE session_id=$1 AND id=$2`

	var message domain.ChatMessage
	if err := r.db.QueryRow(ctx, query, sessionID, messageID).Scan(
		&message.ID,
		&message.SessionID,
		&message.Role,
		&message.Content,
		&message.WasHelpful,
		&message.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *chatMessageRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	query := `SELECT ` + chatMessageColumns + `
        FROM chat_messages
        WHERE session_id=$1
        ORDER BY created_at ASC, id ASC`

	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ChatMessage
	for rows.Next() {
		var message domain.ChatMessage
		if err := rows.Scan(
			&message.ID,
			&message.SessionID,
			&message.Role,
			&message.Content,
			&message.WasHelpful,
			&message.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, message)
	}
	return result, rows.Err()
}

func (r *chatMessageRepository) SetFeedback(ctx context.Context, sessionID, messageID string, wasHelpful bool) error {
	const query = `
        UPDATE chat_messages SET was_helpful=$3
        WHERE session_id=$1 AND id=$2 AND role='ASSISTANT'`
	cmd, err := r.db.Exec(ctx, query, sessionID, messageID, wasHelpful)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *chatMessageRepository) ReplaceContent(ctx context.Context, sessionID, messageID, content string) error {
	const query = `
        UPDATE chat_messages SET content=$3, was_helpful=NULL
        WHERE session_id=$1 AND id=$2 AND role='ASSISTANT'`
	cmd, err := r.db.Exec(ctx, query, sessionID, messageID, content)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
