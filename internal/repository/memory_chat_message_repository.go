package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/supportdesk-io/supportdesk/internal/domain"
)

// MemoryChatMessageRepository is an in-memory implementation of
// ChatMessageRepository for testing. Messages are kept in insertion
// order per session.
type MemoryChatMessageRepository struct {
	bySession map[string][]*domain.ChatMessage
	mu        sync.RWMutex
}

// NewMemoryChatMessageRepository creates a new in-memory chat message
// repository.
func NewMemoryChatMessageRepository() *MemoryChatMessageRepository {
	return &MemoryChatMessageRepository{bySession: make(map[string][]*domain.ChatMessage)}
}

func (r *MemoryChatMessageRepository) Create(_ context.Context, message *domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	message.ID = uuid.NewString()
	message.CreatedAt = time.Now().UTC()

	messageCopy := *message
	r.bySession[message.SessionID] = append(r.bySession[message.SessionID], &messageCopy)
	return nil
}

func (r *MemoryChatMessageRepository) GetBySession(_ context.Context, sessionID, messageID string) (*domain.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	message := r.find(sessionID, messageID)
	if message == nil {
		return nil, pgx.ErrNoRows
	}
	messageCopy := *message
	return &messageCopy, nil
}

func (r *MemoryChatMessageRepository) ListBySession(_ context.Context, sessionID string) ([]domain.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.ChatMessage
	for _, message := range r.bySession[sessionID] {
		result = append(result, *message)
	}
	return result, nil
}

func (r *MemoryChatMessageRepository) SetFeedback(_ context.Context, sessionID, messageID string, wasHelpful bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	message := r.find(sessionID, messageID)
	if message == nil || message.Role != domain.ChatRoleAssistant {
		return pgx.ErrNoRows
	}
	flag := wasHelpful
	message.WasHelpful = &flag
	return nil
}

func (r *MemoryChatMessageRepository) ReplaceContent(_ context.Context, sessionID, messageID, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	message := r.find(sessionID, messageID)
	if message == nil || message.Role != domain.ChatRoleAssistant {
		return pgx.ErrNoRows
	}
	message.Content = content
	message.WasHelpful = nil
	return nil
}

func (r *MemoryChatMessageRepository) find(sessionID, messageID string) *domain.ChatMessage {
	for _, message := range r.bySession[sessionID] {
		if message.ID == messageID {
			return message
		}
	}
	return nil
}
