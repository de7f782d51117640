package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/supportdesk-io/supportdesk/internal/domain"
)

// MemoryCommentRepository is an in-memory implementation of
// CommentRepository for testing. Comments are kept in insertion order
// per ticket, which matches the created_at ordering of the SQL
// implementation.
type MemoryCommentRepository struct {
	byTicket map[string][]*domain.Comment
	mu       sync.RWMutex
}

// NewMemoryCommentRepository creates a new in-memory comment repository.
func NewMemoryCommentRepository() *MemoryCommentRepository {
	return &MemoryCommentRepository{byTicket: make(map[string][]*domain.Comment)}
}

func (r *MemoryCommentRepository) Create(_ context.Context, comment *domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	comment.ID = uuid.NewString()
	comment.CreatedAt = time.Now().UTC()

	commentCopy := *comment
	r.byTicket[comment.TicketID] = append(r.byTicket[comment.TicketID], &commentCopy)
	return nil
}

func (r *MemoryCommentRepository) ListByTicket(_ context.Context, ticketID string, includeInternal bool) ([]domain.Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.Comment
	for _, comment := range r.byTicket[ticketID] {
		if !includeInternal && comment.IsInternal {
			continue
		}
		result = append(result, *comment)
	}
	return result, nil
}
