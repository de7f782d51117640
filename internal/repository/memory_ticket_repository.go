package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/supportdesk-io/supportdesk/internal/domain"
)

// MemoryTicketRepository is an in-memory implementation of
// TicketRepository for testing. It mirrors the conditional-update
// semantics of the SQL implementation.
type MemoryTicketRepository struct {
	tickets    map[string]*domain.Ticket
	nextNumber int64
	mu         sync.RWMutex
}

// NewMemoryTicketRepository creates a new in-memory ticket repository.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{tickets: make(map[string]*domain.Ticket)}
}

func (r *MemoryTicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextNumber++
	ticket.ID = uuid.NewString()
	ticket.Number = r.nextNumber
	ticket.CreatedAt = time.Now().UTC()
	ticket.UpdatedAt = ticket.CreatedAt

	ticketCopy := *ticket
	r.tickets[ticket.ID] = &ticketCopy
	return nil
}

func (r *MemoryTicketRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ticket, exists := r.tickets[id]
	if !exists {
		return nil, pgx.ErrNoRows
	}
	ticketCopy := *ticket
	return &ticketCopy, nil
}

func (r *MemoryTicketRepository) ListByRequester(ctx context.Context, requesterID string, limit, offset int) ([]domain.Ticket, error) {
	return r.ListWithFilter(ctx, TicketFilter{RequesterID: &requesterID, Limit: limit, Offset: offset})
}

func (r *MemoryTicketRepository) ListWithFilter(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []domain.Ticket
	for _, ticket := range r.tickets {
		if filter.RequesterID != nil && ticket.RequesterID != *filter.RequesterID {
			continue
		}
		if filter.AssigneeID != nil && (ticket.AssigneeID == nil || *ticket.AssigneeID != *filter.AssigneeID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
			continue
		}
		if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, ticket.Priority) {
			continue
		}
		if filter.SearchTerm != nil {
			term := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
			if term != "" && !strings.Contains(strings.ToLower(ticket.Subject), term) {
				continue
			}
		}
		matched = append(matched, *ticket)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].Number > matched[j].Number
		}
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (r *MemoryTicketRepository) ApplyCommentEffects(_ context.Context, ticketID string, staffAuthor bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ticket, exists := r.tickets[ticketID]
	if !exists {
		return pgx.ErrNoRows
	}
	now := time.Now().UTC()
	ticket.UpdatedAt = now
	if staffAuthor {
		if ticket.FirstResponseAt == nil {
			at := now
			ticket.FirstResponseAt = &at
		}
		if ticket.Status == domain.TicketStatusNew {
			ticket.Status = domain.TicketStatusOpen
		}
	}
	return nil
}

func (r *MemoryTicketRepository) UpdateStatus(_ context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ticket, exists := r.tickets[id]
	if !exists {
		return nil, pgx.ErrNoRows
	}
	now := time.Now().UTC()
	ticket.Status = status
	ticket.UpdatedAt = now
	if status == domain.TicketStatusSolved {
		at := now
		ticket.SolvedAt = &at
	} else {
		ticket.SolvedAt = nil
	}
	ticketCopy := *ticket
	return &ticketCopy, nil
}

func (r *MemoryTicketRepository) UpdateAssignee(_ context.Context, id string, assigneeID *string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ticket, exists := r.tickets[id]
	if !exists {
		return nil, pgx.ErrNoRows
	}
	ticket.AssigneeID = assigneeID
	ticket.UpdatedAt = time.Now().UTC()
	ticketCopy := *ticket
	return &ticketCopy, nil
}

func containsStatus(values []domain.TicketStatus, target domain.TicketStatus) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func containsPriority(values []domain.TicketPriority, target domain.TicketPriority) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
