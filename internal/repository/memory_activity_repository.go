package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/supportdesk-io/supportdesk/internal/domain"
)

// MemoryActivityRepository is an in-memory implementation of
// ActivityRepository for testing. Entries are append-only in insertion
// order; typed details are stored as-is without a JSON round trip.
type MemoryActivityRepository struct {
	activities []*domain.Activity
	mu         sync.RWMutex
}

// NewMemoryActivityRepository creates a new in-memory activity repository.
func NewMemoryActivityRepository() *MemoryActivityRepository {
	return &MemoryActivityRepository{}
}

func (r *MemoryActivityRepository) Insert(_ context.Context, activity *domain.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if activity.Action == "" && activity.Details != nil {
		activity.Action = activity.Details.Action()
	}
	activity.ID = uuid.NewString()
	activity.CreatedAt = time.Now().UTC()

	activityCopy := *activity
	r.activities = append(r.activities, &activityCopy)
	return nil
}

func (r *MemoryActivityRepository) ListByTicket(_ context.Context, ticketID string, limit, offset int) ([]domain.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var matched []domain.Activity
	for _, activity := range r.activities {
		if activity.TicketID != nil && *activity.TicketID == ticketID {
			matched = append(matched, *activity)
		}
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

// All returns every recorded activity in insertion order. Test helper.
func (r *MemoryActivityRepository) All() []domain.Activity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Activity, 0, len(r.activities))
	for _, activity := range r.activities {
		result = append(result, *activity)
	}
	return result
}
