package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/supportdesk-io/supportdesk/internal/domain"
)

// ActivityRepository is the append-only audit trail. Insert is the only
// write; rows are never mutated or deleted. Details payloads are JSON
// here and nowhere else; callers hand over typed variants.
type ActivityRepository interface {
	Insert(ctx context.Context, activity *domain.Activity) error
	ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.Activity, error)
}

type activityRepository struct {
	db DB
}

// NewActivityRepository instantiates repository.
func NewActivityRepository(db DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Insert(ctx context.Context, activity *domain.Activity) error {
	if activity.Details == nil {
		return fmt.Errorf("activity %s has no details payload", activity.Action)
	}
	if activity.Action == "" {
		activity.Action = activity.Details.Action()
	}
	details, err := json.Marshal(activity.Details)
	if err != nil {
		return fmt.Errorf("encode %s details: %w", activity.Action, err)
	}

	const query = `
        INSERT INTO activities (ticket_id, user_id, action, details)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		activity.TicketID,
		activity.UserID,
		activity.Action,
		details,
	).Scan(&activity.ID, &activity.CreatedAt)
}

func (r *activityRepository) ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, ticket_id, user_id, action, details, created_at
        FROM activities
        WHERE ticket_id=$1
        ORDER BY created_at ASC, id ASC
        LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, ticketID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Activity
	for rows.Next() {
		var (
			activity domain.Activity
			raw      []byte
		)
		if err := rows.Scan(
			&activity.ID,
			&activity.TicketID,
			&activity.UserID,
			&activity.Action,
			&raw,
			&activity.CreatedAt,
		); err != nil {
			return nil, err
		}
		details, err := domain.DecodeActivityDetails(activity.Action, raw)
		if err != nil {
			return nil, err
		}
		activity.Details = details
		result = append(result, activity)
	}
	return result, rows.Err()
}
