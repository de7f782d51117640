package dto

import (
	"time"

	"github.com/supportdesk-io/supportdesk/internal/domain"
)

// ActivityResponse is one audit-trail entry. Details carries the typed
// payload for the action.
type ActivityResponse struct {
	ID        string                 `json:"id"`
	TicketID  *string                `json:"ticketId"`
	UserID    *string                `json:"userId"`
	Action    domain.ActivityAction  `json:"action"`
	Details   domain.ActivityDetails `json:"details"`
	CreatedAt time.Time              `json:"createdAt"`
}
