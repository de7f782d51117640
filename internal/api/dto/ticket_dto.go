package dto

import (
	"time"

	"github.com/supportdesk-io/supportdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject   string                `json:"subject"`
	Body      string                `json:"body"`
	BodyPlain string                `json:"bodyPlain"`
	Priority  domain.TicketPriority `json:"priority"`
	Channel   domain.TicketChannel  `json:"channel"`
	FormID    *string               `json:"formId"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// UpdateAssigneeRequest payload. A null assigneeId unassigns.
type UpdateAssigneeRequest struct {
	AssigneeID *string `json:"assigneeId"`
}

// TicketResponse is the full ticket rendering.
type TicketResponse struct {
	ID              string                `json:"id"`
	Number          int64                 `json:"number"`
	RequesterID     string                `json:"requesterId"`
	AssigneeID      *string               `json:"assigneeId"`
	FormID          *string               `json:"formId,omitempty"`
	Subject         string                `json:"subject"`
	Status          domain.TicketStatus   `json:"status"`
	Priority        domain.TicketPriority `json:"priority"`
	Channel         domain.TicketChannel  `json:"channel"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
	FirstResponseAt *time.Time            `json:"firstResponseAt"`
	SolvedAt        *time.Time            `json:"solvedAt"`
}

// TicketDetailResponse provides the ticket plus its visible comments.
type TicketDetailResponse struct {
	TicketResponse
	Comments []CommentResponse `json:"comments"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	TicketID   string `json:"ticketId"`
	Body       string `json:"body"`
	BodyPlain  string `json:"bodyPlain"`
	IsInternal bool   `json:"isInternal"`
}

// AuthorSummary names a comment author.
type AuthorSummary struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Role domain.Role `json:"role"`
}

// CommentResponse represents one thread entry. Author is null for
// authors that no longer resolve.
type CommentResponse struct {
	ID         string               `json:"id"`
	TicketID   string               `json:"ticketId"`
	Author     *AuthorSummary       `json:"author"`
	Body       string               `json:"body"`
	BodyPlain  string               `json:"bodyPlain"`
	IsInternal bool                 `json:"isInternal"`
	IsSystem   bool                 `json:"isSystem"`
	Channel    domain.TicketChannel `json:"channel"`
	CreatedAt  time.Time            `json:"createdAt"`
}
