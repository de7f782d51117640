package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActivityAction is the closed set of audit-trail action codes.
type ActivityAction string

const (
	ActionTicketCreated   ActivityAction = "ticket_created"
	ActionCommentAdded    ActivityAction = "comment_added"
	ActionStatusChanged   ActivityAction = "status_changed"
	ActionAssigneeChanged ActivityAction = "assignee_changed"
	ActionSessionStarted  ActivityAction = "session_started"
	ActionSessionEnded    ActivityAction = "session_ended"
	ActionChatStarted     ActivityAction = "chat_started"
	ActionChatEnded       ActivityAction = "chat_ended"
	ActionChatEscalated   ActivityAction = "chat_escalated"
)

// ActivityDetails is the action-specific payload of an Activity. Each
// action code has exactly one payload type; repositories serialize the
// payload to JSON at the storage boundary and decode it back through
// DecodeActivityDetails.
type ActivityDetails interface {
	Action() ActivityAction
}

// Activity is an immutable audit trail entry. One row is written per
// state-changing operation; rows are never mutated or deleted.
type Activity struct {
	ID        string
	TicketID  *string
	UserID    *string
	Action    ActivityAction
	Details   ActivityDetails
	CreatedAt time.Time
}

// TicketCreatedDetails records a new ticket entering the system.
type TicketCreatedDetails struct {
	Number  int64         `json:"number"`
	Subject string        `json:"subject"`
	Channel TicketChannel `json:"channel"`
}

func (TicketCreatedDetails) Action() ActivityAction { return ActionTicketCreated }

// CommentAddedDetails records a comment landing on a ticket.
type CommentAddedDetails struct {
	CommentID  string `json:"commentId"`
	IsInternal bool   `json:"isInternal"`
}

func (CommentAddedDetails) Action() ActivityAction { return ActionCommentAdded }

// StatusChangedDetails records an explicit status transition.
type StatusChangedDetails struct {
	OldStatus TicketStatus `json:"oldStatus"`
	NewStatus TicketStatus `json:"newStatus"`
}

func (StatusChangedDetails) Action() ActivityAction { return ActionStatusChanged }

// AssigneeChangedDetails records assignment and unassignment.
type AssigneeChangedDetails struct {
	OldAssigneeID *string `json:"oldAssigneeId"`
	NewAssigneeID *string `json:"newAssigneeId"`
}

func (AssigneeChangedDetails) Action() ActivityAction { return ActionAssigneeChanged }

// SessionStartedDetails records an agent opening a working session.
type SessionStartedDetails struct {
	SessionID string `json:"sessionId"`
	IPAddress string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

func (SessionStartedDetails) Action() ActivityAction { return ActionSessionStarted }

// SessionEndedDetails records an agent session closing.
type SessionEndedDetails struct {
	SessionID       string `json:"sessionId"`
	DurationSeconds int64  `json:"durationSeconds"`
	ReplyCount      int    `json:"replyCount"`
}

func (SessionEndedDetails) Action() ActivityAction { return ActionSessionEnded }

// ChatStartedDetails records a chat session being opened.
type ChatStartedDetails struct {
	SessionID string `json:"sessionId"`
}

func (ChatStartedDetails) Action() ActivityAction { return ActionChatStarted }

// ChatEndedDetails records a chat session being closed.
type ChatEndedDetails struct {
	SessionID string `json:"sessionId"`
	Resolved  bool   `json:"resolved"`
}

func (ChatEndedDetails) Action() ActivityAction { return ActionChatEnded }

// ChatEscalatedDetails records a chat hand-off into a new ticket.
type ChatEscalatedDetails struct {
	SessionID string `json:"sessionId"`
	TicketID  string `json:"ticketId"`
}

func (ChatEscalatedDetails) Action() ActivityAction { return ActionChatEscalated }

var detailsRegistry = map[ActivityAction]func() ActivityDetails{
	ActionTicketCreated:   func() ActivityDetails { return &TicketCreatedDetails{} },
	ActionCommentAdded:    func() ActivityDetails { return &CommentAddedDetails{} },
	ActionStatusChanged:   func() ActivityDetails { return &StatusChangedDetails{} },
	ActionAssigneeChanged: func() ActivityDetails { return &AssigneeChangedDetails{} },
	ActionSessionStarted:  func() ActivityDetails { return &SessionStartedDetails{} },
	ActionSessionEnded:    func() ActivityDetails { return &SessionEndedDetails{} },
	ActionChatStarted:     func() ActivityDetails { return &ChatStartedDetails{} },
	ActionChatEnded:       func() ActivityDetails { return &ChatEndedDetails{} },
	ActionChatEscalated:   func() ActivityDetails { return &ChatEscalatedDetails{} },
}

// DecodeActivityDetails rebuilds the typed payload for an action code
// from its stored JSON form. Unknown action codes are an error so that
// bad rows surface instead of decoding into an untyped bag.
func DecodeActivityDetails(action ActivityAction, data []byte) (ActivityDetails, error) {
	factory, ok := detailsRegistry[action]
	if !ok {
		return nil, fmt.Errorf("unknown activity action %q", action)
	}
	payload := factory()
	if len(data) > 0 {
		if err := json.Unmarshal(data, payload); err != nil {
			return nil, fmt.Errorf("decode %s details: %w", action, err)
		}
	}
	return payload, nil
}
