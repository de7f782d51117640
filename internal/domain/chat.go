package domain

import "time"

// ChatSessionStatus enumerates chat lifecycle states. ENDED is terminal.
type ChatSessionStatus string

const (
	ChatStatusActive ChatSessionStatus = "ACTIVE"
	ChatStatusEnded  ChatSessionStatus = "ENDED"
)

// ChatRole identifies the author side of a chat message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "USER"
	ChatRoleAssistant ChatRole = "ASSISTANT"
)

// ChatSession is a conversation between a requester and the assistant.
// RequesterID is nil for anonymous widget sessions; ownership of an
// anonymous session rides on possession of the session id.
type ChatSession struct {
	ID          string
	RequesterID *string
	Status      ChatSessionStatus
	Resolved    bool
	CreatedAt   time.Time
	EndedAt     *time.Time
}

// Ended reports whether the session has reached its terminal state.
func (s ChatSession) Ended() bool {
	return s.Status == ChatStatusEnded
}

// OwnedBy reports whether the given caller may operate on the session.
// Anonymous sessions are open to any caller holding the id; owned
// sessions only to their requester.
func (s ChatSession) OwnedBy(userID string) bool {
	if s.RequesterID == nil {
		return true
	}
	return userID != "" && *s.RequesterID == userID
}

// ChatMessage is one turn of a chat session. WasHelpful is tri-state
// and meaningful only on ASSISTANT messages: nil means awaiting
// feedback, a regenerate resets it to nil together with the content
// replacement.
type ChatMessage struct {
	ID         string
	SessionID  string
	Role       ChatRole
	Content    string
	WasHelpful *bool
	CreatedAt  time.Time
}
