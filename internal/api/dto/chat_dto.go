package dto

import (
	"time"

	"github.com/supportdesk-io/supportdesk/internal/domain"
)

// ChatRequest payload for one widget turn. SessionID absent opens a
// new conversation.
type ChatRequest struct {
	SessionID *string `json:"sessionId"`
	Message   string  `json:"message"`
}

// ChatResponse mirrors the widget contract. MessageID is empty when
// the reply is the fallback text.
type ChatResponse struct {
	SessionID           string `json:"sessionId"`
	MessageID           string `json:"messageId"`
	Response            string `json:"response"`
	EscalationSuggested bool   `json:"escalationSuggested"`
}

// ChatFeedbackRequest payload. WasHelpful is required; a pointer keeps
// "absent" distinguishable from false.
type ChatFeedbackRequest struct {
	MessageID  string `json:"messageId"`
	WasHelpful *bool  `json:"wasHelpful"`
}

// RegenerateRequest payload.
type RegenerateRequest struct {
	MessageID string `json:"messageId"`
}

// RegenerateResponse carries the replacement text.
type RegenerateResponse struct {
	Response string `json:"response"`
}

// EndChatRequest payload.
type EndChatRequest struct {
	Resolved bool `json:"resolved"`
}

// ChatMessageResponse is one transcript entry.
type ChatMessageResponse struct {
	ID         string          `json:"id"`
	Role       domain.ChatRole `json:"role"`
	Content    string          `json:"content"`
	WasHelpful *bool           `json:"wasHelpful"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// ChatSessionResponse is the full conversation rendering.
type ChatSessionResponse struct {
	ID                  string                   `json:"id"`
	Status              domain.ChatSessionStatus `json:"status"`
	Resolved            bool                     `json:"resolved"`
	CreatedAt           time.Time                `json:"createdAt"`
	EndedAt             *time.Time               `json:"endedAt"`
	Messages            []ChatMessageResponse    `json:"messages"`
	EscalationSuggested bool                     `json:"escalationSuggested"`
}
