package dto

import "time"

// StartSessionRequest payload. Both fields are optional context.
type StartSessionRequest struct {
	IPAddress string `json:"ipAddress"`
	UserAgent string `json:"userAgent"`
}

// SessionResponse is the agent work-session rendering. Duration is
// null until the session ends.
type SessionResponse struct {
	ID         string     `json:"id"`
	AgentID    string     `json:"agentId"`
	LoginAt    time.Time  `json:"loginAt"`
	LogoutAt   *time.Time `json:"logoutAt"`
	Duration   *int64     `json:"duration"`
	ReplyCount int        `json:"replyCount"`
	IPAddress  string     `json:"ipAddress,omitempty"`
	UserAgent  string     `json:"userAgent,omitempty"`
}

// PresenceResponse answers the presence probe.
type PresenceResponse struct {
	AgentID string `json:"agentId"`
	Online  bool   `json:"online"`
}
