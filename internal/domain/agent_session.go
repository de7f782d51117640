package domain

import "time"

// AgentSession is a tracked window of agent activity. Duration is
// computed exactly once when the session closes and is immutable
// afterwards; ReplyCount only ever increases.
type AgentSession struct {
	ID         string
	AgentID    string
	LoginAt    time.Time
	LogoutAt   *time.Time
	Duration   *int64
	ReplyCount int
	IPAddress  string
	UserAgent  string
	CreatedAt  time.Time
}

// Open reports whether the session has not been closed yet.
func (s AgentSession) Open() bool {
	return s.LogoutAt == nil
}
