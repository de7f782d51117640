package domain

import "time"

// Comment is a message on a ticket thread. Comments are immutable once
// written. IsInternal marks agent-only visibility and is honored only
// for staff authors; IsSystem marks machine-generated comments such as
// chat hand-off transcripts.
type Comment struct {
	ID         string
	TicketID   string
	AuthorID   string
	Body       string
	BodyPlain  string
	IsInternal bool
	IsSystem   bool
	Channel    TicketChannel
	CreatedAt  time.Time
}
