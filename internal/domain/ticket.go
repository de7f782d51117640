package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew     TicketStatus = "NEW"
	TicketStatusOpen    TicketStatus = "OPEN"
	TicketStatusPending TicketStatus = "PENDING"
	TicketStatusOnHold  TicketStatus = "ON_HOLD"
	TicketStatusSolved  TicketStatus = "SOLVED"
)

// Valid reports whether the status is one of the known states.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusNew, TicketStatusOpen, TicketStatusPending,
		TicketStatusOnHold, TicketStatusSolved:
		return true
	}
	return false
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityNormal TicketPriority = "NORMAL"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Valid reports whether the priority is one of the known levels.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityNormal, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// TicketChannel records where a ticket or comment originated.
type TicketChannel string

const (
	ChannelWeb   TicketChannel = "WEB"
	ChannelEmail TicketChannel = "EMAIL"
	ChannelChat  TicketChannel = "CHAT"
	ChannelAPI   TicketChannel = "API"
)

// Valid reports whether the channel is one of the known origins.
func (c TicketChannel) Valid() bool {
	switch c {
	case ChannelWeb, ChannelEmail, ChannelChat, ChannelAPI:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests. Number is the
// human-facing sequence shown in the UI; ID is the storage key.
//
// Invariants owned here: FirstResponseAt is written at most once, by
// the first staff comment; SolvedAt is non-nil iff Status == SOLVED.
type Ticket struct {
	ID              string
	Number          int64
	RequesterID     string
	AssigneeID      *string
	FormID          *string
	Subject         string
	Status          TicketStatus
	Priority        TicketPriority
	Channel         TicketChannel
	CreatedAt       time.Time
	UpdatedAt       time.Time
	FirstResponseAt *time.Time
	SolvedAt        *time.Time
}
