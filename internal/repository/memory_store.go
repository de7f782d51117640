package repository

import "context"

// MemoryStore is an in-memory Store used by tests. Each repository is
// safe for concurrent use on its own; WithinTx only groups calls and
// does not simulate rollback. Transactional semantics are exercised
// against the Postgres store.
type MemoryStore struct {
	users         *MemoryUserRepository
	tickets       *MemoryTicketRepository
	comments      *MemoryCommentRepository
	activities    *MemoryActivityRepository
	agentSessions *MemoryAgentSessionRepository
	chatSessions  *MemoryChatSessionRepository
	chatMessages  *MemoryChatMessageRepository
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         NewMemoryUserRepository(),
		tickets:       NewMemoryTicketRepository(),
		comments:      NewMemoryCommentRepository(),
		activities:    NewMemoryActivityRepository(),
		agentSessions: NewMemoryAgentSessionRepository(),
		chatSessions:  NewMemoryChatSessionRepository(),
		chatMessages:  NewMemoryChatMessageRepository(),
	}
}

func (s *MemoryStore) Users() UserRepository                 { return s.users }
func (s *MemoryStore) Tickets() TicketRepository             { return s.tickets }
func (s *MemoryStore) Comments() CommentRepository           { return s.comments }
func (s *MemoryStore) Activities() ActivityRepository        { return s.activities }
func (s *MemoryStore) AgentSessions() AgentSessionRepository { return s.agentSessions }
func (s *MemoryStore) ChatSessions() ChatSessionRepository   { return s.chatSessions }
func (s *MemoryStore) ChatMessages() ChatMessageRepository   { return s.chatMessages }

func (s *MemoryStore) WithinTx(_ context.Context, fn func(Store) error) error {
	return fn(s)
}
