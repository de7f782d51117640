package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of pgx operations repositories run on. Both
// *pgxpool.Pool and pgx.Tx satisfy it, which lets the same repository
// code serve pooled and transactional calls.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store aggregates the repositories behind one handle. WithinTx runs fn
// against a Store whose repositories share a single transaction; fn
// returning an error rolls everything back.
type Store interface {
	Users() UserRepository
	Tickets() TicketRepository
	Comments() CommentRepository
	Activities() ActivityRepository
	AgentSessions() AgentSessionRepository
	ChatSessions() ChatSessionRepository
	ChatMessages() ChatMessageRepository

	WithinTx(ctx context.Context, fn func(Store) error) error
}

type pgStore struct {
	pool *pgxpool.Pool

	users         UserRepository
	tickets       TicketRepository
	comments      CommentRepository
	activities    ActivityRepository
	agentSessions AgentSessionRepository
	chatSessions  ChatSessionRepository
	chatMessages  ChatMessageRepository
}

// NewStore builds the Postgres-backed Store on top of a pgx pool.
func NewStore(pool *pgxpool.Pool) Store {
	return newPgStore(pool, pool)
}

func newPgStore(pool *pgxpool.Pool, db DB) *pgStore {
	return &pgStore{
		pool:          pool,
		users:         NewUserRepository(db),
		tickets:       NewTicketRepository(db),
		comments:      NewCommentRepository(db),
		activities:    NewActivityRepository(db),
		agentSessions: NewAgentSessionRepository(db),
		chatSessions:  NewChatSessionRepository(db),
		chatMessages:  NewChatMessageRepository(db),
	}
}

func (s *pgStore) Users() UserRepository                 { return s.users }
func (s *pgStore) Tickets() TicketRepository             { return s.tickets }
func (s *pgStore) Comments() CommentRepository           { return s.comments }
func (s *pgStore) Activities() ActivityRepository        { return s.activities }
func (s *pgStore) AgentSessions() AgentSessionRepository { return s.agentSessions }
func (s *pgStore) ChatSessions() ChatSessionRepository   { return s.chatSessions }
func (s *pgStore) ChatMessages() ChatMessageRepository   { return s.chatMessages }

func (s *pgStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	if s.pool == nil {
		// Already inside a transaction; reuse it.
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(newPgStore(nil, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
