package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/supportdesk-io/supportdesk/internal/cache"
	"github.com/supportdesk-io/supportdesk/internal/domain"
	"github.com/supportdesk-io/supportdesk/internal/repository"
	"github.com/supportdesk-io/supportdesk/pkg/errorutil"
)

// SessionService tracks agent working sessions: start, close with a
// one-time duration computation, reply counting and presence marks.
// Starting a session deliberately does not close earlier open sessions;
// two logins may legitimately overlap.
type SessionService struct {
	store    repository.Store
	presence *cache.PresenceCache
	logger   *zap.Logger
}

// SessionDependencies bundles collaborators for the session service.
type SessionDependencies struct {
	Store    repository.Store
	Presence *cache.PresenceCache
	Logger   *zap.Logger
}

// NewSessionService constructs the service.
func NewSessionService(deps SessionDependencies) *SessionService {
	return &SessionService{
		store:    deps.Store,
		presence: deps.Presence,
		logger:   deps.Logger,
	}
}

// SessionStartInput carries optional client metadata.
type SessionStartInput struct {
	IPAddress string
	UserAgent string
}

// StartSession opens a new working session for the agent.
func (s *SessionService) StartSession(ctx context.Context, agentID string, input SessionStartInput) (*domain.AgentSession, error) {
	session := &domain.AgentSession{
		AgentID:   agentID,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
	}

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.AgentSessions().Create(ctx, session); err != nil {
			return err
		}
		return tx.Activities().Insert(ctx, &domain.Activity{
			UserID: &agentID,
			Details: domain.SessionStartedDetails{
				SessionID: session.ID,
				IPAddress: session.IPAddress,
				UserAgent: session.UserAgent,
			},
		})
	})
	if err != nil {
		return nil, errorutil.ToDomainError(err)
	}

	if err := s.presence.MarkOnline(ctx, agentID); err != nil {
		s.logger.Warn("presence mark skipped", zap.String("agent_id", agentID), zap.Error(err))
	}
	return session, nil
}

// EndSession closes the session, computing its duration exactly once.
// Closing someone else's session is Forbidden; closing twice is
// Conflict and leaves the stored duration untouched.
func (s *SessionService) EndSession(ctx context.Context, agentID, sessionID string) (*domain.AgentSession, error) {
	var closed *domain.AgentSession
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		session, err := tx.AgentSessions().GetByID(ctx, sessionID)
		if err != nil {
			return notFoundIfNoRows(err, "session")
		}
		if session.AgentID != agentID {
			return errorutil.NewForbidden("session belongs to another agent")
		}
		if !session.Open() {
			return errorutil.NewConflict("session already ended", nil)
		}

		closed, err = tx.AgentSessions().Close(ctx, sessionID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Lost the close race after the read above.
				return errorutil.NewConflict("session already ended", nil)
			}
			return err
		}
		details := domain.SessionEndedDetails{
			SessionID:  closed.ID,
			ReplyCount: closed.ReplyCount,
		}
		if closed.Duration != nil {
			details.DurationSeconds = *closed.Duration
		}
		return tx.Activities().Insert(ctx, &domain.Activity{
			UserID:  &agentID,
			Details: details,
		})
	})
	if err != nil {
		return nil, errorutil.ToDomainError(err)
	}

	s.clearPresence(ctx, agentID)
	return closed, nil
}

// CurrentSession returns the agent's most recently started open
// session, or nil when none is open. Absence is a normal outcome.
func (s *SessionService) CurrentSession(ctx context.Context, agentID string) (*domain.AgentSession, error) {
	session, err := s.store.AgentSessions().CurrentByAgent(ctx, agentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errorutil.ToDomainError(err)
	}
	return session, nil
}

// IsOnline reports agent presence. The redis mark answers first; when
// the cache is unreachable the open-session lookup decides.
func (s *SessionService) IsOnline(ctx context.Context, agentID string) (bool, error) {
	online, err := s.presence.IsOnline(ctx, agentID)
	if err == nil {
		return online, nil
	}
	s.logger.Warn("presence lookup fell back to storage", zap.String("agent_id", agentID), zap.Error(err))

	session, err := s.CurrentSession(ctx, agentID)
	if err != nil {
		return false, err
	}
	return session != nil, nil
}

// clearPresence drops the presence mark unless another session is still
// open for the agent.
func (s *SessionService) clearPresence(ctx context.Context, agentID string) {
	_, err := s.store.AgentSessions().CurrentByAgent(ctx, agentID)
	if err == nil {
		return
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		s.logger.Warn("presence check skipped", zap.String("agent_id", agentID), zap.Error(err))
		return
	}
	if err := s.presence.MarkOffline(ctx, agentID); err != nil {
		s.logger.Warn("presence clear skipped", zap.String("agent_id", agentID), zap.Error(err))
	}
}
