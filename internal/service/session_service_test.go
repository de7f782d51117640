package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/supportdesk-io/supportdesk/internal/domain"
	"github.com/supportdesk-io/supportdesk/internal/repository"
	"github.com/supportdesk-io/supportdesk/pkg/errorutil"
)

type sessionTestEnv struct {
	store   *repository.MemoryStore
	service *SessionService
	agent   domain.Actor
	admin   domain.Actor
}

// newSessionTestEnv wires the service without a presence cache; presence
// writes degrade to warnings and IsOnline falls back to storage.
func newSessionTestEnv(t *testing.T) *sessionTestEnv {
	t.Helper()

	store := repository.NewMemoryStore()
	return &sessionTestEnv{
		store: store,
		service: NewSessionService(SessionDependencies{
			Store:  store,
			Logger: zap.NewNop(),
		}),
		agent: seedUser(t, store, "Sasha Session", domain.RoleAgent),
		admin: seedUser(t, store, "Ines Infra", domain.RoleAdmin),
	}
}

func sessionActivities(env *sessionTestEnv) []domain.Activity {
	all := env.store.Activities().(*repository.MemoryActivityRepository).All()
	var matched []domain.Activity
	for _, activity := range all {
		switch activity.Action {
		case domain.ActionSessionStarted, domain.ActionSessionEnded:
			matched = append(matched, activity)
		}
	}
	return matched
}

func TestStartSession(t *testing.T) {
	t.Run("opens a session with client metadata", func(t *testing.T) {
		env := newSessionTestEnv(t)

		session, err := env.service.StartSession(context.Background(), env.agent.ID, SessionStartInput{
			IPAddress: "203.0.113.9",
			UserAgent: "desk-console/2.4",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, session.ID)
		assert.Equal(t, env.agent.ID, session.AgentID)
		assert.False(t, session.LoginAt.IsZero())
		assert.Nil(t, session.LogoutAt)
		assert.Nil(t, session.Duration)
		assert.Equal(t, 0, session.ReplyCount)

		trail := sessionActivities(env)
		require.Len(t, trail, 1)
		assert.Equal(t, domain.ActionSessionStarted, trail[0].Action)
		details, ok := trail[0].Details.(domain.SessionStartedDetails)
		require.True(t, ok)
		assert.Equal(t, session.ID, details.SessionID)
		assert.Equal(t, "203.0.113.9", details.IPAddress)
	})

	t.Run("a second login opens a second session", func(t *testing.T) {
		env := newSessionTestEnv(t)
		ctx := context.Background()

		first, err := env.service.StartSession(ctx, env.agent.ID, SessionStartInput{})
		require.NoError(t, err)
		second, err := env.service.StartSession(ctx, env.agent.ID, SessionStartInput{})
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)

		current, err := env.service.CurrentSession(ctx, env.agent.ID)
		require.NoError(t, err)
		require.NotNil(t, current)
		assert.Equal(t, second.ID, current.ID)
	})
}

func TestEndSession(t *testing.T) {
	t.Run("stamps logout and computes duration once", func(t *testing.T) {
		env := newSessionTestEnv(t)
		ctx := context.Background()

		session, err := env.service.StartSession(ctx, env.agent.ID, SessionStartInput{})
		require.NoError(t, err)

		closed, err := env.service.EndSession(ctx, env.agent.ID, session.ID)
		require.NoError(t, err)
		require.NotNil(t, closed.LogoutAt)
		require.NotNil(t, closed.Duration)
		assert.GreaterOrEqual(t, *closed.Duration, int64(0))
		assert.False(t, closed.LogoutAt.Before(closed.LoginAt))

		trail := sessionActivities(env)
		require.Len(t, trail, 2)
		details, ok := trail[1].Details.(domain.SessionEndedDetails)
		require.True(t, ok)
		assert.Equal(t, session.ID, details.SessionID)
		assert.Equal(t, *closed.Duration, details.DurationSeconds)
		assert.Equal(t, closed.ReplyCount, details.ReplyCount)
	})

	t.Run("ending twice is a conflict and keeps the first duration", func(t *testing.T) {
		env := newSessionTestEnv(t)
		ctx := context.Background()

		session, err := env.service.StartSession(ctx, env.agent.ID, SessionStartInput{})
		require.NoError(t, err)
		closed, err := env.service.EndSession(ctx, env.agent.ID, session.ID)
		require.NoError(t, err)

		_, err = env.service.EndSession(ctx, env.agent.ID, session.ID)
		assert.True(t, errorutil.IsCode(err, "CONFLICT"))

		stored, err := env.store.AgentSessions().GetByID(ctx, session.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.Duration)
		assert.Equal(t, *closed.Duration, *stored.Duration)
		assert.Equal(t, *closed.LogoutAt, *stored.LogoutAt)
	})

	t.Run("another agent's session is off limits", func(t *testing.T) {
		env := newSessionTestEnv(t)
		ctx := context.Background()

		session, err := env.service.StartSession(ctx, env.agent.ID, SessionStartInput{})
		require.NoError(t, err)

		_, err = env.service.EndSession(ctx, env.admin.ID, session.ID)
		assert.True(t, errorutil.IsCode(err, "FORBIDDEN"))

		stored, err := env.store.AgentSessions().GetByID(ctx, session.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.LogoutAt)
	})

	t.Run("missing session is not found", func(t *testing.T) {
		env := newSessionTestEnv(t)

		_, err := env.service.EndSession(context.Background(), env.agent.ID, uuid.NewString())
		assert.True(t, errorutil.IsCode(err, "NOT_FOUND"))
	})

	t.Run("reply count survives into the closing record", func(t *testing.T) {
		env := newSessionTestEnv(t)
		ctx := context.Background()

		session, err := env.service.StartSession(ctx, env.agent.ID, SessionStartInput{})
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			require.NoError(t, env.store.AgentSessions().IncrementReply(ctx, env.agent.ID))
		}

		closed, err := env.service.EndSession(ctx, env.agent.ID, session.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, closed.ReplyCount)
	})
}

func TestCurrentSession(t *testing.T) {
	t.Run("nil when nothing is open", func(t *testing.T) {
		env := newSessionTestEnv(t)

		current, err := env.service.CurrentSession(context.Background(), env.agent.ID)
		require.NoError(t, err)
		assert.Nil(t, current)
	})

	t.Run("falls back to an earlier session after the latest closes", func(t *testing.T) {
		env := newSessionTestEnv(t)
		ctx := context.Background()

		first, err := env.service.StartSession(ctx, env.agent.ID, SessionStartInput{})
		require.NoError(t, err)
		second, err := env.service.StartSession(ctx, env.agent.ID, SessionStartInput{})
		require.NoError(t, err)

		_, err = env.service.EndSession(ctx, env.agent.ID, second.ID)
		require.NoError(t, err)

		current, err := env.service.CurrentSession(ctx, env.agent.ID)
		require.NoError(t, err)
		require.NotNil(t, current)
		assert.Equal(t, first.ID, current.ID)
	})
}

func TestIsOnline(t *testing.T) {
	t.Run("storage fallback reflects open sessions", func(t *testing.T) {
		env := newSessionTestEnv(t)
		ctx := context.Background()

		online, err := env.service.IsOnline(ctx, env.agent.ID)
		require.NoError(t, err)
		assert.False(t, online)

		session, err := env.service.StartSession(ctx, env.agent.ID, SessionStartInput{})
		require.NoError(t, err)

		online, err = env.service.IsOnline(ctx, env.agent.ID)
		require.NoError(t, err)
		assert.True(t, online)

		_, err = env.service.EndSession(ctx, env.agent.ID, session.ID)
		require.NoError(t, err)

		online, err = env.service.IsOnline(ctx, env.agent.ID)
		require.NoError(t, err)
		assert.False(t, online)
	})
}
