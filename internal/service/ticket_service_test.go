package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/supportdesk-io/supportdesk/internal/domain"
	"github.com/supportdesk-io/supportdesk/internal/events"
	"github.com/supportdesk-io/supportdesk/internal/repository"
	"github.com/supportdesk-io/supportdesk/pkg/errorutil"
)

// capturedEvents collects everything published during a test.
type capturedEvents struct {
	mu   sync.Mutex
	list []events.Event
}

func (c *capturedEvents) record(_ context.Context, event events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = append(c.list, event)
	return nil
}

func (c *capturedEvents) ofType(eventType events.EventType) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var matched []events.Event
	for _, event := range c.list {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

type ticketTestEnv struct {
	store     *repository.MemoryStore
	service   *TicketService
	events    *capturedEvents
	requester domain.Actor
	other     domain.Actor
	agent     domain.Actor
	admin     domain.Actor
}

func newTicketTestEnv(t *testing.T) *ticketTestEnv {
	t.Helper()

	store := repository.NewMemoryStore()
	captured := &capturedEvents{}
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketStatusChanged,
		events.EventTicketAssigned,
		events.EventCommentAdded,
		events.EventChatEscalated,
	} {
		dispatcher.Subscribe(eventType, captured.record)
	}

	return &ticketTestEnv{
		store: store,
		service: NewTicketService(TicketDependencies{
			Store:      store,
			Dispatcher: dispatcher,
			Logger:     zap.NewNop(),
		}),
		events:    captured,
		requester: seedUser(t, store, "Riley Requester", domain.RoleUser),
		other:     seedUser(t, store, "Olga Other", domain.RoleUser),
		agent:     seedUser(t, store, "Avery Agent", domain.RoleAgent),
		admin:     seedUser(t, store, "Ada Admin", domain.RoleAdmin),
	}
}

func seedUser(t *testing.T, store *repository.MemoryStore, name string, role domain.Role) domain.Actor {
	t.Helper()
	user := &domain.User{
		Name:         name,
		Email:        strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		PasswordHash: "irrelevant",
		Role:         role,
		Status:       domain.UserStatusActive,
	}
	require.NoError(t, store.Users().Create(context.Background(), user))
	return domain.Actor{ID: user.ID, Role: role}
}

func (e *ticketTestEnv) createTicket(t *testing.T, subject string) *domain.Ticket {
	t.Helper()
	ticket, err := e.service.CreateTicket(context.Background(), e.requester.ID, TicketCreateInput{
		Subject: subject,
		Body:    "<p>something is broken</p>",
	})
	require.NoError(t, err)
	return ticket
}

func TestCreateTicket(t *testing.T) {
	t.Run("opens in NEW with initial comment and activity", func(t *testing.T) {
		env := newTicketTestEnv(t)
		ctx := context.Background()

		ticket, err := env.service.CreateTicket(ctx, env.requester.ID, TicketCreateInput{
			Subject:   "Printer on fire",
			Body:      "<p>It is actually on fire.</p>",
			BodyPlain: "It is actually on fire.",
			Priority:  domain.TicketPriorityHigh,
			Channel:   domain.ChannelEmail,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, ticket.ID)
		assert.Greater(t, ticket.Number, int64(0))
		assert.Equal(t, domain.TicketStatusNew, ticket.Status)
		assert.Nil(t, ticket.FirstResponseAt)
		assert.Nil(t, ticket.SolvedAt)

		comments, err := env.store.Comments().ListByTicket(ctx, ticket.ID, true)
		require.NoError(t, err)
		require.Len(t, comments, 1)
		assert.Equal(t, env.requester.ID, comments[0].AuthorID)
		assert.False(t, comments[0].IsSystem)
		assert.False(t, comments[0].IsInternal)

		activities, err := env.store.Activities().ListByTicket(ctx, ticket.ID, 10, 0)
		require.NoError(t, err)
		require.Len(t, activities, 1)
		assert.Equal(t, domain.ActionTicketCreated, activities[0].Action)

		created := env.events.ofType(events.EventTicketCreated)
		require.Len(t, created, 1)
		assert.Equal(t, ticket.ID, created[0].TicketID)
	})

	t.Run("defaults priority and channel", func(t *testing.T) {
		env := newTicketTestEnv(t)

		ticket := env.createTicket(t, "Default everything")
		assert.Equal(t, domain.TicketPriorityNormal, ticket.Priority)
		assert.Equal(t, domain.ChannelWeb, ticket.Channel)
	})

	t.Run("rejects missing subject with a field detail", func(t *testing.T) {
		env := newTicketTestEnv(t)

		_, err := env.service.CreateTicket(context.Background(), env.requester.ID, TicketCreateInput{
			Subject: "   ",
			Body:    "body",
		})
		require.Error(t, err)
		assert.True(t, errorutil.IsCode(err, "VALIDATION_FAILED"))

		var domainErr *errorutil.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Contains(t, domainErr.Details, "subject")
	})

	t.Run("rejects unknown priority", func(t *testing.T) {
		env := newTicketTestEnv(t)

		_, err := env.service.CreateTicket(context.Background(), env.requester.ID, TicketCreateInput{
			Subject:  "Bad priority",
			Body:     "body",
			Priority: domain.TicketPriority("WHENEVER"),
		})
		assert.True(t, errorutil.IsCode(err, "VALIDATION_FAILED"))
	})
}

func TestAddComment(t *testing.T) {
	t.Run("first staff comment opens the ticket and stamps first response once", func(t *testing.T) {
		env := newTicketTestEnv(t)
		ctx := context.Background()
		ticket := env.createTicket(t, "Needs a reply")

		_, err := env.service.AddComment(ctx, env.agent, CommentCreateInput{
			TicketID: ticket.ID,
			Body:     "Looking into it.",
		})
		require.NoError(t, err)

		afterFirst, _, err := env.service.GetTicket(ctx, env.agent, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusOpen, afterFirst.Status)
		require.NotNil(t, afterFirst.FirstResponseAt)
		stamped := *afterFirst.FirstResponseAt

		_, err = env.service.AddComment(ctx, env.agent, CommentCreateInput{
			TicketID: ticket.ID,
			Body:     "Still looking.",
		})
		require.NoError(t, err)

		afterSecond, _, err := env.service.GetTicket(ctx, env.agent, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusOpen, afterSecond.Status)
		require.NotNil(t, afterSecond.FirstResponseAt)
		assert.Equal(t, stamped, *afterSecond.FirstResponseAt)
	})

	t.Run("requester comments never stamp first response", func(t *testing.T) {
		env := newTicketTestEnv(t)
		ctx := context.Background()
		ticket := env.createTicket(t, "Self follow-up")

		_, err := env.service.AddComment(ctx, env.requester, CommentCreateInput{
			TicketID: ticket.ID,
			Body:     "Forgot to mention the error code.",
		})
		require.NoError(t, err)

		reloaded, _, err := env.service.GetTicket(ctx, env.agent, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusNew, reloaded.Status)
		assert.Nil(t, reloaded.FirstResponseAt)
	})

	t.Run("internal flag is coerced for end-users", func(t *testing.T) {
		env := newTicketTestEnv(t)
		ctx := context.Background()
		ticket := env.createTicket(t, "Visibility rules")

		userComment, err := env.service.AddComment(ctx, env.requester, CommentCreateInput{
			TicketID:   ticket.ID,
			Body:       "Please keep this private.",
			IsInternal: true,
		})
		require.NoError(t, err)
		assert.False(t, userComment.IsInternal)

		agentComment, err := env.service.AddComment(ctx, env.agent, CommentCreateInput{
			TicketID:   ticket.ID,
			Body:       "Customer sounds upset.",
			IsInternal: true,
		})
		require.NoError(t, err)
		assert.True(t, agentComment.IsInternal)

		visibleToUser, err := env.service.ReadComments(ctx, env.requester, ticket.ID)
		require.NoError(t, err)
		for _, comment := range visibleToUser {
			assert.False(t, comment.IsInternal)
		}

		visibleToAgent, err := env.service.ReadComments(ctx, env.agent, ticket.ID)
		require.NoError(t, err)
		assert.Len(t, visibleToAgent, len(visibleToUser)+1)
	})

	t.Run("foreign end-user is forbidden", func(t *testing.T) {
		env := newTicketTestEnv(t)
		ticket := env.createTicket(t, "Not yours")

		_, err := env.service.AddComment(context.Background(), env.other, CommentCreateInput{
			TicketID: ticket.ID,
			Body:     "Me too!",
		})
		assert.True(t, errorutil.IsCode(err, "FORBIDDEN"))
	})

	t.Run("missing ticket is not found", func(t *testing.T) {
		env := newTicketTestEnv(t)

		_, err := env.service.AddComment(context.Background(), env.agent, CommentCreateInput{
			TicketID: uuid.NewString(),
			Body:     "Hello?",
		})
		assert.True(t, errorutil.IsCode(err, "NOT_FOUND"))
	})

	t.Run("rejects empty body", func(t *testing.T) {
		env := newTicketTestEnv(t)
		ticket := env.createTicket(t, "Empty comment")

		_, err := env.service.AddComment(context.Background(), env.requester, CommentCreateInput{
			TicketID: ticket.ID,
			Body:     "  ",
		})
		assert.True(t, errorutil.IsCode(err, "VALIDATION_FAILED"))
	})

	t.Run("staff replies bump the open session reply count", func(t *testing.T) {
		env := newTicketTestEnv(t)
		ctx := context.Background()
		ticket := env.createTicket(t, "Counted replies")

		session := &domain.AgentSession{AgentID: env.agent.ID}
		require.NoError(t, env.store.AgentSessions().Create(ctx, session))

		for i := 0; i < 2; i++ {
			_, err := env.service.AddComment(ctx, env.agent, CommentCreateInput{
				TicketID: ticket.ID,
				Body:     "reply",
			})
			require.NoError(t, err)
		}

		reloaded, err := env.store.AgentSessions().GetByID(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, reloaded.ReplyCount)
	})

	t.Run("staff reply without an open session still succeeds", func(t *testing.T) {
		env := newTicketTestEnv(t)
		ticket := env.createTicket(t, "No session")

		comment, err := env.service.AddComment(context.Background(), env.agent, CommentCreateInput{
			TicketID: ticket.ID,
			Body:     "Replying off the clock.",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, comment.ID)
	})
}

func TestUpdateStatus(t *testing.T) {
	t.Run("solved stamps the resolution and reopening clears it", func(t *testing.T) {
		env := newTicketTestEnv(t)
		ctx := context.Background()
		ticket := env.createTicket(t, "Lifecycle")

		solved, err := env.service.UpdateStatus(ctx, env.agent, ticket.ID, domain.TicketStatusSolved)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusSolved, solved.Status)
		require.NotNil(t, solved.SolvedAt)

		reopened, err := env.service.UpdateStatus(ctx, env.agent, ticket.ID, domain.TicketStatusOpen)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusOpen, reopened.Status)
		assert.Nil(t, reopened.SolvedAt)

		activities, err := env.store.Activities().ListByTicket(ctx, ticket.ID, 10, 0)
		require.NoError(t, err)
		var changes []domain.StatusChangedDetails
		for _, activity := range activities {
			if details, ok := activity.Details.(domain.StatusChangedDetails); ok {
				changes = append(changes, details)
			}
		}
		require.Len(t, changes, 2)
		assert.Equal(t, domain.TicketStatusNew, changes[0].OldStatus)
		assert.Equal(t, domain.TicketStatusSolved, changes[0].NewStatus)
		assert.Equal(t, domain.TicketStatusSolved, changes[1].OldStatus)
		assert.Equal(t, domain.TicketStatusOpen, changes[1].NewStatus)

		published := env.events.ofType(events.EventTicketStatusChanged)
		assert.Len(t, published, 2)
	})

	t.Run("any staff transition is allowed", func(t *testing.T) {
		env := newTicketTestEnv(t)
		ctx := context.Background()
		ticket := env.createTicket(t, "Free transitions")

		for _, status := range []domain.TicketStatus{
			domain.TicketStatusOnHold,
			domain.TicketStatusSolved,
			domain.TicketStatusPending,
			domain.TicketStatusNew,
		} {
			updated, err := env.service.UpdateStatus(ctx, env.admin, ticket.ID, status)
			require.NoError(t, err)
			assert.Equal(t, status, updated.Status)
		}
	})

	t.Run("end-users may not set status", func(t *testing.T) {
		env := newTicketTestEnv(t)
		ticket := env.createTicket(t, "Hands off")

		_, err := env.service.UpdateStatus(context.Background(), env.requester, ticket.ID, domain.TicketStatusSolved)
		assert.True(t, errorutil.IsCode(err, "FORBIDDEN"))
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		env := newTicketTestEnv(t)
		ticket := env.createTicket(t, "Bad status")

		_, err := env.service.UpdateStatus(context.Background(), env.agent, ticket.ID, domain.TicketStatus("DONE"))
		assert.True(t, errorutil.IsCode(err, "VALIDATION_FAILED"))
	})

	t.Run("missing ticket is not found", func(t *testing.T) {
		env := newTicketTestEnv(t)

		_, err := env.service.UpdateStatus(context.Background(), env.agent, uuid.NewString(), domain.TicketStatusOpen)
		assert.True(t, errorutil.IsCode(err, "NOT_FOUND"))
	})
}

func TestAssignTicket(t *testing.T) {
	t.Run("assigns and unassigns with an audit entry", func(t *testing.T) {
		env := newTicketTestEnv(t)
		ctx := context.Background()
		ticket := env.createTicket(t, "Routing")

		assigned, err := env.service.AssignTicket(ctx, env.admin, ticket.ID, &env.agent.ID)
		require.NoError(t, err)
		require.NotNil(t, assigned.AssigneeID)
		assert.Equal(t, env.agent.ID, *assigned.AssigneeID)

		unassigned, err := env.service.AssignTicket(ctx, env.admin, ticket.ID, nil)
		require.NoError(t, err)
		assert.Nil(t, unassigned.AssigneeID)

		activities, err := env.store.Activities().ListByTicket(ctx, ticket.ID, 10, 0)
		require.NoError(t, err)
		var changes []domain.AssigneeChangedDetails
		for _, activity := range activities {
			if details, ok := activity.Details.(domain.AssigneeChangedDetails); ok {
				changes = append(changes, details)
			}
		}
		require.Len(t, changes, 2)
		assert.Nil(t, changes[0].OldAssigneeID)
		require.NotNil(t, changes[0].NewAssigneeID)
		assert.Equal(t, env.agent.ID, *changes[0].NewAssigneeID)
		assert.Nil(t, changes[1].NewAssigneeID)
	})

	t.Run("rejects a non-staff assignee", func(t *testing.T) {
		env := newTicketTestEnv(t)
		ticket := env.createTicket(t, "Wrong target")

		_, err := env.service.AssignTicket(context.Background(), env.agent, ticket.ID, &env.other.ID)
		assert.True(t, errorutil.IsCode(err, "VALIDATION_FAILED"))
	})

	t.Run("requires a staff caller", func(t *testing.T) {
		env := newTicketTestEnv(t)
		ticket := env.createTicket(t, "Nope")

		_, err := env.service.AssignTicket(context.Background(), env.requester, ticket.ID, &env.agent.ID)
		assert.True(t, errorutil.IsCode(err, "FORBIDDEN"))
	})

	t.Run("missing assignee account is not found", func(t *testing.T) {
		env := newTicketTestEnv(t)
		ticket := env.createTicket(t, "Ghost assignee")
		ghost := uuid.NewString()

		_, err := env.service.AssignTicket(context.Background(), env.agent, ticket.ID, &ghost)
		assert.True(t, errorutil.IsCode(err, "NOT_FOUND"))
	})
}

func TestListTickets(t *testing.T) {
	t.Run("end-users are pinned to their own tickets", func(t *testing.T) {
		env := newTicketTestEnv(t)
		ctx := context.Background()

		mine := env.createTicket(t, "Mine")
		_, err := env.service.CreateTicket(ctx, env.other.ID, TicketCreateInput{
			Subject: "Someone else's",
			Body:    "body",
		})
		require.NoError(t, err)

		// The assignee filter is a staff capability and must be ignored.
		listed, err := env.service.ListTickets(ctx, env.requester, TicketListInput{AssigneeID: &env.agent.ID})
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, mine.ID, listed[0].ID)
	})

	t.Run("staff can filter by status", func(t *testing.T) {
		env := newTicketTestEnv(t)
		ctx := context.Background()

		solved := env.createTicket(t, "Will be solved")
		env.createTicket(t, "Stays new")
		_, err := env.service.UpdateStatus(ctx, env.agent, solved.ID, domain.TicketStatusSolved)
		require.NoError(t, err)

		listed, err := env.service.ListTickets(ctx, env.agent, TicketListInput{
			Statuses: []domain.TicketStatus{domain.TicketStatusSolved},
		})
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, solved.ID, listed[0].ID)
	})
}

func TestListTicketActivity(t *testing.T) {
	t.Run("returns the trail oldest first for staff", func(t *testing.T) {
		env := newTicketTestEnv(t)
		ctx := context.Background()
		ticket := env.createTicket(t, "Audited")

		_, err := env.service.AddComment(ctx, env.agent, CommentCreateInput{
			TicketID: ticket.ID,
			Body:     "On it.",
		})
		require.NoError(t, err)

		activities, err := env.service.ListTicketActivity(ctx, env.agent, ticket.ID, 10, 0)
		require.NoError(t, err)
		require.Len(t, activities, 2)
		assert.Equal(t, domain.ActionTicketCreated, activities[0].Action)
		assert.Equal(t, domain.ActionCommentAdded, activities[1].Action)
	})

	t.Run("end-users may not read the trail", func(t *testing.T) {
		env := newTicketTestEnv(t)
		ticket := env.createTicket(t, "Private trail")

		_, err := env.service.ListTicketActivity(context.Background(), env.requester, ticket.ID, 10, 0)
		assert.True(t, errorutil.IsCode(err, "FORBIDDEN"))
	})

	t.Run("missing ticket is not found", func(t *testing.T) {
		env := newTicketTestEnv(t)

		_, err := env.service.ListTicketActivity(context.Background(), env.agent, uuid.NewString(), 10, 0)
		assert.True(t, errorutil.IsCode(err, "NOT_FOUND"))
	})
}
