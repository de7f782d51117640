package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/supportdesk-io/supportdesk/internal/domain"
	"github.com/supportdesk-io/supportdesk/internal/events"
	"github.com/supportdesk-io/supportdesk/internal/repository"
	"github.com/supportdesk-io/supportdesk/pkg/errorutil"
)

// TicketService owns the ticket state machine: status transitions
// driven by comment creation and by explicit staff actions, the
// first-response timestamp, and the resolution timestamp.
type TicketService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// TicketCreateInput describes ticket creation payload. SystemComment
// marks the initial comment as machine-generated, which the chat
// hand-off path uses for its transcript.
type TicketCreateInput struct {
	Subject       string
	Body          string
	BodyPlain     string
	Priority      domain.TicketPriority
	Channel       domain.TicketChannel
	FormID        *string
	SystemComment bool
}

// CommentCreateInput describes a comment creation payload.
type CommentCreateInput struct {
	TicketID   string
	Body       string
	BodyPlain  string
	IsInternal bool
	Channel    domain.TicketChannel
}

// TicketListInput describes listing filters. Non-staff callers are
// scoped to their own tickets regardless of the filter.
type TicketListInput struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	AssigneeID *string
	SearchTerm *string
	Limit      int
	Offset     int
}

// CreateTicket opens a new ticket in state NEW. The ticket row, its
// initial comment and the ticket_created activity commit together.
func (s *TicketService) CreateTicket(ctx context.Context, requesterID string, input TicketCreateInput) (*domain.Ticket, error) {
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		return nil, errorutil.NewValidationError("subject is required", map[string]any{"subject": "required"})
	}
	if strings.TrimSpace(input.Body) == "" {
		return nil, errorutil.NewValidationError("body is required", map[string]any{"body": "required"})
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityNormal
	}
	if !priority.Valid() {
		return nil, errorutil.NewValidationError("unknown priority", map[string]any{"priority": "must be one of LOW, NORMAL, HIGH, URGENT"})
	}
	channel := input.Channel
	if channel == "" {
		channel = domain.ChannelWeb
	}
	if !channel.Valid() {
		return nil, errorutil.NewValidationError("unknown channel", map[string]any{"channel": "must be one of WEB, EMAIL, CHAT, API"})
	}

	ticket := &domain.Ticket{
		RequesterID: requesterID,
		FormID:      input.FormID,
		Subject:     subject,
		Status:      domain.TicketStatusNew,
		Priority:    priority,
		Channel:     channel,
	}

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Tickets().Create(ctx, ticket); err != nil {
			return err
		}
		comment := &domain.Comment{
			TicketID:  ticket.ID,
			AuthorID:  requesterID,
			Body:      input.Body,
			BodyPlain: input.BodyPlain,
			IsSystem:  input.SystemComment,
			Channel:   channel,
		}
		if err := tx.Comments().Create(ctx, comment); err != nil {
			return err
		}
		return tx.Activities().Insert(ctx, &domain.Activity{
			TicketID: &ticket.ID,
			UserID:   &requesterID,
			Details: domain.TicketCreatedDetails{
				Number:  ticket.Number,
				Subject: ticket.Subject,
				Channel: ticket.Channel,
			},
		})
	})
	if err != nil {
		return nil, errorutil.ToDomainError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.Actor{UserID: requesterID},
		Payload: events.TicketCreatedPayload{
			Number:   ticket.Number,
			Subject:  ticket.Subject,
			Priority: ticket.Priority,
			Channel:  ticket.Channel,
		},
	})
	return ticket, nil
}

// AddComment appends a comment and applies the comment-driven ticket
// transitions. The comment row, the ticket field updates and the
// activity entry are one atomic unit; bumping the author's session
// reply count happens after commit and may be skipped on failure.
func (s *TicketService) AddComment(ctx context.Context, actor domain.Actor, input CommentCreateInput) (*domain.Comment, error) {
	if strings.TrimSpace(input.Body) == "" {
		return nil, errorutil.NewValidationError("body is required", map[string]any{"body": "required"})
	}
	channel := input.Channel
	if channel == "" {
		channel = domain.ChannelWeb
	}

	comment := &domain.Comment{
		TicketID:  input.TicketID,
		AuthorID:  actor.ID,
		Body:      input.Body,
		BodyPlain: input.BodyPlain,
		// Internal visibility is a staff capability; user requests are
		// coerced, not rejected.
		IsInternal: input.IsInternal && actor.Role.CanPostInternal(),
		Channel:    channel,
	}

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := tx.Tickets().GetByID(ctx, input.TicketID)
		if err != nil {
			return notFoundIfNoRows(err, "ticket")
		}
		if actor.Role == domain.RoleUser && ticket.RequesterID != actor.ID {
			return errorutil.NewForbidden("only the requester may comment on this ticket")
		}
		if err := tx.Comments().Create(ctx, comment); err != nil {
			return err
		}
		if err := tx.Tickets().ApplyCommentEffects(ctx, ticket.ID, actor.Role.IsStaff()); err != nil {
			return err
		}
		return tx.Activities().Insert(ctx, &domain.Activity{
			TicketID: &ticket.ID,
			UserID:   &actor.ID,
			Details: domain.CommentAddedDetails{
				CommentID:  comment.ID,
				IsInternal: comment.IsInternal,
			},
		})
	})
	if err != nil {
		return nil, errorutil.ToDomainError(err)
	}

	if actor.Role.IsStaff() {
		// Best-effort reply accounting; a miss must not undo the comment.
		if err := s.store.AgentSessions().IncrementReply(ctx, actor.ID); err != nil {
			s.logger.Warn("reply count increment skipped",
				zap.String("agent_id", actor.ID),
				zap.Error(err),
			)
		}
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventCommentAdded,
		TicketID: input.TicketID,
		Actor:    events.Actor{UserID: actor.ID, Role: actor.Role},
		Payload: events.CommentAddedPayload{
			CommentID:   comment.ID,
			IsInternal:  comment.IsInternal,
			BodyPreview: stringPreview(comment.BodyPlain, 120),
		},
	})
	return comment, nil
}

// ReadComments returns a ticket's comments in creation order. USER
// callers must own the ticket and never see internal comments; the
// filter is applied in storage, not here.
func (s *TicketService) ReadComments(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.Comment, error) {
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return nil, errorutil.ToDomainError(notFoundIfNoRows(err, "ticket"))
	}
	if actor.Role == domain.RoleUser && ticket.RequesterID != actor.ID {
		return nil, errorutil.NewForbidden("only the requester may read this ticket")
	}
	comments, err := s.store.Comments().ListByTicket(ctx, ticketID, actor.Role.IsStaff())
	if err != nil {
		return nil, errorutil.ToDomainError(err)
	}
	return comments, nil
}

// GetTicket returns a ticket with its visible comments.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, []domain.Comment, error) {
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return nil, nil, errorutil.ToDomainError(notFoundIfNoRows(err, "ticket"))
	}
	if actor.Role == domain.RoleUser && ticket.RequesterID != actor.ID {
		return nil, nil, errorutil.NewForbidden("only the requester may read this ticket")
	}
	comments, err := s.store.Comments().ListByTicket(ctx, ticketID, actor.Role.IsStaff())
	if err != nil {
		return nil, nil, errorutil.ToDomainError(err)
	}
	return ticket, comments, nil
}

// ListTickets returns tickets visible to the actor. USER callers are
// pinned to their own tickets; staff may filter freely.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, input TicketListInput) ([]domain.Ticket, error) {
	filter := repository.TicketFilter{
		Statuses:   input.Statuses,
		Priorities: input.Priorities,
		SearchTerm: input.SearchTerm,
		Limit:      input.Limit,
		Offset:     input.Offset,
	}
	if actor.Role.IsStaff() {
		filter.AssigneeID = input.AssigneeID
	} else {
		requesterID := actor.ID
		filter.RequesterID = &requesterID
	}
	tickets, err := s.store.Tickets().ListWithFilter(ctx, filter)
	if err != nil {
		return nil, errorutil.ToDomainError(err)
	}
	return tickets, nil
}

// UpdateStatus applies an explicit staff transition. Any agent or admin
// may move a ticket between any two states; solved_at tracks SOLVED
// membership exactly.
func (s *TicketService) UpdateStatus(ctx context.Context, actor domain.Actor, ticketID string, newStatus domain.TicketStatus) (*domain.Ticket, error) {
	if !actor.Role.CanSetStatus() {
		return nil, errorutil.NewForbidden("only agents may change ticket status")
	}
	if !newStatus.Valid() {
		return nil, errorutil.NewValidationError("unknown status", map[string]any{"status": "must be one of NEW, OPEN, PENDING, ON_HOLD, SOLVED"})
	}

	var (
		updated   *domain.Ticket
		oldStatus domain.TicketStatus
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := tx.Tickets().GetByID(ctx, ticketID)
		if err != nil {
			return notFoundIfNoRows(err, "ticket")
		}
		oldStatus = ticket.Status
		updated, err = tx.Tickets().UpdateStatus(ctx, ticketID, newStatus)
		if err != nil {
			return notFoundIfNoRows(err, "ticket")
		}
		return tx.Activities().Insert(ctx, &domain.Activity{
			TicketID: &ticketID,
			UserID:   &actor.ID,
			Details: domain.StatusChangedDetails{
				OldStatus: oldStatus,
				NewStatus: newStatus,
			},
		})
	})
	if err != nil {
		return nil, errorutil.ToDomainError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticketID,
		Actor:    events.Actor{UserID: actor.ID, Role: actor.Role},
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
		},
	})
	return updated, nil
}

// AssignTicket sets or clears the assignee. A nil assignee unassigns.
func (s *TicketService) AssignTicket(ctx context.Context, actor domain.Actor, ticketID string, assigneeID *string) (*domain.Ticket, error) {
	if !actor.Role.IsStaff() {
		return nil, errorutil.NewForbidden("only agents may assign tickets")
	}
	if assigneeID != nil {
		assignee, err := s.store.Users().GetByID(ctx, *assigneeID)
		if err != nil {
			return nil, errorutil.ToDomainError(notFoundIfNoRows(err, "assignee"))
		}
		if !assignee.Role.IsStaff() {
			return nil, errorutil.NewValidationError("assignee must be an agent", map[string]any{"assigneeId": "must reference an agent or admin"})
		}
	}

	var (
		updated     *domain.Ticket
		oldAssignee *string
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := tx.Tickets().GetByID(ctx, ticketID)
		if err != nil {
			return notFoundIfNoRows(err, "ticket")
		}
		oldAssignee = ticket.AssigneeID
		updated, err = tx.Tickets().UpdateAssignee(ctx, ticketID, assigneeID)
		if err != nil {
			return notFoundIfNoRows(err, "ticket")
		}
		return tx.Activities().Insert(ctx, &domain.Activity{
			TicketID: &ticketID,
			UserID:   &actor.ID,
			Details: domain.AssigneeChangedDetails{
				OldAssigneeID: oldAssignee,
				NewAssigneeID: assigneeID,
			},
		})
	})
	if err != nil {
		return nil, errorutil.ToDomainError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticketID,
		Actor:    events.Actor{UserID: actor.ID, Role: actor.Role},
		Payload:  events.TicketAssignedPayload{AssigneeID: assigneeID},
	})
	return updated, nil
}

// ListTicketActivity returns the audit trail for a ticket, oldest
// first. Staff only.
func (s *TicketService) ListTicketActivity(ctx context.Context, actor domain.Actor, ticketID string, limit, offset int) ([]domain.Activity, error) {
	if !actor.Role.IsStaff() {
		return nil, errorutil.NewForbidden("only agents may read the activity trail")
	}
	if _, err := s.store.Tickets().GetByID(ctx, ticketID); err != nil {
		return nil, errorutil.ToDomainError(notFoundIfNoRows(err, "ticket"))
	}
	activities, err := s.store.Activities().ListByTicket(ctx, ticketID, limit, offset)
	if err != nil {
		return nil, errorutil.ToDomainError(err)
	}
	return activities, nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	publishEvent(ctx, s.dispatcher, event)
}

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = dispatcher.Publish(ctx, event)
}

func notFoundIfNoRows(err error, resource string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errorutil.NewNotFound(resource, nil)
	}
	return err
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
