package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/supportdesk-io/supportdesk/internal/ai"
	"github.com/supportdesk-io/supportdesk/internal/config"
	"github.com/supportdesk-io/supportdesk/internal/domain"
	"github.com/supportdesk-io/supportdesk/internal/events"
	"github.com/supportdesk-io/supportdesk/internal/observability"
	"github.com/supportdesk-io/supportdesk/internal/repository"
	"github.com/supportdesk-io/supportdesk/pkg/errorutil"
)

const (
	handoffTranscriptOpen  = "---- Chat transcript ----"
	handoffTranscriptClose = "---- End transcript ----"
	handoffDetailPrompt    = "Please add any additional details below."
)

// ChatService owns chat session lifecycle: message exchange with the
// assistant, helpfulness feedback, regeneration, termination and the
// hand-off into ticket creation.
//
// Ownership is by requester; an anonymous session belongs to whoever
// holds its id. A session owned by someone else is reported absent, not
// forbidden, so ids cannot be probed.
type ChatService struct {
	store      repository.Store
	generator  ai.Generator
	tickets    *TicketService
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	cfg        config.ChatConfig
}

// ChatDependencies bundles collaborators for the chat service.
type ChatDependencies struct {
	Store      repository.Store
	Generator  ai.Generator
	Tickets    *TicketService
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Config     config.ChatConfig
}

// NewChatService constructs the service.
func NewChatService(deps ChatDependencies) *ChatService {
	return &ChatService{
		store:      deps.Store,
		generator:  deps.Generator,
		tickets:    deps.Tickets,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		cfg:        deps.Config,
	}
}

// SendMessageInput carries one user turn. A nil SessionID opens a new
// session owned by the caller (or anonymous).
type SendMessageInput struct {
	SessionID *string
	Message   string
}

// SendMessageResult is the widget-facing reply. MessageID is empty when
// generation failed and Response carries the fallback text.
type SendMessageResult struct {
	SessionID           string
	MessageID           string
	Response            string
	EscalationSuggested bool
}

// SendMessage appends the user's message, asks the generator for a
// reply under the configured timeout and appends it as an assistant
// message. Generation failure degrades to the fallback text: the user
// message stays persisted and no assistant message is written.
func (s *ChatService) SendMessage(ctx context.Context, caller *domain.Actor, input SendMessageInput) (*SendMessageResult, error) {
	if strings.TrimSpace(input.Message) == "" {
		return nil, errorutil.NewValidationError("message is required", map[string]any{"message": "required"})
	}

	var session *domain.ChatSession
	if input.SessionID == nil {
		created, err := s.openSession(ctx, caller)
		if err != nil {
			return nil, err
		}
		session = created
	} else {
		existing, err := s.loadOwnedSession(ctx, caller, *input.SessionID)
		if err != nil {
			return nil, err
		}
		if existing.Ended() {
			return nil, errorutil.NewConflict("chat session has ended", nil)
		}
		session = existing
	}

	userMessage := &domain.ChatMessage{
		SessionID: session.ID,
		Role:      domain.ChatRoleUser,
		Content:   input.Message,
	}
	if err := s.store.ChatMessages().Create(ctx, userMessage); err != nil {
		return nil, errorutil.ToDomainError(err)
	}

	history, err := s.store.ChatMessages().ListBySession(ctx, session.ID)
	if err != nil {
		return nil, errorutil.ToDomainError(err)
	}

	reply, err := s.generate(ctx, history)
	if err != nil {
		// Degrade, never roll back the user's message.
		s.logger.Error("assistant generation failed",
			zap.String("chat_session_id", session.ID),
			zap.Error(err),
		)
		return &SendMessageResult{
			SessionID:           session.ID,
			Response:            s.cfg.FallbackText,
			EscalationSuggested: EscalationDue(history, s.cfg.EscalationThreshold),
		}, nil
	}

	assistantMessage := &domain.ChatMessage{
		SessionID: session.ID,
		Role:      domain.ChatRoleAssistant,
		Content:   reply,
	}
	if err := s.store.ChatMessages().Create(ctx, assistantMessage); err != nil {
		return nil, errorutil.ToDomainError(err)
	}
	history = append(history, *assistantMessage)

	return &SendMessageResult{
		SessionID:           session.ID,
		MessageID:           assistantMessage.ID,
		Response:            reply,
		EscalationSuggested: EscalationDue(history, s.cfg.EscalationThreshold),
	}, nil
}

// GiveFeedback overwrites the helpfulness flag on an assistant message.
// Re-rating is not an error.
func (s *ChatService) GiveFeedback(ctx context.Context, caller *domain.Actor, sessionID, messageID string, wasHelpful bool) error {
	session, err := s.loadOwnedSession(ctx, caller, sessionID)
	if err != nil {
		return err
	}
	if session.Ended() {
		return errorutil.NewConflict("chat session has ended", nil)
	}
	if err := s.store.ChatMessages().SetFeedback(ctx, sessionID, messageID, wasHelpful); err != nil {
		return errorutil.ToDomainError(notFoundIfNoRows(err, "message"))
	}
	return nil
}

// Regenerate replaces an assistant message's content in place using the
// history strictly before it. Content replacement and the feedback
// reset are one atomic write; id and createdAt never change.
func (s *ChatService) Regenerate(ctx context.Context, caller *domain.Actor, sessionID, messageID string) (string, error) {
	session, err := s.loadOwnedSession(ctx, caller, sessionID)
	if err != nil {
		return "", err
	}
	if session.Ended() {
		return "", errorutil.NewConflict("chat session has ended", nil)
	}

	target, err := s.store.ChatMessages().GetBySession(ctx, sessionID, messageID)
	if err != nil {
		return "", errorutil.ToDomainError(notFoundIfNoRows(err, "message"))
	}
	if target.Role != domain.ChatRoleAssistant {
		return "", errorutil.NewNotFound("message", nil)
	}

	history, err := s.store.ChatMessages().ListBySession(ctx, sessionID)
	if err != nil {
		return "", errorutil.ToDomainError(err)
	}
	preceding := make([]domain.ChatMessage, 0, len(history))
	for _, message := range history {
		if message.ID == target.ID {
			break
		}
		preceding = append(preceding, message)
	}

	reply, err := s.generate(ctx, preceding)
	if err != nil {
		s.logger.Error("assistant regeneration failed",
			zap.String("chat_session_id", sessionID),
			zap.String("message_id", messageID),
			zap.Error(err),
		)
		return "", errorutil.NewInternalError(err)
	}

	if err := s.store.ChatMessages().ReplaceContent(ctx, sessionID, messageID, reply); err != nil {
		return "", errorutil.ToDomainError(notFoundIfNoRows(err, "message"))
	}
	return reply, nil
}

// EndSession moves the session to its terminal state and records
// whether the conversation was resolved. Ending twice is Conflict.
func (s *ChatService) EndSession(ctx context.Context, caller *domain.Actor, sessionID string, resolved bool) (*domain.ChatSession, error) {
	var ended *domain.ChatSession
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		session, err := s.ownedSessionFrom(ctx, tx, caller, sessionID)
		if err != nil {
			return err
		}
		if session.Ended() {
			return errorutil.NewConflict("chat session has ended", nil)
		}

		ended, err = tx.ChatSessions().End(ctx, sessionID, resolved)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errorutil.NewConflict("chat session has ended", nil)
			}
			return err
		}
		return tx.Activities().Insert(ctx, &domain.Activity{
			UserID: ended.RequesterID,
			Details: domain.ChatEndedDetails{
				SessionID: ended.ID,
				Resolved:  ended.Resolved,
			},
		})
	})
	if err != nil {
		return nil, errorutil.ToDomainError(err)
	}
	return ended, nil
}

// GetSession returns the session, its ordered messages and whether the
// escalation offer is currently due. Ended sessions stay readable.
func (s *ChatService) GetSession(ctx context.Context, caller *domain.Actor, sessionID string) (*domain.ChatSession, []domain.ChatMessage, bool, error) {
	session, err := s.loadOwnedSession(ctx, caller, sessionID)
	if err != nil {
		return nil, nil, false, err
	}
	messages, err := s.store.ChatMessages().ListBySession(ctx, sessionID)
	if err != nil {
		return nil, nil, false, errorutil.ToDomainError(err)
	}
	return session, messages, EscalationDue(messages, s.cfg.EscalationThreshold), nil
}

// Escalate converts the conversation into a new ticket: subject from
// the first user message, body holding the role-labeled transcript,
// submitted through the regular ticket creation path. The chat session
// itself is left as-is; ending it stays the caller's call.
func (s *ChatService) Escalate(ctx context.Context, caller *domain.Actor, sessionID string) (*domain.Ticket, error) {
	if caller == nil {
		return nil, errorutil.NewUnauthorized("sign in to open a ticket from this conversation")
	}
	session, err := s.loadOwnedSession(ctx, caller, sessionID)
	if err != nil {
		return nil, err
	}

	messages, err := s.store.ChatMessages().ListBySession(ctx, sessionID)
	if err != nil {
		return nil, errorutil.ToDomainError(err)
	}
	subject, body, ok := BuildHandoff(messages, s.cfg.HandoffSubjectMaxLen)
	if !ok {
		return nil, errorutil.NewConflict("conversation has no user messages to escalate", nil)
	}

	ticket, err := s.tickets.CreateTicket(ctx, caller.ID, TicketCreateInput{
		Subject:       subject,
		Body:          body,
		BodyPlain:     body,
		Priority:      domain.TicketPriorityNormal,
		Channel:       domain.ChannelChat,
		SystemComment: true,
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.Activities().Insert(ctx, &domain.Activity{
		TicketID: &ticket.ID,
		UserID:   &caller.ID,
		Details: domain.ChatEscalatedDetails{
			SessionID: session.ID,
			TicketID:  ticket.ID,
		},
	}); err != nil {
		return nil, errorutil.ToDomainError(err)
	}

	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventChatEscalated,
		TicketID: ticket.ID,
		Actor:    events.Actor{UserID: caller.ID, Role: caller.Role},
		Payload: events.ChatEscalatedPayload{
			ChatSessionID: session.ID,
			TicketNumber:  ticket.Number,
		},
	})
	return ticket, nil
}

// EscalationDue reports whether the escalation offer should be shown:
// the assistant has answered at least threshold times. Dismissal is
// caller-local and never persisted, so a reload recomputes this same
// signal. A non-positive threshold disables the offer.
func EscalationDue(messages []domain.ChatMessage, threshold int) bool {
	if threshold <= 0 {
		return false
	}
	count := 0
	for _, message := range messages {
		if message.Role == domain.ChatRoleAssistant {
			count++
		}
	}
	return count >= threshold
}

// BuildHandoff composes the ticket payload for a chat hand-off. The
// subject is the first user message truncated with an ellipsis marker;
// the body frames the role-labeled transcript in fixed delimiter lines
// and closes with a prompt for extra detail. ok is false when the
// conversation holds no user message to derive a subject from.
func BuildHandoff(messages []domain.ChatMessage, subjectMaxLen int) (subject, body string, ok bool) {
	var first string
	for _, message := range messages {
		if message.Role == domain.ChatRoleUser {
			first = message.Content
			break
		}
	}
	if strings.TrimSpace(first) == "" {
		return "", "", false
	}
	if subjectMaxLen <= 0 {
		subjectMaxLen = 80
	}
	subject = stringPreview(strings.Join(strings.Fields(first), " "), subjectMaxLen)

	var b strings.Builder
	b.WriteString(handoffTranscriptOpen)
	b.WriteString("\n")
	for _, message := range messages {
		b.WriteString(roleLabel(message.Role))
		b.WriteString(": ")
		b.WriteString(message.Content)
		b.WriteString("\n")
	}
	b.WriteString(handoffTranscriptClose)
	b.WriteString("\n\n")
	b.WriteString(handoffDetailPrompt)
	return subject, b.String(), true
}

func roleLabel(role domain.ChatRole) string {
	if role == domain.ChatRoleAssistant {
		return "Assistant"
	}
	return "User"
}

// openSession creates a session owned by the caller (anonymous when
// caller is nil) together with its chat_started activity.
func (s *ChatService) openSession(ctx context.Context, caller *domain.Actor) (*domain.ChatSession, error) {
	session := &domain.ChatSession{Status: domain.ChatStatusActive}
	if caller != nil {
		requesterID := caller.ID
		session.RequesterID = &requesterID
	}

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.ChatSessions().Create(ctx, session); err != nil {
			return err
		}
		return tx.Activities().Insert(ctx, &domain.Activity{
			UserID:  session.RequesterID,
			Details: domain.ChatStartedDetails{SessionID: session.ID},
		})
	})
	if err != nil {
		return nil, errorutil.ToDomainError(err)
	}
	return session, nil
}

func (s *ChatService) loadOwnedSession(ctx context.Context, caller *domain.Actor, sessionID string) (*domain.ChatSession, error) {
	return s.ownedSessionFrom(ctx, s.store, caller, sessionID)
}

func (s *ChatService) ownedSessionFrom(ctx context.Context, store repository.Store, caller *domain.Actor, sessionID string) (*domain.ChatSession, error) {
	session, err := store.ChatSessions().GetByID(ctx, sessionID)
	if err != nil {
		return nil, errorutil.ToDomainError(notFoundIfNoRows(err, "chat session"))
	}
	callerID := ""
	if caller != nil {
		callerID = caller.ID
	}
	if !session.OwnedBy(callerID) {
		return nil, errorutil.NewNotFound("chat session", nil)
	}
	return session, nil
}

// generate invokes the external generator under the configured timeout.
func (s *ChatService) generate(ctx context.Context, history []domain.ChatMessage) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, s.cfg.GenerationTimeout())
	defer cancel()

	reply, err := s.generator.Generate(genCtx, toGeneratorHistory(history))
	if err != nil {
		outcome := "failed"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(genCtx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
		}
		s.metrics.RecordGeneration(outcome)
		return "", err
	}
	s.metrics.RecordGeneration("ok")
	return reply, nil
}

func toGeneratorHistory(messages []domain.ChatMessage) []ai.Message {
	history := make([]ai.Message, 0, len(messages))
	for _, message := range messages {
		role := "user"
		if message.Role == domain.ChatRoleAssistant {
			role = "assistant"
		}
		history = append(history, ai.Message{Role: role, Content: message.Content})
	}
	return history
}
