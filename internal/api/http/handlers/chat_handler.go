package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/supportdesk-io/supportdesk/internal/api/dto"
	"github.com/supportdesk-io/supportdesk/internal/auth"
	"github.com/supportdesk-io/supportdesk/internal/domain"
	"github.com/supportdesk-io/supportdesk/internal/service"
	"github.com/supportdesk-io/supportdesk/pkg/errorutil"
)

// ChatHandler exposes the assistant chat widget endpoints. Anonymous
// callers are allowed; ownership checks live in the service.
type ChatHandler struct {
	chat *service.ChatService
}

// NewChatHandler constructs handler.
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chatService}
}

// Send POST /chat.
func (h *ChatHandler) Send(c *fiber.Ctx) error {
	var req dto.ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}
	if req.SessionID != nil {
		if _, err := uuid.Parse(*req.SessionID); err != nil {
			return errorutil.NewValidationError("invalid identifier", map[string]any{"sessionId": "must be a UUID"})
		}
	}

	result, err := h.chat.SendMessage(c.UserContext(), optionalActor(c), service.SendMessageInput{
		SessionID: req.SessionID,
		Message:   req.Message,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ChatResponse{
		SessionID:           result.SessionID,
		MessageID:           result.MessageID,
		Response:            result.Response,
		EscalationSuggested: result.EscalationSuggested,
	}})
}

// Feedback POST /chat/sessions/:id/feedback.
func (h *ChatHandler) Feedback(c *fiber.Ctx) error {
	sessionID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var req dto.ChatFeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}
	if _, err := uuid.Parse(req.MessageID); err != nil {
		return errorutil.NewValidationError("invalid identifier", map[string]any{"messageId": "must be a UUID"})
	}
	if req.WasHelpful == nil {
		return errorutil.NewValidationError("wasHelpful is required", map[string]any{"wasHelpful": "required"})
	}

	if err := h.chat.GiveFeedback(c.UserContext(), optionalActor(c), sessionID, req.MessageID, *req.WasHelpful); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"ok": true}})
}

// Regenerate POST /chat/sessions/:id/regenerate.
func (h *ChatHandler) Regenerate(c *fiber.Ctx) error {
	sessionID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var req dto.RegenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}
	if _, err := uuid.Parse(req.MessageID); err != nil {
		return errorutil.NewValidationError("invalid identifier", map[string]any{"messageId": "must be a UUID"})
	}

	response, err := h.chat.Regenerate(c.UserContext(), optionalActor(c), sessionID, req.MessageID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.RegenerateResponse{Response: response}})
}

// End POST /chat/sessions/:id/end.
func (h *ChatHandler) End(c *fiber.Ctx) error {
	sessionID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var req dto.EndChatRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return errorutil.NewValidationError("invalid payload", nil)
		}
	}

	session, err := h.chat.EndSession(c.UserContext(), optionalActor(c), sessionID, req.Resolved)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": chatSessionResponse(session, nil, false)})
}

// GetSession GET /chat/sessions/:id.
func (h *ChatHandler) GetSession(c *fiber.Ctx) error {
	sessionID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	session, messages, escalationSuggested, err := h.chat.GetSession(c.UserContext(), optionalActor(c), sessionID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": chatSessionResponse(session, messages, escalationSuggested)})
}

// Escalate POST /chat/sessions/:id/escalate.
func (h *ChatHandler) Escalate(c *fiber.Ctx) error {
	sessionID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	ticket, err := h.chat.Escalate(c.UserContext(), optionalActor(c), sessionID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// optionalActor resolves the caller when one is authenticated.
func optionalActor(c *fiber.Ctx) *domain.Actor {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return nil
	}
	actor := principal.Actor()
	return &actor
}

func chatSessionResponse(session *domain.ChatSession, messages []domain.ChatMessage, escalationSuggested bool) dto.ChatSessionResponse {
	rendered := make([]dto.ChatMessageResponse, 0, len(messages))
	for i := range messages {
		rendered = append(rendered, dto.ChatMessageResponse{
			ID:         messages[i].ID,
			Role:       messages[i].Role,
			Content:    messages[i].Content,
			WasHelpful: messages[i].WasHelpful,
			CreatedAt:  messages[i].CreatedAt,
		})
	}
	return dto.ChatSessionResponse{
		ID:                  session.ID,
		Status:              session.Status,
		Resolved:            session.Resolved,
		CreatedAt:           session.CreatedAt,
		EndedAt:             session.EndedAt,
		Messages:            rendered,
		EscalationSuggested: escalationSuggested,
	}
}
