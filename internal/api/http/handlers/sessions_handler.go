package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/supportdesk-io/supportdesk/internal/api/dto"
	"github.com/supportdesk-io/supportdesk/internal/auth"
	"github.com/supportdesk-io/supportdesk/internal/domain"
	"github.com/supportdesk-io/supportdesk/internal/service"
	"github.com/supportdesk-io/supportdesk/pkg/errorutil"
)

// SessionsHandler manages agent work sessions and presence.
type SessionsHandler struct {
	sessions *service.SessionService
}

// NewSessionsHandler constructs handler.
func NewSessionsHandler(sessionService *service.SessionService) *SessionsHandler {
	return &SessionsHandler{sessions: sessionService}
}

// StartSession POST /sessions/start.
func (h *SessionsHandler) StartSession(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return errorutil.NewUnauthorized("authentication required")
	}
	var req dto.StartSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return errorutil.NewValidationError("invalid payload", nil)
		}
	}
	if req.IPAddress == "" {
		req.IPAddress = c.IP()
	}
	if req.UserAgent == "" {
		req.UserAgent = c.Get(fiber.HeaderUserAgent)
	}

	session, err := h.sessions.StartSession(c.UserContext(), principal.User.ID, service.SessionStartInput{
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": sessionResponse(session)})
}

// EndSession POST /sessions/end/:sessionId.
func (h *SessionsHandler) EndSession(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return errorutil.NewUnauthorized("authentication required")
	}
	sessionID, err := pathUUID(c, "sessionId")
	if err != nil {
		return err
	}
	session, err := h.sessions.EndSession(c.UserContext(), principal.User.ID, sessionID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": sessionResponse(session)})
}

// Current GET /sessions/current.
func (h *SessionsHandler) Current(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return errorutil.NewUnauthorized("authentication required")
	}
	session, err := h.sessions.CurrentSession(c.UserContext(), principal.User.ID)
	if err != nil {
		return err
	}
	if session == nil {
		return c.JSON(fiber.Map{"data": nil})
	}
	return c.JSON(fiber.Map{"data": sessionResponse(session)})
}

// Presence GET /sessions/presence/:agentId.
func (h *SessionsHandler) Presence(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return errorutil.NewUnauthorized("authentication required")
	}
	agentID, err := pathUUID(c, "agentId")
	if err != nil {
		return err
	}
	online, err := h.sessions.IsOnline(c.UserContext(), agentID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.PresenceResponse{AgentID: agentID, Online: online}})
}

func sessionResponse(session *domain.AgentSession) dto.SessionResponse {
	return dto.SessionResponse{
		ID:         session.ID,
		AgentID:    session.AgentID,
		LoginAt:    session.LoginAt,
		LogoutAt:   session.LogoutAt,
		Duration:   session.Duration,
		ReplyCount: session.ReplyCount,
		IPAddress:  session.IPAddress,
		UserAgent:  session.UserAgent,
	}
}
