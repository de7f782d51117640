package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/supportdesk-io/supportdesk/internal/api/dto"
	"github.com/supportdesk-io/supportdesk/internal/auth"
	"github.com/supportdesk-io/supportdesk/internal/service"
	"github.com/supportdesk-io/supportdesk/pkg/errorutil"
)

// ActivitiesHandler exposes the ticket audit trail to staff.
type ActivitiesHandler struct {
	tickets *service.TicketService
}

// NewActivitiesHandler constructs handler.
func NewActivitiesHandler(ticketService *service.TicketService) *ActivitiesHandler {
	return &ActivitiesHandler{tickets: ticketService}
}

// ListByTicket GET /activities/ticket/:ticketId.
func (h *ActivitiesHandler) ListByTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return errorutil.NewUnauthorized("authentication required")
	}
	ticketID, err := pathUUID(c, "ticketId")
	if err != nil {
		return err
	}
	limit := parseInt(c.Query("limit"), 50)
	offset := (parseInt(c.Query("page"), 1) - 1) * limit

	activities, err := h.tickets.ListTicketActivity(c.UserContext(), principal.Actor(), ticketID, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.ActivityResponse, 0, len(activities))
	for i := range activities {
		items = append(items, dto.ActivityResponse{
			ID:        activities[i].ID,
			TicketID:  activities[i].TicketID,
			UserID:    activities[i].UserID,
			Action:    activities[i].Action,
			Details:   activities[i].Details,
			CreatedAt: activities[i].CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}
