package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/supportdesk-io/supportdesk/internal/api/dto"
	"github.com/supportdesk-io/supportdesk/internal/auth"
	"github.com/supportdesk-io/supportdesk/internal/domain"
	"github.com/supportdesk-io/supportdesk/internal/repository"
	"github.com/supportdesk-io/supportdesk/internal/service"
	"github.com/supportdesk-io/supportdesk/pkg/errorutil"
)

// TicketsHandler manages ticket endpoints for requesters and staff.
type TicketsHandler struct {
	tickets *service.TicketService
	users   repository.UserRepository
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, users repository.UserRepository) *TicketsHandler {
	return &TicketsHandler{tickets: ticketService, users: users}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return errorutil.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}

	input := service.TicketCreateInput{
		Subject:   req.Subject,
		Body:      req.Body,
		BodyPlain: req.BodyPlain,
		Priority:  req.Priority,
		Channel:   req.Channel,
		FormID:    req.FormID,
	}
	ticket, err := h.tickets.CreateTicket(c.UserContext(), principal.User.ID, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return errorutil.NewUnauthorized("authentication required")
	}
	tickets, err := h.tickets.ListTickets(c.UserContext(), principal.Actor(), parseTicketListQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return errorutil.NewUnauthorized("authentication required")
	}
	ticketID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	ticket, comments, err := h.tickets.GetTicket(c.UserContext(), principal.Actor(), ticketID)
	if err != nil {
		return err
	}
	rendered, err := h.commentResponses(c.UserContext(), comments)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketDetailResponse{
		TicketResponse: ticketResponse(ticket),
		Comments:       rendered,
	}})
}

// UpdateStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return errorutil.NewUnauthorized("authentication required")
	}
	ticketID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.UpdateStatus(c.UserContext(), principal.Actor(), ticketID, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// UpdateAssignee PATCH /tickets/:id/assignee.
func (h *TicketsHandler) UpdateAssignee(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return errorutil.NewUnauthorized("authentication required")
	}
	ticketID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateAssigneeRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}
	if req.AssigneeID != nil {
		if _, err := uuid.Parse(*req.AssigneeID); err != nil {
			return errorutil.NewValidationError("invalid identifier", map[string]any{"assigneeId": "must be a UUID"})
		}
	}
	ticket, err := h.tickets.AssignTicket(c.UserContext(), principal.Actor(), ticketID, req.AssigneeID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// commentResponses renders comments with resolved author summaries.
func (h *TicketsHandler) commentResponses(ctx context.Context, comments []domain.Comment) ([]dto.CommentResponse, error) {
	authors, err := authorSummaries(ctx, h.users, comments)
	if err != nil {
		return nil, err
	}
	items := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		items = append(items, commentResponse(&comments[i], authors))
	}
	return items, nil
}

func parseTicketListQuery(c *fiber.Ctx) service.TicketListInput {
	input := service.TicketListInput{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			input.Statuses = append(input.Statuses, domain.TicketStatus(strings.ToUpper(strings.TrimSpace(part))))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			input.Priorities = append(input.Priorities, domain.TicketPriority(strings.ToUpper(strings.TrimSpace(part))))
		}
	}
	if assignee := c.Query("assignee_id"); assignee != "" {
		input.AssigneeID = &assignee
	}
	if q := c.Query("q"); q != "" {
		input.SearchTerm = &q
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	input.Offset = (page - 1) * pageSize
	input.Limit = pageSize
	return input
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

// pathUUID validates that a path parameter is a well-formed UUID.
func pathUUID(c *fiber.Ctx, name string) (string, error) {
	value := c.Params(name)
	if _, err := uuid.Parse(value); err != nil {
		return "", errorutil.NewValidationError("invalid identifier", map[string]any{name: "must be a UUID"})
	}
	return value, nil
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:              ticket.ID,
		Number:          ticket.Number,
		RequesterID:     ticket.RequesterID,
		AssigneeID:      ticket.AssigneeID,
		FormID:          ticket.FormID,
		Subject:         ticket.Subject,
		Status:          ticket.Status,
		Priority:        ticket.Priority,
		Channel:         ticket.Channel,
		CreatedAt:       ticket.CreatedAt,
		UpdatedAt:       ticket.UpdatedAt,
		FirstResponseAt: ticket.FirstResponseAt,
		SolvedAt:        ticket.SolvedAt,
	}
}
