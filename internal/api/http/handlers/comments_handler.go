package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/supportdesk-io/supportdesk/internal/api/dto"
	"github.com/supportdesk-io/supportdesk/internal/auth"
	"github.com/supportdesk-io/supportdesk/internal/domain"
	"github.com/supportdesk-io/supportdesk/internal/repository"
	"github.com/supportdesk-io/supportdesk/internal/service"
	"github.com/supportdesk-io/supportdesk/pkg/errorutil"
)

// CommentsHandler manages the ticket comment thread.
type CommentsHandler struct {
	tickets *service.TicketService
	users   repository.UserRepository
}

// NewCommentsHandler constructs handler.
func NewCommentsHandler(ticketService *service.TicketService, users repository.UserRepository) *CommentsHandler {
	return &CommentsHandler{tickets: ticketService, users: users}
}

// CreateComment POST /comments.
func (h *CommentsHandler) CreateComment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return errorutil.NewUnauthorized("authentication required")
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}
	if _, err := uuid.Parse(req.TicketID); err != nil {
		return errorutil.NewValidationError("invalid identifier", map[string]any{"ticketId": "must be a UUID"})
	}

	comment, err := h.tickets.AddComment(c.UserContext(), principal.Actor(), service.CommentCreateInput{
		TicketID:   req.TicketID,
		Body:       req.Body,
		BodyPlain:  req.BodyPlain,
		IsInternal: req.IsInternal,
	})
	if err != nil {
		return err
	}

	// The author is the caller; no lookup needed.
	authors := map[string]dto.AuthorSummary{
		principal.User.ID: {ID: principal.User.ID, Name: principal.User.Name, Role: principal.User.Role},
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": commentResponse(comment, authors)})
}

// ListByTicket GET /comments/ticket/:ticketId.
func (h *CommentsHandler) ListByTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return errorutil.NewUnauthorized("authentication required")
	}
	ticketID, err := pathUUID(c, "ticketId")
	if err != nil {
		return err
	}
	comments, err := h.tickets.ReadComments(c.UserContext(), principal.Actor(), ticketID)
	if err != nil {
		return err
	}
	authors, err := authorSummaries(c.UserContext(), h.users, comments)
	if err != nil {
		return err
	}
	items := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		items = append(items, commentResponse(&comments[i], authors))
	}
	return c.JSON(fiber.Map{"data": items})
}

// authorSummaries resolves the distinct comment authors in one query.
func authorSummaries(ctx context.Context, users repository.UserRepository, comments []domain.Comment) (map[string]dto.AuthorSummary, error) {
	ids := make([]string, 0, len(comments))
	seen := make(map[string]struct{}, len(comments))
	for i := range comments {
		id := comments[i].AuthorID
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	authors := make(map[string]dto.AuthorSummary, len(ids))
	if len(ids) == 0 {
		return authors, nil
	}
	resolved, err := users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, errorutil.ToDomainError(err)
	}
	for i := range resolved {
		authors[resolved[i].ID] = dto.AuthorSummary{
			ID:   resolved[i].ID,
			Name: resolved[i].Name,
			Role: resolved[i].Role,
		}
	}
	return authors, nil
}

func commentResponse(comment *domain.Comment, authors map[string]dto.AuthorSummary) dto.CommentResponse {
	resp := dto.CommentResponse{
		ID:         comment.ID,
		TicketID:   comment.TicketID,
		Body:       comment.Body,
		BodyPlain:  comment.BodyPlain,
		IsInternal: comment.IsInternal,
		IsSystem:   comment.IsSystem,
		Channel:    comment.Channel,
		CreatedAt:  comment.CreatedAt,
	}
	if author, ok := authors[comment.AuthorID]; ok {
		resp.Author = &author
	}
	return resp
}
