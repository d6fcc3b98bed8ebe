package server

import (
	"time"

	"courtyard/internal/models"
	"courtyard/internal/service"

	"github.com/gofiber/fiber/v2"
)

// MessagesPage is one ascending page of room history. NextBefore and
// NextBeforeID form the cursor for the next older page; they are omitted
// when the history is exhausted. NextBeforeID breaks ties between messages
// sharing the cursor timestamp.
type MessagesPage struct {
	Messages     []*models.Message `json:"messages"`
	NextBefore   *string           `json:"next_before,omitempty"`
	NextBeforeID *uint             `json:"next_before_id,omitempty"`
}

// GetMessages handles GET /api/rooms/:id/messages
func (s *Server) GetMessages(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := actorID(c)
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	before, err := s.parseBefore(c)
	if err != nil {
		return nil
	}
	beforeID := uint(c.QueryInt("before_id", 0))
	limit := c.QueryInt("limit", 0)

	messages, err := s.messageSvc.List(ctx, service.ListInput{
		RoomID:   roomID,
		UserID:   userID,
		Before:   before,
		BeforeID: beforeID,
		Limit:    limit,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	page := MessagesPage{Messages: messages}
	if len(messages) > 0 {
		// The oldest entry of this page anchors the next older page.
		cursor := messages[0].CreatedAt.Format(time.RFC3339Nano)
		cursorID := messages[0].ID
		page.NextBefore = &cursor
		page.NextBeforeID = &cursorID
	}
	return c.JSON(page)
}

// AppendMessage handles POST /api/rooms/:id/messages
func (s *Server) AppendMessage(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := actorID(c)
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Text         string `json:"text"`
		AttachmentID *uint  `json:"attachment_id,omitempty"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	msg, err := s.messageSvc.Append(ctx, service.AppendInput{
		RoomID:       roomID,
		SenderID:     userID,
		SenderName:   actorName(c),
		Body:         req.Text,
		AttachmentID: req.AttachmentID,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// EditMessage handles PUT /api/messages/:id
func (s *Server) EditMessage(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := actorID(c)
	msgID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Text string `json:"text"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	msg, err := s.messageSvc.Edit(ctx, msgID, userID, req.Text)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(msg)
}

// DeleteMessage handles DELETE /api/messages/:id
func (s *Server) DeleteMessage(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := actorID(c)
	msgID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	msg, err := s.messageSvc.Delete(ctx, msgID, userID, actorRole(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(msg)
}
