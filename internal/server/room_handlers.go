package server

import (
	"courtyard/internal/models"

	"github.com/gofiber/fiber/v2"
)

// RoomResponse augments a room with the caller-facing display name: a DM is
// titled after the other participant, a group after its own name.
type RoomResponse struct {
	*models.Room
	DisplayName string `json:"display_name"`
}

func roomResponse(room *models.Room, viewerID uint) RoomResponse {
	resp := RoomResponse{Room: room, DisplayName: room.Name}
	if room.Kind == models.RoomDirect {
		for _, m := range room.Members {
			if m.ID != viewerID {
				resp.DisplayName = m.DisplayName
				break
			}
		}
	}
	return resp
}

// ListRooms handles GET /api/rooms
func (s *Server) ListRooms(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := actorID(c)

	rooms, err := s.roomSvc.ListRooms(ctx, userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	out := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, roomResponse(room, userID))
	}
	return c.JSON(out)
}

// GetRoom handles GET /api/rooms/:id
func (s *Server) GetRoom(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := actorID(c)
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	room, err := s.roomSvc.GetRoomForUser(ctx, roomID, userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(roomResponse(room, userID))
}

// ResolveDirectRoom handles POST /api/rooms/direct
func (s *Server) ResolveDirectRoom(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := actorID(c)

	var req struct {
		OtherUserID uint `json:"other_user_id"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	room, err := s.roomSvc.ResolveDirect(ctx, userID, req.OtherUserID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(roomResponse(room, userID))
}

// ReconcileGroupRoom handles POST /api/rooms/group. Creating or reshaping a
// named group is a staff operation.
func (s *Server) ReconcileGroupRoom(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := actorID(c)

	if role := actorRole(c); role != models.RoleAdmin && role != models.RoleSecurity {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Only staff can manage group rooms"))
	}

	var req struct {
		Name      string `json:"name"`
		MemberIDs []uint `json:"member_ids"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	room, err := s.roomSvc.ReconcileGroup(ctx, req.Name, req.MemberIDs)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(roomResponse(room, userID))
}

// ReconcileCommunityRoom handles POST /api/rooms/community. Any member may
// trigger it; clients do so whenever the community room is missing from their
// listing, which heals drift after move-ins and move-outs.
func (s *Server) ReconcileCommunityRoom(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := actorID(c)

	room, err := s.roomSvc.ReconcileCommunity(ctx)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(roomResponse(room, userID))
}
