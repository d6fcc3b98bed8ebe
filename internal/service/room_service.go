// Package service provides application business logic (rooms, messages, attachments).
package service

import (
	"context"
	"log/slog"

	"courtyard/internal/directory"
	"courtyard/internal/middleware"
	"courtyard/internal/models"
	"courtyard/internal/observability"
	"courtyard/internal/repository"
)

// RoomService provides room resolution and membership business logic.
type RoomService struct {
	roomRepo      repository.RoomRepository
	directory     directory.Directory
	communityName string
}

// NewRoomService returns a new RoomService. dir may be nil when community
// reconciliation is not wired (tests exercising DMs only).
func NewRoomService(roomRepo repository.RoomRepository, dir directory.Directory, communityName string) *RoomService {
	return &RoomService{
		roomRepo:      roomRepo,
		directory:     dir,
		communityName: communityName,
	}
}

// ResolveDirect returns the single DM room for the unordered pair (userID,
// otherID), creating it on first use. Argument order never matters: both
// orderings map to the same row.
func (s *RoomService) ResolveDirect(ctx context.Context, userID, otherID uint) (*models.Room, error) {
	if userID == 0 || otherID == 0 {
		return nil, models.NewValidationError("Both participants are required")
	}
	if userID == otherID {
		return nil, models.NewValidationError("Cannot open a direct room with yourself")
	}

	room := &models.Room{
		Kind:    models.RoomDirect,
		RoomKey: models.DirectRoomKey(userID, otherID),
	}
	created, err := s.roomRepo.CreateIdempotent(ctx, room)
	if err != nil {
		return nil, models.NewTransientError(err)
	}
	if created {
		observability.RoomResolutions.WithLabelValues("direct", "created").Inc()
	} else {
		observability.RoomResolutions.WithLabelValues("direct", "existing").Inc()
	}
	// Unconditional so a retry converges even if an earlier attempt crashed
	// between creating the room and writing membership. The insert ignores
	// rows that already exist.
	if err := s.roomRepo.AddMembers(ctx, room.ID, []uint{userID, otherID}); err != nil {
		return nil, models.NewTransientError(err)
	}

	return s.roomRepo.GetByID(ctx, room.ID)
}

// ReconcileGroup ensures the named group exists and that its membership
// exactly equals memberIDs. Members absent from the set are dropped, missing
// ones added; repeating the same set is a no-op. An empty set clears the room.
func (s *RoomService) ReconcileGroup(ctx context.Context, name string, memberIDs []uint) (*models.Room, error) {
	if name == "" {
		return nil, models.NewValidationError("Group name is required")
	}

	room := &models.Room{
		Kind:    models.RoomGroup,
		Name:    name,
		RoomKey: models.GroupRoomKey(name),
	}
	created, err := s.roomRepo.CreateIdempotent(ctx, room)
	if err != nil {
		return nil, models.NewTransientError(err)
	}
	outcome := "existing"
	if created {
		outcome = "created"
	}
	observability.RoomResolutions.WithLabelValues("group", outcome).Inc()

	if err := s.roomRepo.ReplaceMembers(ctx, room.ID, memberIDs); err != nil {
		return nil, models.NewTransientError(err)
	}

	return s.roomRepo.GetByID(ctx, room.ID)
}

// ReconcileCommunity aligns the community-wide group with the current
// resident roster. Safe to call repeatedly; clients invoke it whenever the
// group is missing from their room list.
func (s *RoomService) ReconcileCommunity(ctx context.Context) (*models.Room, error) {
	if s.directory == nil {
		return nil, models.NewInternalError(nil)
	}
	roster, err := s.directory.Roster(ctx)
	if err != nil {
		return nil, models.NewTransientError(err)
	}

	room, err := s.ReconcileGroup(ctx, s.communityName, roster)
	if err != nil {
		return nil, err
	}
	observability.GroupReconciliations.Inc()
	middleware.Logger.InfoContext(ctx, "community group reconciled",
		slog.Uint64("room_id", uint64(room.ID)),
		slog.Int("members", len(roster)),
	)
	return room, nil
}

// GetRoomForUser returns the room if the user is a member.
func (s *RoomService) GetRoomForUser(ctx context.Context, roomID, userID uint) (*models.Room, error) {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasMember(userID) {
		return nil, models.NewForbiddenError("You are not a member of this room")
	}
	return room, nil
}

// ListRooms returns the user's rooms, most recently active first. Rooms that
// have never seen a message sort after all active ones, oldest room first.
func (s *RoomService) ListRooms(ctx context.Context, userID uint) ([]*models.Room, error) {
	return s.roomRepo.ListForUser(ctx, userID)
}
