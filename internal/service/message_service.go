package service

import (
	"context"
	"log/slog"
	"time"

	"courtyard/internal/middleware"
	"courtyard/internal/models"
	"courtyard/internal/observability"
	"courtyard/internal/repository"
)

const (
	maxMessageBodyLen = 10000 // 10K characters
	defaultPageSize   = 50
	maxPageSize       = 100
)

// MessageService provides the per-room message log business logic.
type MessageService struct {
	msgRepo  repository.MessageRepository
	roomRepo repository.RoomRepository
	attRepo  repository.AttachmentRepository
}

// NewMessageService returns a new MessageService.
func NewMessageService(
	msgRepo repository.MessageRepository,
	roomRepo repository.RoomRepository,
	attRepo repository.AttachmentRepository,
) *MessageService {
	return &MessageService{
		msgRepo:  msgRepo,
		roomRepo: roomRepo,
		attRepo:  attRepo,
	}
}

// AppendInput is the input for appending a message to a room.
type AppendInput struct {
	RoomID       uint
	SenderID     uint
	SenderName   string
	Body         string
	AttachmentID *uint
}

// ListInput is the input for one page of room history.
type ListInput struct {
	RoomID   uint
	UserID   uint
	Before   *time.Time
	BeforeID uint
	Limit    int
}

// Append appends a message to the room's log. A message carries text, an
// attachment, or both; an empty message is rejected.
func (s *MessageService) Append(ctx context.Context, in AppendInput) (*models.Message, error) {
	if in.Body == "" && in.AttachmentID == nil {
		return nil, models.NewValidationError("Message requires text or an attachment")
	}
	if len(in.Body) > maxMessageBodyLen {
		return nil, models.NewValidationError("Message text too long (max 10000 characters)")
	}

	room, err := s.roomRepo.GetByID(ctx, in.RoomID)
	if err != nil {
		return nil, err
	}
	if !room.HasMember(in.SenderID) {
		return nil, models.NewForbiddenError("You are not a member of this room")
	}

	if in.AttachmentID != nil {
		if _, err := s.attRepo.GetByID(ctx, *in.AttachmentID); err != nil {
			return nil, err
		}
	}

	msg := &models.Message{
		RoomID:            in.RoomID,
		SenderID:          in.SenderID,
		SenderDisplayName: in.SenderName,
		Body:              in.Body,
		AttachmentID:      in.AttachmentID,
	}
	if err := s.msgRepo.Create(ctx, msg); err != nil {
		return nil, models.NewTransientError(err)
	}

	// Last-writer-wins is fine here: concurrent appends all move the
	// timestamp forward.
	if err := s.roomRepo.TouchLastMessageAt(ctx, room.ID, msg.CreatedAt); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to bump room activity",
			slog.Uint64("room_id", uint64(room.ID)), slog.Any("error", err))
	}
	observability.MessagesAppended.WithLabelValues(string(room.Kind)).Inc()

	return s.msgRepo.GetByID(ctx, msg.ID)
}

// List returns one page of the room's history in ascending chronological
// order. A nil cursor yields the newest page; the cursor for the next older
// page is the (CreatedAt, ID) of the first message returned. A short page
// means the history is exhausted.
func (s *MessageService) List(ctx context.Context, in ListInput) ([]*models.Message, error) {
	room, err := s.roomRepo.GetByID(ctx, in.RoomID)
	if err != nil {
		return nil, err
	}
	if !room.HasMember(in.UserID) {
		return nil, models.NewForbiddenError("You are not a member of this room")
	}

	limit := in.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	return s.msgRepo.ListBefore(ctx, in.RoomID, in.Before, in.BeforeID, limit)
}

// Edit replaces the text of the actor's own message. Deleted messages cannot
// be edited.
func (s *MessageService) Edit(ctx context.Context, messageID, actorID uint, body string) (*models.Message, error) {
	if body == "" {
		return nil, models.NewValidationError("Message text is required")
	}
	if len(body) > maxMessageBodyLen {
		return nil, models.NewValidationError("Message text too long (max 10000 characters)")
	}

	msg, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != actorID {
		return nil, models.NewForbiddenError("Only the sender can edit a message")
	}
	if msg.Deleted() {
		return nil, models.NewValidationError("Cannot edit a deleted message")
	}

	now := time.Now()
	msg.Body = body
	msg.EditedAt = &now
	if err := s.msgRepo.SaveEdits(ctx, msg); err != nil {
		return nil, models.NewTransientError(err)
	}
	return s.msgRepo.GetByID(ctx, messageID)
}

// Delete tombstones a message. The row keeps its place in history; its text
// is cleared. The sender may delete their own messages, admins anyone's.
func (s *MessageService) Delete(ctx context.Context, messageID, actorID uint, actorRole models.Role) (*models.Message, error) {
	msg, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != actorID && actorRole != models.RoleAdmin {
		return nil, models.NewForbiddenError("Only the sender or an admin can delete a message")
	}
	if msg.Deleted() {
		return msg, nil
	}

	now := time.Now()
	msg.Body = ""
	msg.DeletedAt = &now
	if err := s.msgRepo.SaveEdits(ctx, msg); err != nil {
		return nil, models.NewTransientError(err)
	}
	return s.msgRepo.GetByID(ctx, messageID)
}
