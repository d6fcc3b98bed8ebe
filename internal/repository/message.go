package repository

import (
	"context"
	"errors"
	"time"

	"courtyard/internal/models"

	"gorm.io/gorm"
)

// MessageRepository defines storage operations for the per-room message log.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	// ListBefore returns up to limit messages of the room strictly older than
	// the (before, beforeID) position (all newest when before is nil), in
	// ascending chronological order. beforeID disambiguates rows sharing the
	// cursor timestamp; zero means timestamp-only.
	ListBefore(ctx context.Context, roomID uint, before *time.Time, beforeID uint, limit int) ([]*models.Message, error)
	// SaveEdits persists the mutable fields only; sender, room and creation
	// time are immutable.
	SaveEdits(ctx context.Context, msg *models.Message) error
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository returns a repository implementation for messages.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *messageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	err := r.db.WithContext(ctx).
		Preload("Attachment").
		First(&msg, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Message", id)
		}
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) ListBefore(ctx context.Context, roomID uint, before *time.Time, beforeID uint, limit int) ([]*models.Message, error) {
	q := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Preload("Attachment")
	if before != nil {
		if beforeID > 0 {
			// Rows sharing the cursor timestamp are kept when their id is
			// smaller, so equal timestamps never drop across pages.
			q = q.Where("created_at < ? OR (created_at = ? AND id < ?)", *before, *before, beforeID)
		} else {
			q = q.Where("created_at < ?", *before)
		}
	}

	var messages []*models.Message
	// Fetch DESC to take the newest slice of the window, ties broken by id so
	// equal timestamps never straddle pages.
	err := q.Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// Reverse to chronological order (oldest of the page first) for
	// append-to-bottom rendering.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (r *messageRepository) SaveEdits(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ?", msg.ID).
		Updates(map[string]interface{}{
			"body":       msg.Body,
			"edited_at":  msg.EditedAt,
			"deleted_at": msg.DeletedAt,
		}).Error
}
