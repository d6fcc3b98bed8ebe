package repository

import (
	"context"
	"errors"

	"courtyard/internal/models"

	"gorm.io/gorm"
)

// AttachmentRepository defines storage operations for attachment descriptors.
type AttachmentRepository interface {
	Create(ctx context.Context, att *models.Attachment) error
	GetByID(ctx context.Context, id uint) (*models.Attachment, error)
}

type attachmentRepository struct {
	db *gorm.DB
}

// NewAttachmentRepository returns a repository implementation for attachment metadata.
func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepository{db: db}
}

func (r *attachmentRepository) Create(ctx context.Context, att *models.Attachment) error {
	return r.db.WithContext(ctx).Create(att).Error
}

func (r *attachmentRepository) GetByID(ctx context.Context, id uint) (*models.Attachment, error) {
	var att models.Attachment
	if err := r.db.WithContext(ctx).First(&att, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Attachment", id)
		}
		return nil, err
	}
	return &att, nil
}
