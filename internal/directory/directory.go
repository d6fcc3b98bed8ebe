// Package directory exposes the community roster consumed by group
// reconciliation: the authoritative set of residents and staff eligible for
// the distinguished all-members room.
package directory

import (
	"context"

	"courtyard/internal/models"

	"gorm.io/gorm"
)

// Directory lists the participant ids eligible for the community group.
// Reconciliation calls this immediately before every run so membership always
// converges on a fresh snapshot.
type Directory interface {
	Roster(ctx context.Context) ([]uint, error)
}

type gormDirectory struct {
	db *gorm.DB
}

// NewGormDirectory returns a Directory backed by the users table.
func NewGormDirectory(db *gorm.DB) Directory {
	return &gormDirectory{db: db}
}

func (d *gormDirectory) Roster(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := d.db.WithContext(ctx).
		Model(&models.User{}).
		Where("active = ?", true).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}
