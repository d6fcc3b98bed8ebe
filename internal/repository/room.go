package repository

import (
	"context"
	"errors"
	"time"

	"courtyard/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoomRepository defines storage operations for rooms and their membership.
type RoomRepository interface {
	// CreateIdempotent inserts the room unless a row with the same RoomKey
	// already exists, in which case the existing row is loaded into room.
	// Returns true when a new row was inserted.
	CreateIdempotent(ctx context.Context, room *models.Room) (bool, error)
	GetByID(ctx context.Context, id uint) (*models.Room, error)
	FindByKey(ctx context.Context, key string) (*models.Room, error)
	AddMembers(ctx context.Context, roomID uint, userIDs []uint) error
	ReplaceMembers(ctx context.Context, roomID uint, userIDs []uint) error
	ListForUser(ctx context.Context, userID uint) ([]*models.Room, error)
	TouchLastMessageAt(ctx context.Context, roomID uint, at time.Time) error
}

type roomRepository struct {
	db *gorm.DB
}

// NewRoomRepository returns a repository implementation for rooms.
func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepository{db: db}
}

func (r *roomRepository) CreateIdempotent(ctx context.Context, room *models.Room) (bool, error) {
	// A duplicate-key insert collapses to a lookup: two clients resolving the
	// same pair concurrently both end up with the same row.
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_key"}},
			DoNothing: true,
		}).
		Create(room)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 && room.ID != 0 {
		return true, nil
	}

	existing, err := r.FindByKey(ctx, room.RoomKey)
	if err != nil {
		return false, err
	}
	*room = *existing
	return false, nil
}

func (r *roomRepository) GetByID(ctx context.Context, id uint) (*models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).
		Preload("Members").
		First(&room, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Room", id)
		}
		return nil, err
	}
	return &room, nil
}

func (r *roomRepository) FindByKey(ctx context.Context, key string) (*models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).
		Preload("Members").
		Where("room_key = ?", key).
		First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Room", key)
		}
		return nil, err
	}
	return &room, nil
}

func (r *roomRepository) AddMembers(ctx context.Context, roomID uint, userIDs []uint) error {
	if len(userIDs) == 0 {
		return nil
	}
	members := make([]models.RoomMember, 0, len(userIDs))
	for _, id := range dedupIDs(userIDs) {
		members = append(members, models.RoomMember{RoomID: roomID, UserID: id})
	}
	// OnConflict keeps repeated adds idempotent.
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&members).Error
}

func (r *roomRepository) ReplaceMembers(ctx context.Context, roomID uint, userIDs []uint) error {
	desired := dedupIDs(userIDs)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		del := tx.Where("room_id = ?", roomID)
		if len(desired) > 0 {
			del = del.Where("user_id NOT IN ?", desired)
		}
		if err := del.Delete(&models.RoomMember{}).Error; err != nil {
			return err
		}
		if len(desired) == 0 {
			return nil
		}
		members := make([]models.RoomMember, 0, len(desired))
		for _, id := range desired {
			members = append(members, models.RoomMember{RoomID: roomID, UserID: id})
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&members).Error
	})
}

func (r *roomRepository) ListForUser(ctx context.Context, userID uint) ([]*models.Room, error) {
	var rooms []*models.Room
	err := r.db.WithContext(ctx).
		Joins("JOIN room_members rm ON rooms.id = rm.room_id").
		Where("rm.user_id = ?", userID).
		Preload("Members").
		// Rooms with no messages sort last, in creation order.
		Order("CASE WHEN rooms.last_message_at IS NULL THEN 1 ELSE 0 END, rooms.last_message_at DESC, rooms.created_at ASC, rooms.id ASC").
		Find(&rooms).Error
	return rooms, err
}

func (r *roomRepository) TouchLastMessageAt(ctx context.Context, roomID uint, at time.Time) error {
	// Read-modify-write is intentionally avoided: last writer wins, the value
	// only drives sort order and unread heuristics.
	return r.db.WithContext(ctx).
		Model(&models.Room{}).
		Where("id = ?", roomID).
		Update("last_message_at", at).Error
}

func dedupIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
