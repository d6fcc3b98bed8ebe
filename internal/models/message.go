package models

import "time"

// Message is one entry in a room's append-only log. Rows are immutable after
// creation except for Body/EditedAt (edit) and DeletedAt (soft delete).
// DeletedAt is a plain column rather than gorm.DeletedAt on purpose: deleted
// messages must keep their slot in history as tombstones, not vanish from
// queries.
type Message struct {
	ID                uint        `gorm:"primaryKey" json:"id"`
	RoomID            uint        `gorm:"not null;index:idx_messages_room_created,priority:1" json:"room_id"`
	Room              *Room       `gorm:"foreignKey:RoomID" json:"-"`
	SenderID          uint        `gorm:"not null;index" json:"sender_id"`
	SenderDisplayName string      `gorm:"size:120;not null" json:"sender_display_name"`
	Body              string      `gorm:"type:text" json:"text,omitempty"`
	AttachmentID      *uint       `json:"-"`
	Attachment        *Attachment `gorm:"foreignKey:AttachmentID" json:"media,omitempty"`
	CreatedAt         time.Time   `gorm:"index:idx_messages_room_created,priority:2" json:"created_at"`
	EditedAt          *time.Time  `json:"edited_at,omitempty"`
	DeletedAt         *time.Time  `json:"deleted_at,omitempty"`
}

// Deleted reports whether the message has been tombstoned.
func (m *Message) Deleted() bool {
	return m.DeletedAt != nil
}
