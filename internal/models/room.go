package models

import (
	"fmt"
	"time"
)

// RoomKind distinguishes pairwise chats from named groups.
type RoomKind string

const (
	// RoomDirect is a two-participant room keyed by its member pair.
	RoomDirect RoomKind = "direct"
	// RoomGroup is a named room whose membership is reconciled against a roster.
	RoomGroup RoomKind = "group"
)

// Room is a messaging channel. Identity is enforced through RoomKey: direct
// rooms share one row per unordered member pair, groups one row per name.
type Room struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Kind          RoomKind   `gorm:"size:10;not null;index" json:"kind"`
	Name          string     `gorm:"size:120" json:"name,omitempty"`
	RoomKey       string     `gorm:"size:200;not null;uniqueIndex" json:"-"`
	LastMessageAt *time.Time `gorm:"index" json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Members []User `gorm:"many2many:room_members;" json:"members,omitempty"`
}

// RoomMember is the join table backing Room.Members. Kept as an explicit model
// so membership reconciliation can write it directly.
type RoomMember struct {
	RoomID   uint      `gorm:"primaryKey;autoIncrement:false" json:"room_id"`
	UserID   uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

// TableName specifies the table name for GORM.
func (RoomMember) TableName() string {
	return "room_members"
}

// DirectRoomKey derives the canonical identity key for a DM pair. The pair is
// sorted so (a,b) and (b,a) map to the same key.
func DirectRoomKey(a, b uint) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("dm:%d:%d", a, b)
}

// GroupRoomKey derives the identity key for a named group.
func GroupRoomKey(name string) string {
	return "group:" + name
}

// MemberIDs returns the ids of the loaded members.
func (r *Room) MemberIDs() []uint {
	ids := make([]uint, 0, len(r.Members))
	for _, m := range r.Members {
		ids = append(ids, m.ID)
	}
	return ids
}

// HasMember reports whether the given user is among the loaded members.
func (r *Room) HasMember(userID uint) bool {
	for _, m := range r.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}
