// Package models contains data structures for the application's domain models.
package models

import "time"

// Role identifies which console a participant uses.
type Role string

const (
	// RoleAdmin is the administration console role.
	RoleAdmin Role = "admin"
	// RoleSecurity is the security/guard console role.
	RoleSecurity Role = "security"
	// RoleResident is the resident console role.
	RoleResident Role = "resident"
)

// User is a community participant (resident or staff member).
// Authentication is handled upstream; this record exists so the messaging
// subsystem can compute rosters and display names.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	DisplayName string    `gorm:"size:120;not null" json:"display_name"`
	Role        Role      `gorm:"size:16;not null;index" json:"role"`
	Unit        string    `gorm:"size:32" json:"unit,omitempty"`
	Active      bool      `gorm:"not null;default:true;index" json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsStaff reports whether the user belongs to community staff.
func (u *User) IsStaff() bool {
	return u.Role == RoleAdmin || u.Role == RoleSecurity
}
