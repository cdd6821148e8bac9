package models

import "time"

// User is an account known to the engine. Role "admin" bypasses every
// permission check; everything finer-grained lives in Project.Members.
type User struct {
	ID        string `gorm:"primaryKey;size:32"`
	Name      string `gorm:"size:128;not null"`
	Email     string `gorm:"size:128;uniqueIndex"`
	Role      string `gorm:"size:16;default:member"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAdmin reports whether the user carries the global admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == "admin"
}
