package models

import "time"

// Project is the root of the work-item hierarchy. Children reference it by
// id; there are no database-enforced foreign keys — cascade is an explicit
// engine operation.
type Project struct {
	ID          string  `gorm:"primaryKey;size:32"`
	Key         string  `gorm:"size:32;uniqueIndex;not null"`
	Name        string  `gorm:"size:128;not null"`
	Description string  `gorm:"type:text"`
	Lead        string  `gorm:"size:64;index"`
	Members     RoleMap `gorm:"type:text"`
	Public      bool    `gorm:"default:false"`
	IsDeleted   bool    `gorm:"default:false;index"`
	DeletedAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RefID implements ident.Referencer.
func (p Project) RefID() string { return p.ID }

// MemberRole returns the role tag for a user id, or "" when not a member.
func (p *Project) MemberRole(userID string) string {
	if p == nil || p.Members == nil {
		return ""
	}
	return p.Members[userID]
}
