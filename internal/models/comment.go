package models

import "time"

// Comment is attached to exactly one of project, epic, sprint, or issue;
// the other target columns stay empty.
type Comment struct {
	ID        string `gorm:"primaryKey;size:32"`
	ProjectID string `gorm:"size:64;index"`
	EpicID    string `gorm:"size:64;index"`
	SprintID  string `gorm:"size:64;index"`
	IssueID   string `gorm:"size:64;index"`
	Author    string `gorm:"size:64;not null"`
	Body      string `gorm:"type:text;not null"`
	IsDeleted bool   `gorm:"default:false;index"`
	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RefID implements ident.Referencer.
func (c Comment) RefID() string { return c.ID }
