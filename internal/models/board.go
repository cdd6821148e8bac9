package models

import "time"

// Board is an ordered set of columns for a project, or for a global sprint
// when SprintID is set instead of ProjectID.
type Board struct {
	ID        string `gorm:"primaryKey;size:32"`
	ProjectID string `gorm:"size:64;index"`
	SprintID  string `gorm:"size:64;index"`
	Name      string `gorm:"size:128"`
	IsDeleted bool   `gorm:"default:false;index"`
	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RefID implements ident.Referencer.
func (b Board) RefID() string { return b.ID }

// BoardColumn is one status bucket on a board. Status and Position are each
// unique within a board; canonical read order is by Position.
type BoardColumn struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	BoardID   string `gorm:"size:32;index;not null"`
	Name      string `gorm:"size:64;not null"`
	Status    string `gorm:"size:64;not null"`
	Position  int    `gorm:"not null"`
	Color     string `gorm:"size:16"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
