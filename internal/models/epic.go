package models

import "time"

// Epic groups issues within a project. Key is generated at creation as
// {project.key}-EPIC-{n} and never rewritten.
type Epic struct {
	ID          string `gorm:"primaryKey;size:32"`
	ProjectID   string `gorm:"size:64;index;not null"`
	Key         string `gorm:"size:64;index"`
	Name        string `gorm:"size:128;not null"`
	Description string `gorm:"type:text"`
	Status      string `gorm:"size:64;default:todo"`
	IsDeleted   bool   `gorm:"default:false;index"`
	DeletedAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RefID implements ident.Referencer.
func (e Epic) RefID() string { return e.ID }
