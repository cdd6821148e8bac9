package models

import "time"

// Feature is a lightweight grouping of issues under a project (optionally
// an epic). It participates in project cascades and the recycle bin.
type Feature struct {
	ID          string `gorm:"primaryKey;size:32"`
	ProjectID   string `gorm:"size:64;index;not null"`
	EpicID      string `gorm:"size:64;index"`
	Name        string `gorm:"size:128;not null"`
	Description string `gorm:"type:text"`
	Status      string `gorm:"size:64;default:todo"`
	Priority    string `gorm:"size:16;default:medium"`
	IsDeleted   bool   `gorm:"default:false;index"`
	DeletedAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RefID implements ident.Referencer.
func (f Feature) RefID() string { return f.ID }
