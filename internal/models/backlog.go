package models

import "time"

// Backlog is the per-project container of issue ids not currently assigned
// to a sprint. Items keeps append order with idempotent adds.
type Backlog struct {
	ID        string `gorm:"primaryKey;size:32"`
	ProjectID string `gorm:"size:64;uniqueIndex;not null"`
	Items     IDList `gorm:"type:text"`
	IsDeleted bool   `gorm:"default:false;index"`
	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RefID implements ident.Referencer.
func (b Backlog) RefID() string { return b.ID }
