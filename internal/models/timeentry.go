package models

import "time"

// TimeEntry records time spent on an issue by one user. Seconds is derived
// from the clock pair when both are present, otherwise supplied manually.
// Finalizing an entry triggers a recompute of the issue's TimeSpentHours.
type TimeEntry struct {
	ID        string `gorm:"primaryKey;size:32"`
	ProjectID string `gorm:"size:64;index"`
	IssueID   string `gorm:"size:64;index;not null"`
	UserID    string `gorm:"size:64;index;not null"`
	ClockIn   time.Time
	ClockOut  *time.Time
	Seconds   int64 `gorm:"default:0"`
	IsDeleted bool  `gorm:"default:false;index"`
	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RefID implements ident.Referencer.
func (t TimeEntry) RefID() string { return t.ID }

// Open reports whether the entry is still clocked in.
func (t *TimeEntry) Open() bool { return t.ClockOut == nil }
