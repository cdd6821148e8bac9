package models

import "time"

// Sprint statuses. The lifecycle is planned → running → completed; completed
// is terminal.
const (
	SprintPlanned   = "planned"
	SprintRunning   = "running"
	SprintCompleted = "completed"
)

// Sprint is a timeboxed set of issues. An empty ProjectID marks a global
// sprint aggregating issues across projects.
//
// Invariants: Active ⇒ Status == running; Status == completed ⇒ CompletedAt
// set and CompletedIssueIDs frozen. LockVersion guards completion against
// concurrent double-complete.
type Sprint struct {
	ID                string `gorm:"primaryKey;size:32"`
	ProjectID         string `gorm:"size:64;index"`
	Name              string `gorm:"size:128;not null"`
	Goal              string `gorm:"type:text"`
	StartDate         *time.Time
	EndDate           *time.Time
	Active            bool   `gorm:"default:false;index"`
	Status            string `gorm:"size:16;default:planned;index"`
	IssueIDs          IDList `gorm:"type:text"`
	CompletedIssueIDs IDList `gorm:"type:text"`
	CompletedAt       *time.Time
	LockVersion       int  `gorm:"default:0"`
	IsDeleted         bool `gorm:"default:false;index"`
	DeletedAt         *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// RefID implements ident.Referencer.
func (s Sprint) RefID() string { return s.ID }

// IsGlobal reports whether the sprint is project-less.
func (s *Sprint) IsGlobal() bool { return s.ProjectID == "" }

// IsCompleted treats either signal as authoritative: the two fields were
// historically set independently.
func (s *Sprint) IsCompleted() bool {
	return s.Status == SprintCompleted || s.CompletedAt != nil
}
