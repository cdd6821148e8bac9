package models

import "time"

// Issue locations: which visual bucket the card occupies, independent of
// its workflow status.
const (
	LocationBacklog  = "backlog"
	LocationSprint   = "sprint"
	LocationBoard    = "board"
	LocationArchived = "archived"
)

// Issue types.
const (
	TypeStory   = "story"
	TypeTask    = "task"
	TypeBug     = "bug"
	TypeSubtask = "subtask"
)

// Locations lists the valid Issue.Location values.
var Locations = []string{LocationBacklog, LocationSprint, LocationBoard, LocationArchived}

// IssueTypes lists the valid Issue.Type values.
var IssueTypes = []string{TypeStory, TypeTask, TypeBug, TypeSubtask}

// Priorities lists the valid Issue.Priority values, highest first.
var Priorities = []string{"highest", "high", "medium", "low", "lowest"}

// StoryPointScale is the fixed Fibonacci set allowed for Issue.StoryPoints.
var StoryPointScale = []int{0, 1, 2, 3, 5, 8, 13, 21, 34, 55, 89}

// ValidStoryPoints reports whether p is in the allowed scale.
func ValidStoryPoints(p int) bool {
	for _, v := range StoryPointScale {
		if v == p {
			return true
		}
	}
	return false
}

// Issue is the unit of work. Reference columns hold bare ids for rows this
// engine wrote; migrated rows may carry legacy encodings, which is why they
// are sized generously and compared through the ident package.
//
// Type == subtask exactly when ParentID is set.
type Issue struct {
	ID             string  `gorm:"primaryKey;size:32"`
	ProjectID      string  `gorm:"size:64;index;not null"`
	Key            string  `gorm:"size:64;index"`
	EpicID         string  `gorm:"size:64;index"`
	SprintID       string  `gorm:"size:64;index"`
	FeatureID      string  `gorm:"size:64"`
	ParentID       *string `gorm:"size:64;index"`
	Assignee       string  `gorm:"size:64;index"`
	CreatedBy      string  `gorm:"size:64"`
	Title          string  `gorm:"not null"`
	Description    string  `gorm:"type:text"`
	Type           string  `gorm:"size:16;default:task"`
	Priority       string  `gorm:"size:16;default:medium"`
	Status         string  `gorm:"size:64;default:todo;index"`
	Location       string  `gorm:"size:16;default:backlog;index"`
	StoryPoints    *int
	EstimatedHours float64
	TimeSpentHours float64
	IsDeleted      bool `gorm:"default:false;index"`
	DeletedAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RefID implements ident.Referencer.
func (i Issue) RefID() string { return i.ID }

// IsSubtask reports whether the issue is a subtask of another issue.
func (i *Issue) IsSubtask() bool { return i.Type == TypeSubtask }
