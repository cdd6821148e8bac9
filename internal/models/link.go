package models

import "time"

// Link reasons.
var LinkReasons = []string{"blocks", "is_blocked_by", "relates_to", "duplicates", "is_duplicated_by"}

// ValidLinkReason reports whether reason is one of the known relation kinds.
func ValidLinkReason(reason string) bool {
	for _, r := range LinkReasons {
		if r == reason {
			return true
		}
	}
	return false
}

// LinkedWorkItem is a typed relation between two work items. ProjectID is
// taken from the source endpoint at creation so project cascades can reach
// links the same way they reach every other child table. A link whose
// endpoint was soft-deleted outside its own cascade closure dangles and
// becomes meaningful again on restore.
type LinkedWorkItem struct {
	ID         string `gorm:"primaryKey;size:32"`
	ProjectID  string `gorm:"size:64;index"`
	SourceID   string `gorm:"size:64;index;not null"`
	SourceType string `gorm:"size:16;not null"`
	TargetID   string `gorm:"size:64;index;not null"`
	TargetType string `gorm:"size:16;not null"`
	Reason     string `gorm:"size:32;default:relates_to"`
	IsDeleted  bool   `gorm:"default:false;index"`
	DeletedAt  *time.Time
	CreatedAt  time.Time
}

// RefID implements ident.Referencer.
func (l LinkedWorkItem) RefID() string { return l.ID }
