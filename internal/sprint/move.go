package sprint

import (
	"fmt"
	"strings"

	"github.com/cadencehq/cadence/internal/ident"
	"github.com/cadencehq/cadence/internal/models"
	"github.com/cadencehq/cadence/internal/workitem"
	"gorm.io/gorm"
)

// MoveResult reports a bulk issue move.
type MoveResult struct {
	Moved  int      `json:"moved"`
	Errors []string `json:"errors,omitempty"`
}

// Assign places issues on a sprint: each one leaves its old sprint and the
// backlog, lands on the new sprint's issue list and takes
// location="sprint". Per-issue failures are collected.
func Assign(db *gorm.DB, sprintID string, issueIDs []string) (*MoveResult, error) {
	s, err := Get(db, sprintID)
	if err != nil {
		return nil, err
	}
	if s.IsCompleted() {
		return nil, fmt.Errorf("sprint: %s is completed: %w", s.ID, models.ErrValidation)
	}

	res := &MoveResult{}
	for _, raw := range issueIDs {
		iss, err := workitem.GetIssue(db, raw)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("issue %s: %v", raw, err))
			continue
		}
		if err := moveToSprint(db, s, iss); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("issue %s: %v", iss.ID, err))
			continue
		}
		res.Moved++
	}
	return res, nil
}

// Move relocates one issue. to is "backlog" or "sprint:<id>".
func Move(db *gorm.DB, issueID, to string) error {
	iss, err := workitem.GetIssue(db, issueID)
	if err != nil {
		return err
	}
	switch {
	case to == AutoMoveBacklog:
		return removeFromSprint(db, iss)
	case strings.HasPrefix(to, "sprint:"):
		tgt, err := Get(db, strings.TrimPrefix(to, "sprint:"))
		if err != nil {
			return err
		}
		if tgt.IsCompleted() {
			return fmt.Errorf("sprint: %s is completed: %w", tgt.ID, models.ErrValidation)
		}
		return moveToSprint(db, tgt, iss)
	default:
		return fmt.Errorf("sprint: unknown destination %q: %w", to, models.ErrValidation)
	}
}

// MoveMultiple applies Move to each issue, collecting per-issue failures.
func MoveMultiple(db *gorm.DB, issueIDs []string, to string) *MoveResult {
	res := &MoveResult{}
	for _, id := range issueIDs {
		if err := Move(db, id, to); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("issue %s: %v", id, err))
			continue
		}
		res.Moved++
	}
	return res
}

// RemoveFromSprint detaches an issue from whatever sprint holds it and
// returns it to its project backlog.
func RemoveFromSprint(db *gorm.DB, issueID string) error {
	iss, err := workitem.GetIssue(db, issueID)
	if err != nil {
		return err
	}
	return removeFromSprint(db, iss)
}

func removeFromSprint(db *gorm.DB, iss *models.Issue) error {
	detachFromOldSprint(db, iss)
	return backlogIssue(db, iss)
}

// moveToSprint performs the three relocation steps for one issue. The
// steps are independent: a failure in one does not roll back the others.
func moveToSprint(db *gorm.DB, tgt *models.Sprint, iss *models.Issue) error {
	detachFromOldSprint(db, iss)
	if err := workitem.RemoveFromBacklog(db, iss.ProjectID, iss.ID); err != nil {
		return err
	}
	return attachIssue(db, tgt, iss)
}

// detachFromOldSprint removes the issue from its current sprint's issue
// list. Best effort: a missing or unreadable old sprint is not an error.
func detachFromOldSprint(db *gorm.DB, iss *models.Issue) {
	oldID := ident.Resolve(iss.SprintID)
	if oldID == "" {
		return
	}
	var old models.Sprint
	if err := db.Where("id = ?", oldID).First(&old).Error; err != nil {
		return
	}
	if !old.IssueIDs.Contains(iss.ID) {
		return
	}
	db.Model(&models.Sprint{}).Where("id = ?", old.ID).
		Update("issue_ids", old.IssueIDs.Remove(iss.ID))
}
