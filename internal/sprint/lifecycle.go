package sprint

import (
	"fmt"
	"time"

	"github.com/cadencehq/cadence/internal/models"
	"github.com/cadencehq/cadence/internal/perm"
	"github.com/cadencehq/cadence/internal/workitem"
	"gorm.io/gorm"
)

// AutoMoveBacklog is the Complete target that sends unfinished issues to
// their project backlog instead of another sprint.
const AutoMoveBacklog = "backlog"

// StartResult reports a sprint start. Per-issue relocation failures are
// collected, not raised.
type StartResult struct {
	Sprint *models.Sprint `json:"sprint"`
	Moved  int            `json:"moved"`
	Errors []string       `json:"errors,omitempty"`
}

// CompleteResult reports a completion attempt. Completed=false with a
// non-empty Pending list is the valid "split" response: the caller must
// choose a target for the unfinished issues and call Complete again.
type CompleteResult struct {
	Sprint    *models.Sprint `json:"sprint"`
	Completed bool           `json:"completed"`
	Done      []string       `json:"done"`
	Pending   []string       `json:"pending"`
	Moved     int            `json:"moved"`
	Errors    []string       `json:"errors,omitempty"`
}

// DeleteResult reports a sprint deletion and how many issues went back to
// the backlog.
type DeleteResult struct {
	Moved  int      `json:"moved"`
	Errors []string `json:"errors,omitempty"`
}

// Start moves a planned sprint to running: active=true, status=running,
// start date defaulted to now. Every issue currently on the sprint is
// placed on the board; statuses are untouched.
func Start(db *gorm.DB, sprintID, actor string) (*StartResult, error) {
	s, err := Get(db, sprintID)
	if err != nil {
		return nil, err
	}
	if ok, err := perm.CanManageSprint(db, actor, s.ProjectID); err != nil {
		return nil, err
	} else if !ok {
		return nil, perm.Deny("manage_sprint", s.ID)
	}
	if s.IsCompleted() {
		return nil, fmt.Errorf("sprint: %s is completed: %w", s.ID, models.ErrValidation)
	}

	updates := map[string]interface{}{
		"active": true,
		"status": models.SprintRunning,
	}
	if s.StartDate == nil {
		updates["start_date"] = time.Now()
	}
	if err := db.Model(s).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("sprint: start %s: %w", s.ID, err)
	}

	issues, err := collectIssues(db, s)
	if err != nil {
		return nil, err
	}
	res := &StartResult{}
	for i := range issues {
		iss := &issues[i]
		err := db.Model(&models.Issue{}).Where("id = ?", iss.ID).
			Update("location", models.LocationBoard).Error
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("issue %s: %v", iss.ID, err))
			continue
		}
		res.Moved++
	}

	out, err := Get(db, s.ID)
	if err != nil {
		return nil, err
	}
	res.Sprint = out
	return res, nil
}

// Complete runs the completion protocol.
//
// With no target: if any issue is unfinished the split is returned with
// zero mutation; otherwise the sprint is marked completed, finished issues
// are archived and detached, and the issue set is snapshotted.
//
// With a target ("backlog" or another sprint id): unfinished issues are
// relocated to the target (falling back to their project backlog when the
// target cannot take them), finished issues are detached with their
// location kept as-is, and the sprint is marked completed regardless of
// per-issue failures.
//
// Global sprints complete without the split: unfinished issues return to
// their own project's backlog.
//
// Re-invoking on a completed sprint is a no-op that reports the stored
// snapshot.
func Complete(db *gorm.DB, sprintID, target, actor string) (*CompleteResult, error) {
	s, err := Get(db, sprintID)
	if err != nil {
		return nil, err
	}
	if ok, err := perm.CanManageSprint(db, actor, s.ProjectID); err != nil {
		return nil, err
	} else if !ok {
		return nil, perm.Deny("manage_sprint", s.ID)
	}
	if s.IsCompleted() {
		return &CompleteResult{
			Sprint:    s,
			Completed: true,
			Done:      append([]string(nil), s.CompletedIssueIDs...),
			Pending:   []string{},
		}, nil
	}

	issues, err := collectIssues(db, s)
	if err != nil {
		return nil, err
	}

	res := &CompleteResult{Done: []string{}, Pending: []string{}}
	var done, pending []models.Issue
	for _, iss := range issues {
		if isDone(&iss) {
			done = append(done, iss)
			res.Done = append(res.Done, iss.ID)
		} else {
			pending = append(pending, iss)
			res.Pending = append(res.Pending, iss.ID)
		}
	}

	// No target and unfinished work: report the split untouched. The
	// caller decides where the pending issues go. Global sprints skip the
	// split; their leftovers always return to their own project backlog.
	if target == "" && len(pending) > 0 && !s.IsGlobal() {
		res.Sprint = s
		return res, nil
	}

	// Snapshot the issue set and claim completion before relocating, so a
	// concurrent Complete no-ops instead of double-moving.
	snapshot := models.IDList{}
	for _, iss := range issues {
		snapshot = snapshot.Add(iss.ID)
	}
	s, won, err := markCompleted(db, s, snapshot)
	if err != nil {
		return nil, err
	}
	if !won {
		// Another writer completed first; its snapshot stands.
		return &CompleteResult{
			Sprint:    s,
			Completed: true,
			Done:      append([]string(nil), s.CompletedIssueIDs...),
			Pending:   []string{},
		}, nil
	}
	res.Completed = true

	// Finished issues leave the sprint. Without a target they go to the
	// archive; with one their location is kept as-is, never force-moved.
	remaining := s.IssueIDs
	for i := range done {
		var doneErr error
		if target == "" {
			doneErr = archiveIssue(db, &done[i])
		} else {
			doneErr = detachIssue(db, &done[i])
		}
		if doneErr != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("issue %s: %v", done[i].ID, doneErr))
		}
	}

	if len(pending) > 0 {
		var tgt *models.Sprint
		if target != "" && target != AutoMoveBacklog {
			tgt, err = Get(db, target)
			if err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("target sprint %s: %v", target, err))
			} else if tgt.IsCompleted() {
				res.Errors = append(res.Errors, fmt.Sprintf("target sprint %s is completed", target))
				tgt = nil
			} else if tgt.ID == s.ID {
				res.Errors = append(res.Errors, "target sprint is the sprint being completed")
				tgt = nil
			}
		}

		for i := range pending {
			iss := &pending[i]
			var moveErr error
			if tgt != nil {
				moveErr = attachIssue(db, tgt, iss)
			}
			if tgt == nil || moveErr != nil {
				if moveErr != nil {
					res.Errors = append(res.Errors, fmt.Sprintf("issue %s: %v", iss.ID, moveErr))
				}
				if err := backlogIssue(db, iss); err != nil {
					res.Errors = append(res.Errors, fmt.Sprintf("issue %s: %v", iss.ID, err))
					continue
				}
			}
			remaining = remaining.Remove(iss.ID)
			res.Moved++
		}
	}

	if err := db.Model(&models.Sprint{}).Where("id = ?", s.ID).
		Update("issue_ids", remaining).Error; err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("sprint %s: trim issue list: %v", s.ID, err))
	}

	out, err := Get(db, s.ID)
	if err != nil {
		return nil, err
	}
	res.Sprint = out
	return res, nil
}

// Delete returns every assigned issue to its project backlog, then
// soft-deletes the sprint.
func Delete(db *gorm.DB, sprintID, actor string) (*DeleteResult, error) {
	s, err := Get(db, sprintID)
	if err != nil {
		return nil, err
	}
	if ok, err := perm.CanManageSprint(db, actor, s.ProjectID); err != nil {
		return nil, err
	} else if !ok {
		return nil, perm.Deny("manage_sprint", s.ID)
	}

	issues, err := collectIssues(db, s)
	if err != nil {
		return nil, err
	}

	res := &DeleteResult{}
	for i := range issues {
		if err := backlogIssue(db, &issues[i]); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("issue %s: %v", issues[i].ID, err))
			continue
		}
		res.Moved++
	}

	now := time.Now()
	err = db.Model(s).Updates(map[string]interface{}{
		"is_deleted": true,
		"deleted_at": now,
		"active":     false,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("sprint: delete %s: %w", s.ID, err)
	}
	return res, nil
}

// markCompleted claims completion with an optimistic version check. On a
// version conflict it re-reads: a sprint completed by the concurrent writer
// is returned with won=false, otherwise the claim is retried once against
// the fresh version.
func markCompleted(db *gorm.DB, s *models.Sprint, snapshot models.IDList) (*models.Sprint, bool, error) {
	now := time.Now()
	for attempt := 0; attempt < 2; attempt++ {
		tx := db.Model(&models.Sprint{}).
			Where("id = ? AND lock_version = ?", s.ID, s.LockVersion).
			Updates(map[string]interface{}{
				"status":              models.SprintCompleted,
				"active":              false,
				"completed_at":        now,
				"completed_issue_ids": snapshot,
				"lock_version":        s.LockVersion + 1,
			})
		if tx.Error != nil {
			return nil, false, fmt.Errorf("sprint: complete %s: %w", s.ID, tx.Error)
		}
		if tx.RowsAffected > 0 {
			out, err := Get(db, s.ID)
			return out, true, err
		}
		fresh, err := Get(db, s.ID)
		if err != nil {
			return nil, false, err
		}
		if fresh.IsCompleted() {
			return fresh, false, nil
		}
		s = fresh
	}
	return nil, false, fmt.Errorf("sprint: complete %s: version conflict persists", s.ID)
}

// detachIssue clears the sprint reference without touching location.
func detachIssue(db *gorm.DB, iss *models.Issue) error {
	err := db.Model(&models.Issue{}).Where("id = ?", iss.ID).
		Update("sprint_id", "").Error
	if err != nil {
		return fmt.Errorf("detach: %w", err)
	}
	return nil
}

// archiveIssue detaches a finished issue from its sprint and parks it in
// the archive.
func archiveIssue(db *gorm.DB, iss *models.Issue) error {
	err := db.Model(&models.Issue{}).Where("id = ?", iss.ID).Updates(map[string]interface{}{
		"sprint_id": "",
		"location":  models.LocationArchived,
	}).Error
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	return nil
}

// backlogIssue detaches an issue from its sprint and appends it to its own
// project's backlog.
func backlogIssue(db *gorm.DB, iss *models.Issue) error {
	err := db.Model(&models.Issue{}).Where("id = ?", iss.ID).Updates(map[string]interface{}{
		"sprint_id": "",
		"location":  models.LocationBacklog,
	}).Error
	if err != nil {
		return fmt.Errorf("to backlog: %w", err)
	}
	return workitem.AppendToBacklog(db, iss.ProjectID, iss.ID)
}

// attachIssue moves an issue into the target sprint and records it on the
// target's issue list.
func attachIssue(db *gorm.DB, tgt *models.Sprint, iss *models.Issue) error {
	err := db.Model(&models.Issue{}).Where("id = ?", iss.ID).Updates(map[string]interface{}{
		"sprint_id": tgt.ID,
		"location":  models.LocationSprint,
	}).Error
	if err != nil {
		return fmt.Errorf("to sprint %s: %w", tgt.ID, err)
	}
	if tgt.IssueIDs.Contains(iss.ID) {
		return nil
	}
	tgt.IssueIDs = tgt.IssueIDs.Add(iss.ID)
	if err := db.Model(&models.Sprint{}).Where("id = ?", tgt.ID).
		Update("issue_ids", tgt.IssueIDs).Error; err != nil {
		return fmt.Errorf("record on sprint %s: %w", tgt.ID, err)
	}
	return nil
}
