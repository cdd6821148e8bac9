// Package sprint implements the sprint lifecycle: creation, start, the
// completion protocol with its pending-issue split and auto-move, deletion
// back to the backlog, and issue movement between backlog and sprints.
//
// Issue relocation steps are independent and idempotent; per-issue failures
// are collected into results, never raised mid-operation.
package sprint

import (
	"errors"
	"fmt"
	"time"

	"github.com/cadencehq/cadence/internal/board"
	"github.com/cadencehq/cadence/internal/ident"
	"github.com/cadencehq/cadence/internal/models"
	"github.com/cadencehq/cadence/internal/workitem"
	"gorm.io/gorm"
)

// CreateOpts holds parameters for creating a sprint. An empty ProjectID
// creates a global sprint that aggregates issues across projects.
type CreateOpts struct {
	ProjectID string
	Name      string
	Goal      string
	StartDate *time.Time
	EndDate   *time.Time
}

// Create writes a new sprint in the planned state. Creating a global sprint
// also ensures its default board exists.
func Create(db *gorm.DB, opts CreateOpts) (*models.Sprint, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("sprint: name is required: %w", models.ErrValidation)
	}
	projectID := ident.Resolve(opts.ProjectID)
	if projectID != "" {
		if _, err := workitem.GetProject(db, projectID); err != nil {
			return nil, err
		}
	}

	id, err := ident.NewID("spr")
	if err != nil {
		return nil, fmt.Errorf("sprint: %w", err)
	}
	s := models.Sprint{
		ID:                id,
		ProjectID:         projectID,
		Name:              opts.Name,
		Goal:              opts.Goal,
		StartDate:         opts.StartDate,
		EndDate:           opts.EndDate,
		Active:            false,
		Status:            models.SprintPlanned,
		IssueIDs:          models.IDList{},
		CompletedIssueIDs: models.IDList{},
	}
	if err := db.Create(&s).Error; err != nil {
		return nil, fmt.Errorf("sprint: create: %w", err)
	}

	if s.IsGlobal() {
		if _, err := board.ForSprint(db, s.ID); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

// Get retrieves a live (not soft-deleted) sprint by id. Completed sprints
// are still readable.
func Get(db *gorm.DB, id string) (*models.Sprint, error) {
	var s models.Sprint
	err := db.Where("id = ? AND is_deleted = ?", ident.Resolve(id), false).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("sprint: %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("sprint: get %s: %w", id, err)
	}
	return &s, nil
}

// sprintFields names the columns Update accepts. Status moves only through
// Start and Complete.
var sprintFields = map[string]bool{
	"name": true, "goal": true, "start_date": true, "end_date": true,
}

// Update applies a field-level patch to a sprint.
func Update(db *gorm.DB, id string, updates map[string]interface{}) (*models.Sprint, error) {
	s, err := Get(db, id)
	if err != nil {
		return nil, err
	}
	clean := map[string]interface{}{}
	for k, v := range updates {
		if !sprintFields[k] {
			return nil, fmt.Errorf("sprint: unknown field %q: %w", k, models.ErrValidation)
		}
		clean[k] = v
	}
	for _, k := range []string{"start_date", "end_date"} {
		if v, ok := clean[k]; ok && v != nil {
			ts, err := toTime(v)
			if err != nil {
				return nil, fmt.Errorf("sprint: %s: %w", k, models.ErrValidation)
			}
			clean[k] = ts
		}
	}
	if len(clean) == 0 {
		return s, nil
	}
	if err := db.Model(s).Updates(clean).Error; err != nil {
		return nil, fmt.Errorf("sprint: update %s: %w", id, err)
	}
	return Get(db, id)
}

// collectIssues resolves the sprint's issue set to live rows. The id list
// is authoritative; when it is empty the rows are found by their sprint
// reference instead, unioning legacy encodings (rows migrated before the
// list existed).
func collectIssues(db *gorm.DB, s *models.Sprint) ([]models.Issue, error) {
	if len(s.IssueIDs) > 0 {
		var rows []models.Issue
		if err := db.Where("id IN ? AND is_deleted = ?", []string(s.IssueIDs), false).
			Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("sprint: resolve issues of %s: %w", s.ID, err)
		}
		byID := make(map[string]models.Issue, len(rows))
		for _, r := range rows {
			byID[r.ID] = r
		}
		ordered := make([]models.Issue, 0, len(rows))
		for _, id := range s.IssueIDs {
			if r, ok := byID[id]; ok {
				ordered = append(ordered, r)
			}
		}
		return ordered, nil
	}

	var rows []models.Issue
	err := db.Where("sprint_id IN ? AND is_deleted = ?", ident.Shapes(s.ID), false).
		Order("created_at ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("sprint: query issues of %s: %w", s.ID, err)
	}
	return rows, nil
}

// Issues returns the sprint's live issues in list order.
func Issues(db *gorm.DB, sprintID string) ([]models.Issue, error) {
	s, err := Get(db, sprintID)
	if err != nil {
		return nil, err
	}
	return collectIssues(db, s)
}

// ListActive returns the project's sprints that are neither completed nor
// deleted. Completion is checked on both signals.
func ListActive(db *gorm.DB, projectID string) ([]models.Sprint, error) {
	var sprints []models.Sprint
	err := db.Where("project_id = ? AND is_deleted = ? AND status <> ? AND completed_at IS NULL",
		ident.Resolve(projectID), false, models.SprintCompleted).
		Order("created_at ASC").Find(&sprints).Error
	if err != nil {
		return nil, fmt.Errorf("sprint: list active: %w", err)
	}
	return sprints, nil
}

// CompletedSprint pairs a completed sprint with the issues that finished in
// its final column.
type CompletedSprint struct {
	Sprint     models.Sprint  `json:"sprint"`
	DoneIssues []models.Issue `json:"done_issues"`
}

// ListCompleted returns the project's completed sprints, newest completion
// first. Each sprint carries the subset of its snapshot issues whose status
// matches the board's final column ("done" when the board is empty).
func ListCompleted(db *gorm.DB, projectID string) ([]CompletedSprint, error) {
	pid := ident.Resolve(projectID)
	var sprints []models.Sprint
	err := db.Where("project_id = ? AND is_deleted = ? AND (status = ? OR completed_at IS NOT NULL)",
		pid, false, models.SprintCompleted).
		Order("completed_at DESC").Find(&sprints).Error
	if err != nil {
		return nil, fmt.Errorf("sprint: list completed: %w", err)
	}

	cols, err := board.Columns(db, pid)
	if err != nil {
		return nil, err
	}
	final := board.FinalStatus(cols)

	out := make([]CompletedSprint, 0, len(sprints))
	for _, s := range sprints {
		ids := s.CompletedIssueIDs
		if len(ids) == 0 {
			ids = s.IssueIDs
		}
		entry := CompletedSprint{Sprint: s, DoneIssues: []models.Issue{}}
		if len(ids) > 0 {
			var rows []models.Issue
			if err := db.Where("id IN ?", []string(ids)).Find(&rows).Error; err != nil {
				return nil, fmt.Errorf("sprint: resolve snapshot of %s: %w", s.ID, err)
			}
			for _, r := range rows {
				if board.SameStatus(r.Status, final) {
					entry.DoneIssues = append(entry.DoneIssues, r)
				}
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// ListRunning returns every running sprint across projects, ordered by
// start date.
func ListRunning(db *gorm.DB) ([]models.Sprint, error) {
	var sprints []models.Sprint
	err := db.Where("active = ? AND completed_at IS NULL AND is_deleted = ?", true, false).
		Order("start_date ASC").Find(&sprints).Error
	if err != nil {
		return nil, fmt.Errorf("sprint: list running: %w", err)
	}
	return sprints, nil
}

// ListGlobal returns every live project-less sprint.
func ListGlobal(db *gorm.DB) ([]models.Sprint, error) {
	var sprints []models.Sprint
	err := db.Where("project_id = ? AND is_deleted = ?", "", false).
		Order("created_at ASC").Find(&sprints).Error
	if err != nil {
		return nil, fmt.Errorf("sprint: list global: %w", err)
	}
	return sprints, nil
}

// isDone reports whether the issue counts as finished for the completion
// protocol.
func isDone(iss *models.Issue) bool {
	return workitem.NormalizeStatus(iss.Status) == "done"
}

// toTime coerces the date shapes a JSON decode or a caller map can carry.
func toTime(v interface{}) (time.Time, error) {
	switch ts := v.(type) {
	case time.Time:
		return ts, nil
	case *time.Time:
		if ts == nil {
			return time.Time{}, fmt.Errorf("nil time")
		}
		return *ts, nil
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if parsed, err := time.Parse(layout, ts); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("unparseable time %q", ts)
	default:
		return time.Time{}, fmt.Errorf("not a time: %T", v)
	}
}
