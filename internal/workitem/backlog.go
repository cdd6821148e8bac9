package workitem

import (
	"errors"
	"fmt"

	"github.com/cadencehq/cadence/internal/ident"
	"github.com/cadencehq/cadence/internal/models"
	"gorm.io/gorm"
)

// EnsureBacklog returns the project's backlog, creating an empty one on
// first access. One backlog per project.
func EnsureBacklog(db *gorm.DB, projectID string) (*models.Backlog, error) {
	pid := ident.Resolve(projectID)
	var b models.Backlog
	err := db.Where("project_id = ? AND is_deleted = ?", pid, false).First(&b).Error
	if err == nil {
		return &b, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("workitem: get backlog for %s: %w", projectID, err)
	}

	id, err := ident.NewID("bkl")
	if err != nil {
		return nil, fmt.Errorf("workitem: %w", err)
	}
	b = models.Backlog{ID: id, ProjectID: pid, Items: models.IDList{}}
	if err := db.Create(&b).Error; err != nil {
		return nil, fmt.Errorf("workitem: create backlog for %s: %w", projectID, err)
	}
	return &b, nil
}

// AppendToBacklog adds issueID to the project backlog. Appending an id that
// is already present is a no-op.
func AppendToBacklog(db *gorm.DB, projectID, issueID string) error {
	b, err := EnsureBacklog(db, projectID)
	if err != nil {
		return err
	}
	iid := ident.Resolve(issueID)
	if b.Items.Contains(iid) {
		return nil
	}
	items := b.Items.Add(iid)
	if err := db.Model(b).Update("items", items).Error; err != nil {
		return fmt.Errorf("workitem: append %s to backlog %s: %w", issueID, b.ID, err)
	}
	return nil
}

// RemoveFromBacklog drops issueID from the project backlog if present.
func RemoveFromBacklog(db *gorm.DB, projectID, issueID string) error {
	b, err := EnsureBacklog(db, projectID)
	if err != nil {
		return err
	}
	iid := ident.Resolve(issueID)
	if !b.Items.Contains(iid) {
		return nil
	}
	items := b.Items.Remove(iid)
	if err := db.Model(b).Update("items", items).Error; err != nil {
		return fmt.Errorf("workitem: remove %s from backlog %s: %w", issueID, b.ID, err)
	}
	return nil
}

// BacklogIssues resolves the backlog's item ids to live issue rows,
// preserving list order. Ids that no longer resolve are skipped.
func BacklogIssues(db *gorm.DB, projectID string) ([]models.Issue, error) {
	b, err := EnsureBacklog(db, projectID)
	if err != nil {
		return nil, err
	}
	if len(b.Items) == 0 {
		return nil, nil
	}
	var rows []models.Issue
	if err := db.Where("id IN ? AND is_deleted = ?", []string(b.Items), false).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("workitem: backlog issues for %s: %w", projectID, err)
	}
	byID := make(map[string]models.Issue, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	ordered := make([]models.Issue, 0, len(rows))
	for _, id := range b.Items {
		if r, ok := byID[id]; ok {
			ordered = append(ordered, r)
		}
	}
	return ordered, nil
}
