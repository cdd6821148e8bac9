// Package comment stores discussion threads on projects, epics, sprints and
// issues. A comment points at exactly one parent; the other target columns
// stay empty so each cascade closure only sweeps the comments that directly
// reference its root.
package comment

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/cadencehq/cadence/internal/ident"
	"github.com/cadencehq/cadence/internal/models"
	"github.com/cadencehq/cadence/internal/perm"
)

// Target names the single parent a comment attaches to. Exactly one field
// must be set.
type Target struct {
	ProjectID string
	EpicID    string
	SprintID  string
	IssueID   string
}

// normalize resolves every reference form to canonical ids.
func (t Target) normalize() Target {
	return Target{
		ProjectID: ident.Resolve(t.ProjectID),
		EpicID:    ident.Resolve(t.EpicID),
		SprintID:  ident.Resolve(t.SprintID),
		IssueID:   ident.Resolve(t.IssueID),
	}
}

func (t Target) setCount() int {
	n := 0
	for _, id := range []string{t.ProjectID, t.EpicID, t.SprintID, t.IssueID} {
		if id != "" {
			n++
		}
	}
	return n
}

// Add validates the target and writes the comment. The caller is expected
// to have already passed the can_comment gate for the owning project.
func Add(db *gorm.DB, target Target, author, body string) (*models.Comment, error) {
	if body == "" {
		return nil, fmt.Errorf("comment: body is required: %w", models.ErrValidation)
	}
	author = ident.Resolve(author)
	if author == "" {
		return nil, fmt.Errorf("comment: author is required: %w", models.ErrValidation)
	}

	target = target.normalize()
	if n := target.setCount(); n != 1 {
		return nil, fmt.Errorf("comment: exactly one target required, got %d: %w", n, models.ErrValidation)
	}
	if err := targetExists(db, target); err != nil {
		return nil, err
	}

	id, err := ident.NewID("cmt")
	if err != nil {
		return nil, fmt.Errorf("comment: %w", err)
	}
	c := models.Comment{
		ID:        id,
		ProjectID: target.ProjectID,
		EpicID:    target.EpicID,
		SprintID:  target.SprintID,
		IssueID:   target.IssueID,
		Author:    author,
		Body:      body,
	}
	if err := db.Create(&c).Error; err != nil {
		return nil, fmt.Errorf("comment: create: %w", err)
	}
	return &c, nil
}

// ListFor returns live comments on the target, oldest first, matching
// legacy reference encodings on the target column.
func ListFor(db *gorm.DB, target Target) ([]models.Comment, error) {
	target = target.normalize()
	if n := target.setCount(); n != 1 {
		return nil, fmt.Errorf("comment: exactly one target required, got %d: %w", n, models.ErrValidation)
	}

	q := db.Where("is_deleted = ?", false)
	switch {
	case target.ProjectID != "":
		q = q.Where("project_id IN ?", ident.Shapes(target.ProjectID))
	case target.EpicID != "":
		q = q.Where("epic_id IN ?", ident.Shapes(target.EpicID))
	case target.SprintID != "":
		q = q.Where("sprint_id IN ?", ident.Shapes(target.SprintID))
	case target.IssueID != "":
		q = q.Where("issue_id IN ?", ident.Shapes(target.IssueID))
	}

	var comments []models.Comment
	if err := q.Order("created_at ASC").Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("comment: list: %w", err)
	}
	return comments, nil
}

// Get retrieves a live comment by id.
func Get(db *gorm.DB, commentID string) (*models.Comment, error) {
	var c models.Comment
	err := db.Where("id = ? AND is_deleted = ?", ident.Resolve(commentID), false).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("comment: %s: %w", commentID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("comment: get %s: %w", commentID, err)
	}
	return &c, nil
}

// Delete soft-deletes a comment. Only its author or a site admin may
// remove it.
func Delete(db *gorm.DB, commentID, actor string) error {
	c, err := Get(db, commentID)
	if err != nil {
		return err
	}

	actor = ident.Resolve(actor)
	if !ident.Same(c.Author, actor) {
		admin, err := perm.IsAdmin(db, actor)
		if err != nil {
			return err
		}
		if !admin {
			return perm.Deny("delete_comment", c.ID)
		}
	}

	now := time.Now()
	err = db.Model(&models.Comment{}).Where("id = ?", c.ID).
		Updates(map[string]interface{}{"is_deleted": true, "deleted_at": now}).Error
	if err != nil {
		return fmt.Errorf("comment: delete %s: %w", c.ID, err)
	}
	return nil
}

// targetExists confirms the single set target references a live row.
func targetExists(db *gorm.DB, t Target) error {
	var (
		kind  string
		id    string
		model interface{}
	)
	switch {
	case t.ProjectID != "":
		kind, id, model = "project", t.ProjectID, &models.Project{}
	case t.EpicID != "":
		kind, id, model = "epic", t.EpicID, &models.Epic{}
	case t.SprintID != "":
		kind, id, model = "sprint", t.SprintID, &models.Sprint{}
	case t.IssueID != "":
		kind, id, model = "issue", t.IssueID, &models.Issue{}
	}

	var n int64
	err := db.Model(model).Where("id = ? AND is_deleted = ?", id, false).Count(&n).Error
	if err != nil {
		return fmt.Errorf("comment: fetch %s %s: %w", kind, id, err)
	}
	if n == 0 {
		return fmt.Errorf("comment: %s %s: %w", kind, id, models.ErrNotFound)
	}
	return nil
}
