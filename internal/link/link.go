// Package link manages typed relations between work items. Links are plain
// relation rows: they carry no lifecycle of their own and deliberately
// survive soft-delete of either endpoint, so a restored item gets its
// relations back without any bookkeeping.
package link

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/cadencehq/cadence/internal/ident"
	"github.com/cadencehq/cadence/internal/models"
)

// Endpoint kinds a link may connect.
const (
	TypeProject = "project"
	TypeEpic    = "epic"
	TypeSprint  = "sprint"
	TypeIssue   = "issue"
	TypeFeature = "feature"
)

// ValidType reports whether t names a linkable entity type.
func ValidType(t string) bool {
	switch t {
	case TypeProject, TypeEpic, TypeSprint, TypeIssue, TypeFeature:
		return true
	}
	return false
}

// Create validates both endpoints and writes the link. Self-links (same id
// and same type) are rejected. The link inherits project_id from its source
// endpoint so project cascades can reach it.
func Create(db *gorm.DB, sourceID, sourceType, targetID, targetType, reason string) (*models.LinkedWorkItem, error) {
	if reason == "" {
		reason = "relates_to"
	}
	if !models.ValidLinkReason(reason) {
		return nil, fmt.Errorf("link: unknown reason %q: %w", reason, models.ErrValidation)
	}
	if !ValidType(sourceType) {
		return nil, fmt.Errorf("link: unknown source type %q: %w", sourceType, models.ErrValidation)
	}
	if !ValidType(targetType) {
		return nil, fmt.Errorf("link: unknown target type %q: %w", targetType, models.ErrValidation)
	}

	srcID := ident.Resolve(sourceID)
	tgtID := ident.Resolve(targetID)
	if srcID == "" || tgtID == "" {
		return nil, fmt.Errorf("link: source and target are required: %w", models.ErrValidation)
	}
	if srcID == tgtID && sourceType == targetType {
		return nil, fmt.Errorf("link: item cannot link to itself: %w", models.ErrValidation)
	}

	projectID, err := endpointProject(db, sourceType, srcID)
	if err != nil {
		return nil, err
	}
	if _, err := endpointProject(db, targetType, tgtID); err != nil {
		return nil, err
	}

	id, err := ident.NewID("lnk")
	if err != nil {
		return nil, fmt.Errorf("link: %w", err)
	}
	l := models.LinkedWorkItem{
		ID:         id,
		ProjectID:  projectID,
		SourceID:   srcID,
		SourceType: sourceType,
		TargetID:   tgtID,
		TargetType: targetType,
		Reason:     reason,
	}
	if err := db.Create(&l).Error; err != nil {
		return nil, fmt.Errorf("link: create %s->%s: %w", srcID, tgtID, err)
	}
	return &l, nil
}

// List returns every live link where the item appears as source or target,
// matching legacy reference encodings on both columns.
func List(db *gorm.DB, itemID string) ([]models.LinkedWorkItem, error) {
	refs := ident.Shapes(ident.Resolve(itemID))
	if len(refs) == 0 {
		return nil, fmt.Errorf("link: item id is required: %w", models.ErrValidation)
	}
	var links []models.LinkedWorkItem
	err := db.Where("(source_id IN ? OR target_id IN ?) AND is_deleted = ?", refs, refs, false).
		Order("created_at ASC").Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("link: list for %s: %w", itemID, err)
	}
	return links, nil
}

// Get retrieves a live link by id.
func Get(db *gorm.DB, linkID string) (*models.LinkedWorkItem, error) {
	var l models.LinkedWorkItem
	err := db.Where("id = ? AND is_deleted = ?", ident.Resolve(linkID), false).First(&l).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("link: %s: %w", linkID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("link: get %s: %w", linkID, err)
	}
	return &l, nil
}

// Delete removes one link row. Removing a relation is final; there is no
// per-link recycle bin.
func Delete(db *gorm.DB, linkID string) error {
	tx := db.Where("id = ?", ident.Resolve(linkID)).Delete(&models.LinkedWorkItem{})
	if tx.Error != nil {
		return fmt.Errorf("link: delete %s: %w", linkID, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("link: %s: %w", linkID, models.ErrNotFound)
	}
	return nil
}

// endpointProject confirms a live endpoint row exists and returns the
// project it belongs to ("" for projects themselves and global sprints).
func endpointProject(db *gorm.DB, kind, id string) (string, error) {
	var (
		projectID string
		err       error
	)
	switch kind {
	case TypeProject:
		var p models.Project
		err = liveRow(db, id, &p)
		projectID = id
	case TypeEpic:
		var e models.Epic
		err = liveRow(db, id, &e)
		projectID = e.ProjectID
	case TypeSprint:
		var s models.Sprint
		err = liveRow(db, id, &s)
		projectID = s.ProjectID
	case TypeIssue:
		var iss models.Issue
		err = liveRow(db, id, &iss)
		projectID = iss.ProjectID
	case TypeFeature:
		var f models.Feature
		err = liveRow(db, id, &f)
		projectID = f.ProjectID
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("link: %s %s: %w", kind, id, models.ErrNotFound)
		}
		return "", fmt.Errorf("link: fetch %s %s: %w", kind, id, err)
	}
	return projectID, nil
}

func liveRow(db *gorm.DB, id string, out interface{}) error {
	return db.Where("id = ? AND is_deleted = ?", id, false).First(out).Error
}
