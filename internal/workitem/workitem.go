// Package workitem implements create/update/list operations for the
// work-item hierarchy: projects, epics, features, issues and subtasks.
// Reference columns are written canonically (bare ids); reads that must
// tolerate migrated rows go through the ident package.
package workitem

import (
	"errors"
	"fmt"

	"github.com/cadencehq/cadence/internal/ident"
	"github.com/cadencehq/cadence/internal/models"
	"gorm.io/gorm"
)

// CreateIssueOpts holds parameters for creating a new issue.
type CreateIssueOpts struct {
	ProjectID      string
	Title          string
	Description    string
	Type           string // story, task, bug, subtask
	Priority       string // highest..lowest
	Status         string // normalized before write
	Location       string // backlog, sprint, board, archived
	EpicID         string
	SprintID       string
	FeatureID      string
	ParentID       string // required iff Type == subtask
	Assignee       string
	CreatedBy      string
	StoryPoints    *int
	EstimatedHours float64
}

// IssueFilters holds optional filters for listing issues.
type IssueFilters struct {
	ProjectID string
	EpicID    string
	SprintID  string
	Assignee  string
	Status    string
	Location  string
	Type      string
}

// NextIssueKey builds the next human-readable key for an issue in the
// project, {KEY}-{n} with n = live row count + 1. The count is taken at
// insert time; duplicate keys under concurrent insertion are accepted.
func NextIssueKey(db *gorm.DB, p *models.Project) (string, error) {
	var n int64
	if err := db.Model(&models.Issue{}).Where("project_id = ?", p.ID).Count(&n).Error; err != nil {
		return "", fmt.Errorf("workitem: count issues for %s: %w", p.ID, err)
	}
	return fmt.Sprintf("%s-%d", p.Key, n+1), nil
}

// CreateIssue validates the request against the owning project and writes
// the issue. When the issue lands in the backlog its id is appended to the
// project backlog idempotently.
func CreateIssue(db *gorm.DB, opts CreateIssueOpts) (*models.Issue, error) {
	if opts.Title == "" {
		return nil, fmt.Errorf("workitem: title is required: %w", models.ErrValidation)
	}

	p, err := GetProject(db, opts.ProjectID)
	if err != nil {
		return nil, err
	}

	if opts.Type == "" {
		opts.Type = models.TypeTask
	}
	if !validIssueType(opts.Type) {
		return nil, fmt.Errorf("workitem: unknown issue type %q: %w", opts.Type, models.ErrValidation)
	}
	if opts.Priority == "" {
		opts.Priority = "medium"
	}
	if opts.Location == "" {
		opts.Location = models.LocationBacklog
	}
	if !validLocation(opts.Location) {
		return nil, fmt.Errorf("workitem: unknown location %q: %w", opts.Location, models.ErrValidation)
	}
	if opts.StoryPoints != nil && !models.ValidStoryPoints(*opts.StoryPoints) {
		return nil, fmt.Errorf("workitem: story points %d not in scale: %w", *opts.StoryPoints, models.ErrValidation)
	}

	// Subtasks require a parent and only subtasks may have one.
	if opts.Type == models.TypeSubtask && opts.ParentID == "" {
		return nil, fmt.Errorf("workitem: subtask requires a parent: %w", models.ErrValidation)
	}
	if opts.Type != models.TypeSubtask && opts.ParentID != "" {
		return nil, fmt.Errorf("workitem: parent set on non-subtask: %w", models.ErrValidation)
	}
	if opts.ParentID != "" {
		if _, err := GetIssue(db, opts.ParentID); err != nil {
			return nil, err
		}
	}

	key, err := NextIssueKey(db, p)
	if err != nil {
		return nil, err
	}
	id, err := ident.NewID("iss")
	if err != nil {
		return nil, fmt.Errorf("workitem: %w", err)
	}

	issue := models.Issue{
		ID:             id,
		ProjectID:      p.ID,
		Key:            key,
		EpicID:         ident.Resolve(opts.EpicID),
		SprintID:       ident.Resolve(opts.SprintID),
		FeatureID:      ident.Resolve(opts.FeatureID),
		Assignee:       ident.Resolve(opts.Assignee),
		CreatedBy:      ident.Resolve(opts.CreatedBy),
		Title:          opts.Title,
		Description:    opts.Description,
		Type:           opts.Type,
		Priority:       opts.Priority,
		Status:         NormalizeStatus(opts.Status),
		Location:       opts.Location,
		StoryPoints:    opts.StoryPoints,
		EstimatedHours: opts.EstimatedHours,
	}
	if opts.ParentID != "" {
		parentID := ident.Resolve(opts.ParentID)
		issue.ParentID = &parentID
	}

	if err := db.Create(&issue).Error; err != nil {
		return nil, fmt.Errorf("workitem: create issue: %w", err)
	}

	if issue.Location == models.LocationBacklog {
		if err := AppendToBacklog(db, p.ID, issue.ID); err != nil {
			return nil, err
		}
	}

	return &issue, nil
}

// issueFields names the columns UpdateIssue accepts.
var issueFields = map[string]bool{
	"title": true, "description": true, "type": true, "priority": true,
	"status": true, "location": true, "assignee": true, "epic_id": true,
	"sprint_id": true, "feature_id": true, "parent_id": true,
	"story_points": true, "estimated_hours": true,
}

// UpdateIssue applies a field-level patch. Status values are normalized,
// story points checked against the scale, the subtask/parent pairing
// re-enforced, and location confined to the known set.
func UpdateIssue(db *gorm.DB, id string, updates map[string]interface{}) (*models.Issue, error) {
	issue, err := GetIssue(db, id)
	if err != nil {
		return nil, err
	}

	clean := map[string]interface{}{}
	for k, v := range updates {
		if !issueFields[k] {
			return nil, fmt.Errorf("workitem: unknown field %q: %w", k, models.ErrValidation)
		}
		clean[k] = v
	}

	if v, ok := clean["status"]; ok {
		clean["status"] = NormalizeStatus(ident.Resolve(v))
	}
	if v, ok := clean["location"]; ok {
		loc := ident.Resolve(v)
		if !validLocation(loc) {
			return nil, fmt.Errorf("workitem: unknown location %q: %w", loc, models.ErrValidation)
		}
		clean["location"] = loc
	}
	if v, ok := clean["story_points"]; ok && v != nil {
		pts, err := toInt(v)
		if err != nil {
			return nil, fmt.Errorf("workitem: story points: %w", models.ErrValidation)
		}
		if !models.ValidStoryPoints(pts) {
			return nil, fmt.Errorf("workitem: story points %d not in scale: %w", pts, models.ErrValidation)
		}
		clean["story_points"] = pts
	}

	// Re-check the subtask invariant against the post-patch shape.
	newType := issue.Type
	if v, ok := clean["type"]; ok {
		newType = ident.Resolve(v)
		if !validIssueType(newType) {
			return nil, fmt.Errorf("workitem: unknown issue type %q: %w", newType, models.ErrValidation)
		}
	}
	hasParent := issue.ParentID != nil && *issue.ParentID != ""
	if v, ok := clean["parent_id"]; ok {
		pid := ident.Resolve(v)
		hasParent = pid != ""
		if pid == "" {
			clean["parent_id"] = nil
		} else {
			if _, err := GetIssue(db, pid); err != nil {
				return nil, err
			}
			clean["parent_id"] = pid
		}
	}
	if newType == models.TypeSubtask && !hasParent {
		return nil, fmt.Errorf("workitem: subtask requires a parent: %w", models.ErrValidation)
	}
	if newType != models.TypeSubtask && hasParent {
		return nil, fmt.Errorf("workitem: parent set on non-subtask: %w", models.ErrValidation)
	}

	if len(clean) == 0 {
		return issue, nil
	}
	if err := db.Model(issue).Updates(clean).Error; err != nil {
		return nil, fmt.Errorf("workitem: update issue %s: %w", id, err)
	}
	return GetIssue(db, id)
}

// AddSubtask creates a child issue under parentID. The child inherits the
// parent's project, epic, sprint and location.
func AddSubtask(db *gorm.DB, parentID string, opts CreateIssueOpts) (*models.Issue, error) {
	parent, err := GetIssue(db, parentID)
	if err != nil {
		return nil, err
	}
	opts.ProjectID = parent.ProjectID
	opts.EpicID = parent.EpicID
	opts.SprintID = parent.SprintID
	opts.Location = parent.Location
	opts.Type = models.TypeSubtask
	opts.ParentID = parent.ID
	return CreateIssue(db, opts)
}

// GetIssue retrieves a live (not soft-deleted) issue by id.
func GetIssue(db *gorm.DB, id string) (*models.Issue, error) {
	var issue models.Issue
	err := db.Where("id = ? AND is_deleted = ?", ident.Resolve(id), false).First(&issue).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("workitem: issue %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("workitem: get issue %s: %w", id, err)
	}
	return &issue, nil
}

// ListIssues returns live issues matching the filters, newest first.
func ListIssues(db *gorm.DB, f IssueFilters) ([]models.Issue, error) {
	q := db.Model(&models.Issue{}).Where("is_deleted = ?", false)
	if f.ProjectID != "" {
		q = q.Where("project_id = ?", ident.Resolve(f.ProjectID))
	}
	if f.EpicID != "" {
		q = q.Where("epic_id IN ?", ident.Shapes(ident.Resolve(f.EpicID)))
	}
	if f.SprintID != "" {
		q = q.Where("sprint_id IN ?", ident.Shapes(ident.Resolve(f.SprintID)))
	}
	if f.Assignee != "" {
		q = q.Where("assignee = ?", ident.Resolve(f.Assignee))
	}
	if f.Status != "" {
		q = q.Where("status = ?", NormalizeStatus(f.Status))
	}
	if f.Location != "" {
		q = q.Where("location = ?", f.Location)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}

	var issues []models.Issue
	if err := q.Order("created_at DESC").Find(&issues).Error; err != nil {
		return nil, fmt.Errorf("workitem: list issues: %w", err)
	}
	return issues, nil
}

// Subtasks returns live children of an issue, matching legacy parent
// encodings as well as canonical ids.
func Subtasks(db *gorm.DB, parentID string) ([]models.Issue, error) {
	var issues []models.Issue
	err := db.Where("parent_id IN ? AND is_deleted = ?", ident.Shapes(ident.Resolve(parentID)), false).
		Order("created_at ASC").Find(&issues).Error
	if err != nil {
		return nil, fmt.Errorf("workitem: subtasks of %s: %w", parentID, err)
	}
	return issues, nil
}

func validIssueType(t string) bool {
	for _, v := range models.IssueTypes {
		if v == t {
			return true
		}
	}
	return false
}

func validLocation(loc string) bool {
	for _, v := range models.Locations {
		if v == loc {
			return true
		}
	}
	return false
}

// toInt coerces the numeric types a JSON decode or a caller map can carry.
func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case *int:
		if n == nil {
			return 0, fmt.Errorf("nil")
		}
		return *n, nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}
