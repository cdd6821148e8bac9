package workitem

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cadencehq/cadence/internal/ident"
	"github.com/cadencehq/cadence/internal/models"
	"gorm.io/gorm"
)

// CreateProjectOpts holds parameters for creating a project.
type CreateProjectOpts struct {
	Key         string // short uppercase tag, e.g. APOLLO
	Name        string
	Description string
	Lead        string
	Public      bool
}

// CreateProject writes a new project and its empty backlog. The board is
// created lazily on first access.
func CreateProject(db *gorm.DB, opts CreateProjectOpts) (*models.Project, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("workitem: project name is required: %w", models.ErrValidation)
	}
	key := strings.ToUpper(strings.TrimSpace(opts.Key))
	if key == "" {
		return nil, fmt.Errorf("workitem: project key is required: %w", models.ErrValidation)
	}

	var n int64
	if err := db.Model(&models.Project{}).Where("key = ?", key).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("workitem: check key %s: %w", key, err)
	}
	if n > 0 {
		return nil, fmt.Errorf("workitem: project key %s already in use: %w", key, models.ErrValidation)
	}

	id, err := ident.NewID("prj")
	if err != nil {
		return nil, fmt.Errorf("workitem: %w", err)
	}
	p := models.Project{
		ID:          id,
		Key:         key,
		Name:        opts.Name,
		Description: opts.Description,
		Lead:        ident.Resolve(opts.Lead),
		Members:     models.RoleMap{},
		Public:      opts.Public,
	}
	if err := db.Create(&p).Error; err != nil {
		return nil, fmt.Errorf("workitem: create project: %w", err)
	}
	if _, err := EnsureBacklog(db, p.ID); err != nil {
		return nil, err
	}
	return &p, nil
}

// projectFields names the columns UpdateProject accepts.
var projectFields = map[string]bool{
	"name": true, "description": true, "lead": true, "public": true,
}

// UpdateProject applies a field-level patch. The key is immutable.
func UpdateProject(db *gorm.DB, id string, updates map[string]interface{}) (*models.Project, error) {
	p, err := GetProject(db, id)
	if err != nil {
		return nil, err
	}
	clean := map[string]interface{}{}
	for k, v := range updates {
		if !projectFields[k] {
			return nil, fmt.Errorf("workitem: unknown field %q: %w", k, models.ErrValidation)
		}
		clean[k] = v
	}
	if v, ok := clean["lead"]; ok {
		clean["lead"] = ident.Resolve(v)
	}
	if len(clean) == 0 {
		return p, nil
	}
	if err := db.Model(p).Updates(clean).Error; err != nil {
		return nil, fmt.Errorf("workitem: update project %s: %w", id, err)
	}
	return GetProject(db, id)
}

// SetMember adds or updates a member role on the project. An empty role
// removes the member.
func SetMember(db *gorm.DB, projectID, userID, role string) (*models.Project, error) {
	p, err := GetProject(db, projectID)
	if err != nil {
		return nil, err
	}
	uid := ident.Resolve(userID)
	if uid == "" {
		return nil, fmt.Errorf("workitem: member user id is required: %w", models.ErrValidation)
	}
	members := p.Members
	if members == nil {
		members = models.RoleMap{}
	}
	if role == "" {
		delete(members, uid)
	} else {
		members[uid] = role
	}
	if err := db.Model(p).Update("members", members).Error; err != nil {
		return nil, fmt.Errorf("workitem: set member on %s: %w", projectID, err)
	}
	p.Members = members
	return p, nil
}

// GetProject retrieves a live project by id or key.
func GetProject(db *gorm.DB, id string) (*models.Project, error) {
	rid := ident.Resolve(id)
	if rid == "" {
		return nil, fmt.Errorf("workitem: project id is required: %w", models.ErrValidation)
	}
	var p models.Project
	err := db.Where("(id = ? OR key = ?) AND is_deleted = ?", rid, rid, false).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("workitem: project %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("workitem: get project %s: %w", id, err)
	}
	return &p, nil
}

// ListProjects returns live projects visible in listings, oldest first.
func ListProjects(db *gorm.DB) ([]models.Project, error) {
	var projects []models.Project
	if err := db.Where("is_deleted = ?", false).Order("created_at ASC").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("workitem: list projects: %w", err)
	}
	return projects, nil
}
