package workitem

import (
	"errors"
	"fmt"

	"github.com/cadencehq/cadence/internal/ident"
	"github.com/cadencehq/cadence/internal/models"
	"gorm.io/gorm"
)

// CreateEpicOpts holds parameters for creating an epic.
type CreateEpicOpts struct {
	ProjectID   string
	Name        string
	Description string
	Status      string
}

// NextEpicKey builds the next epic key for the project, {KEY}-EPIC-{n}.
// Same counting rule as issue keys: live rows + 1 at insert time.
func NextEpicKey(db *gorm.DB, p *models.Project) (string, error) {
	var n int64
	if err := db.Model(&models.Epic{}).Where("project_id = ?", p.ID).Count(&n).Error; err != nil {
		return "", fmt.Errorf("workitem: count epics for %s: %w", p.ID, err)
	}
	return fmt.Sprintf("%s-EPIC-%d", p.Key, n+1), nil
}

// CreateEpic writes a new epic under the project.
func CreateEpic(db *gorm.DB, opts CreateEpicOpts) (*models.Epic, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("workitem: epic name is required: %w", models.ErrValidation)
	}
	p, err := GetProject(db, opts.ProjectID)
	if err != nil {
		return nil, err
	}
	key, err := NextEpicKey(db, p)
	if err != nil {
		return nil, err
	}
	id, err := ident.NewID("epc")
	if err != nil {
		return nil, fmt.Errorf("workitem: %w", err)
	}
	e := models.Epic{
		ID:          id,
		ProjectID:   p.ID,
		Key:         key,
		Name:        opts.Name,
		Description: opts.Description,
		Status:      NormalizeStatus(opts.Status),
	}
	if err := db.Create(&e).Error; err != nil {
		return nil, fmt.Errorf("workitem: create epic: %w", err)
	}
	return &e, nil
}

// epicFields names the columns UpdateEpic accepts.
var epicFields = map[string]bool{
	"name": true, "description": true, "status": true,
}

// UpdateEpic applies a field-level patch. The key is immutable.
func UpdateEpic(db *gorm.DB, id string, updates map[string]interface{}) (*models.Epic, error) {
	e, err := GetEpic(db, id)
	if err != nil {
		return nil, err
	}
	clean := map[string]interface{}{}
	for k, v := range updates {
		if !epicFields[k] {
			return nil, fmt.Errorf("workitem: unknown field %q: %w", k, models.ErrValidation)
		}
		clean[k] = v
	}
	if v, ok := clean["status"]; ok {
		clean["status"] = NormalizeStatus(ident.Resolve(v))
	}
	if len(clean) == 0 {
		return e, nil
	}
	if err := db.Model(e).Updates(clean).Error; err != nil {
		return nil, fmt.Errorf("workitem: update epic %s: %w", id, err)
	}
	return GetEpic(db, id)
}

// GetEpic retrieves a live epic by id.
func GetEpic(db *gorm.DB, id string) (*models.Epic, error) {
	var e models.Epic
	err := db.Where("id = ? AND is_deleted = ?", ident.Resolve(id), false).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("workitem: epic %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("workitem: get epic %s: %w", id, err)
	}
	return &e, nil
}

// ListEpics returns the project's live epics, oldest first.
func ListEpics(db *gorm.DB, projectID string) ([]models.Epic, error) {
	var epics []models.Epic
	err := db.Where("project_id = ? AND is_deleted = ?", ident.Resolve(projectID), false).
		Order("created_at ASC").Find(&epics).Error
	if err != nil {
		return nil, fmt.Errorf("workitem: list epics: %w", err)
	}
	return epics, nil
}
