package workitem

import (
	"errors"
	"fmt"

	"github.com/cadencehq/cadence/internal/ident"
	"github.com/cadencehq/cadence/internal/models"
	"gorm.io/gorm"
)

// CreateFeatureOpts holds parameters for creating a feature.
type CreateFeatureOpts struct {
	ProjectID   string
	EpicID      string
	Name        string
	Description string
	Status      string
	Priority    string
}

// CreateFeature writes a new feature under the project.
func CreateFeature(db *gorm.DB, opts CreateFeatureOpts) (*models.Feature, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("workitem: feature name is required: %w", models.ErrValidation)
	}
	p, err := GetProject(db, opts.ProjectID)
	if err != nil {
		return nil, err
	}
	if opts.Priority == "" {
		opts.Priority = "medium"
	}
	id, err := ident.NewID("ftr")
	if err != nil {
		return nil, fmt.Errorf("workitem: %w", err)
	}
	f := models.Feature{
		ID:          id,
		ProjectID:   p.ID,
		EpicID:      ident.Resolve(opts.EpicID),
		Name:        opts.Name,
		Description: opts.Description,
		Status:      NormalizeStatus(opts.Status),
		Priority:    opts.Priority,
	}
	if err := db.Create(&f).Error; err != nil {
		return nil, fmt.Errorf("workitem: create feature: %w", err)
	}
	return &f, nil
}

// featureFields names the columns UpdateFeature accepts.
var featureFields = map[string]bool{
	"name": true, "description": true, "status": true, "priority": true, "epic_id": true,
}

// UpdateFeature applies a field-level patch.
func UpdateFeature(db *gorm.DB, id string, updates map[string]interface{}) (*models.Feature, error) {
	f, err := GetFeature(db, id)
	if err != nil {
		return nil, err
	}
	clean := map[string]interface{}{}
	for k, v := range updates {
		if !featureFields[k] {
			return nil, fmt.Errorf("workitem: unknown field %q: %w", k, models.ErrValidation)
		}
		clean[k] = v
	}
	if v, ok := clean["status"]; ok {
		clean["status"] = NormalizeStatus(ident.Resolve(v))
	}
	if v, ok := clean["epic_id"]; ok {
		clean["epic_id"] = ident.Resolve(v)
	}
	if len(clean) == 0 {
		return f, nil
	}
	if err := db.Model(f).Updates(clean).Error; err != nil {
		return nil, fmt.Errorf("workitem: update feature %s: %w", id, err)
	}
	return GetFeature(db, id)
}

// GetFeature retrieves a live feature by id.
func GetFeature(db *gorm.DB, id string) (*models.Feature, error) {
	var f models.Feature
	err := db.Where("id = ? AND is_deleted = ?", ident.Resolve(id), false).First(&f).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("workitem: feature %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("workitem: get feature %s: %w", id, err)
	}
	return &f, nil
}

// ListFeatures returns the project's live features, oldest first.
func ListFeatures(db *gorm.DB, projectID string) ([]models.Feature, error) {
	var features []models.Feature
	err := db.Where("project_id = ? AND is_deleted = ?", ident.Resolve(projectID), false).
		Order("created_at ASC").Find(&features).Error
	if err != nil {
		return nil, fmt.Errorf("workitem: list features: %w", err)
	}
	return features, nil
}
