package db

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cadencehq/cadence/internal/models"
)

// AllModels returns every GORM model for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Project{},
		&models.Epic{},
		&models.Sprint{},
		&models.Issue{},
		&models.Feature{},
		&models.Comment{},
		&models.TimeEntry{},
		&models.LinkedWorkItem{},
		&models.Board{},
		&models.BoardColumn{},
		&models.Backlog{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedUser upserts a user row, keyed by email. Used by `cad user add` and
// first-run initialization.
func SeedUser(db *gorm.DB, id, name, email, role string) error {
	u := models.User{
		ID:    id,
		Name:  name,
		Email: email,
		Role:  role,
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "role"}),
	}).Create(&u)
	if result.Error != nil {
		return fmt.Errorf("db: seed user %q: %w", email, result.Error)
	}
	return nil
}
