// Package timelog records time spent on issues: a clock-in/clock-out pair
// per entry, or a manually supplied duration. The owning issue's
// time_spent_hours is a derived aggregate, recomputed from live entries
// every time an entry is finalized.
package timelog

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/cadencehq/cadence/internal/ident"
	"github.com/cadencehq/cadence/internal/models"
	"github.com/cadencehq/cadence/internal/perm"
	"github.com/cadencehq/cadence/internal/workitem"
)

// ClockIn opens a running entry on the issue. A user gets at most one open
// entry per issue; a second clock-in is rejected until the first is closed.
func ClockIn(db *gorm.DB, issueID, userID string) (*models.TimeEntry, error) {
	userID = ident.Resolve(userID)
	if userID == "" {
		return nil, fmt.Errorf("timelog: user is required: %w", models.ErrValidation)
	}
	iss, err := workitem.GetIssue(db, issueID)
	if err != nil {
		return nil, err
	}

	var open int64
	err = db.Model(&models.TimeEntry{}).
		Where("issue_id IN ? AND user_id = ? AND clock_out IS NULL AND is_deleted = ?",
			ident.Shapes(iss.ID), userID, false).
		Count(&open).Error
	if err != nil {
		return nil, fmt.Errorf("timelog: check open entries: %w", err)
	}
	if open > 0 {
		return nil, fmt.Errorf("timelog: user %s already clocked in on %s: %w", userID, iss.ID, models.ErrValidation)
	}

	id, err := ident.NewID("tme")
	if err != nil {
		return nil, fmt.Errorf("timelog: %w", err)
	}
	entry := models.TimeEntry{
		ID:        id,
		ProjectID: iss.ProjectID,
		IssueID:   iss.ID,
		UserID:    userID,
		ClockIn:   time.Now(),
	}
	if err := db.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("timelog: clock in on %s: %w", iss.ID, err)
	}
	return &entry, nil
}

// ClockOut closes a running entry, derives its seconds from the clock pair
// and recomputes the issue aggregate. Only the entry's owner or a site
// admin may close it; closing twice is rejected.
func ClockOut(db *gorm.DB, entryID, actor string) (*models.TimeEntry, error) {
	entry, err := Get(db, entryID)
	if err != nil {
		return nil, err
	}

	actor = ident.Resolve(actor)
	if !ident.Same(entry.UserID, actor) {
		admin, err := perm.IsAdmin(db, actor)
		if err != nil {
			return nil, err
		}
		if !admin {
			return nil, perm.Deny("clock_out", entry.ID)
		}
	}

	if !entry.Open() {
		return nil, fmt.Errorf("timelog: entry %s already clocked out: %w", entry.ID, models.ErrValidation)
	}

	now := time.Now()
	entry.ClockOut = &now
	entry.Seconds = int64(now.Sub(entry.ClockIn).Seconds())
	err = db.Model(&models.TimeEntry{}).Where("id = ?", entry.ID).
		Updates(map[string]interface{}{"clock_out": now, "seconds": entry.Seconds}).Error
	if err != nil {
		return nil, fmt.Errorf("timelog: clock out %s: %w", entry.ID, err)
	}

	if err := recomputeTimeSpent(db, entry.IssueID); err != nil {
		return nil, err
	}
	return entry, nil
}

// AddManual writes an already-finished entry of the given duration, with
// clock_in = clock_out = now, and recomputes the issue aggregate.
func AddManual(db *gorm.DB, issueID, userID string, seconds int64) (*models.TimeEntry, error) {
	userID = ident.Resolve(userID)
	if userID == "" {
		return nil, fmt.Errorf("timelog: user is required: %w", models.ErrValidation)
	}
	if seconds <= 0 {
		return nil, fmt.Errorf("timelog: seconds must be positive, got %d: %w", seconds, models.ErrValidation)
	}
	iss, err := workitem.GetIssue(db, issueID)
	if err != nil {
		return nil, err
	}

	id, err := ident.NewID("tme")
	if err != nil {
		return nil, fmt.Errorf("timelog: %w", err)
	}
	now := time.Now()
	entry := models.TimeEntry{
		ID:        id,
		ProjectID: iss.ProjectID,
		IssueID:   iss.ID,
		UserID:    userID,
		ClockIn:   now,
		ClockOut:  &now,
		Seconds:   seconds,
	}
	if err := db.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("timelog: add manual entry on %s: %w", iss.ID, err)
	}

	if err := recomputeTimeSpent(db, iss.ID); err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns live entries on the issue, oldest first.
func List(db *gorm.DB, issueID string) ([]models.TimeEntry, error) {
	refs := ident.Shapes(ident.Resolve(issueID))
	if len(refs) == 0 {
		return nil, fmt.Errorf("timelog: issue id is required: %w", models.ErrValidation)
	}
	var entries []models.TimeEntry
	err := db.Where("issue_id IN ? AND is_deleted = ?", refs, false).
		Order("created_at ASC").Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("timelog: list for %s: %w", issueID, err)
	}
	return entries, nil
}

// Get retrieves a live entry by id.
func Get(db *gorm.DB, entryID string) (*models.TimeEntry, error) {
	var entry models.TimeEntry
	err := db.Where("id = ? AND is_deleted = ?", ident.Resolve(entryID), false).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("timelog: entry %s: %w", entryID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("timelog: get entry %s: %w", entryID, err)
	}
	return &entry, nil
}

// recomputeTimeSpent rewrites the issue's time_spent_hours from the sum of
// its live entries' seconds, rounded to two decimals.
func recomputeTimeSpent(db *gorm.DB, issueID string) error {
	var total int64
	err := db.Model(&models.TimeEntry{}).
		Where("issue_id IN ? AND is_deleted = ?", ident.Shapes(issueID), false).
		Select("COALESCE(SUM(seconds), 0)").Scan(&total).Error
	if err != nil {
		return fmt.Errorf("timelog: sum entries for %s: %w", issueID, err)
	}

	hours := math.Round(float64(total)/3600*100) / 100
	err = db.Model(&models.Issue{}).Where("id = ?", ident.Resolve(issueID)).
		Update("time_spent_hours", hours).Error
	if err != nil {
		return fmt.Errorf("timelog: update time spent on %s: %w", issueID, err)
	}
	return nil
}
