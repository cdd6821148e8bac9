package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cadencehq/cadence/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openWatcherTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Project{},
		&models.Sprint{},
		&models.Issue{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func hoursAgo(h int) *time.Time {
	t := time.Now().Add(-time.Duration(h) * time.Hour)
	return &t
}

func hoursAhead(h int) *time.Time {
	t := time.Now().Add(time.Duration(h) * time.Hour)
	return &t
}

// --- NewWatcher tests ---

func TestNewWatcher_NilDB(t *testing.T) {
	_, err := NewWatcher(WatcherOpts{})
	if err == nil {
		t.Fatal("expected error for nil db")
	}
}

func TestNewWatcher_Defaults(t *testing.T) {
	db := openWatcherTestDB(t)
	w, err := NewWatcher(WatcherOpts{DB: db})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.pollInterval != DefaultPollInterval {
		t.Errorf("poll interval = %v, want %v", w.pollInterval, DefaultPollInterval)
	}
}

func TestNewWatcher_CustomInterval(t *testing.T) {
	db := openWatcherTestDB(t)
	w, err := NewWatcher(WatcherOpts{DB: db, PollInterval: 5 * time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.pollInterval != 5*time.Second {
		t.Errorf("poll interval = %v, want 5s", w.pollInterval)
	}
}

// --- Poll seeding ---

func TestPoll_FirstPollSeedsSnapshot(t *testing.T) {
	db := openWatcherTestDB(t)
	db.Create(&models.Project{ID: "prj-1", Key: "ONE", Name: "One"})
	db.Create(&models.Sprint{ID: "spr-1", ProjectID: "prj-1", Name: "Alpha", Status: models.SprintPlanned})
	db.Create(&models.Issue{ID: "iss-1", ProjectID: "prj-1", Key: "ONE-1", Title: "First"})

	w, _ := NewWatcher(WatcherOpts{DB: db})

	events, err := w.Poll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// First poll should seed the snapshot without emitting events.
	if len(events) != 0 {
		t.Errorf("expected 0 events on first poll, got %d", len(events))
	}
	if !w.Seeded() {
		t.Error("expected watcher to be seeded after first poll")
	}
	if snap := w.SprintSnapshot(); len(snap) != 1 {
		t.Errorf("sprint snapshot size = %d, want 1", len(snap))
	}
}

// --- detectSprintEvents tests ---

func TestDetectSprintEvents_Started(t *testing.T) {
	db := openWatcherTestDB(t)
	db.Create(&models.Sprint{ID: "spr-1", ProjectID: "prj-1", Name: "Alpha", Status: models.SprintPlanned})

	w, _ := NewWatcher(WatcherOpts{DB: db})
	w.detectSprintEvents() // seed

	db.Model(&models.Sprint{}).Where("id = ?", "spr-1").
		Updates(map[string]interface{}{"status": models.SprintRunning, "active": true})

	events, err := w.detectSprintEvents()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Type != EventSprintStarted {
		t.Errorf("type = %v, want %v", e.Type, EventSprintStarted)
	}
	if e.SprintID != "spr-1" {
		t.Errorf("sprint id = %q, want %q", e.SprintID, "spr-1")
	}
	if e.OldStatus != models.SprintPlanned {
		t.Errorf("old status = %q, want %q", e.OldStatus, models.SprintPlanned)
	}
	if e.NewStatus != models.SprintRunning {
		t.Errorf("new status = %q, want %q", e.NewStatus, models.SprintRunning)
	}
	if e.Name != "Alpha" {
		t.Errorf("name = %q, want %q", e.Name, "Alpha")
	}
}

func TestDetectSprintEvents_Completed(t *testing.T) {
	db := openWatcherTestDB(t)
	db.Create(&models.Sprint{ID: "spr-1", ProjectID: "prj-1", Name: "Alpha", Status: models.SprintRunning, Active: true})

	w, _ := NewWatcher(WatcherOpts{DB: db})
	w.detectSprintEvents() // seed

	db.Model(&models.Sprint{}).Where("id = ?", "spr-1").
		Updates(map[string]interface{}{"status": models.SprintCompleted, "active": false})

	events, err := w.detectSprintEvents()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != EventSprintCompleted {
		t.Errorf("type = %v, want %v", events[0].Type, EventSprintCompleted)
	}
}

func TestDetectSprintEvents_NoChangeNoDuplicate(t *testing.T) {
	db := openWatcherTestDB(t)
	db.Create(&models.Sprint{ID: "spr-1", ProjectID: "prj-1", Name: "Alpha", Status: models.SprintPlanned})

	w, _ := NewWatcher(WatcherOpts{DB: db})
	w.detectSprintEvents() // seed

	events, err := w.detectSprintEvents()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected 0 events for unchanged sprint, got %d", len(events))
	}
}

func TestDetectSprintEvents_NewSprintAfterSeed(t *testing.T) {
	db := openWatcherTestDB(t)
	db.Create(&models.Sprint{ID: "spr-1", ProjectID: "prj-1", Name: "Alpha", Status: models.SprintPlanned})

	w, _ := NewWatcher(WatcherOpts{DB: db})
	w.detectSprintEvents() // seed

	db.Create(&models.Sprint{ID: "spr-2", ProjectID: "prj-1", Name: "Beta", Status: models.SprintPlanned})

	events, err := w.detectSprintEvents()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event for new sprint, got %d", len(events))
	}
	if events[0].SprintID != "spr-2" {
		t.Errorf("sprint id = %q, want %q", events[0].SprintID, "spr-2")
	}
	if events[0].OldStatus != "" {
		t.Errorf("old status = %q, want empty", events[0].OldStatus)
	}
	if events[0].NewStatus != models.SprintPlanned {
		t.Errorf("new status = %q, want %q", events[0].NewStatus, models.SprintPlanned)
	}
}

func TestDetectSprintEvents_BinEnterAndLeave(t *testing.T) {
	db := openWatcherTestDB(t)
	db.Create(&models.Sprint{ID: "spr-1", ProjectID: "prj-1", Name: "Alpha", Status: models.SprintPlanned})

	w, _ := NewWatcher(WatcherOpts{DB: db})
	w.detectSprintEvents() // seed

	now := time.Now()
	db.Model(&models.Sprint{}).Where("id = ?", "spr-1").
		Updates(map[string]interface{}{"is_deleted": true, "deleted_at": now})

	events, err := w.detectSprintEvents()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != EventBinEnter {
		t.Errorf("type = %v, want %v", events[0].Type, EventBinEnter)
	}
	if events[0].Kind != "sprint" {
		t.Errorf("kind = %q, want %q", events[0].Kind, "sprint")
	}

	db.Model(&models.Sprint{}).Where("id = ?", "spr-1").
		Updates(map[string]interface{}{"is_deleted": false, "deleted_at": nil})

	events, err = w.detectSprintEvents()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != EventBinLeave {
		t.Errorf("type = %v, want %v", events[0].Type, EventBinLeave)
	}
}

func TestDetectSprintEvents_OverdueReportedOncePerEpisode(t *testing.T) {
	db := openWatcherTestDB(t)
	db.Create(&models.Sprint{
		ID: "spr-1", ProjectID: "prj-1", Name: "Alpha",
		Status: models.SprintRunning, Active: true, EndDate: hoursAgo(24),
	})

	w, _ := NewWatcher(WatcherOpts{DB: db})

	// Already overdue at startup: reported even on the seed poll.
	events, err := w.detectSprintEvents()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 overdue event, got %d", len(events))
	}
	if events[0].Type != EventSprintOverdue {
		t.Errorf("type = %v, want %v", events[0].Type, EventSprintOverdue)
	}

	// Still overdue: not reported again.
	events, _ = w.detectSprintEvents()
	if len(events) != 0 {
		t.Errorf("expected 0 events while still overdue, got %d", len(events))
	}

	// End date pushed out: episode ends, flag re-arms.
	db.Model(&models.Sprint{}).Where("id = ?", "spr-1").Update("end_date", hoursAhead(24))
	events, _ = w.detectSprintEvents()
	if len(events) != 0 {
		t.Errorf("expected 0 events when no longer overdue, got %d", len(events))
	}

	// Overdue again: new episode, reported again.
	db.Model(&models.Sprint{}).Where("id = ?", "spr-1").Update("end_date", hoursAgo(1))
	events, _ = w.detectSprintEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 overdue event for new episode, got %d", len(events))
	}
	if events[0].Type != EventSprintOverdue {
		t.Errorf("type = %v, want %v", events[0].Type, EventSprintOverdue)
	}
}

func TestDetectSprintEvents_PurgedSprintRemovedFromSnapshot(t *testing.T) {
	db := openWatcherTestDB(t)
	db.Create(&models.Sprint{ID: "spr-1", ProjectID: "prj-1", Name: "Alpha", Status: models.SprintPlanned})

	w, _ := NewWatcher(WatcherOpts{DB: db})
	w.detectSprintEvents() // seed

	if len(w.SprintSnapshot()) != 1 {
		t.Fatal("snapshot should have 1 sprint")
	}

	db.Unscoped().Delete(&models.Sprint{}, "id = ?", "spr-1")

	events, err := w.detectSprintEvents()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Purges are silent.
	if len(events) != 0 {
		t.Errorf("expected 0 events for purged sprint, got %d", len(events))
	}
	if snap := w.SprintSnapshot(); len(snap) != 0 {
		t.Errorf("snapshot should be empty after purge, got %d", len(snap))
	}
}

// --- detectBinEvents tests ---

func TestDetectBinEvents_IssueEnterAndLeave(t *testing.T) {
	db := openWatcherTestDB(t)
	db.Create(&models.Issue{ID: "iss-1", ProjectID: "prj-1", Key: "ONE-1", Title: "First"})

	w, _ := NewWatcher(WatcherOpts{DB: db})
	w.detectBinEvents() // seed

	now := time.Now()
	db.Model(&models.Issue{}).Where("id = ?", "iss-1").
		Updates(map[string]interface{}{"is_deleted": true, "deleted_at": now})

	events, err := w.detectBinEvents()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Type != EventBinEnter {
		t.Errorf("type = %v, want %v", e.Type, EventBinEnter)
	}
	if e.Kind != "issue" {
		t.Errorf("kind = %q, want %q", e.Kind, "issue")
	}
	if e.Name != "ONE-1 First" {
		t.Errorf("name = %q, want %q", e.Name, "ONE-1 First")
	}

	db.Model(&models.Issue{}).Where("id = ?", "iss-1").
		Updates(map[string]interface{}{"is_deleted": false, "deleted_at": nil})

	events, _ = w.detectBinEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != EventBinLeave {
		t.Errorf("type = %v, want %v", events[0].Type, EventBinLeave)
	}
}

func TestDetectBinEvents_ProjectEnter(t *testing.T) {
	db := openWatcherTestDB(t)
	db.Create(&models.Project{ID: "prj-1", Key: "ONE", Name: "One"})

	w, _ := NewWatcher(WatcherOpts{DB: db})
	w.detectBinEvents() // seed

	now := time.Now()
	db.Model(&models.Project{}).Where("id = ?", "prj-1").
		Updates(map[string]interface{}{"is_deleted": true, "deleted_at": now})

	events, err := w.detectBinEvents()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Kind != "project" {
		t.Errorf("kind = %q, want %q", events[0].Kind, "project")
	}
	if events[0].Name != "One" {
		t.Errorf("name = %q, want %q", events[0].Name, "One")
	}
}

func TestDetectBinEvents_AlreadyBinnedNewRow(t *testing.T) {
	db := openWatcherTestDB(t)

	w, _ := NewWatcher(WatcherOpts{DB: db})
	w.detectBinEvents() // seed on empty store

	// A row that first appears already deleted still counts as an enter.
	now := time.Now()
	db.Create(&models.Issue{
		ID: "iss-1", ProjectID: "prj-1", Key: "ONE-1", Title: "First",
		IsDeleted: true, DeletedAt: &now,
	})

	events, err := w.detectBinEvents()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != EventBinEnter {
		t.Errorf("type = %v, want %v", events[0].Type, EventBinEnter)
	}
}

// --- Run loop test ---

func TestRun_EmitsEventsAndStopsOnCancel(t *testing.T) {
	db := openWatcherTestDB(t)
	db.Create(&models.Sprint{ID: "spr-1", ProjectID: "prj-1", Name: "Alpha", Status: models.SprintPlanned})

	w, _ := NewWatcher(WatcherOpts{DB: db, PollInterval: 50 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	ch := w.Run(ctx)

	// Wait for seed poll (no events).
	time.Sleep(80 * time.Millisecond)

	db.Model(&models.Sprint{}).Where("id = ?", "spr-1").
		Updates(map[string]interface{}{"status": models.SprintRunning, "active": true})

	var received []DetectedEvent
	timeout := time.After(500 * time.Millisecond)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				goto done
			}
			received = append(received, e)
			if len(received) >= 1 {
				goto done
			}
		case <-timeout:
			goto done
		}
	}
done:
	cancel()

	// Drain remaining events after cancel.
	for range ch {
	}

	if len(received) < 1 {
		t.Fatalf("expected at least 1 event from Run, got %d", len(received))
	}
	if received[0].Type != EventSprintStarted {
		t.Errorf("type = %v, want %v", received[0].Type, EventSprintStarted)
	}
}

// --- BuildDigest tests ---

func TestBuildDigest_EmitsWhenActive(t *testing.T) {
	db := openWatcherTestDB(t)
	db.Create(&models.Sprint{ID: "spr-1", ProjectID: "prj-1", Name: "Alpha", Status: models.SprintRunning, Active: true})

	w, _ := NewWatcher(WatcherOpts{DB: db})

	digest, err := w.BuildDigest(24 * time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if digest == nil {
		t.Fatal("expected digest event, got nil")
	}
	if digest.Type != EventDigest {
		t.Errorf("type = %v, want %v", digest.Type, EventDigest)
	}
	if digest.Title != "Cadence Digest" {
		t.Errorf("title = %q, want 'Cadence Digest'", digest.Title)
	}
	if !strings.Contains(digest.Body, "Alpha") {
		t.Errorf("body should list running sprint, got %q", digest.Body)
	}
}

func TestBuildDigest_SuppressedWhenIdle(t *testing.T) {
	db := openWatcherTestDB(t)

	w, _ := NewWatcher(WatcherOpts{DB: db})

	digest, err := w.BuildDigest(24 * time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if digest != nil {
		t.Errorf("expected nil (suppressed) digest when idle, got %v", digest)
	}
}

func TestBuildDigest_SuppressedWhenNoChange(t *testing.T) {
	db := openWatcherTestDB(t)
	db.Create(&models.Sprint{ID: "spr-1", ProjectID: "prj-1", Name: "Alpha", Status: models.SprintRunning, Active: true})

	w, _ := NewWatcher(WatcherOpts{DB: db})

	first, _ := w.BuildDigest(24 * time.Hour)
	if first == nil {
		t.Fatal("first digest should not be nil")
	}

	second, err := w.BuildDigest(24 * time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second != nil {
		t.Errorf("expected nil (suppressed) when nothing changed, got %v", second)
	}
}

func TestBuildDigest_EmitsWhenStateChanges(t *testing.T) {
	db := openWatcherTestDB(t)
	db.Create(&models.Sprint{ID: "spr-1", ProjectID: "prj-1", Name: "Alpha", Status: models.SprintRunning, Active: true})

	w, _ := NewWatcher(WatcherOpts{DB: db})
	w.BuildDigest(24 * time.Hour)

	db.Create(&models.Sprint{ID: "spr-2", ProjectID: "prj-1", Name: "Beta", Status: models.SprintRunning, Active: true})

	digest, err := w.BuildDigest(24 * time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if digest == nil {
		t.Fatal("expected digest after state change, got nil")
	}
}

func TestBuildDigest_ResumesAfterIdle(t *testing.T) {
	db := openWatcherTestDB(t)

	w, _ := NewWatcher(WatcherOpts{DB: db})

	first, _ := w.BuildDigest(24 * time.Hour)
	if first != nil {
		t.Fatal("expected nil when idle")
	}

	db.Create(&models.Sprint{ID: "spr-1", ProjectID: "prj-1", Name: "Alpha", Status: models.SprintRunning, Active: true})

	second, err := w.BuildDigest(24 * time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second == nil {
		t.Fatal("expected digest when work resumes, got nil")
	}
}

func TestBuildDigest_CountsCompletionsInWindow(t *testing.T) {
	db := openWatcherTestDB(t)
	db.Create(&models.Sprint{
		ID: "spr-1", ProjectID: "prj-1", Name: "Done recently",
		Status: models.SprintCompleted, CompletedAt: hoursAgo(2),
	})
	db.Create(&models.Sprint{
		ID: "spr-2", ProjectID: "prj-1", Name: "Done long ago",
		Status: models.SprintCompleted, CompletedAt: hoursAgo(72),
	})

	w, _ := NewWatcher(WatcherOpts{DB: db})

	digest, err := w.BuildDigest(24 * time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if digest == nil {
		t.Fatal("expected digest, got nil")
	}
	if !strings.Contains(digest.Body, "0 running, 1 completed") {
		t.Errorf("body = %q, want completion count of 1 inside window", digest.Body)
	}
}

func TestBuildDigest_ReportsBinDepth(t *testing.T) {
	db := openWatcherTestDB(t)
	now := time.Now()
	db.Create(&models.Issue{
		ID: "iss-1", ProjectID: "prj-1", Key: "ONE-1", Title: "Binned",
		IsDeleted: true, DeletedAt: &now,
	})

	w, _ := NewWatcher(WatcherOpts{DB: db})

	digest, err := w.BuildDigest(24 * time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if digest == nil {
		t.Fatal("expected digest, got nil")
	}
	if !strings.Contains(digest.Body, "Recycle bin") {
		t.Errorf("body = %q, want recycle bin line", digest.Body)
	}
}
