package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cadencehq/cadence/internal/models"
	"gorm.io/gorm"
)

// DefaultPollInterval is the watcher poll cadence when none is configured.
const DefaultPollInterval = 15 * time.Second

// EventType identifies the kind of event detected by the watcher.
type EventType string

const (
	EventSprintStatus    EventType = "sprint_status"
	EventSprintStarted   EventType = "sprint_started"
	EventSprintCompleted EventType = "sprint_completed"
	EventSprintOverdue   EventType = "sprint_overdue"
	EventBinEnter        EventType = "bin_enter"
	EventBinLeave        EventType = "bin_leave"
	EventDigest          EventType = "digest"
)

// DetectedEvent is a raw event detected by the watcher before formatting.
type DetectedEvent struct {
	Type      EventType
	Timestamp time.Time

	// Sprint events
	SprintID  string
	OldStatus string
	NewStatus string
	EndDate   *time.Time

	// Recycle-bin events
	Kind   string // project, sprint, issue
	ItemID string

	// Shared
	ProjectID string
	Name      string

	// Digest events
	Title string
	Body  string
}

// sprintSnapshot holds the last-known state of each sprint.
type sprintSnapshot struct {
	Status  string
	Active  bool
	Deleted bool
	Name    string
}

// binSnapshot tracks recycle-bin membership for projects and issues.
type binSnapshot struct {
	Name      string
	ProjectID string
	Deleted   bool
}

// digestStats is a digest comparison snapshot. Two equal digests in a row
// suppress the second.
type digestStats struct {
	Running   int
	Completed int // completed within the digest window
	BinDepth  int
}

// Watcher polls the store for sprint lifecycle changes, recycle-bin
// membership flips and overdue running sprints. It emits DetectedEvents to
// a channel for formatting and delivery.
type Watcher struct {
	db           *gorm.DB
	pollInterval time.Duration

	mu            sync.Mutex
	sprints       map[string]sprintSnapshot // sprintID -> last-known state
	items         map[string]binSnapshot    // "kind:id" -> bin membership
	overdue       map[string]bool           // sprintID -> already reported
	sprintsSeeded bool                      // baseline taken for sprint rows
	itemsSeeded   bool                      // baseline taken for bin rows
	lastDigest    *digestStats              // last emitted digest for comparison
}

// WatcherOpts holds parameters for creating a Watcher.
type WatcherOpts struct {
	DB           *gorm.DB
	PollInterval time.Duration // defaults to DefaultPollInterval
}

// NewWatcher creates a Watcher.
func NewWatcher(opts WatcherOpts) (*Watcher, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("notify: watcher: db is required")
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Watcher{
		db:           opts.DB,
		pollInterval: poll,
		sprints:      make(map[string]sprintSnapshot),
		items:        make(map[string]binSnapshot),
		overdue:      make(map[string]bool),
	}, nil
}

// Poll runs one detection cycle and returns all detected events.
func (w *Watcher) Poll(ctx context.Context) ([]DetectedEvent, error) {
	var all []DetectedEvent

	sprintEvents, err := w.detectSprintEvents()
	if err != nil {
		return nil, fmt.Errorf("notify: watcher: sprint events: %w", err)
	}
	all = append(all, sprintEvents...)

	binEvents, err := w.detectBinEvents()
	if err != nil {
		return nil, fmt.Errorf("notify: watcher: bin events: %w", err)
	}
	all = append(all, binEvents...)

	return all, nil
}

// Run starts the watcher loop. It polls on the configured interval and
// sends detected events to the returned channel. The channel is closed
// when the context is cancelled.
func (w *Watcher) Run(ctx context.Context) <-chan DetectedEvent {
	ch := make(chan DetectedEvent, 64)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				events, err := w.Poll(ctx)
				if err != nil {
					continue
				}
				for _, e := range events {
					select {
					case ch <- e:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return ch
}

// detectSprintEvents compares current sprint rows against the in-memory
// snapshot: status flips become started/completed/status events, is_deleted
// flips become bin events, and running sprints past their end date are
// reported overdue exactly once. The first call seeds the snapshot without
// emitting (to avoid a burst of false positives on startup).
func (w *Watcher) detectSprintEvents() ([]DetectedEvent, error) {
	var sprints []models.Sprint
	err := w.db.Select("id, project_id, name, status, active, is_deleted, end_date").
		Find(&sprints).Error
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	var events []DetectedEvent
	currentIDs := make(map[string]bool, len(sprints))

	for _, s := range sprints {
		currentIDs[s.ID] = true
		old, exists := w.sprints[s.ID]
		if !exists {
			w.sprints[s.ID] = sprintSnapshot{Status: s.Status, Active: s.Active, Deleted: s.IsDeleted, Name: s.Name}
			if w.sprintsSeeded && !s.IsDeleted {
				events = append(events, DetectedEvent{
					Type:      EventSprintStatus,
					Timestamp: now,
					SprintID:  s.ID,
					ProjectID: s.ProjectID,
					Name:      s.Name,
					NewStatus: s.Status,
				})
			}
		} else {
			if old.Deleted != s.IsDeleted {
				typ := EventBinEnter
				if old.Deleted {
					typ = EventBinLeave
				}
				events = append(events, DetectedEvent{
					Type:      typ,
					Timestamp: now,
					Kind:      "sprint",
					ItemID:    s.ID,
					ProjectID: s.ProjectID,
					Name:      s.Name,
				})
			}
			if old.Status != s.Status && !s.IsDeleted {
				typ := EventSprintStatus
				switch s.Status {
				case models.SprintRunning:
					typ = EventSprintStarted
				case models.SprintCompleted:
					typ = EventSprintCompleted
				}
				events = append(events, DetectedEvent{
					Type:      typ,
					Timestamp: now,
					SprintID:  s.ID,
					ProjectID: s.ProjectID,
					Name:      s.Name,
					OldStatus: old.Status,
					NewStatus: s.Status,
					EndDate:   s.EndDate,
				})
			}
			w.sprints[s.ID] = sprintSnapshot{Status: s.Status, Active: s.Active, Deleted: s.IsDeleted, Name: s.Name}
		}

		// Overdue: running, live, end date in the past. Reported once per
		// episode; the flag clears when the sprint stops being overdue.
		isOverdue := s.Status == models.SprintRunning && !s.IsDeleted &&
			s.EndDate != nil && s.EndDate.Before(now)
		if isOverdue && !w.overdue[s.ID] {
			w.overdue[s.ID] = true
			events = append(events, DetectedEvent{
				Type:      EventSprintOverdue,
				Timestamp: now,
				SprintID:  s.ID,
				ProjectID: s.ProjectID,
				Name:      s.Name,
				NewStatus: s.Status,
				EndDate:   s.EndDate,
			})
		} else if !isOverdue {
			delete(w.overdue, s.ID)
		}
	}

	// Purged sprints drop out of the snapshot silently.
	if w.sprintsSeeded {
		for id := range w.sprints {
			if !currentIDs[id] {
				delete(w.sprints, id)
				delete(w.overdue, id)
			}
		}
	}

	if !w.sprintsSeeded {
		w.sprintsSeeded = true
	}

	return events, nil
}

// detectBinEvents tracks recycle-bin membership for projects and issues.
// Epics and features enter the bin only through their parent cascade, which
// already produces the parent's event, so they are not tracked separately.
func (w *Watcher) detectBinEvents() ([]DetectedEvent, error) {
	var projects []models.Project
	if err := w.db.Select("id, name, is_deleted").Find(&projects).Error; err != nil {
		return nil, err
	}
	var issues []models.Issue
	if err := w.db.Select("id, project_id, key, title, is_deleted").Find(&issues).Error; err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	var events []DetectedEvent
	currentKeys := make(map[string]bool, len(projects)+len(issues))

	observe := func(kind, id, name, projectID string, deleted bool) {
		key := kind + ":" + id
		currentKeys[key] = true
		old, exists := w.items[key]
		w.items[key] = binSnapshot{Name: name, ProjectID: projectID, Deleted: deleted}
		if !exists {
			// A row first observed after seeding that is already binned
			// still counts as an enter.
			if w.itemsSeeded && deleted {
				events = append(events, DetectedEvent{
					Type: EventBinEnter, Timestamp: now,
					Kind: kind, ItemID: id, ProjectID: projectID, Name: name,
				})
			}
			return
		}
		if old.Deleted == deleted {
			return
		}
		typ := EventBinEnter
		if old.Deleted {
			typ = EventBinLeave
		}
		events = append(events, DetectedEvent{
			Type: typ, Timestamp: now,
			Kind: kind, ItemID: id, ProjectID: projectID, Name: name,
		})
	}

	for _, p := range projects {
		observe("project", p.ID, p.Name, p.ID, p.IsDeleted)
	}
	for _, iss := range issues {
		name := iss.Title
		if iss.Key != "" {
			name = iss.Key + " " + iss.Title
		}
		observe("issue", iss.ID, name, iss.ProjectID, iss.IsDeleted)
	}

	if w.itemsSeeded {
		for key := range w.items {
			if !currentKeys[key] {
				delete(w.items, key)
			}
		}
	}

	if !w.itemsSeeded {
		w.itemsSeeded = true
	}

	return events, nil
}

// BuildDigest summarizes running sprints, completions within the window and
// recycle-bin depth. Returns nil (suppressed) when there is nothing to
// report or nothing changed since the last digest.
func (w *Watcher) BuildDigest(window time.Duration) (*DetectedEvent, error) {
	now := time.Now()
	since := now.Add(-window)

	var running []models.Sprint
	err := w.db.Select("id, project_id, name, end_date").
		Where("status = ? AND is_deleted = ?", models.SprintRunning, false).
		Order("created_at ASC").
		Find(&running).Error
	if err != nil {
		return nil, fmt.Errorf("notify: digest: running sprints: %w", err)
	}

	var completed int64
	err = w.db.Model(&models.Sprint{}).
		Where("status = ? AND completed_at >= ? AND completed_at < ?", models.SprintCompleted, since, now).
		Count(&completed).Error
	if err != nil {
		return nil, fmt.Errorf("notify: digest: completed sprints: %w", err)
	}

	binDepth, err := w.binDepth()
	if err != nil {
		return nil, fmt.Errorf("notify: digest: bin depth: %w", err)
	}

	current := digestStats{
		Running:   len(running),
		Completed: int(completed),
		BinDepth:  binDepth,
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if current.Running == 0 && current.Completed == 0 && current.BinDepth == 0 {
		return nil, nil
	}
	if w.lastDigest != nil && *w.lastDigest == current {
		return nil, nil
	}
	w.lastDigest = &current

	formatted := FormatDigest(running, current, now)
	return &DetectedEvent{
		Type:      EventDigest,
		Timestamp: now,
		Title:     formatted.Title,
		Body:      formatted.Body,
	}, nil
}

// binDepth counts soft-deleted rows across the binned kinds.
func (w *Watcher) binDepth() (int, error) {
	depth := int64(0)
	for _, model := range []interface{}{&models.Project{}, &models.Sprint{}, &models.Issue{}} {
		var n int64
		if err := w.db.Model(model).Where("is_deleted = ?", true).Count(&n).Error; err != nil {
			return 0, err
		}
		depth += n
	}
	return int(depth), nil
}

// Seeded reports whether the watcher has taken its initial snapshot.
func (w *Watcher) Seeded() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sprintsSeeded && w.itemsSeeded
}

// SprintSnapshot returns a copy of the current sprint snapshot (for testing).
func (w *Watcher) SprintSnapshot() map[string]sprintSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	cp := make(map[string]sprintSnapshot, len(w.sprints))
	for k, v := range w.sprints {
		cp[k] = v
	}
	return cp
}
