// Package cascade implements soft delete, restore, permanent delete and the
// recycle bin.
//
// Nothing in the schema enforces referential integrity, so every cascade is
// an explicit saga: the target row is flipped first, then one step per child
// table, each matching the parent reference across every encoding the store
// has historically persisted. Steps are independent and idempotent; a failed
// step is recorded on the result and the remaining steps still run.
package cascade

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cadencehq/cadence/internal/ident"
	"github.com/cadencehq/cadence/internal/models"
	"github.com/cadencehq/cadence/internal/perm"
	"github.com/cadencehq/cadence/internal/sprint"
	"gorm.io/gorm"
)

// Entity kinds accepted by Restore and PermanentDelete and listed in the
// recycle bin.
const (
	KindProject = "project"
	KindEpic    = "epic"
	KindSprint  = "sprint"
	KindIssue   = "issue"
	KindFeature = "feature"
)

// ValidKind reports whether kind names a recyclable entity type.
func ValidKind(kind string) bool {
	switch kind {
	case KindProject, KindEpic, KindSprint, KindIssue, KindFeature:
		return true
	}
	return false
}

// Result reports one cascade run. Affected counts rows touched per child
// table; per-step failures are collected here, never raised mid-cascade.
type Result struct {
	Kind     string         `json:"kind"`
	ID       string         `json:"id"`
	Affected map[string]int `json:"affected"`
	Errors   []string       `json:"errors,omitempty"`
}

func newResult(kind, id string) *Result {
	return &Result{Kind: kind, ID: id, Affected: map[string]int{}}
}

func (r *Result) fail(step string, err error) {
	r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", step, err))
}

// step is one child table of a cascade closure: the model, and the query
// matching rows that reference the parent.
type step struct {
	kind  string
	model interface{}
	query string
	args  []interface{}
}

// projectSteps is the full child closure of a project. Every table that
// carries a project reference is matched across all known encodings.
func projectSteps(projectID string) []step {
	refs := ident.Shapes(projectID)
	byProject := func(kind string, model interface{}) step {
		return step{kind: kind, model: model, query: "project_id IN ?", args: []interface{}{refs}}
	}
	return []step{
		byProject("epics", &models.Epic{}),
		byProject("features", &models.Feature{}),
		byProject("issues", &models.Issue{}),
		byProject("sprints", &models.Sprint{}),
		byProject("boards", &models.Board{}),
		byProject("backlogs", &models.Backlog{}),
		byProject("comments", &models.Comment{}),
		byProject("time_entries", &models.TimeEntry{}),
		byProject("links", &models.LinkedWorkItem{}),
	}
}

// epicSteps covers an epic's issues and comments. Links and time entries of
// those issues are deliberately left alone: they dangle until the issue
// itself is deleted or restored.
func epicSteps(epicID string) []step {
	refs := ident.Shapes(epicID)
	return []step{
		{kind: "issues", model: &models.Issue{}, query: "epic_id IN ?", args: []interface{}{refs}},
		{kind: "comments", model: &models.Comment{}, query: "epic_id IN ?", args: []interface{}{refs}},
	}
}

// issueSteps covers subtasks, comments, links on either endpoint, and time
// entries.
func issueSteps(issueID string) []step {
	refs := ident.Shapes(issueID)
	return []step{
		{kind: "subtasks", model: &models.Issue{}, query: "parent_id IN ?", args: []interface{}{refs}},
		{kind: "comments", model: &models.Comment{}, query: "issue_id IN ?", args: []interface{}{refs}},
		{kind: "links", model: &models.LinkedWorkItem{}, query: "source_id IN ? OR target_id IN ?", args: []interface{}{refs, refs}},
		{kind: "time_entries", model: &models.TimeEntry{}, query: "issue_id IN ?", args: []interface{}{refs}},
	}
}

func deleteFlags() map[string]interface{} {
	return map[string]interface{}{"is_deleted": true, "deleted_at": time.Now()}
}

func restoreFlags() map[string]interface{} {
	return map[string]interface{}{"is_deleted": false, "deleted_at": nil}
}

// applyFlags runs one flag-flip per child table, collecting failures and
// counting touched rows.
func applyFlags(db *gorm.DB, res *Result, set map[string]interface{}, steps []step) {
	for _, st := range steps {
		tx := db.Model(st.model).Where(st.query, st.args...).Updates(set)
		if tx.Error != nil {
			res.fail(st.kind, tx.Error)
			continue
		}
		res.Affected[st.kind] += int(tx.RowsAffected)
	}
}

// applyPurge runs the same closure as a physical delete.
func applyPurge(db *gorm.DB, res *Result, steps []step) {
	for _, st := range steps {
		tx := db.Where(st.query, st.args...).Delete(st.model)
		if tx.Error != nil {
			res.fail(st.kind, tx.Error)
			continue
		}
		res.Affected[st.kind] += int(tx.RowsAffected)
	}
}

// SoftDeleteProject flags the project and every child that references it.
// Requires edit_project.
func SoftDeleteProject(db *gorm.DB, projectID, actor string) (*Result, error) {
	var p models.Project
	if err := fetchRow(db, KindProject, projectID, &p); err != nil {
		return nil, err
	}
	if ok, err := perm.CanEditProject(db, actor, p.ID); err != nil {
		return nil, err
	} else if !ok {
		return nil, perm.Deny("edit_project", p.ID)
	}

	res := newResult(KindProject, p.ID)
	if err := flagRow(db, &models.Project{}, p.ID, deleteFlags()); err != nil {
		return nil, fmt.Errorf("cascade: delete project %s: %w", p.ID, err)
	}
	res.Affected["projects"]++
	applyFlags(db, res, deleteFlags(), projectSteps(p.ID))
	return res, nil
}

// SoftDeleteEpic flags the epic, its issues and its comments. Requires
// edit_project on the owning project.
func SoftDeleteEpic(db *gorm.DB, epicID, actor string) (*Result, error) {
	var e models.Epic
	if err := fetchRow(db, KindEpic, epicID, &e); err != nil {
		return nil, err
	}
	if ok, err := perm.CanEditProject(db, actor, e.ProjectID); err != nil {
		return nil, err
	} else if !ok {
		return nil, perm.Deny("edit_project", e.ID)
	}

	res := newResult(KindEpic, e.ID)
	if err := flagRow(db, &models.Epic{}, e.ID, deleteFlags()); err != nil {
		return nil, fmt.Errorf("cascade: delete epic %s: %w", e.ID, err)
	}
	res.Affected["epics"]++
	applyFlags(db, res, deleteFlags(), epicSteps(e.ID))
	return res, nil
}

// SoftDeleteFeature flags the feature. Features have no cascade closure of
// their own; issues keep their feature reference and dangle until restore.
func SoftDeleteFeature(db *gorm.DB, featureID, actor string) (*Result, error) {
	var f models.Feature
	if err := fetchRow(db, KindFeature, featureID, &f); err != nil {
		return nil, err
	}
	if ok, err := perm.CanEditProject(db, actor, f.ProjectID); err != nil {
		return nil, err
	} else if !ok {
		return nil, perm.Deny("edit_project", f.ID)
	}

	res := newResult(KindFeature, f.ID)
	if err := flagRow(db, &models.Feature{}, f.ID, deleteFlags()); err != nil {
		return nil, fmt.Errorf("cascade: delete feature %s: %w", f.ID, err)
	}
	res.Affected["features"]++
	return res, nil
}

// SoftDeleteIssue flags the issue, its subtasks, comments, links on either
// endpoint, and time entries. Requires edit_workitem, which the assignee and
// creator hold regardless of project role.
func SoftDeleteIssue(db *gorm.DB, issueID, actor string) (*Result, error) {
	var iss models.Issue
	if err := fetchRow(db, KindIssue, issueID, &iss); err != nil {
		return nil, err
	}
	if ok, err := perm.CanEditWorkItem(db, actor, iss.ID); err != nil {
		return nil, err
	} else if !ok {
		return nil, perm.Deny("edit_workitem", iss.ID)
	}

	res := newResult(KindIssue, iss.ID)
	if err := flagRow(db, &models.Issue{}, iss.ID, deleteFlags()); err != nil {
		return nil, fmt.Errorf("cascade: delete issue %s: %w", iss.ID, err)
	}
	res.Affected["issues"]++
	applyFlags(db, res, deleteFlags(), issueSteps(iss.ID))
	return res, nil
}

// SoftDeleteSprint delegates to the sprint orchestrator, which returns every
// assigned issue to its project backlog before flagging the sprint.
func SoftDeleteSprint(db *gorm.DB, sprintID, actor string) (*Result, error) {
	dres, err := sprint.Delete(db, sprintID, actor)
	if err != nil {
		return nil, err
	}
	res := newResult(KindSprint, ident.Resolve(sprintID))
	res.Affected["sprints"]++
	res.Affected["issues_to_backlog"] = dres.Moved
	res.Errors = append(res.Errors, dres.Errors...)
	return res, nil
}

// Restore clears the soft-delete flags on the target and cascades the same
// closure back. Restoring an issue brings its subtasks with it; restoring a
// sprint touches only the sprint row, because its delete moved issues to the
// backlog instead of flagging them. Requires edit_project on the owning
// project (site admin for global sprints).
func Restore(db *gorm.DB, kind, id, actor string) (*Result, error) {
	switch kind {
	case KindProject:
		var p models.Project
		if err := fetchRow(db, kind, id, &p); err != nil {
			return nil, err
		}
		if err := requireRestore(db, actor, p.ID, p.ID); err != nil {
			return nil, err
		}
		res := newResult(kind, p.ID)
		if err := flagRow(db, &models.Project{}, p.ID, restoreFlags()); err != nil {
			return nil, fmt.Errorf("cascade: restore project %s: %w", p.ID, err)
		}
		res.Affected["projects"]++
		applyFlags(db, res, restoreFlags(), projectSteps(p.ID))
		return res, nil

	case KindEpic:
		var e models.Epic
		if err := fetchRow(db, kind, id, &e); err != nil {
			return nil, err
		}
		if err := requireRestore(db, actor, e.ProjectID, e.ID); err != nil {
			return nil, err
		}
		res := newResult(kind, e.ID)
		if err := flagRow(db, &models.Epic{}, e.ID, restoreFlags()); err != nil {
			return nil, fmt.Errorf("cascade: restore epic %s: %w", e.ID, err)
		}
		res.Affected["epics"]++
		applyFlags(db, res, restoreFlags(), epicSteps(e.ID))
		return res, nil

	case KindSprint:
		var s models.Sprint
		if err := fetchRow(db, kind, id, &s); err != nil {
			return nil, err
		}
		if err := requireRestore(db, actor, s.ProjectID, s.ID); err != nil {
			return nil, err
		}
		res := newResult(kind, s.ID)
		if err := flagRow(db, &models.Sprint{}, s.ID, restoreFlags()); err != nil {
			return nil, fmt.Errorf("cascade: restore sprint %s: %w", s.ID, err)
		}
		res.Affected["sprints"]++
		return res, nil

	case KindIssue:
		var iss models.Issue
		if err := fetchRow(db, kind, id, &iss); err != nil {
			return nil, err
		}
		if err := requireRestore(db, actor, iss.ProjectID, iss.ID); err != nil {
			return nil, err
		}
		res := newResult(kind, iss.ID)
		if err := flagRow(db, &models.Issue{}, iss.ID, restoreFlags()); err != nil {
			return nil, fmt.Errorf("cascade: restore issue %s: %w", iss.ID, err)
		}
		res.Affected["issues"]++
		applyFlags(db, res, restoreFlags(), issueSteps(iss.ID))
		return res, nil

	case KindFeature:
		var f models.Feature
		if err := fetchRow(db, kind, id, &f); err != nil {
			return nil, err
		}
		if err := requireRestore(db, actor, f.ProjectID, f.ID); err != nil {
			return nil, err
		}
		res := newResult(kind, f.ID)
		if err := flagRow(db, &models.Feature{}, f.ID, restoreFlags()); err != nil {
			return nil, fmt.Errorf("cascade: restore feature %s: %w", f.ID, err)
		}
		res.Affected["features"]++
		return res, nil
	}
	return nil, fmt.Errorf("cascade: unknown kind %q: %w", kind, models.ErrValidation)
}

// PermanentDelete physically removes the target and its cascade closure.
// Site admin only; there is no undo.
func PermanentDelete(db *gorm.DB, kind, id, actor string) (*Result, error) {
	if ok, err := perm.IsAdmin(db, actor); err != nil {
		return nil, err
	} else if !ok {
		return nil, perm.Deny("permanent_delete", id)
	}

	switch kind {
	case KindProject:
		var p models.Project
		if err := fetchRow(db, kind, id, &p); err != nil {
			return nil, err
		}
		res := newResult(kind, p.ID)
		applyPurge(db, res, projectSteps(p.ID))
		purgeRow(db, res, "projects", &models.Project{}, p.ID)
		return res, nil

	case KindEpic:
		var e models.Epic
		if err := fetchRow(db, kind, id, &e); err != nil {
			return nil, err
		}
		res := newResult(kind, e.ID)
		applyPurge(db, res, epicSteps(e.ID))
		purgeRow(db, res, "epics", &models.Epic{}, e.ID)
		return res, nil

	case KindSprint:
		var s models.Sprint
		if err := fetchRow(db, kind, id, &s); err != nil {
			return nil, err
		}
		res := newResult(kind, s.ID)
		// A live sprint first runs its soft-delete closure so assigned
		// issues land in the backlog instead of pointing at a purged row.
		if !s.IsDeleted {
			if dres, err := sprint.Delete(db, s.ID, actor); err != nil {
				res.fail("sprint delete", err)
			} else {
				res.Affected["issues_to_backlog"] = dres.Moved
				res.Errors = append(res.Errors, dres.Errors...)
			}
		}
		purgeRow(db, res, "sprints", &models.Sprint{}, s.ID)
		return res, nil

	case KindIssue:
		var iss models.Issue
		if err := fetchRow(db, kind, id, &iss); err != nil {
			return nil, err
		}
		res := newResult(kind, iss.ID)
		applyPurge(db, res, issueSteps(iss.ID))
		purgeRow(db, res, "issues", &models.Issue{}, iss.ID)
		return res, nil

	case KindFeature:
		var f models.Feature
		if err := fetchRow(db, kind, id, &f); err != nil {
			return nil, err
		}
		res := newResult(kind, f.ID)
		purgeRow(db, res, "features", &models.Feature{}, f.ID)
		return res, nil
	}
	return nil, fmt.Errorf("cascade: unknown kind %q: %w", kind, models.ErrValidation)
}

// BinEntry is one recycle-bin row.
type BinEntry struct {
	Kind      string     `json:"kind"`
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	ProjectID string     `json:"project_id,omitempty"`
	DeletedAt *time.Time `json:"deleted_at"`
}

// ListBin enumerates every soft-deleted project, epic, sprint, issue and
// feature visible to the actor, newest deletion first. Admins see
// everything; everyone else is filtered through the view check on the
// owning project, which hides global sprints from non-admins.
func ListBin(db *gorm.DB, actor string) ([]BinEntry, error) {
	admin, err := perm.IsAdmin(db, actor)
	if err != nil {
		return nil, err
	}

	var entries []BinEntry

	var projects []models.Project
	if err := db.Where("is_deleted = ?", true).Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("cascade: list deleted projects: %w", err)
	}
	for _, p := range projects {
		entries = append(entries, BinEntry{Kind: KindProject, ID: p.ID, Name: p.Name, ProjectID: p.ID, DeletedAt: p.DeletedAt})
	}

	var epics []models.Epic
	if err := db.Where("is_deleted = ?", true).Find(&epics).Error; err != nil {
		return nil, fmt.Errorf("cascade: list deleted epics: %w", err)
	}
	for _, e := range epics {
		entries = append(entries, BinEntry{Kind: KindEpic, ID: e.ID, Name: e.Name, ProjectID: e.ProjectID, DeletedAt: e.DeletedAt})
	}

	var sprints []models.Sprint
	if err := db.Where("is_deleted = ?", true).Find(&sprints).Error; err != nil {
		return nil, fmt.Errorf("cascade: list deleted sprints: %w", err)
	}
	for _, s := range sprints {
		entries = append(entries, BinEntry{Kind: KindSprint, ID: s.ID, Name: s.Name, ProjectID: s.ProjectID, DeletedAt: s.DeletedAt})
	}

	var issues []models.Issue
	if err := db.Where("is_deleted = ?", true).Find(&issues).Error; err != nil {
		return nil, fmt.Errorf("cascade: list deleted issues: %w", err)
	}
	for _, iss := range issues {
		entries = append(entries, BinEntry{Kind: KindIssue, ID: iss.ID, Name: iss.Title, ProjectID: iss.ProjectID, DeletedAt: iss.DeletedAt})
	}

	var features []models.Feature
	if err := db.Where("is_deleted = ?", true).Find(&features).Error; err != nil {
		return nil, fmt.Errorf("cascade: list deleted features: %w", err)
	}
	for _, f := range features {
		entries = append(entries, BinEntry{Kind: KindFeature, ID: f.ID, Name: f.Name, ProjectID: f.ProjectID, DeletedAt: f.DeletedAt})
	}

	if !admin {
		visible := entries[:0]
		for _, e := range entries {
			if e.ProjectID == "" {
				continue
			}
			ok, err := perm.CanViewProject(db, actor, e.ProjectID)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					continue
				}
				return nil, err
			}
			if ok {
				visible = append(visible, e)
			}
		}
		entries = visible
	}

	sort.SliceStable(entries, func(i, j int) bool {
		ti, tj := entries[i].DeletedAt, entries[j].DeletedAt
		switch {
		case ti == nil:
			return false
		case tj == nil:
			return true
		default:
			return ti.After(*tj)
		}
	})
	return entries, nil
}

// requireRestore gates Restore: edit_project on the owning project, or site
// admin when the target has no project (global sprints).
func requireRestore(db *gorm.DB, actor, projectID, subject string) error {
	if projectID == "" {
		ok, err := perm.IsAdmin(db, actor)
		if err != nil {
			return err
		}
		if !ok {
			return perm.Deny("restore", subject)
		}
		return nil
	}
	ok, err := perm.CanEditProject(db, actor, projectID)
	if err != nil {
		return err
	}
	if !ok {
		return perm.Deny("restore", subject)
	}
	return nil
}

// fetchRow loads a row by id regardless of its soft-delete state, so
// restore and purge can reach binned entities.
func fetchRow(db *gorm.DB, kind, id string, out interface{}) error {
	rid := ident.Resolve(id)
	if err := db.Where("id = ?", rid).First(out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("cascade: %s %s: %w", kind, id, models.ErrNotFound)
		}
		return fmt.Errorf("cascade: fetch %s %s: %w", kind, id, err)
	}
	return nil
}

func flagRow(db *gorm.DB, model interface{}, id string, set map[string]interface{}) error {
	return db.Model(model).Where("id = ?", id).Updates(set).Error
}

func purgeRow(db *gorm.DB, res *Result, kind string, model interface{}, id string) {
	tx := db.Where("id = ?", id).Delete(model)
	if tx.Error != nil {
		res.fail(kind, tx.Error)
		return
	}
	res.Affected[kind] += int(tx.RowsAffected)
}
