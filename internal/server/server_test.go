package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cadencehq/cadence/internal/models"
	"github.com/cadencehq/cadence/internal/sprint"
	"github.com/cadencehq/cadence/internal/workitem"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{}, &models.Project{}, &models.Epic{}, &models.Feature{},
		&models.Sprint{}, &models.Issue{}, &models.Backlog{}, &models.Board{},
		&models.BoardColumn{}, &models.Comment{}, &models.TimeEntry{},
		&models.LinkedWorkItem{},
	)
	if err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	users := []models.User{
		{ID: "usr-admin", Name: "Ada", Email: "ada@example.com", Role: "admin"},
		{ID: "usr-lead1", Name: "Lena", Email: "lena@example.com", Role: "member"},
		{ID: "usr-dev01", Name: "Drew", Email: "drew@example.com", Role: "member"},
		{ID: "usr-out01", Name: "Oren", Email: "oren@example.com", Role: "member"},
	}
	for _, u := range users {
		if err := db.Create(&u).Error; err != nil {
			t.Fatalf("seed user %s: %v", u.ID, err)
		}
	}
	return db
}

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := openTestDB(t)
	return newRouter(db), db
}

func seedProject(t *testing.T, db *gorm.DB, key string) *models.Project {
	t.Helper()
	p, err := workitem.CreateProject(db, workitem.CreateProjectOpts{
		Key: key, Name: key + " project", Lead: "usr-lead1",
	})
	if err != nil {
		t.Fatalf("seed project %s: %v", key, err)
	}
	if _, err := workitem.SetMember(db, p.ID, "usr-dev01", "developer"); err != nil {
		t.Fatalf("seed member: %v", err)
	}
	return p
}

func seedIssue(t *testing.T, db *gorm.DB, projectID, title string) *models.Issue {
	t.Helper()
	iss, err := workitem.CreateIssue(db, workitem.CreateIssueOpts{
		ProjectID: projectID, Title: title,
	})
	if err != nil {
		t.Fatalf("seed issue %s: %v", title, err)
	}
	return iss
}

// doJSON performs one request against the router, with the actor header
// set, and returns the recorder.
func doJSON(t *testing.T, router *gin.Engine, method, path, who string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if who != "" {
		req.Header.Set(actorHeader, who)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func TestStart_NilDB(t *testing.T) {
	err := Start(context.Background(), StartOpts{DB: nil})
	if err == nil {
		t.Fatal("expected error for nil db")
	}
	if !strings.Contains(err.Error(), "db is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "db is required")
	}
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]string
	decode(t, w, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status field = %q, want ok", resp["status"])
	}
}

func TestCreateAndGetProject(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/projects", "usr-lead1", gin.H{
		"key": "api", "name": "API project",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	var p models.Project
	decode(t, w, &p)
	if p.Key != "API" {
		t.Errorf("Key = %q, want upper-cased API", p.Key)
	}
	if p.Lead != "usr-lead1" {
		t.Errorf("Lead = %q, want the creator", p.Lead)
	}

	w = doJSON(t, router, http.MethodGet, "/api/projects/"+p.ID, "usr-lead1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
}

func TestGetProject_Forbidden(t *testing.T) {
	router, db := newTestRouter(t)
	p := seedProject(t, db, "PRIV")

	w := doJSON(t, router, http.MethodGet, "/api/projects/"+p.ID, "usr-out01", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for non-member", w.Code)
	}
}

func TestGetProject_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/api/projects/prj-nope1", "usr-admin", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestListProjects_FiltersByVisibility(t *testing.T) {
	router, db := newTestRouter(t)
	seedProject(t, db, "ONE")
	pub, err := workitem.CreateProject(db, workitem.CreateProjectOpts{
		Key: "PUB", Name: "public project", Lead: "usr-lead1", Public: true,
	})
	if err != nil {
		t.Fatalf("seed public project: %v", err)
	}

	w := doJSON(t, router, http.MethodGet, "/api/projects", "usr-out01", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var projects []models.Project
	decode(t, w, &projects)
	if len(projects) != 1 || projects[0].ID != pub.ID {
		t.Errorf("projects = %+v, want only the public one", projects)
	}
}

func TestUpdateProject_RequiresEdit(t *testing.T) {
	router, db := newTestRouter(t)
	p := seedProject(t, db, "UPD")

	// Developer role does not grant edit_project.
	w := doJSON(t, router, http.MethodPatch, "/api/projects/"+p.ID, "usr-dev01", gin.H{
		"name": "renamed",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("developer patch status = %d, want 403", w.Code)
	}

	w = doJSON(t, router, http.MethodPatch, "/api/projects/"+p.ID, "usr-lead1", gin.H{
		"name": "renamed",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("lead patch status = %d, body %s", w.Code, w.Body.String())
	}
	var out models.Project
	decode(t, w, &out)
	if out.Name != "renamed" {
		t.Errorf("Name = %q, want renamed", out.Name)
	}
}

func TestUpdateProject_UnknownField(t *testing.T) {
	router, db := newTestRouter(t)
	p := seedProject(t, db, "UPD")

	w := doJSON(t, router, http.MethodPatch, "/api/projects/"+p.ID, "usr-lead1", gin.H{
		"key": "NEWKEY",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for immutable field", w.Code)
	}
}

func TestEpicEndpoints(t *testing.T) {
	router, db := newTestRouter(t)
	p := seedProject(t, db, "EPC")

	w := doJSON(t, router, http.MethodPost, "/api/projects/"+p.ID+"/epics", "usr-lead1", gin.H{
		"name": "Payments", "description": "checkout rework",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	var e models.Epic
	decode(t, w, &e)
	if e.Key != "EPC-EPIC-1" {
		t.Errorf("Key = %q, want EPC-EPIC-1", e.Key)
	}

	w = doJSON(t, router, http.MethodGet, "/api/epics/"+e.ID, "usr-dev01", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}

	// Developer role does not grant edit_project.
	w = doJSON(t, router, http.MethodPatch, "/api/epics/"+e.ID, "usr-dev01", gin.H{
		"status": "In Progress",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("developer patch status = %d, want 403", w.Code)
	}

	w = doJSON(t, router, http.MethodPatch, "/api/epics/"+e.ID, "usr-lead1", gin.H{
		"status": "In Progress",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body %s", w.Code, w.Body.String())
	}
	var updated models.Epic
	decode(t, w, &updated)
	if updated.Status != "in_progress" {
		t.Errorf("Status = %q, want normalized in_progress", updated.Status)
	}

	// The key never changes.
	w = doJSON(t, router, http.MethodPatch, "/api/epics/"+e.ID, "usr-lead1", gin.H{
		"key": "OTHER-EPIC-9",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("key patch status = %d, want 400", w.Code)
	}
}

func TestDeleteEpic_CascadesIssues(t *testing.T) {
	router, db := newTestRouter(t)
	p := seedProject(t, db, "EPC")
	e, err := workitem.CreateEpic(db, workitem.CreateEpicOpts{ProjectID: p.ID, Name: "Payments"})
	if err != nil {
		t.Fatalf("seed epic: %v", err)
	}
	iss, err := workitem.CreateIssue(db, workitem.CreateIssueOpts{
		ProjectID: p.ID, Title: "inside the epic", EpicID: e.ID,
	})
	if err != nil {
		t.Fatalf("seed issue: %v", err)
	}

	w := doJSON(t, router, http.MethodDelete, "/api/epics/"+e.ID, "usr-lead1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/api/epics/"+e.ID, "usr-dev01", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("epic after delete status = %d, want 404", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/api/issues/"+iss.ID, "usr-dev01", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("issue after epic delete status = %d, want 404", w.Code)
	}
}

func TestFeatureEndpoints(t *testing.T) {
	router, db := newTestRouter(t)
	p := seedProject(t, db, "FTR")

	w := doJSON(t, router, http.MethodPost, "/api/projects/"+p.ID+"/features", "usr-lead1", gin.H{
		"name": "SSO login",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	var f models.Feature
	decode(t, w, &f)
	if f.Priority != "medium" {
		t.Errorf("Priority = %q, want defaulted medium", f.Priority)
	}

	w = doJSON(t, router, http.MethodGet, "/api/projects/"+p.ID+"/features", "usr-dev01", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var features []models.Feature
	decode(t, w, &features)
	if len(features) != 1 {
		t.Errorf("len(features) = %d, want 1", len(features))
	}

	w = doJSON(t, router, http.MethodPatch, "/api/features/"+f.ID, "usr-lead1", gin.H{
		"priority": "high",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body %s", w.Code, w.Body.String())
	}
	var updated models.Feature
	decode(t, w, &updated)
	if updated.Priority != "high" {
		t.Errorf("Priority = %q, want high", updated.Priority)
	}

	w = doJSON(t, router, http.MethodDelete, "/api/features/"+f.ID, "usr-lead1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body %s", w.Code, w.Body.String())
	}
	w = doJSON(t, router, http.MethodGet, "/api/features/"+f.ID, "usr-dev01", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("feature after delete status = %d, want 404", w.Code)
	}
}

func TestCreateIssue_MemberOnly(t *testing.T) {
	router, db := newTestRouter(t)
	p := seedProject(t, db, "ISS")

	w := doJSON(t, router, http.MethodPost, "/api/projects/"+p.ID+"/issues", "usr-out01", gin.H{
		"title": "smuggled",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("outsider status = %d, want 403", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/api/projects/"+p.ID+"/issues", "usr-dev01", gin.H{
		"title": "login form", "type": "story", "priority": "high",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("member status = %d, body %s", w.Code, w.Body.String())
	}
	var iss models.Issue
	decode(t, w, &iss)
	if iss.CreatedBy != "usr-dev01" {
		t.Errorf("CreatedBy = %q, want the actor", iss.CreatedBy)
	}
	if iss.Key != "ISS-1" {
		t.Errorf("Key = %q, want ISS-1", iss.Key)
	}
}

func TestCreateIssue_ValidationError(t *testing.T) {
	router, db := newTestRouter(t)
	p := seedProject(t, db, "ISS")

	w := doJSON(t, router, http.MethodPost, "/api/projects/"+p.ID+"/issues", "usr-dev01", gin.H{
		"title": "bad points", "story_points": 4,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for off-scale points", w.Code)
	}
}

func TestIssueLifecycleOverHTTP(t *testing.T) {
	router, db := newTestRouter(t)
	p := seedProject(t, db, "FLOW")
	iss := seedIssue(t, db, p.ID, "flow issue")

	// Read.
	w := doJSON(t, router, http.MethodGet, "/api/issues/"+iss.ID, "usr-dev01", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}

	// Update by a member with edit_workitem.
	w = doJSON(t, router, http.MethodPatch, "/api/issues/"+iss.ID, "usr-dev01", gin.H{
		"status": "In Progress",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body %s", w.Code, w.Body.String())
	}
	var updated models.Issue
	decode(t, w, &updated)
	if updated.Status != "in_progress" {
		t.Errorf("Status = %q, want normalized in_progress", updated.Status)
	}

	// Soft delete.
	w = doJSON(t, router, http.MethodDelete, "/api/issues/"+iss.ID, "usr-lead1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body %s", w.Code, w.Body.String())
	}

	// Gone from reads.
	w = doJSON(t, router, http.MethodGet, "/api/issues/"+iss.ID, "usr-dev01", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", w.Code)
	}
}

func TestAddSubtaskOverHTTP(t *testing.T) {
	router, db := newTestRouter(t)
	p := seedProject(t, db, "SUB")
	parent := seedIssue(t, db, p.ID, "parent")

	w := doJSON(t, router, http.MethodPost, "/api/issues/"+parent.ID+"/subtasks", "usr-lead1", gin.H{
		"title": "child step",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var sub models.Issue
	decode(t, w, &sub)
	if sub.Type != models.TypeSubtask {
		t.Errorf("Type = %q, want subtask", sub.Type)
	}
	if sub.ParentID == nil || *sub.ParentID != parent.ID {
		t.Errorf("ParentID = %v, want %s", sub.ParentID, parent.ID)
	}

	w = doJSON(t, router, http.MethodGet, "/api/issues/"+parent.ID+"/subtasks", "usr-dev01", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var subs []models.Issue
	decode(t, w, &subs)
	if len(subs) != 1 {
		t.Errorf("len(subtasks) = %d, want 1", len(subs))
	}
}

func TestMoveIssueOverHTTP(t *testing.T) {
	router, db := newTestRouter(t)
	p := seedProject(t, db, "MOV")
	iss := seedIssue(t, db, p.ID, "mover")
	s, err := sprint.Create(db, sprint.CreateOpts{ProjectID: p.ID, Name: "Sprint 1"})
	if err != nil {
		t.Fatalf("seed sprint: %v", err)
	}

	w := doJSON(t, router, http.MethodPost, "/api/issues/"+iss.ID+"/move", "usr-dev01", gin.H{
		"to": "sprint:" + s.ID,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("move status = %d, body %s", w.Code, w.Body.String())
	}
	var moved models.Issue
	decode(t, w, &moved)
	if moved.SprintID != s.ID || moved.Location != models.LocationSprint {
		t.Errorf("issue = sprint %q location %q, want on sprint", moved.SprintID, moved.Location)
	}

	// Unknown destination is a validation error.
	w = doJSON(t, router, http.MethodPost, "/api/issues/"+iss.ID+"/move", "usr-dev01", gin.H{
		"to": "nowhere",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad destination status = %d, want 400", w.Code)
	}
}

func TestBulkMoveOverHTTP(t *testing.T) {
	router, db := newTestRouter(t)
	p := seedProject(t, db, "BLK")
	a := seedIssue(t, db, p.ID, "one")
	b := seedIssue(t, db, p.ID, "two")
	s, err := sprint.Create(db, sprint.CreateOpts{ProjectID: p.ID, Name: "Sprint 1"})
	if err != nil {
		t.Fatalf("seed sprint: %v", err)
	}

	w := doJSON(t, router, http.MethodPost, "/api/issues/move", "usr-lead1", gin.H{
		"issue_ids": []string{a.ID, b.ID, "iss-nope1"},
		"to":        "sprint:" + s.ID,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var res sprint.MoveResult
	decode(t, w, &res)
	if res.Moved != 2 {
		t.Errorf("Moved = %d, want 2", res.Moved)
	}
	if len(res.Errors) != 1 {
		t.Errorf("Errors = %v, want one entry for the unknown issue", res.Errors)
	}
}

func TestSprintProtocolOverHTTP(t *testing.T) {
	router, db := newTestRouter(t)
	p := seedProject(t, db, "SPR")
	iss := seedIssue(t, db, p.ID, "carryover work")

	// Create.
	w := doJSON(t, router, http.MethodPost, "/api/projects/"+p.ID+"/sprints", "usr-lead1", gin.H{
		"name": "Sprint 1", "goal": "ship the thing",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	var s models.Sprint
	decode(t, w, &s)

	// Assign the issue.
	w = doJSON(t, router, http.MethodPost, "/api/sprints/"+s.ID+"/issues", "usr-lead1", gin.H{
		"issue_ids": []string{iss.ID},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("assign status = %d, body %s", w.Code, w.Body.String())
	}

	// Start.
	w = doJSON(t, router, http.MethodPost, "/api/sprints/"+s.ID+"/start", "usr-lead1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("start status = %d, body %s", w.Code, w.Body.String())
	}
	var started sprint.StartResult
	decode(t, w, &started)
	if started.Sprint.Status != models.SprintRunning {
		t.Errorf("Status = %q, want running", started.Sprint.Status)
	}

	// Complete without target: the unfinished issue forces the split.
	w = doJSON(t, router, http.MethodPost, "/api/sprints/"+s.ID+"/complete", "usr-lead1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("complete status = %d, body %s", w.Code, w.Body.String())
	}
	var split sprint.CompleteResult
	decode(t, w, &split)
	if split.Completed {
		t.Fatal("Completed = true, want pending split")
	}
	if len(split.Pending) != 1 || split.Pending[0] != iss.ID {
		t.Errorf("Pending = %v, want [%s]", split.Pending, iss.ID)
	}

	// Complete with a target.
	w = doJSON(t, router, http.MethodPost, "/api/sprints/"+s.ID+"/complete", "usr-lead1", gin.H{
		"target": "backlog",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("complete status = %d, body %s", w.Code, w.Body.String())
	}
	var done sprint.CompleteResult
	decode(t, w, &done)
	if !done.Completed {
		t.Errorf("Completed = false after targeted complete: %+v", done)
	}
	if done.Moved != 1 {
		t.Errorf("Moved = %d, want 1", done.Moved)
	}
}

func TestStartSprint_RequiresManage(t *testing.T) {
	router, db := newTestRouter(t)
	p := seedProject(t, db, "SPR")
	s, err := sprint.Create(db, sprint.CreateOpts{ProjectID: p.ID, Name: "Sprint 1"})
	if err != nil {
		t.Fatalf("seed sprint: %v", err)
	}

	// Developer role does not grant manage_sprint.
	w := doJSON(t, router, http.MethodPost, "/api/sprints/"+s.ID+"/start", "usr-dev01", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestBoardEndpoints(t *testing.T) {
	router, db := newTestRouter(t)
	p := seedProject(t, db, "BRD")

	// First read lazily creates the default five-column board.
	w := doJSON(t, router, http.MethodGet, "/api/projects/"+p.ID+"/board", "usr-dev01", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("board status = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Columns []models.BoardColumn `json:"columns"`
	}
	decode(t, w, &resp)
	if len(resp.Columns) != 5 {
		t.Fatalf("len(columns) = %d, want 5 defaults", len(resp.Columns))
	}

	// Add a column.
	w = doJSON(t, router, http.MethodPost, "/api/projects/"+p.ID+"/board/columns", "usr-lead1", gin.H{
		"name": "Blocked", "status": "blocked", "position": 5, "color": "#FF9F43",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("add column status = %d, body %s", w.Code, w.Body.String())
	}

	// Duplicate status is a validation error.
	w = doJSON(t, router, http.MethodPost, "/api/projects/"+p.ID+"/board/columns", "usr-lead1", gin.H{
		"name": "Blocked again", "status": "blocked", "position": 6,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("duplicate status = %d, want 400", w.Code)
	}

	// Update by position.
	w = doJSON(t, router, http.MethodPatch, "/api/projects/"+p.ID+"/board/columns/5", "usr-lead1", gin.H{
		"name": "Impediment",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("patch column status = %d, body %s", w.Code, w.Body.String())
	}

	// Reorder needs a full permutation.
	w = doJSON(t, router, http.MethodPost, "/api/projects/"+p.ID+"/board/reorder", "usr-lead1", gin.H{
		"order": []int{5, 0, 1, 2, 3, 4},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("reorder status = %d, body %s", w.Code, w.Body.String())
	}

	// Remove it again (now at position 0).
	w = doJSON(t, router, http.MethodDelete, "/api/projects/"+p.ID+"/board/columns/0", "usr-lead1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete column status = %d, body %s", w.Code, w.Body.String())
	}

	// Non-numeric position.
	w = doJSON(t, router, http.MethodDelete, "/api/projects/"+p.ID+"/board/columns/abc", "usr-lead1", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad position status = %d, want 400", w.Code)
	}
}

func TestCommentEndpoints(t *testing.T) {
	router, db := newTestRouter(t)
	p := seedProject(t, db, "CMT")
	iss := seedIssue(t, db, p.ID, "discussed")

	// Outsider cannot comment.
	w := doJSON(t, router, http.MethodPost, "/api/issues/"+iss.ID+"/comments", "usr-out01", gin.H{
		"body": "drive-by",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("outsider status = %d, want 403", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/api/issues/"+iss.ID+"/comments", "usr-dev01", gin.H{
		"body": "needs a spinner",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("add status = %d, body %s", w.Code, w.Body.String())
	}
	var cmt models.Comment
	decode(t, w, &cmt)

	w = doJSON(t, router, http.MethodGet, "/api/issues/"+iss.ID+"/comments", "usr-dev01", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var comments []models.Comment
	decode(t, w, &comments)
	if len(comments) != 1 {
		t.Errorf("len(comments) = %d, want 1", len(comments))
	}

	// Only author or admin deletes.
	w = doJSON(t, router, http.MethodDelete, "/api/comments/"+cmt.ID, "usr-lead1", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("stranger delete status = %d, want 403", w.Code)
	}
	w = doJSON(t, router, http.MethodDelete, "/api/comments/"+cmt.ID, "usr-dev01", nil)
	if w.Code != http.StatusOK {
		t.Errorf("author delete status = %d", w.Code)
	}
}

func TestLinkEndpoints(t *testing.T) {
	router, db := newTestRouter(t)
	p := seedProject(t, db, "LNK")
	a := seedIssue(t, db, p.ID, "one")
	b := seedIssue(t, db, p.ID, "two")

	w := doJSON(t, router, http.MethodPost, "/api/issues/"+a.ID+"/links", "usr-dev01", gin.H{
		"target_id": b.ID, "reason": "blocks",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("add link status = %d, body %s", w.Code, w.Body.String())
	}
	var l models.LinkedWorkItem
	decode(t, w, &l)
	if l.TargetType != "issue" {
		t.Errorf("TargetType = %q, want defaulted issue", l.TargetType)
	}

	// Self-link rejected.
	w = doJSON(t, router, http.MethodPost, "/api/issues/"+a.ID+"/links", "usr-dev01", gin.H{
		"target_id": a.ID,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("self-link status = %d, want 400", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/api/issues/"+b.ID+"/links", "usr-dev01", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var links []models.LinkedWorkItem
	decode(t, w, &links)
	if len(links) != 1 {
		t.Errorf("len(links) = %d, want 1 (target side)", len(links))
	}

	w = doJSON(t, router, http.MethodDelete, "/api/links/"+l.ID, "usr-dev01", nil)
	if w.Code != http.StatusOK {
		t.Errorf("delete status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestTimeEndpoints(t *testing.T) {
	router, db := newTestRouter(t)
	p := seedProject(t, db, "TME")
	iss := seedIssue(t, db, p.ID, "timed")

	// Clock in (empty body).
	w := doJSON(t, router, http.MethodPost, "/api/issues/"+iss.ID+"/time", "usr-dev01", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("clock in status = %d, body %s", w.Code, w.Body.String())
	}
	var entry models.TimeEntry
	decode(t, w, &entry)
	if entry.ClockOut != nil {
		t.Error("entry closed immediately, want open")
	}

	// Second clock-in rejected.
	w = doJSON(t, router, http.MethodPost, "/api/issues/"+iss.ID+"/time", "usr-dev01", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("second clock in status = %d, want 400", w.Code)
	}

	// Clock out.
	w = doJSON(t, router, http.MethodPost, "/api/time/"+entry.ID+"/clockout", "usr-dev01", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("clock out status = %d, body %s", w.Code, w.Body.String())
	}

	// Manual entry.
	w = doJSON(t, router, http.MethodPost, "/api/issues/"+iss.ID+"/time", "usr-dev01", gin.H{
		"seconds": 3600,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("manual status = %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/api/issues/"+iss.ID+"/time", "usr-dev01", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var entries []models.TimeEntry
	decode(t, w, &entries)
	if len(entries) != 2 {
		t.Errorf("len(entries) = %d, want 2", len(entries))
	}
}

func TestRecycleBinOverHTTP(t *testing.T) {
	router, db := newTestRouter(t)
	p := seedProject(t, db, "BIN")
	iss := seedIssue(t, db, p.ID, "binned")

	// Delete the issue; the cascade result rides in a 200.
	w := doJSON(t, router, http.MethodDelete, "/api/issues/"+iss.ID, "usr-lead1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body %s", w.Code, w.Body.String())
	}

	// It shows up in the bin.
	w = doJSON(t, router, http.MethodGet, "/api/recycle-bin", "usr-lead1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("bin status = %d", w.Code)
	}
	var entries []map[string]any
	decode(t, w, &entries)
	if len(entries) != 1 {
		t.Fatalf("len(bin) = %d, want 1", len(entries))
	}

	// Restore.
	w = doJSON(t, router, http.MethodPost, "/api/recycle-bin/restore", "usr-lead1", gin.H{
		"kind": "issue", "id": iss.ID,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("restore status = %d, body %s", w.Code, w.Body.String())
	}
	w = doJSON(t, router, http.MethodGet, "/api/issues/"+iss.ID, "usr-dev01", nil)
	if w.Code != http.StatusOK {
		t.Errorf("get after restore status = %d, want 200", w.Code)
	}
}

func TestPurge_AdminOnly(t *testing.T) {
	router, db := newTestRouter(t)
	p := seedProject(t, db, "PRG")
	iss := seedIssue(t, db, p.ID, "purged")
	doJSON(t, router, http.MethodDelete, "/api/issues/"+iss.ID, "usr-lead1", nil)

	w := doJSON(t, router, http.MethodPost, "/api/recycle-bin/purge", "usr-lead1", gin.H{
		"kind": "issue", "id": iss.ID,
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("lead purge status = %d, want 403", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/api/recycle-bin/purge", "usr-admin", gin.H{
		"kind": "issue", "id": iss.ID,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("admin purge status = %d, body %s", w.Code, w.Body.String())
	}

	var n int64
	db.Model(&models.Issue{}).Where("id = ?", iss.ID).Count(&n)
	if n != 0 {
		t.Errorf("issue row count = %d after purge, want 0", n)
	}
}

func TestSSEEndpoint_Headers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	// A nil DB makes the handler return right after the connected event.
	router.GET("/api/events", handleEvents(nil))

	w := doJSON(t, router, http.MethodGet, "/api/events", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Errorf("content-type = %q, want text/event-stream", ct)
	}
	if !strings.Contains(w.Body.String(), "event: connected") {
		t.Errorf("body = %q, want connected event", w.Body.String())
	}
}

func TestUnknownRoute_Returns404(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/nonexistent", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
