package link

import (
	"errors"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cadencehq/cadence/internal/models"
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
		&models.Sprint{}, &models.Issue{}, &models.Backlog{},
		&models.LinkedWorkItem{},
	)
	if err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	users := []models.User{
		{ID: "usr-admin", Name: "Ada", Email: "ada@example.com", Role: "admin"},
		{ID: "usr-lead1", Name: "Lena", Email: "lena@example.com", Role: "member"},
	}
	for _, u := range users {
		if err := db.Create(&u).Error; err != nil {
			t.Fatalf("seed user %s: %v", u.ID, err)
		}
	}
	return db
}

func seedProject(t *testing.T, db *gorm.DB, key string) *models.Project {
	t.Helper()
	p, err := workitem.CreateProject(db, workitem.CreateProjectOpts{
		Key: key, Name: key + " project", Lead: "usr-lead1",
	})
	if err != nil {
		t.Fatalf("seed project %s: %v", key, err)
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

func TestCreate(t *testing.T) {
	db := openTestDB(t)
	p := seedProject(t, db, "LNK")
	a := seedIssue(t, db, p.ID, "api client")
	b := seedIssue(t, db, p.ID, "rate limiter")

	l, err := Create(db, a.ID, TypeIssue, b.ID, TypeIssue, "blocks")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if l.SourceID != a.ID || l.TargetID != b.ID {
		t.Errorf("endpoints = %s->%s, want %s->%s", l.SourceID, l.TargetID, a.ID, b.ID)
	}
	if l.Reason != "blocks" {
		t.Errorf("Reason = %q, want %q", l.Reason, "blocks")
	}
	if l.ProjectID != p.ID {
		t.Errorf("ProjectID = %q, want source project %q", l.ProjectID, p.ID)
	}
}

func TestCreate_DefaultReason(t *testing.T) {
	db := openTestDB(t)
	p := seedProject(t, db, "LNK")
	a := seedIssue(t, db, p.ID, "one")
	b := seedIssue(t, db, p.ID, "two")

	l, err := Create(db, a.ID, TypeIssue, b.ID, TypeIssue, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if l.Reason != "relates_to" {
		t.Errorf("Reason = %q, want default %q", l.Reason, "relates_to")
	}
}

func TestCreate_Validation(t *testing.T) {
	db := openTestDB(t)
	p := seedProject(t, db, "LNK")
	a := seedIssue(t, db, p.ID, "one")
	b := seedIssue(t, db, p.ID, "two")

	tests := []struct {
		name                   string
		srcID, srcT, tgtID, tgtT string
		reason                 string
	}{
		{"unknown reason", a.ID, TypeIssue, b.ID, TypeIssue, "depends"},
		{"unknown source type", a.ID, "card", b.ID, TypeIssue, "blocks"},
		{"unknown target type", a.ID, TypeIssue, b.ID, "card", "blocks"},
		{"empty source", "", TypeIssue, b.ID, TypeIssue, "blocks"},
		{"empty target", a.ID, TypeIssue, "", TypeIssue, "blocks"},
		{"self link", a.ID, TypeIssue, a.ID, TypeIssue, "blocks"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Create(db, tt.srcID, tt.srcT, tt.tgtID, tt.tgtT, tt.reason)
			if !errors.Is(err, models.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestCreate_SameIDDifferentType(t *testing.T) {
	db := openTestDB(t)
	p := seedProject(t, db, "LNK")
	iss := seedIssue(t, db, p.ID, "one")

	// Same id with a different type is not a self-link; the epic lookup
	// fails instead because no epic row carries the issue's id.
	_, err := Create(db, iss.ID, TypeIssue, iss.ID, TypeEpic, "relates_to")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCreate_MissingEndpoint(t *testing.T) {
	db := openTestDB(t)
	p := seedProject(t, db, "LNK")
	a := seedIssue(t, db, p.ID, "one")

	_, err := Create(db, a.ID, TypeIssue, "iss-nope1", TypeIssue, "blocks")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	_, err = Create(db, "iss-nope2", TypeIssue, a.ID, TypeIssue, "blocks")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCreate_DeletedEndpointRejected(t *testing.T) {
	db := openTestDB(t)
	p := seedProject(t, db, "LNK")
	a := seedIssue(t, db, p.ID, "one")
	b := seedIssue(t, db, p.ID, "two")
	if err := db.Model(&models.Issue{}).Where("id = ?", b.ID).
		Update("is_deleted", true).Error; err != nil {
		t.Fatalf("flag issue: %v", err)
	}

	_, err := Create(db, a.ID, TypeIssue, b.ID, TypeIssue, "blocks")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCreate_CrossTypeEndpoints(t *testing.T) {
	db := openTestDB(t)
	p := seedProject(t, db, "LNK")
	a := seedIssue(t, db, p.ID, "one")
	e, err := workitem.CreateEpic(db, workitem.CreateEpicOpts{ProjectID: p.ID, Name: "rollout"})
	if err != nil {
		t.Fatalf("seed epic: %v", err)
	}

	l, err := Create(db, a.ID, TypeIssue, e.ID, TypeEpic, "relates_to")
	if err != nil {
		t.Fatalf("Create issue->epic: %v", err)
	}
	if l.TargetType != TypeEpic {
		t.Errorf("TargetType = %q, want %q", l.TargetType, TypeEpic)
	}
}

func TestList_SourceOrTarget(t *testing.T) {
	db := openTestDB(t)
	p := seedProject(t, db, "LNK")
	a := seedIssue(t, db, p.ID, "one")
	b := seedIssue(t, db, p.ID, "two")
	c := seedIssue(t, db, p.ID, "three")

	if _, err := Create(db, a.ID, TypeIssue, b.ID, TypeIssue, "blocks"); err != nil {
		t.Fatalf("Create a->b: %v", err)
	}
	if _, err := Create(db, c.ID, TypeIssue, a.ID, TypeIssue, "duplicates"); err != nil {
		t.Fatalf("Create c->a: %v", err)
	}
	if _, err := Create(db, b.ID, TypeIssue, c.ID, TypeIssue, "relates_to"); err != nil {
		t.Fatalf("Create b->c: %v", err)
	}

	links, err := List(db, a.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("len(links) = %d, want 2 (source or target)", len(links))
	}
	for _, l := range links {
		if l.SourceID != a.ID && l.TargetID != a.ID {
			t.Errorf("link %s does not touch %s", l.ID, a.ID)
		}
	}
}

func TestList_MatchesLegacyEncodings(t *testing.T) {
	db := openTestDB(t)
	p := seedProject(t, db, "LNK")
	a := seedIssue(t, db, p.ID, "one")

	// A row written by the predecessor system stores the reference wrapped.
	legacy := models.LinkedWorkItem{
		ID:         "lnk-leg01",
		ProjectID:  p.ID,
		SourceID:   fmt.Sprintf("ObjectId(%q)", a.ID),
		SourceType: TypeIssue,
		TargetID:   "iss-other",
		TargetType: TypeIssue,
		Reason:     "blocks",
	}
	if err := db.Create(&legacy).Error; err != nil {
		t.Fatalf("seed legacy link: %v", err)
	}

	links, err := List(db, a.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("len(links) = %d, want 1 (legacy encoding matched)", len(links))
	}
	if links[0].ID != "lnk-leg01" {
		t.Errorf("link ID = %q, want lnk-leg01", links[0].ID)
	}
}

func TestList_EmptyID(t *testing.T) {
	db := openTestDB(t)
	if _, err := List(db, ""); !errors.Is(err, models.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestLinksSurviveEndpointSoftDelete(t *testing.T) {
	db := openTestDB(t)
	p := seedProject(t, db, "LNK")
	a := seedIssue(t, db, p.ID, "one")
	b := seedIssue(t, db, p.ID, "two")
	l, err := Create(db, a.ID, TypeIssue, b.ID, TypeIssue, "blocks")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Flag only the target endpoint; the link itself stays live and keeps
	// showing up for the surviving endpoint.
	if err := db.Model(&models.Issue{}).Where("id = ?", b.ID).
		Update("is_deleted", true).Error; err != nil {
		t.Fatalf("flag issue: %v", err)
	}

	links, err := List(db, a.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(links) != 1 || links[0].ID != l.ID {
		t.Errorf("links = %+v, want the dangling link to remain", links)
	}
}

func TestGet(t *testing.T) {
	db := openTestDB(t)
	p := seedProject(t, db, "LNK")
	a := seedIssue(t, db, p.ID, "one")
	b := seedIssue(t, db, p.ID, "two")
	l, err := Create(db, a.ID, TypeIssue, b.ID, TypeIssue, "blocks")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := Get(db, l.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != l.ID {
		t.Errorf("ID = %q, want %q", got.ID, l.ID)
	}

	if _, err := Get(db, "lnk-nope1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	db := openTestDB(t)
	p := seedProject(t, db, "LNK")
	a := seedIssue(t, db, p.ID, "one")
	b := seedIssue(t, db, p.ID, "two")
	l, err := Create(db, a.ID, TypeIssue, b.ID, TypeIssue, "blocks")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := Delete(db, l.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var n int64
	db.Model(&models.LinkedWorkItem{}).Where("id = ?", l.ID).Count(&n)
	if n != 0 {
		t.Errorf("link row count = %d after delete, want 0", n)
	}

	if err := Delete(db, l.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestValidType(t *testing.T) {
	for _, typ := range []string{TypeProject, TypeEpic, TypeSprint, TypeIssue, TypeFeature} {
		if !ValidType(typ) {
			t.Errorf("ValidType(%q) = false, want true", typ)
		}
	}
	if ValidType("card") {
		t.Error("ValidType(card) = true, want false")
	}
}
