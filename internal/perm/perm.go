// Package perm implements the capability checks consumed by every mutating
// operation. Checks are pure reads: user, project and issue rows are
// re-fetched on every call and nothing is cached.
package perm

import (
	"errors"
	"fmt"

	"github.com/cadencehq/cadence/internal/ident"
	"github.com/cadencehq/cadence/internal/models"
	"gorm.io/gorm"
)

// Member role tags recognized on a project's members map.
const (
	RoleProjectAdmin = "project_admin"
	RoleScrumMaster  = "scrum_master"
	RoleDeveloper    = "developer"
	RoleViewer       = "viewer"
)

// RoleGrants maps a capability to the member role tags that satisfy it.
// View and comment are granted to any member regardless of tag, so they
// have no entry here.
var RoleGrants = map[string][]string{
	"edit_project":  {RoleProjectAdmin, RoleScrumMaster, "admin"},
	"edit_workitem": {RoleProjectAdmin, RoleScrumMaster, RoleDeveloper},
	"manage_sprint": {RoleProjectAdmin, RoleScrumMaster},
}

// CanViewProject reports whether userID may read projectID. Site admins see
// everything, the lead and any member see their own project, and anyone may
// view a public project.
func CanViewProject(db *gorm.DB, userID, projectID string) (bool, error) {
	u, err := fetchUser(db, userID)
	if err != nil {
		return false, err
	}
	if u.IsAdmin() {
		return true, nil
	}
	p, err := fetchProject(db, projectID)
	if err != nil {
		return false, err
	}
	if ident.Same(p.Lead, userID) {
		return true, nil
	}
	if memberRole(p, userID) != "" {
		return true, nil
	}
	return p.Public, nil
}

// CanEditProject reports whether userID may change project settings,
// membership or board configuration.
func CanEditProject(db *gorm.DB, userID, projectID string) (bool, error) {
	u, err := fetchUser(db, userID)
	if err != nil {
		return false, err
	}
	if u.IsAdmin() {
		return true, nil
	}
	p, err := fetchProject(db, projectID)
	if err != nil {
		return false, err
	}
	if ident.Same(p.Lead, userID) {
		return true, nil
	}
	return roleGranted(memberRole(p, userID), "edit_project"), nil
}

// CanComment reports whether userID may comment on items in projectID.
// Unlike view, the public flag does not grant comment access.
func CanComment(db *gorm.DB, userID, projectID string) (bool, error) {
	u, err := fetchUser(db, userID)
	if err != nil {
		return false, err
	}
	if u.IsAdmin() {
		return true, nil
	}
	p, err := fetchProject(db, projectID)
	if err != nil {
		return false, err
	}
	if ident.Same(p.Lead, userID) {
		return true, nil
	}
	return memberRole(p, userID) != "", nil
}

// CanManageSprint reports whether userID may start, complete or delete
// sprints in projectID. An empty projectID means a global sprint, which
// only site admins may manage.
func CanManageSprint(db *gorm.DB, userID, projectID string) (bool, error) {
	u, err := fetchUser(db, userID)
	if err != nil {
		return false, err
	}
	if u.IsAdmin() {
		return true, nil
	}
	if projectID == "" {
		return false, nil
	}
	p, err := fetchProject(db, projectID)
	if err != nil {
		return false, err
	}
	if ident.Same(p.Lead, userID) {
		return true, nil
	}
	return roleGranted(memberRole(p, userID), "manage_sprint"), nil
}

// CanEditWorkItem reports whether userID may mutate the given issue. The
// issue's assignee and creator may always edit it, regardless of their
// project role.
func CanEditWorkItem(db *gorm.DB, userID, issueID string) (bool, error) {
	u, err := fetchUser(db, userID)
	if err != nil {
		return false, err
	}
	if u.IsAdmin() {
		return true, nil
	}

	var issue models.Issue
	if err := db.Where("id = ?", issueID).First(&issue).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, fmt.Errorf("perm: issue %s: %w", issueID, models.ErrNotFound)
		}
		return false, fmt.Errorf("perm: fetch issue %s: %w", issueID, err)
	}
	if ident.Same(issue.Assignee, userID) || ident.Same(issue.CreatedBy, userID) {
		return true, nil
	}

	p, err := fetchProject(db, issue.ProjectID)
	if err != nil {
		return false, err
	}
	if ident.Same(p.Lead, userID) {
		return true, nil
	}
	return roleGranted(memberRole(p, userID), "edit_workitem"), nil
}

// IsAdmin reports whether userID holds the site admin role. Used by the
// recycle bin's permanent delete, which no project role can grant.
func IsAdmin(db *gorm.DB, userID string) (bool, error) {
	u, err := fetchUser(db, userID)
	if err != nil {
		return false, err
	}
	return u.IsAdmin(), nil
}

// Deny builds the error returned when a capability check comes back false.
func Deny(capability, subject string) error {
	return fmt.Errorf("perm: %s on %s: %w", capability, subject, models.ErrPermissionDenied)
}

// fetchUser loads a user row. A missing or empty id is not an error: the
// caller proceeds with no user, which grants nothing beyond public view.
func fetchUser(db *gorm.DB, userID string) (*models.User, error) {
	if userID == "" {
		return nil, nil
	}
	var u models.User
	if err := db.Where("id = ?", userID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("perm: fetch user %s: %w", userID, err)
	}
	return &u, nil
}

// fetchProject loads a project row including soft-deleted ones, so recycle
// bin visibility can be decided for deleted projects too.
func fetchProject(db *gorm.DB, projectID string) (*models.Project, error) {
	var p models.Project
	if err := db.Where("id = ?", projectID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("perm: project %s: %w", projectID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("perm: fetch project %s: %w", projectID, err)
	}
	return &p, nil
}

// memberRole resolves the member role tag for a user. Map keys written by
// older code paths may carry legacy encodings, so a direct lookup falls
// back to a resolved comparison over all keys.
func memberRole(p *models.Project, userID string) string {
	if role := p.MemberRole(userID); role != "" {
		return role
	}
	for id, role := range p.Members {
		if ident.Same(id, userID) {
			return role
		}
	}
	return ""
}

func roleGranted(role, capability string) bool {
	if role == "" {
		return false
	}
	for _, r := range RoleGrants[capability] {
		if r == role {
			return true
		}
	}
	return false
}
