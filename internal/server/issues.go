package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cadencehq/cadence/internal/cascade"
	"github.com/cadencehq/cadence/internal/comment"
	"github.com/cadencehq/cadence/internal/link"
	"github.com/cadencehq/cadence/internal/perm"
	"github.com/cadencehq/cadence/internal/sprint"
	"github.com/cadencehq/cadence/internal/timelog"
	"github.com/cadencehq/cadence/internal/workitem"
)

func handleGetIssue(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		iss, err := workitem.GetIssue(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanViewProject, iss.ProjectID, "view_project") {
			return
		}
		c.JSON(http.StatusOK, iss)
	}
}

func handleUpdateIssue(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		iss, err := workitem.GetIssue(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanEditWorkItem, iss.ID, "edit_workitem") {
			return
		}
		var updates map[string]interface{}
		if err := c.ShouldBindJSON(&updates); err != nil {
			badRequest(c, err)
			return
		}
		out, err := workitem.UpdateIssue(db, iss.ID, updates)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func handleDeleteIssue(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := cascade.SoftDeleteIssue(db, c.Param("id"), actor(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func handleListSubtasks(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		iss, err := workitem.GetIssue(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanViewProject, iss.ProjectID, "view_project") {
			return
		}
		subs, err := workitem.Subtasks(db, iss.ID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, subs)
	}
}

func handleAddSubtask(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		parent, err := workitem.GetIssue(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanEditWorkItem, parent.ID, "edit_workitem") {
			return
		}
		var req struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Priority    string `json:"priority"`
			Assignee    string `json:"assignee"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		sub, err := workitem.AddSubtask(db, parent.ID, workitem.CreateIssueOpts{
			Title:       req.Title,
			Description: req.Description,
			Priority:    req.Priority,
			Assignee:    req.Assignee,
			CreatedBy:   actor(c),
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, sub)
	}
}

func handleMoveIssue(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		iss, err := workitem.GetIssue(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanEditWorkItem, iss.ID, "edit_workitem") {
			return
		}
		var req struct {
			To string `json:"to"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		if err := sprint.Move(db, iss.ID, req.To); err != nil {
			fail(c, err)
			return
		}
		out, err := workitem.GetIssue(db, iss.ID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// handleMoveIssues relocates a batch. Issues the actor may not edit are
// reported in the errors array alongside per-issue move failures.
func handleMoveIssues(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			IssueIDs []string `json:"issue_ids"`
			To       string   `json:"to"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		res := &sprint.MoveResult{}
		allowed := make([]string, 0, len(req.IssueIDs))
		for _, id := range req.IssueIDs {
			ok, err := perm.CanEditWorkItem(db, actor(c), id)
			if err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("issue %s: %v", id, err))
				continue
			}
			if !ok {
				res.Errors = append(res.Errors, fmt.Sprintf("issue %s: %v", id, perm.Deny("edit_workitem", id)))
				continue
			}
			allowed = append(allowed, id)
		}
		moved := sprint.MoveMultiple(db, allowed, req.To)
		res.Moved = moved.Moved
		res.Errors = append(res.Errors, moved.Errors...)
		c.JSON(http.StatusOK, res)
	}
}

func handleListComments(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		iss, err := workitem.GetIssue(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanViewProject, iss.ProjectID, "view_project") {
			return
		}
		comments, err := comment.ListFor(db, comment.Target{IssueID: iss.ID})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, comments)
	}
}

func handleAddComment(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		iss, err := workitem.GetIssue(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanComment, iss.ProjectID, "comment") {
			return
		}
		var req struct {
			Body string `json:"body"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		cmt, err := comment.Add(db, comment.Target{IssueID: iss.ID}, actor(c), req.Body)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, cmt)
	}
}

func handleDeleteComment(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := comment.Delete(db, c.Param("id"), actor(c)); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
	}
}

func handleListLinks(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		iss, err := workitem.GetIssue(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanViewProject, iss.ProjectID, "view_project") {
			return
		}
		links, err := link.List(db, iss.ID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, links)
	}
}

func handleAddLink(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		iss, err := workitem.GetIssue(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanEditWorkItem, iss.ID, "edit_workitem") {
			return
		}
		var req struct {
			TargetID   string `json:"target_id"`
			TargetType string `json:"target_type"`
			Reason     string `json:"reason"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		if req.TargetType == "" {
			req.TargetType = link.TypeIssue
		}
		l, err := link.Create(db, iss.ID, link.TypeIssue, req.TargetID, req.TargetType, req.Reason)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, l)
	}
}

// handleDeleteLink gates on the source endpoint: edit_workitem when the
// source is an issue, edit_project on the link's project otherwise.
func handleDeleteLink(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		l, err := link.Get(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		switch {
		case l.SourceType == link.TypeIssue:
			if !require(c, db, perm.CanEditWorkItem, l.SourceID, "edit_workitem") {
				return
			}
		case l.ProjectID != "":
			if !require(c, db, perm.CanEditProject, l.ProjectID, "edit_project") {
				return
			}
		default:
			ok, err := perm.IsAdmin(db, actor(c))
			if err != nil {
				fail(c, err)
				return
			}
			if !ok {
				fail(c, perm.Deny("delete_link", l.ID))
				return
			}
		}
		if err := link.Delete(db, l.ID); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": l.ID})
	}
}

func handleListTime(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		iss, err := workitem.GetIssue(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanViewProject, iss.ProjectID, "view_project") {
			return
		}
		entries, err := timelog.List(db, iss.ID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}

// handleAddTime clocks the actor in, or records a finished manual entry
// when the body carries a positive seconds value.
func handleAddTime(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		iss, err := workitem.GetIssue(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanViewProject, iss.ProjectID, "view_project") {
			return
		}
		var req struct {
			Seconds int64 `json:"seconds"`
		}
		// An empty body is a plain clock-in.
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, err)
			return
		}
		if req.Seconds > 0 {
			entry, err := timelog.AddManual(db, iss.ID, actor(c), req.Seconds)
			if err != nil {
				fail(c, err)
				return
			}
			c.JSON(http.StatusCreated, entry)
			return
		}
		entry, err := timelog.ClockIn(db, iss.ID, actor(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, entry)
	}
}

func handleClockOut(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		entry, err := timelog.ClockOut(db, c.Param("id"), actor(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}
