package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cadencehq/cadence/internal/board"
	"github.com/cadencehq/cadence/internal/cascade"
	"github.com/cadencehq/cadence/internal/models"
	"github.com/cadencehq/cadence/internal/perm"
	"github.com/cadencehq/cadence/internal/sprint"
)

// visibleSprint reports whether the actor may see the sprint. Project
// sprints follow the project view gate; global sprints are visible to
// everyone (they aggregate issues the actor already sees elsewhere).
func visibleSprint(db *gorm.DB, who string, s *models.Sprint) (bool, error) {
	if s.IsGlobal() {
		return true, nil
	}
	ok, err := perm.CanViewProject(db, who, s.ProjectID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

func handleRunningSprints(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sprints, err := sprint.ListRunning(db)
		if err != nil {
			fail(c, err)
			return
		}
		visible := make([]models.Sprint, 0, len(sprints))
		for i := range sprints {
			ok, err := visibleSprint(db, actor(c), &sprints[i])
			if err != nil {
				fail(c, err)
				return
			}
			if ok {
				visible = append(visible, sprints[i])
			}
		}
		c.JSON(http.StatusOK, visible)
	}
}

func handleGlobalSprints(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sprints, err := sprint.ListGlobal(db)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, sprints)
	}
}

func handleGetSprint(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := sprint.Get(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		ok, err := visibleSprint(db, actor(c), s)
		if err != nil {
			fail(c, err)
			return
		}
		if !ok {
			fail(c, perm.Deny("view_sprint", s.ID))
			return
		}
		issues, err := sprint.Issues(db, s.ID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sprint": s, "issues": issues})
	}
}

func handleUpdateSprint(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := sprint.Get(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanManageSprint, s.ProjectID, "manage_sprint") {
			return
		}
		var updates map[string]interface{}
		if err := c.ShouldBindJSON(&updates); err != nil {
			badRequest(c, err)
			return
		}
		out, err := sprint.Update(db, s.ID, updates)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func handleDeleteSprint(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := cascade.SoftDeleteSprint(db, c.Param("id"), actor(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func handleStartSprint(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := sprint.Start(db, c.Param("id"), actor(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// handleCompleteSprint runs the completion protocol. A response with
// completed=false and a pending list is the split: the client picks a
// target and calls again.
func handleCompleteSprint(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Target string `json:"target"`
		}
		// No body means no target: the caller wants the split check.
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, err)
			return
		}
		res, err := sprint.Complete(db, c.Param("id"), req.Target, actor(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func handleAssignIssues(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := sprint.Get(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanManageSprint, s.ProjectID, "manage_sprint") {
			return
		}
		var req struct {
			IssueIDs []string `json:"issue_ids"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := sprint.Assign(db, s.ID, req.IssueIDs)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// handleSprintBoard groups the sprint's issues into its board columns: the
// sprint's own board for global sprints, the owning project's board
// otherwise.
func handleSprintBoard(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := sprint.Get(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		ok, err := visibleSprint(db, actor(c), s)
		if err != nil {
			fail(c, err)
			return
		}
		if !ok {
			fail(c, perm.Deny("view_sprint", s.ID))
			return
		}

		var cols []models.BoardColumn
		if s.IsGlobal() {
			cols, err = board.SprintColumns(db, s.ID)
		} else {
			cols, err = board.Columns(db, s.ProjectID)
		}
		if err != nil {
			fail(c, err)
			return
		}
		issues, err := sprint.Issues(db, s.ID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"sprint":  s,
			"columns": cols,
			"groups":  board.Group(cols, issues),
		})
	}
}
