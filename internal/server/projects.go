package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cadencehq/cadence/internal/board"
	"github.com/cadencehq/cadence/internal/cascade"
	"github.com/cadencehq/cadence/internal/models"
	"github.com/cadencehq/cadence/internal/perm"
	"github.com/cadencehq/cadence/internal/sprint"
	"github.com/cadencehq/cadence/internal/workitem"
)

// handleListProjects returns every project the actor may view.
func handleListProjects(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		projects, err := workitem.ListProjects(db)
		if err != nil {
			fail(c, err)
			return
		}
		visible := make([]models.Project, 0, len(projects))
		for _, p := range projects {
			ok, err := perm.CanViewProject(db, actor(c), p.ID)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					continue
				}
				fail(c, err)
				return
			}
			if ok {
				visible = append(visible, p)
			}
		}
		c.JSON(http.StatusOK, visible)
	}
}

func handleCreateProject(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Key         string `json:"key"`
			Name        string `json:"name"`
			Description string `json:"description"`
			Lead        string `json:"lead"`
			Public      bool   `json:"public"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		// The creator leads the project unless another lead is named.
		if req.Lead == "" {
			req.Lead = actor(c)
		}
		p, err := workitem.CreateProject(db, workitem.CreateProjectOpts{
			Key:         req.Key,
			Name:        req.Name,
			Description: req.Description,
			Lead:        req.Lead,
			Public:      req.Public,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

func handleGetProject(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := workitem.GetProject(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanViewProject, p.ID, "view_project") {
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func handleUpdateProject(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := workitem.GetProject(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanEditProject, p.ID, "edit_project") {
			return
		}
		var updates map[string]interface{}
		if err := c.ShouldBindJSON(&updates); err != nil {
			badRequest(c, err)
			return
		}
		out, err := workitem.UpdateProject(db, p.ID, updates)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func handleDeleteProject(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := cascade.SoftDeleteProject(db, c.Param("id"), actor(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func handleSetMember(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := workitem.GetProject(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanEditProject, p.ID, "edit_project") {
			return
		}
		var req struct {
			UserID string `json:"user_id"`
			Role   string `json:"role"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		out, err := workitem.SetMember(db, p.ID, req.UserID, req.Role)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func handleListEpics(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := workitem.GetProject(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanViewProject, p.ID, "view_project") {
			return
		}
		epics, err := workitem.ListEpics(db, p.ID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, epics)
	}
}

func handleCreateEpic(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := workitem.GetProject(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanEditProject, p.ID, "edit_project") {
			return
		}
		var req struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Status      string `json:"status"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		e, err := workitem.CreateEpic(db, workitem.CreateEpicOpts{
			ProjectID:   p.ID,
			Name:        req.Name,
			Description: req.Description,
			Status:      req.Status,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, e)
	}
}

func handleListIssues(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := workitem.GetProject(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanViewProject, p.ID, "view_project") {
			return
		}
		issues, err := workitem.ListIssues(db, workitem.IssueFilters{
			ProjectID: p.ID,
			EpicID:    c.Query("epic"),
			SprintID:  c.Query("sprint"),
			Assignee:  c.Query("assignee"),
			Status:    c.Query("status"),
			Location:  c.Query("location"),
			Type:      c.Query("type"),
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, issues)
	}
}

// handleCreateIssue gates on project membership: any member may file an
// issue, the same audience that may comment.
func handleCreateIssue(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := workitem.GetProject(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanComment, p.ID, "create_issue") {
			return
		}
		var req struct {
			Title          string  `json:"title"`
			Description    string  `json:"description"`
			Type           string  `json:"type"`
			Priority       string  `json:"priority"`
			Status         string  `json:"status"`
			Location       string  `json:"location"`
			EpicID         string  `json:"epic_id"`
			SprintID       string  `json:"sprint_id"`
			FeatureID      string  `json:"feature_id"`
			ParentID       string  `json:"parent_id"`
			Assignee       string  `json:"assignee"`
			StoryPoints    *int    `json:"story_points"`
			EstimatedHours float64 `json:"estimated_hours"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		iss, err := workitem.CreateIssue(db, workitem.CreateIssueOpts{
			ProjectID:      p.ID,
			Title:          req.Title,
			Description:    req.Description,
			Type:           req.Type,
			Priority:       req.Priority,
			Status:         req.Status,
			Location:       req.Location,
			EpicID:         req.EpicID,
			SprintID:       req.SprintID,
			FeatureID:      req.FeatureID,
			ParentID:       req.ParentID,
			Assignee:       req.Assignee,
			CreatedBy:      actor(c),
			StoryPoints:    req.StoryPoints,
			EstimatedHours: req.EstimatedHours,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, iss)
	}
}

func handleListSprints(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := workitem.GetProject(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanViewProject, p.ID, "view_project") {
			return
		}
		active, err := sprint.ListActive(db, p.ID)
		if err != nil {
			fail(c, err)
			return
		}
		completed, err := sprint.ListCompleted(db, p.ID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"active": active, "completed": completed})
	}
}

func handleCreateSprint(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := workitem.GetProject(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanManageSprint, p.ID, "manage_sprint") {
			return
		}
		var req struct {
			Name      string `json:"name"`
			Goal      string `json:"goal"`
			StartDate string `json:"start_date"`
			EndDate   string `json:"end_date"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		opts := sprint.CreateOpts{ProjectID: p.ID, Name: req.Name, Goal: req.Goal}
		if req.StartDate != "" {
			ts, err := parseDate(req.StartDate)
			if err != nil {
				fail(c, err)
				return
			}
			opts.StartDate = &ts
		}
		if req.EndDate != "" {
			ts, err := parseDate(req.EndDate)
			if err != nil {
				fail(c, err)
				return
			}
			opts.EndDate = &ts
		}
		s, err := sprint.Create(db, opts)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, s)
	}
}

// handleProjectBoard returns the board, its columns in position order, and
// the project's board-located issues grouped into them.
func handleProjectBoard(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := workitem.GetProject(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanViewProject, p.ID, "view_project") {
			return
		}
		b, err := board.ForProject(db, p.ID)
		if err != nil {
			fail(c, err)
			return
		}
		cols, err := board.Columns(db, p.ID)
		if err != nil {
			fail(c, err)
			return
		}
		issues, err := workitem.ListIssues(db, workitem.IssueFilters{
			ProjectID: p.ID, Location: models.LocationBoard,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"board":   b,
			"columns": cols,
			"groups":  board.Group(cols, issues),
		})
	}
}

func handleProjectBacklog(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := workitem.GetProject(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanViewProject, p.ID, "view_project") {
			return
		}
		issues, err := workitem.BacklogIssues(db, p.ID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, issues)
	}
}

func handleAddColumn(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := workitem.GetProject(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanEditProject, p.ID, "edit_project") {
			return
		}
		var req struct {
			Name     string `json:"name"`
			Status   string `json:"status"`
			Position int    `json:"position"`
			Color    string `json:"color"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		col, err := board.AddColumn(db, p.ID, board.ColumnSpec{
			Name:     req.Name,
			Status:   req.Status,
			Position: req.Position,
			Color:    req.Color,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, col)
	}
}

func handleUpdateColumn(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := workitem.GetProject(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanEditProject, p.ID, "edit_project") {
			return
		}
		pos, err := columnPos(c)
		if err != nil {
			fail(c, err)
			return
		}
		var req struct {
			Name     *string `json:"name"`
			Status   *string `json:"status"`
			Position *int    `json:"position"`
			Color    *string `json:"color"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		col, err := board.UpdateColumn(db, p.ID, pos, board.ColumnPatch{
			Name:     req.Name,
			Status:   req.Status,
			Position: req.Position,
			Color:    req.Color,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, col)
	}
}

func handleDeleteColumn(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := workitem.GetProject(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanEditProject, p.ID, "edit_project") {
			return
		}
		pos, err := columnPos(c)
		if err != nil {
			fail(c, err)
			return
		}
		if err := board.DeleteColumn(db, p.ID, pos); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": pos})
	}
}

func handleReorderColumns(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := workitem.GetProject(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanEditProject, p.ID, "edit_project") {
			return
		}
		var req struct {
			Order []int `json:"order"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		cols, err := board.Reorder(db, p.ID, req.Order)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, cols)
	}
}

func columnPos(c *gin.Context) (int, error) {
	pos, err := strconv.Atoi(c.Param("pos"))
	if err != nil {
		return 0, fmt.Errorf("server: column position %q: %w", c.Param("pos"), models.ErrValidation)
	}
	return pos, nil
}
