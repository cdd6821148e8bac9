package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cadencehq/cadence/internal/cascade"
	"github.com/cadencehq/cadence/internal/perm"
	"github.com/cadencehq/cadence/internal/workitem"
)

func handleGetEpic(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, err := workitem.GetEpic(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanViewProject, e.ProjectID, "view_project") {
			return
		}
		c.JSON(http.StatusOK, e)
	}
}

func handleUpdateEpic(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, err := workitem.GetEpic(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanEditProject, e.ProjectID, "edit_project") {
			return
		}
		var updates map[string]interface{}
		if err := c.ShouldBindJSON(&updates); err != nil {
			badRequest(c, err)
			return
		}
		out, err := workitem.UpdateEpic(db, e.ID, updates)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func handleDeleteEpic(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := cascade.SoftDeleteEpic(db, c.Param("id"), actor(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func handleListFeatures(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := workitem.GetProject(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanViewProject, p.ID, "view_project") {
			return
		}
		features, err := workitem.ListFeatures(db, p.ID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, features)
	}
}

func handleCreateFeature(db *gorm.DB) gin.HandlerFunc {
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
			Priority    string `json:"priority"`
			EpicID      string `json:"epic_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		f, err := workitem.CreateFeature(db, workitem.CreateFeatureOpts{
			ProjectID:   p.ID,
			EpicID:      req.EpicID,
			Name:        req.Name,
			Description: req.Description,
			Status:      req.Status,
			Priority:    req.Priority,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, f)
	}
}

func handleGetFeature(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, err := workitem.GetFeature(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanViewProject, f.ProjectID, "view_project") {
			return
		}
		c.JSON(http.StatusOK, f)
	}
}

func handleUpdateFeature(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, err := workitem.GetFeature(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if !require(c, db, perm.CanEditProject, f.ProjectID, "edit_project") {
			return
		}
		var updates map[string]interface{}
		if err := c.ShouldBindJSON(&updates); err != nil {
			badRequest(c, err)
			return
		}
		out, err := workitem.UpdateFeature(db, f.ID, updates)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func handleDeleteFeature(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := cascade.SoftDeleteFeature(db, c.Param("id"), actor(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}
