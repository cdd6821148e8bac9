package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cadencehq/cadence/internal/cascade"
)

func handleListBin(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := cascade.ListBin(db, actor(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}

func handleRestore(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Kind string `json:"kind"`
			ID   string `json:"id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := cascade.Restore(db, req.Kind, req.ID, actor(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func handlePurge(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Kind string `json:"kind"`
			ID   string `json:"id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := cascade.PermanentDelete(db, req.Kind, req.ID, actor(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}
