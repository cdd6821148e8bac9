package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// registerRoutes sets up all API routes on the gin router.
func registerRoutes(router *gin.Engine, db *gorm.DB) {
	router.GET("/healthz", handleHealth(db))

	api := router.Group("/api")

	api.GET("/projects", handleListProjects(db))
	api.POST("/projects", handleCreateProject(db))
	api.GET("/projects/:id", handleGetProject(db))
	api.PATCH("/projects/:id", handleUpdateProject(db))
	api.DELETE("/projects/:id", handleDeleteProject(db))
	api.POST("/projects/:id/members", handleSetMember(db))
	api.GET("/projects/:id/epics", handleListEpics(db))
	api.POST("/projects/:id/epics", handleCreateEpic(db))
	api.GET("/projects/:id/features", handleListFeatures(db))
	api.POST("/projects/:id/features", handleCreateFeature(db))
	api.GET("/projects/:id/issues", handleListIssues(db))
	api.POST("/projects/:id/issues", handleCreateIssue(db))
	api.GET("/projects/:id/sprints", handleListSprints(db))
	api.POST("/projects/:id/sprints", handleCreateSprint(db))
	api.GET("/projects/:id/board", handleProjectBoard(db))
	api.GET("/projects/:id/backlog", handleProjectBacklog(db))
	api.POST("/projects/:id/board/columns", handleAddColumn(db))
	api.PATCH("/projects/:id/board/columns/:pos", handleUpdateColumn(db))
	api.DELETE("/projects/:id/board/columns/:pos", handleDeleteColumn(db))
	api.POST("/projects/:id/board/reorder", handleReorderColumns(db))

	api.GET("/epics/:id", handleGetEpic(db))
	api.PATCH("/epics/:id", handleUpdateEpic(db))
	api.DELETE("/epics/:id", handleDeleteEpic(db))
	api.GET("/features/:id", handleGetFeature(db))
	api.PATCH("/features/:id", handleUpdateFeature(db))
	api.DELETE("/features/:id", handleDeleteFeature(db))

	api.GET("/issues/:id", handleGetIssue(db))
	api.PATCH("/issues/:id", handleUpdateIssue(db))
	api.DELETE("/issues/:id", handleDeleteIssue(db))
	api.GET("/issues/:id/subtasks", handleListSubtasks(db))
	api.POST("/issues/:id/subtasks", handleAddSubtask(db))
	api.POST("/issues/:id/move", handleMoveIssue(db))
	api.POST("/issues/move", handleMoveIssues(db))
	api.GET("/issues/:id/comments", handleListComments(db))
	api.POST("/issues/:id/comments", handleAddComment(db))
	api.GET("/issues/:id/links", handleListLinks(db))
	api.POST("/issues/:id/links", handleAddLink(db))
	api.GET("/issues/:id/time", handleListTime(db))
	api.POST("/issues/:id/time", handleAddTime(db))

	api.DELETE("/comments/:id", handleDeleteComment(db))
	api.DELETE("/links/:id", handleDeleteLink(db))
	api.POST("/time/:id/clockout", handleClockOut(db))

	api.GET("/sprints/running", handleRunningSprints(db))
	api.GET("/sprints/global", handleGlobalSprints(db))
	api.GET("/sprints/:id", handleGetSprint(db))
	api.PATCH("/sprints/:id", handleUpdateSprint(db))
	api.DELETE("/sprints/:id", handleDeleteSprint(db))
	api.POST("/sprints/:id/start", handleStartSprint(db))
	api.POST("/sprints/:id/complete", handleCompleteSprint(db))
	api.POST("/sprints/:id/issues", handleAssignIssues(db))
	api.GET("/sprints/:id/board", handleSprintBoard(db))

	api.GET("/recycle-bin", handleListBin(db))
	api.POST("/recycle-bin/restore", handleRestore(db))
	api.POST("/recycle-bin/purge", handlePurge(db))

	api.GET("/events", handleEvents(db))
}

// handleHealth reports liveness and database reachability.
func handleHealth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.Ping()
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
