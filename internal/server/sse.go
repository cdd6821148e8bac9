package server

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cadencehq/cadence/internal/models"
)

// sprintEvent is the payload of one lifecycle SSE event.
type sprintEvent struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id,omitempty"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	Active    bool   `json:"active"`
	Deleted   bool   `json:"deleted"`
}

// handleEvents streams sprint lifecycle changes. The handler polls for
// sprint rows touched since the last poll; every status flip, completion
// and soft-delete lands here because they all rewrite the row.
func handleEvents(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
		c.Writer.Flush()

		if db == nil {
			return
		}

		// Only stream changes made after the client connected.
		lastSeen := time.Now()

		ctx := c.Request.Context()
		ticker := time.NewTicker(3 * time.Second)
		heartbeat := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				var changed []models.Sprint
				db.Where("updated_at > ?", lastSeen).
					Order("updated_at ASC").
					Find(&changed)

				if len(changed) == 0 {
					continue
				}
				lastSeen = changed[len(changed)-1].UpdatedAt

				for _, s := range changed {
					writeSSE(c.Writer, "sprint", sprintEvent{
						ID:        s.ID,
						ProjectID: s.ProjectID,
						Name:      s.Name,
						Status:    s.Status,
						Active:    s.Active,
						Deleted:   s.IsDeleted,
					})
				}
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
