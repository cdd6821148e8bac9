package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cadencehq/cadence/internal/models"
	"github.com/cadencehq/cadence/internal/perm"
)

// actorHeader carries the acting user's id. There is no session layer; the
// deployment in front of the API is expected to authenticate and set it.
const actorHeader = "X-User-ID"

func actor(c *gin.Context) string {
	return c.GetHeader(actorHeader)
}

// fail maps a domain error onto its HTTP status. Partial cascade failures
// never arrive here: they ride inside a 200 result's errors array.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// badRequest rejects a request that failed JSON binding.
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "bad request: " + err.Error()})
}

// require runs one capability check and writes the 403 when it fails.
// Returns true when the handler may proceed.
func require(c *gin.Context, db *gorm.DB, check func(*gorm.DB, string, string) (bool, error), subject, capability string) bool {
	ok, err := check(db, actor(c), subject)
	if err != nil {
		fail(c, err)
		return false
	}
	if !ok {
		fail(c, perm.Deny(capability, subject))
		return false
	}
	return true
}

// parseDate accepts RFC 3339 timestamps and bare dates.
func parseDate(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	ts, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("server: date %q: %w", s, models.ErrValidation)
	}
	return ts, nil
}
