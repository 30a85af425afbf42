package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/accountd/internal/database"
	"github.com/charlesng35/accountd/pkg/response"
)

// Health reports process liveness and storage reachability.
func Health(db *database.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"

		handle, err := db.Handle()
		if err == nil {
			if sqlDB, dbErr := handle.DB(); dbErr == nil {
				err = sqlDB.PingContext(c.Request.Context())
			} else {
				err = dbErr
			}
		}
		if err != nil {
			status = "degraded"
		}

		response.Success(c, http.StatusOK, gin.H{"status": status})
	}
}
