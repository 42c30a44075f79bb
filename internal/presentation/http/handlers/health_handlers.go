package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zirconsol/drshaq-backend/internal/infrastructure/persistence/database"
)

// HealthHandlers reports process and database liveness.
type HealthHandlers struct {
	db        *database.DB
	startedAt time.Time
}

// NewHealthHandlers creates health handlers with their dependencies.
func NewHealthHandlers(db *database.DB) *HealthHandlers {
	return &HealthHandlers{
		db:        db,
		startedAt: time.Now().UTC(),
	}
}

// GetHealth handles GET /api/v1/health.
func (h *HealthHandlers) GetHealth(c *gin.Context) {
	status := "ok"
	code := http.StatusOK
	if err := h.db.Ping(); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":         status,
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
	})
}
