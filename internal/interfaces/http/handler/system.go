package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/freightdesk/backend/internal/infrastructure/logger"
	"github.com/freightdesk/backend/internal/infrastructure/persistence"
	"github.com/freightdesk/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DatabaseProbe is the part of the database the health check needs
type DatabaseProbe interface {
	Ping(ctx context.Context) error
	Stats() (persistence.ConnectionStats, error)
}

// SystemHandler handles health and system information endpoints
type SystemHandler struct {
	BaseHandler
	db        DatabaseProbe
	version   string
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler. db may be nil when the
// service runs on in-memory storage.
func NewSystemHandler(db DatabaseProbe, version string) *SystemHandler {
	return &SystemHandler{
		db:        db,
		version:   version,
		startTime: time.Now(),
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string                       `json:"status" example:"ok"`
	Version   string                       `json:"version" example:"1.0.0"`
	GoVersion string                       `json:"go_version" example:"go1.25.5"`
	Uptime    string                       `json:"uptime" example:"1h30m45s"`
	Database  string                       `json:"database" example:"ok"`
	Pool      *persistence.ConnectionStats `json:"pool,omitempty"`
}

// Health godoc
// @ID           getHealth
// @Summary      Health check
// @Description  Reports liveness and database connectivity
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[HealthResponse]
// @Failure      503 {object} APIResponse[HealthResponse]
// @Router       /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:    "ok",
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Database:  "memory",
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := h.db.Ping(ctx); err != nil {
			logger.L(c.Request.Context()).Warn("health check database ping failed", zap.Error(err))
			resp.Status = "degraded"
			resp.Database = "unreachable"
			c.JSON(http.StatusServiceUnavailable, dto.Response{Success: false, Data: resp})
			return
		}
		resp.Database = "ok"
		if stats, err := h.db.Stats(); err == nil {
			resp.Pool = &stats
		}
	}

	h.Success(c, resp)
}
