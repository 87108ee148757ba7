package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"marginalia/internal/database"
	"marginalia/internal/pipeline"
)

type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
}

type HealthController struct {
	db       *database.Database
	pipeline *pipeline.Pipeline
	version  string
}

func NewHealthController(db *database.Database, p *pipeline.Pipeline, version string) *HealthController {
	return &HealthController{
		db:       db,
		pipeline: p,
		version:  version,
	}
}

// Status reports connectivity to the annotation database and the number
// of registered backends. An engine with zero backends can neither
// import nor fetch, so that counts as unhealthy too.
func (h *HealthController) Status(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	checks["database"] = h.checkDatabase()
	if checks["database"] != "ok" {
		status = "unhealthy"
	}

	if h.pipeline != nil {
		n := len(h.pipeline.Registry().Descriptors())
		checks["backends"] = fmt.Sprintf("%d registered", n)
		if n == 0 {
			status = "unhealthy"
		}
	}

	health := HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  checks,
	}

	statusCode := http.StatusOK
	if status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, health)
}

func (h *HealthController) checkDatabase() string {
	if h.db == nil {
		return "not configured"
	}
	sqlDB, err := h.db.DB.DB()
	if err != nil {
		return "error: " + err.Error()
	}
	if err := sqlDB.Ping(); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}
