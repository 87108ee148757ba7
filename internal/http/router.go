package http

import (
	"github.com/gin-gonic/gin"

	"marginalia/internal/catalog"
	"marginalia/internal/database"
	"marginalia/internal/pipeline"
)

// RouterConfig receives all handler dependencies, keeping NewRouter's
// signature stable as the surface grows.
type RouterConfig struct {
	DB       *database.Database
	Pipeline *pipeline.Pipeline
	Library  *catalog.Library
	Version  string

	// DeveloperMode additionally exposes the destructive purge route.
	DeveloperMode bool
}

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	health := NewHealthController(cfg.DB, cfg.Pipeline, cfg.Version)
	router.GET("/health", health.Status)

	api := router.Group("/api")

	backendsCtl := NewBackendsController(cfg.Pipeline)
	api.GET("/backends", backendsCtl.List)

	importCtl := NewImportController(cfg.Pipeline)
	api.POST("/import", importCtl.Import)

	fetchCtl := NewFetchController(cfg.Pipeline)
	api.POST("/fetch", fetchCtl.Fetch)

	sessionsCtl := NewSessionsController(cfg.Pipeline, cfg.Library)
	api.GET("/sessions/:id", sessionsCtl.Get)
	api.POST("/sessions/:id/items/:item/toggle", sessionsCtl.Toggle)
	api.POST("/sessions/:id/items/:item/target", sessionsCtl.OverrideTarget)
	api.POST("/sessions/:id/commit", sessionsCtl.Commit)
	api.POST("/sessions/:id/discard", sessionsCtl.Discard)

	annotationsCtl := NewAnnotationsController(cfg.Pipeline)
	api.GET("/annotations/:entry/:backend", annotationsCtl.List)
	if cfg.DeveloperMode {
		api.DELETE("/annotations", annotationsCtl.PurgeAll)
	}

	return router
}
