package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"marginalia/internal/backends"
	"marginalia/internal/backends/kindleclippings"
	"marginalia/internal/backends/kobo"
	"marginalia/internal/backends/moonreader"
	"marginalia/internal/backends/tolino"
	"marginalia/internal/catalog"
	"marginalia/internal/config"
	"marginalia/internal/database"
	"marginalia/internal/devicewatch"
	http_controllers "marginalia/internal/http"
	"marginalia/internal/matching"
	"marginalia/internal/pipeline"
	"marginalia/internal/scheduler"
	"marginalia/internal/store"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting server at %s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

// BuildRegistry constructs the backend registry from the configured
// enable list. A backend whose loader fails (a missing Kobo mount, for
// example) is reported, not fatal.
func BuildRegistry(cfg *config.Config) (*backends.Registry, []backends.LoadFailure) {
	loaders := map[string]backends.Loader{
		kindleclippings.BackendID: func() (backends.Backend, error) { return kindleclippings.New(), nil },
		tolino.BackendID:          func() (backends.Backend, error) { return tolino.New(), nil },
		moonreader.BackendID:      func() (backends.Backend, error) { return moonreader.New(), nil },
		kobo.BackendID:            func() (backends.Backend, error) { return kobo.New(cfg.Backends.KoboMount) },
	}

	registry := backends.NewRegistry()
	failures := backends.Load(registry, loaders, cfg.Backends.Enabled)
	return registry, failures
}

// BuildPipeline wires the matching engine, the annotation store and the
// backend registry against an open database.
func BuildPipeline(db *database.Database, registry *backends.Registry, cfg *config.Config) (*pipeline.Pipeline, *catalog.Library) {
	library := catalog.NewLibrary(db.DB)
	engine := matching.NewEngine(library, matching.Thresholds{
		High: cfg.Matching.TauHigh,
		Low:  cfg.Matching.TauLow,
	})
	st := store.New(db.DB, cfg.Developer.Mode)
	return pipeline.New(registry, engine, st), library
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting Marginalia v%s", version)

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	registry, failures := BuildRegistry(cfg)
	for _, f := range failures {
		log.Printf("WARNING: backend '%s' unavailable: %v", f.Name, f.Err)
	}
	if len(registry.Descriptors()) == 0 {
		log.Fatalf("No backends could be loaded, check BACKENDS_ENABLED")
	}

	p, library := BuildPipeline(db, registry, cfg)

	if cfg.Developer.Mode {
		log.Printf("Developer mode enabled - destructive operations are exposed")
	}

	syncScheduler := scheduler.NewSyncScheduler(p, cfg.Sync)
	if err := syncScheduler.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start sync scheduler: %v", err)
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	watcher := devicewatch.New(p, cfg.DeviceWatch)
	if err := watcher.Start(watchCtx); err != nil {
		log.Printf("WARNING: device watch unavailable: %v", err)
	}

	routerCfg := http_controllers.RouterConfig{
		DB:            db,
		Pipeline:      p,
		Library:       library,
		Version:       version,
		DeveloperMode: cfg.Developer.Mode,
	}
	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		watcher.Stop()
		watchCancel()
		syncScheduler.Stop()
	}

	Serve(router, cfg, onShutdown)
}
