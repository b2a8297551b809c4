// backend-go/cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/autoplan/backend-go/internal/api"
	"github.com/andresuchdata/autoplan/backend-go/internal/blueprint"
	"github.com/andresuchdata/autoplan/backend-go/internal/cache"
	"github.com/andresuchdata/autoplan/backend-go/internal/config"
	"github.com/andresuchdata/autoplan/backend-go/internal/engine"
	"github.com/andresuchdata/autoplan/backend-go/internal/metrics"
	"github.com/andresuchdata/autoplan/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/autoplan/backend-go/internal/service"
	"github.com/andresuchdata/autoplan/backend-go/internal/storage"
	"github.com/andresuchdata/autoplan/backend-go/pkg/logger"
)

func main() {
	cfg := config.Load()

	logger.Setup(cfg.App.LogLevel, cfg.App.LogFormat)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	planningCache, err := cache.NewPlanningCache(cfg.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, running without a planning cache")
		planningCache = cache.NewNoopPlanningCache()
	}

	store, err := storage.FromConfig(cfg.Storage, cfg.App.ExportDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize object storage")
	}
	if cfg.Storage.Enabled {
		n, err := storage.SyncBlueprints(ctx, store, cfg.Blueprint.ObjectPrefix, cfg.Blueprint.Dir)
		if err != nil {
			log.Warn().Err(err).Msg("Blueprint sync from object storage failed, using local files")
		} else {
			log.Info().Int("files", n).Str("dir", cfg.Blueprint.Dir).Msg("Blueprints synced from object storage")
		}
	}

	catalog := blueprint.NewCatalog(nil)
	watcher := blueprint.NewWatcher(cfg.Blueprint.Dir, catalog, cfg.Blueprint.Debounce())
	if err := watcher.Reload(); err != nil {
		log.Warn().Err(err).Str("dir", cfg.Blueprint.Dir).Msg("No blueprint files loaded, serving standard blueprints")
	}

	services := &api.Services{}
	var observer engine.Observer
	if cfg.Metrics.Enabled {
		m := metrics.New(cfg.Metrics.Namespace, nil)
		observer = m
		services.Metrics = m.Handler()
	}

	services.PlanningService = service.NewPlanningService(service.Deps{
		Items:      postgres.NewItemRepository(db),
		Policies:   postgres.NewPolicyRepository(db),
		Blueprints: postgres.NewBlueprintRepository(db),
		Decisions:  postgres.NewDecisionRepository(db),
		Catalog:    catalog,
		Cache:      planningCache,
		Engine:     service.NewEngine(cfg, observer),
		Exporter:   storage.NewExporter(store, ""),
	})

	router := api.NewRouter(services, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.Blueprint.Watch {
		g.Go(func() error {
			if err := watcher.Run(gctx); err != nil {
				// Hot reload is optional; the server keeps the blueprints it has.
				log.Error().Err(err).Msg("Blueprint watcher stopped")
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		// The server has 5 seconds to finish the requests it is currently handling
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Server stopped with error")
	}
	log.Info().Msg("Server exiting")
}
