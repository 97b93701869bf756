package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/nats-io/nats.go"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/mapcam/internal/adapters/http"
	"github.com/samirrijal/mapcam/internal/adapters/inproc"
	"github.com/samirrijal/mapcam/internal/adapters/mbtiles"
	natsadapter "github.com/samirrijal/mapcam/internal/adapters/nats"
	"github.com/samirrijal/mapcam/internal/adapters/postgres"
	"github.com/samirrijal/mapcam/internal/adapters/valkey"
	"github.com/samirrijal/mapcam/internal/core/dispatch"
	"github.com/samirrijal/mapcam/internal/core/ports"
	"github.com/samirrijal/mapcam/internal/core/usecases"
	"github.com/samirrijal/mapcam/internal/jobs"
	"github.com/samirrijal/mapcam/internal/pkg/config"
	"github.com/samirrijal/mapcam/internal/pkg/logging"
	"github.com/samirrijal/mapcam/internal/pkg/metrics"
	"github.com/samirrijal/mapcam/internal/pkg/telemetry"
	"github.com/samirrijal/mapcam/internal/workflows"
)

func main() {
	cfg, err := config.Load("mapcam-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go reportPoolMetrics(ctx, db)

	// Cache
	var cache ports.CacheService
	valkeyCache, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.KeyPrefix)
	if err != nil {
		slog.Warn("valkey unavailable, session snapshots disabled", "error", err)
		valkeyCache = nil
	} else {
		defer valkeyCache.Close()
		cache = valkeyCache
	}

	// NATS
	var (
		publisher  ports.EventPublisher
		subscriber ports.EventSubscriber
	)
	nc, err := natsadapter.Connect(cfg.NATS.URL, "mapcam-api")
	if err != nil {
		slog.Warn("nats unavailable, camera events stay in-process", "error", err)
		nc = nil
	} else {
		defer nc.Drain()
		pub, err := natsadapter.NewPublisher(nc)
		if err != nil {
			slog.Warn("camera event stream unavailable", "error", err)
		} else {
			publisher = pub
			subscriber = natsadapter.NewSubscriber(nc)
		}
	}

	// Tiles
	var source ports.TileSource
	if cfg.Tiles.MBTilesPath != "" {
		r, err := mbtiles.Open(cfg.Tiles.MBTilesPath)
		if err != nil {
			log.Fatalf("mbtiles: %v", err)
		}
		defer r.Close()
		minZoom, maxZoom := r.ZoomRange()
		slog.Info("tile source opened", "path", cfg.Tiles.MBTilesPath, "format", r.Format(), "min_zoom", minZoom, "max_zoom", maxZoom)
		source = r
	}

	// Worker pool
	pool := dispatch.New(contextFactory(cfg, nc, source), cfg.Dispatch.Workers)
	defer pool.Close()

	// Use cases
	viewRepo := postgres.NewViewRepo(db)
	cameras := usecases.NewCameraService(usecases.CameraDefaults{
		FrameRate:         cfg.Camera.FrameRate,
		MinZoom:           cfg.Camera.MinZoom,
		MaxZoom:           cfg.Camera.MaxZoom,
		Width:             cfg.Camera.Width,
		Height:            cfg.Camera.Height,
		RenderWorldCopies: cfg.Camera.RenderWorldCopies,
		SessionTTL:        cfg.Camera.SessionTTL,
	}, viewRepo, publisher, cache)
	defer cameras.Close()
	views := usecases.NewViewService(viewRepo, cache)
	tiles := usecases.NewTileService(pool, cameras, cfg.Tiles.MaxTiles)
	defer tiles.Close()

	deps := &http.Dependencies{
		Cameras: cameras,
		Views:   views,
		Tiles:   tiles,
		Events:  subscriber,
		Pool:    pool,
		NATS:    nc,
		DB:      db,
		Cache:   valkeyCache,
	}

	// Tours run on a Temporal worker inside this process, next to the
	// sessions they move.
	if cfg.Temporal.Enabled {
		tc, err := client.Dial(client.Options{HostPort: cfg.Temporal.HostPort})
		if err != nil {
			slog.Warn("temporal unavailable, tours disabled", "error", err)
		} else {
			defer tc.Close()
			w := worker.New(tc, cfg.Temporal.TaskQueue, worker.Options{})
			workflows.Register(w, &workflows.TourActivities{Cameras: cameras})
			if err := w.Start(); err != nil {
				log.Fatalf("temporal worker: %v", err)
			}
			defer w.Stop()
			deps.Tours = workflows.NewTourRunner(tc, cfg.Temporal.TaskQueue)
			slog.Info("tour worker started", "task_queue", cfg.Temporal.TaskQueue)
		}
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "MapCam API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "workers", cfg.Dispatch.Workers, "transport", cfg.Dispatch.Transport)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped", "sessions", cameras.Len())
}

// contextFactory builds the pool's background contexts: goroutines in this
// process, or remote contexts served by cmd/worker over NATS.
func contextFactory(cfg *config.Config, nc *nats.Conn, source ports.TileSource) ports.ContextFactory {
	if cfg.Dispatch.Transport == "nats" {
		if nc == nil {
			log.Fatal("dispatch.transport is nats but NATS is unavailable")
		}
		return natsadapter.NewTransport(nc, cfg.Dispatch.SubjectPrefix)
	}
	bodies := dispatch.NewBodies()
	jobs.Register(bodies, source)
	return inproc.NewFactory(func(_ int, background ports.WorkerContext) error {
		dispatch.NewHost(background, bodies)
		return nil
	})
}

func reportPoolMetrics(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Stat())
		case <-ctx.Done():
			return
		}
	}
}
