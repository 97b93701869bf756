package main

import (
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/samirrijal/mapcam/internal/adapters/mbtiles"
	natsadapter "github.com/samirrijal/mapcam/internal/adapters/nats"
	"github.com/samirrijal/mapcam/internal/core/dispatch"
	"github.com/samirrijal/mapcam/internal/core/ports"
	"github.com/samirrijal/mapcam/internal/jobs"
	"github.com/samirrijal/mapcam/internal/pkg/config"
	"github.com/samirrijal/mapcam/internal/pkg/logging"
)

// The worker process hosts pooled workers for an API started with
// dispatch.transport=nats. Its worker count must match the API's.
func main() {
	cfg, err := config.Load("mapcam-worker")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	nc, err := natsadapter.Connect(cfg.NATS.URL, "mapcam-worker")
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer nc.Drain()

	var source ports.TileSource
	if cfg.Tiles.MBTilesPath != "" {
		r, err := mbtiles.Open(cfg.Tiles.MBTilesPath)
		if err != nil {
			log.Fatalf("mbtiles: %v", err)
		}
		defer r.Close()
		source = r
	}

	bodies := dispatch.NewBodies()
	jobs.Register(bodies, source)

	server := natsadapter.NewContextServer(nc, cfg.Dispatch.SubjectPrefix, bodies)
	if err := server.Serve(cfg.Dispatch.Workers); err != nil {
		log.Fatalf("serve: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received", "signal", sig.String())
	if err := server.Close(); err != nil {
		slog.Error("close worker contexts", "error", err)
	}
	slog.Info("worker stopped")
}
