package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/mapcam/internal/adapters/postgres"
	"github.com/samirrijal/mapcam/internal/adapters/valkey"
	"github.com/samirrijal/mapcam/internal/core/dispatch"
	"github.com/samirrijal/mapcam/internal/core/ports"
	"github.com/samirrijal/mapcam/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Cameras *usecases.CameraService
	Views   *usecases.ViewService
	Tiles   *usecases.TileService
	Tours   ports.TourRunner
	// Events streams camera events to websocket clients. Nil falls back to
	// the in-process session emitter.
	Events ports.EventSubscriber
	Pool   *dispatch.Dispatcher
	NATS   *nats.Conn
	DB     *postgres.DB
	Cache  *valkey.Cache
}
