package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/mapcam/internal/pkg/metrics"
)

// requestTimeout bounds every v1 call. Camera operations return as soon as a
// transition has started, so only view storage and tour scheduling come near it.
const requestTimeout = 15 * time.Second

// deprecatedRoutes are kept for clients of the first camera API.
var deprecatedRoutes = []DeprecatedRoute{
	{
		Path:        "/v1/sessions/:id/flyto",
		SunsetDate:  time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC),
		Alternative: "/v1/sessions/:id/fly",
	},
}

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Camera commands arrive in bursts while a user drags, so the budget is
	// higher than for a read-mostly API.
	app.Use(limiter.New(limiter.Config{
		Max:        600,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())
	app.Use(DeprecationMiddleware(deprecatedRoutes))

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	with := func(h fiber.Handler) fiber.Handler { return timeout.NewWithContext(h, requestTimeout) }

	// Sessions
	v1.Post("/sessions", with(CreateSessionHandler(deps)))
	v1.Get("/sessions/:id", with(GetSessionHandler(deps)))
	v1.Delete("/sessions/:id", with(DeleteSessionHandler(deps)))
	v1.Post("/sessions/:id/resume", with(ResumeSessionHandler(deps)))
	v1.Post("/sessions/:id/jump", with(JumpHandler(deps)))
	v1.Post("/sessions/:id/ease", with(EaseHandler(deps)))
	v1.Post("/sessions/:id/fly", with(FlyHandler(deps)))
	v1.Post("/sessions/:id/flyto", with(FlyHandler(deps))) // deprecated
	v1.Post("/sessions/:id/fit", with(FitHandler(deps)))
	v1.Post("/sessions/:id/pan", with(PanHandler(deps)))
	v1.Post("/sessions/:id/zoom", with(ZoomHandler(deps)))
	v1.Post("/sessions/:id/rotate", with(RotateHandler(deps)))
	v1.Post("/sessions/:id/stop", with(StopHandler(deps)))
	v1.Post("/sessions/:id/resize", with(ResizeHandler(deps)))
	v1.Get("/sessions/:id/bounds", with(BoundsHandler(deps)))
	v1.Post("/sessions/:id/views", with(SaveSessionViewHandler(deps)))
	v1.Post("/sessions/:id/views/:viewId", with(FlyToViewHandler(deps)))
	v1.Post("/sessions/:id/tours", with(StartTourHandler(deps)))
	v1.Post("/sessions/:id/tiles", with(AttachTilesHandler(deps)))
	v1.Delete("/sessions/:id/tiles", with(DetachTilesHandler(deps)))

	// Saved views
	v1.Post("/views", with(CreateViewHandler(deps)))
	v1.Get("/views", with(ListViewsHandler(deps)))
	v1.Get("/views/:id", with(GetViewHandler(deps)))
	v1.Delete("/views/:id", with(DeleteViewHandler(deps)))

	v1.Get("/pool", PoolStatsHandler(deps))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket
	events := deps.Events
	if events == nil {
		events = deps.Cameras
	}
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/sessions/:id", websocket.New(WebSocketHandler(events)))
}
