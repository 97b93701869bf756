package http

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Version is reported by the health endpoint; set with -ldflags at build time.
var Version = "dev"

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		body := fiber.Map{
			"status":   "healthy",
			"uptime":   time.Since(startedAt).String(),
			"version":  Version,
			"sessions": deps.Cameras.Len(),
		}
		if deps.Pool != nil {
			body["workers"] = deps.Pool.Size()
		}
		return c.JSON(body)
	}
}

// readinessCheck probes one dependency. A nil probe means the dependency is
// not configured, which only fails readiness when it is required.
type readinessCheck struct {
	name     string
	required bool
	probe    func(ctx context.Context) error
}

func readinessChecks(deps *Dependencies) []readinessCheck {
	checks := []readinessCheck{
		{name: "database", required: true},
		{name: "nats"},
		{name: "cache"},
		{name: "workers"},
	}
	if deps.DB != nil {
		checks[0].probe = deps.DB.Ping
	}
	if nc := deps.NATS; nc != nil {
		checks[1].probe = func(context.Context) error {
			if !nc.IsConnected() {
				return fmt.Errorf("disconnected (%s)", nc.Status())
			}
			return nil
		}
	}
	if deps.Cache != nil {
		checks[2].probe = deps.Cache.Ping
	}
	if deps.Pool != nil {
		// Contexts start lazily on first allocation.
		checks[3].probe = func(context.Context) error { return nil }
	}
	return checks
}

// ReadyHandler checks DB, NATS, cache and worker pool readiness.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	checks := readinessChecks(deps)

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		results := make(map[string]string, len(checks))
		ready := true
		for _, chk := range checks {
			switch {
			case chk.probe == nil:
				results[chk.name] = "not configured"
				ready = ready && !chk.required
			default:
				if err := chk.probe(ctx); err != nil {
					results[chk.name] = "error: " + err.Error()
					ready = false
				} else {
					results[chk.name] = "ok"
				}
			}
		}

		if !ready {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not ready", "checks": results})
		}
		return c.JSON(fiber.Map{"status": "ready", "checks": results})
	}
}
