package http

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type loggerKey struct{}

// RequestIDLogMiddleware puts a request-scoped logger into the user context.
// It carries the request ID and, on session routes, the session ID.
func RequestIDLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid, _ := c.Locals("requestid").(string)
		if rid == "" {
			return c.Next()
		}

		l := slog.Default().With("request_id", rid)
		if id := sessionFromPath(c.Path()); id != "" {
			l = l.With("session", id)
		}

		c.SetUserContext(context.WithValue(c.UserContext(), loggerKey{}, l))
		return c.Next()
	}
}

// LoggerFromCtx returns the request logger, or the default logger outside a
// request.
func LoggerFromCtx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// sessionFromPath extracts the id from /v1/sessions/:id[/...].
func sessionFromPath(path string) string {
	rest, ok := strings.CutPrefix(path, "/v1/sessions/")
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, "/")
	return id
}
