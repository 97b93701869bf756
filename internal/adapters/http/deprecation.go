package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// DeprecatedRoute marks an endpoint as deprecated with sunset date.
type DeprecatedRoute struct {
	Path        string    // route pattern, ":name" segments match anything
	SunsetDate  time.Time // date when the endpoint will be removed
	Alternative string    // successor pattern, same ":name" segments as Path
}

// DeprecationMiddleware adds Deprecation, Sunset, Link and Warning headers to
// deprecated endpoints.
func DeprecationMiddleware(deprecated []DeprecatedRoute) fiber.Handler {
	return func(c *fiber.Ctx) error {
		for _, d := range deprecated {
			params, ok := matchPattern(c.Path(), d.Path)
			if !ok {
				continue
			}
			// RFC 8594
			c.Set("Deprecation", "true")
			c.Set("Sunset", d.SunsetDate.UTC().Format(time.RFC1123))

			if d.Alternative != "" {
				c.Set("Link", fmt.Sprintf(`<%s>; rel="successor-version"`, expandPattern(d.Alternative, params)))
			}

			days := time.Until(d.SunsetDate).Hours() / 24
			c.Set("Warning", fmt.Sprintf(`299 - "Deprecated API, will sunset in %.0f days"`, days))
			break
		}
		return c.Next()
	}
}

// matchPattern matches path against a route pattern such as
// "/v1/sessions/:id/flyto" and returns the captured segments.
func matchPattern(path, pattern string) (map[string]string, bool) {
	ps := strings.Split(strings.Trim(path, "/"), "/")
	qs := strings.Split(strings.Trim(pattern, "/"), "/")
	if len(ps) != len(qs) {
		return nil, false
	}
	params := make(map[string]string)
	for i, q := range qs {
		switch {
		case strings.HasPrefix(q, ":"):
			if ps[i] == "" {
				return nil, false
			}
			params[q[1:]] = ps[i]
		case q != ps[i]:
			return nil, false
		}
	}
	return params, true
}

func expandPattern(pattern string, params map[string]string) string {
	segs := strings.Split(pattern, "/")
	for i, s := range segs {
		if strings.HasPrefix(s, ":") {
			if v, ok := params[s[1:]]; ok {
				segs[i] = v
			}
		}
	}
	return strings.Join(segs, "/")
}
