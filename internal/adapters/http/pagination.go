package http

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
)

// PaginatedResponse wraps list results with pagination metadata.
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// Pagination contains offset-based pagination info.
type Pagination struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
}

// parsePagination reads offset and limit from the query. Out-of-range values
// fall back to the defaults instead of failing the request.
func parsePagination(c *fiber.Ctx) Pagination {
	p := Pagination{Offset: c.QueryInt("offset", 0), Limit: c.QueryInt("limit", defaultPageLimit)}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 || p.Limit > maxPageLimit {
		p.Limit = defaultPageLimit
	}
	return p
}

// SetLinkHeaders adds RFC 8288 first/prev/next/last links. Query parameters
// other than offset and limit are carried over.
func SetLinkHeaders(c *fiber.Ctx, p Pagination) {
	args := c.Request().URI().QueryArgs()
	var extra []string
	args.VisitAll(func(k, v []byte) {
		key := string(k)
		if key != "offset" && key != "limit" {
			extra = append(extra, key+"="+string(v))
		}
	})
	link := func(offset int, rel string) string {
		q := append([]string{"offset=" + strconv.Itoa(offset), "limit=" + strconv.Itoa(p.Limit)}, extra...)
		return fmt.Sprintf(`<%s?%s>; rel="%s"`, c.Path(), strings.Join(q, "&"), rel)
	}

	links := []string{link(0, "first")}
	if p.Offset > 0 {
		links = append(links, link(max(p.Offset-p.Limit, 0), "prev"))
	}
	if p.Offset+p.Limit < p.Total {
		links = append(links, link(p.Offset+p.Limit, "next"))
	}
	links = append(links, link(max(p.Total-p.Limit, 0), "last"))

	c.Set(fiber.HeaderLink, strings.Join(links, ", "))
}
