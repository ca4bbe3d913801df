package http

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
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

// paginate slices items by the offset and limit query parameters.
func paginate[T any](c *fiber.Ctx, items []T, defaultLimit, maxLimit int) ([]T, Pagination) {
	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", defaultLimit)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}

	total := len(items)
	page := []T{}
	if offset < total {
		end := offset + limit
		if end > total {
			end = total
		}
		page = items[offset:end]
	}
	return page, Pagination{Offset: offset, Limit: limit, Total: total}
}

// SetLinkHeaders adds RFC 8288 Link headers for paginated responses.
func SetLinkHeaders(c *fiber.Ctx, p Pagination) {
	base := c.Path()
	link := func(offset int, rel string) string {
		return fmt.Sprintf(`<%s?offset=%d&limit=%d>; rel="%s"`, base, offset, p.Limit, rel)
	}

	links := []string{link(0, "first")}
	if p.Offset > 0 {
		prev := p.Offset - p.Limit
		if prev < 0 {
			prev = 0
		}
		links = append(links, link(prev, "prev"))
	}
	if p.Offset+p.Limit < p.Total {
		links = append(links, link(p.Offset+p.Limit, "next"))
	}
	last := p.Total - p.Limit
	if last < 0 {
		last = 0
	}
	links = append(links, link(last, "last"))

	c.Set(fiber.HeaderLink, strings.Join(links, ", "))
}
