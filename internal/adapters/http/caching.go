package http

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control on GET responses that do not set their
// own. View state changes with every run and is never cached; decoded cells
// never change.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet {
			return err
		}
		if existing := c.GetRespHeader(fiber.HeaderCacheControl); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "no-cache"
		case path == "/metrics":
			ttl = "no-cache"
		case strings.HasPrefix(path, "/v1/decode/") || strings.HasPrefix(path, "/v1/encode"):
			ttl = "public, max-age=86400, immutable"
		case path == "/v1/map/config":
			ttl = "public, max-age=300"
		case strings.HasPrefix(path, "/v1/views"):
			ttl = "no-store"
		case strings.HasPrefix(path, "/v1/"):
			ttl = "no-cache"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}
		return err
	}
}

// ETagMiddleware computes a weak ETag from successful GET bodies and answers
// 304 when the client already holds it. Polling widgets use it to skip
// unchanged source data.
func ETagMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return err
		}

		if c.Method() != fiber.MethodGet || c.Response().StatusCode() != fiber.StatusOK {
			return nil
		}
		body := c.Response().Body()
		if len(body) == 0 {
			return nil
		}

		h := sha256.Sum256(body)
		etag := `W/"` + hex.EncodeToString(h[:8]) + `"`
		c.Set(fiber.HeaderETag, etag)

		if c.Get(fiber.HeaderIfNoneMatch) == etag {
			c.Status(fiber.StatusNotModified)
			c.Response().ResetBody()
		}
		return nil
	}
}
