package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/sakibstark11/geoplotter/internal/pkg/metrics"
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID, request-scoped logger, access logs
	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
		Next: func(c *fiber.Ctx) bool {
			// Widgets hold one long-lived websocket each.
			return c.Path() == "/ws"
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1. Mounting with wait=true runs remote fetches inline, so
	// view writes get a longer budget than reads.
	v1 := app.Group("/v1")
	v1.Get("/map/config", MapConfigHandler(deps))
	v1.Get("/decode/:code", DecodeHandler(deps))
	v1.Get("/encode", EncodeHandler(deps))

	v1.Get("/views", ListViewsHandler(deps))
	v1.Post("/views", timeout.NewWithContext(CreateViewHandler(deps), 60*time.Second))
	v1.Get("/views/:id", GetViewHandler(deps))
	v1.Put("/views/:id", timeout.NewWithContext(UpdateViewHandler(deps), 60*time.Second))
	v1.Delete("/views/:id", DeleteViewHandler(deps))
	v1.Get("/views/:id/surface", ViewSurfaceHandler(deps))
	v1.Get("/views/:id/sources/:sourceId", timeout.NewWithContext(ViewSourceHandler(deps), 15*time.Second))
	v1.Post("/views/:id/ready", ViewReadyHandler(deps))

	// GraphQL
	app.Post("/graphql", timeout.NewWithContext(GraphQLHandler(deps), 60*time.Second))

	// API documentation (Swagger UI)
	SetupDocs(app, deps.OpenAPIPath)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps)))
}
