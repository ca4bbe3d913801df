package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sakibstark11/geoplotter/internal/adapters/valkey"
)

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		views := 0
		if deps.Views != nil {
			views = len(deps.Views.List())
		}
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).String(),
			"version": "dev",
			"views":   views,
		})
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

// ReadyHandler checks NATS and cache connectivity. Both are optional: a
// missing dependency is reported but does not fail readiness, a broken one
// does.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		checks := make(map[string]string)
		allOK := true

		if deps.Views == nil {
			checks["views"] = "not configured"
			allOK = false
		} else {
			checks["views"] = "ok"
		}

		// NATS
		if deps.NATS != nil {
			if deps.NATS.IsConnected() {
				checks["nats"] = "ok"
			} else {
				checks["nats"] = "disconnected"
				allOK = false
			}
		} else {
			checks["nats"] = "not configured"
		}

		// Valkey cache
		if deps.Cache != nil {
			var err error
			if p, ok := deps.Cache.(pinger); ok {
				err = p.Ping(ctx)
			} else {
				_, err = deps.Cache.Get(ctx, "__health_check__")
			}
			if err != nil && !errors.Is(err, valkey.ErrMiss) {
				checks["cache"] = "error: " + err.Error()
				allOK = false
			} else {
				checks["cache"] = "ok"
			}
		} else {
			checks["cache"] = "not configured"
		}

		status := "ready"
		code := 200
		if !allOK {
			status = "not ready"
			code = 503
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
