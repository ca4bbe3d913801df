package http

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

type ctxKey string

const loggerKey ctxKey = "logger"

// RequestIDLogMiddleware stores a request-scoped logger, tagged with the
// request ID set by the requestid middleware, in the user context.
func RequestIDLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid, _ := c.Locals("requestid").(string)
		if rid == "" {
			return c.Next()
		}

		reqLogger := slog.Default().With("request_id", rid)
		c.SetUserContext(context.WithValue(c.UserContext(), loggerKey, reqLogger))
		return c.Next()
	}
}

// LoggerFromCtx extracts the per-request slog.Logger from a context.
// Falls back to the default logger if none is set.
func LoggerFromCtx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// AccessLogMiddleware logs one structured line per request. 5xx responses and
// handler errors log at error level, 4xx at warn.
func AccessLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		path := c.Path()
		method := c.Method()

		err := c.Next()

		status := c.Response().StatusCode()
		attrs := []slog.Attr{
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.String("latency", time.Since(start).String()),
			slog.Int("bytes_out", len(c.Response().Body())),
		}
		if view := c.Params("id"); view != "" {
			attrs = append(attrs, slog.String("view", view))
		}

		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		} else if status >= 400 {
			level = slog.LevelWarn
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
			level = slog.LevelError
		}

		LoggerFromCtx(c.UserContext()).LogAttrs(c.UserContext(), level, fmt.Sprintf("%s %s", method, path), attrs...)
		return err
	}
}
