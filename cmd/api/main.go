package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/sakibstark11/geoplotter/internal/adapters/fetch"
	"github.com/sakibstark11/geoplotter/internal/adapters/http"
	natsadapter "github.com/sakibstark11/geoplotter/internal/adapters/nats"
	"github.com/sakibstark11/geoplotter/internal/adapters/surface"
	"github.com/sakibstark11/geoplotter/internal/adapters/valkey"
	"github.com/sakibstark11/geoplotter/internal/core/domain"
	"github.com/sakibstark11/geoplotter/internal/core/ports"
	"github.com/sakibstark11/geoplotter/internal/core/usecases"
	"github.com/sakibstark11/geoplotter/internal/pkg/config"
	"github.com/sakibstark11/geoplotter/internal/pkg/logging"
	"github.com/sakibstark11/geoplotter/internal/pkg/telemetry"
)

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.Load("geoplotter-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging; the level follows edits to config.yaml
	logging.Setup(cfg.Log.Level, cfg.Log.Format)
	if err := config.Watch("geoplotter-api", func(c *config.Config) { logging.SetLevel(c.Log.Level) }); err != nil {
		slog.Debug("config file not watched", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Cache mirror of surface sources
	var cache ports.CacheService
	vc, err := valkey.New(cfg.Valkey.Addr, "geoplotter:")
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer vc.Close()
		cache = vc
	}

	// NATS: surface events for websocket relays, run reports on JetStream
	var publisher ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
	}

	// Surfaces
	surfaceOpts := []surface.Option{}
	if publisher != nil {
		surfaceOpts = append(surfaceOpts, surface.WithPublisher(publisher))
	}
	if cache != nil {
		surfaceOpts = append(surfaceOpts, surface.WithMirror(cache, cfg.Render.MirrorTTL))
	}
	if !cfg.Render.WaitForWidget {
		surfaceOpts = append(surfaceOpts, surface.WithAutoReady())
	}

	// Use cases
	fetcher := fetch.New(cfg.Fetch.Timeout(), cfg.Fetch.UserAgent)
	ingest := usecases.NewIngestService(fetcher, cfg.Fetch.MaxConcurrency)
	pipeline := usecases.NewPipeline(ingest, usecases.NewRenderSync(), publisher, cfg.Render.FillOpacity)
	views := usecases.NewViewService(ctx, pipeline, surface.Factory(surfaceOpts...))

	deps := &http.Dependencies{
		Views:       views,
		Map:         cfg.Map,
		DefaultMode: domain.RenderMode(cfg.Render.DefaultMode),
		Cache:       cache,
	}
	if pub != nil {
		deps.NATS = pub.Conn()
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "geoplotter API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "wait_for_widget", cfg.Render.WaitForWidget)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	// Stop timers and release every surface before the connections close.
	cancel()
	views.Shutdown()

	slog.Info("server stopped")
}
