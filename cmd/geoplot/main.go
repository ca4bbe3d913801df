// Command geoplot decodes geohash lists without a browser. Each run prints one
// GeoJSON FeatureCollection per source to stdout, one JSON document per line.
//
//	geoplot -geohashes tdr1vj,tdr1vk -color 00ff00
//	geoplot -urls https://example.com/a.txt,https://example.com/b.txt -colors ff0000,0000ff -timer 30
//	geoplot -watch <view-id>    # follow run reports published by geoplotter-api
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/paulmach/orb/geojson"

	"github.com/sakibstark11/geoplotter/internal/adapters/fetch"
	natsadapter "github.com/sakibstark11/geoplotter/internal/adapters/nats"
	"github.com/sakibstark11/geoplotter/internal/adapters/surface"
	"github.com/sakibstark11/geoplotter/internal/core/domain"
	"github.com/sakibstark11/geoplotter/internal/core/ports"
	"github.com/sakibstark11/geoplotter/internal/core/usecases"
	"github.com/sakibstark11/geoplotter/internal/pkg/config"
	"github.com/sakibstark11/geoplotter/internal/pkg/logging"
)

// runOutput is one line of output.
type runOutput struct {
	View       string                     `json:"view"`
	Generation uint64                     `json:"generation"`
	Source     string                     `json:"source"`
	Color      string                     `json:"color"`
	Data       *geojson.FeatureCollection `json:"data"`
}

func main() {
	_ = godotenv.Load(".env")

	var (
		geohashes = flag.String("geohashes", "", "comma-separated geohashes")
		color     = flag.String("color", "", "hex color of the literal geohashes")
		url       = flag.String("url", "", "comma-separated URLs of newline-delimited geohash lists")
		urls      = flag.String("urls", "", "alias of -url")
		colors    = flag.String("colors", "", "comma-separated hex colors matched to the URLs by position")
		timer     = flag.String("timer", "", "refresh interval in seconds, 0 runs once")
		label     = flag.String("label", "", "caption logged with every run")
		mode      = flag.String("mode", "", "boxes or markers")
		watch     = flag.String("watch", "", "follow run reports of a view (\"*\" for all) instead of decoding")
		publish   = flag.Bool("publish", false, "publish surface events and run reports to NATS")
	)
	flag.Parse()

	cfg, err := config.Load("geoplot")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Logs go to stderr; stdout carries GeoJSON.
	slog.SetDefault(logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *watch != "" {
		if err := watchReports(ctx, cfg.NATS.URL, *watch); err != nil {
			log.Fatalf("watch: %v", err)
		}
		return
	}

	flags := map[string]string{
		"geohashes": *geohashes,
		"color":     *color,
		"url":       *url,
		"urls":      *urls,
		"colors":    *colors,
		"timer":     *timer,
		"label":     *label,
		"mode":      *mode,
	}
	params, err := usecases.ParseViewParams(func(key string) string { return flags[key] }, domain.RenderMode(cfg.Render.DefaultMode))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	var publisher ports.EventPublisher
	surfaceOpts := []surface.Option{surface.WithAutoReady()}
	if *publish {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			log.Fatalf("nats: %v", err)
		}
		defer pub.Close()
		publisher = pub
		surfaceOpts = append(surfaceOpts, surface.WithPublisher(pub))
	}

	fetcher := fetch.New(cfg.Fetch.Timeout(), cfg.Fetch.UserAgent)
	ingest := usecases.NewIngestService(fetcher, cfg.Fetch.MaxConcurrency)
	pipeline := usecases.NewPipeline(ingest, usecases.NewRenderSync(), publisher, cfg.Render.FillOpacity)

	var (
		views *usecases.ViewService
		outMu sync.Mutex
		enc   = json.NewEncoder(os.Stdout)
	)
	observer := func(viewID string, report domain.RunReport, err error) {
		if err != nil {
			slog.Error("run failed", "view", viewID, "error", err)
			return
		}
		if report.Skipped != "" {
			slog.Info("run skipped", "view", viewID, "generation", report.Generation, "reason", report.Skipped)
			return
		}
		slog.Info("run finished",
			"label", params.Label,
			"generation", report.Generation,
			"decoded", report.Decoded,
			"decode_errors", report.DecodeErrors,
			"failed_sources", report.FailedSources,
			"duration", report.Duration,
		)

		snap, err := views.Snapshot(viewID)
		if err != nil {
			return
		}
		outMu.Lock()
		defer outMu.Unlock()
		for _, src := range params.Sources {
			fc, ok := snap.Sources[src.ID]
			if !ok {
				continue
			}
			if err := enc.Encode(runOutput{View: viewID, Generation: report.Generation, Source: src.ID, Color: src.ColorTag, Data: fc}); err != nil {
				slog.Error("write output", "error", err)
			}
		}
	}

	views = usecases.NewViewService(ctx, pipeline, surface.Factory(surfaceOpts...), usecases.WithRunObserver(observer))
	defer views.Shutdown()

	view, err := views.Mount(ctx, params, true)
	if err != nil {
		if errors.Is(err, domain.ErrNoSources) {
			fmt.Fprintln(os.Stderr, "nothing to plot: pass -geohashes or -url")
			os.Exit(2)
		}
		log.Fatalf("mount: %v", err)
	}

	if params.Interval == 0 {
		return
	}

	slog.Info("polling", "view", view.ID, "interval", params.Interval)
	<-ctx.Done()
	slog.Info("shutting down")
}

// watchReports prints run reports published by other processes until ctx is
// cancelled.
func watchReports(ctx context.Context, natsURL, viewID string) error {
	sub, err := natsadapter.NewSubscriber(natsURL)
	if err != nil {
		return err
	}
	defer sub.Close()

	if viewID == "*" {
		viewID = ""
	}

	var mu sync.Mutex
	enc := json.NewEncoder(os.Stdout)
	err = sub.SubscribeRunReports(ctx, viewID, func(ctx context.Context, id string, report *domain.RunReport) error {
		mu.Lock()
		defer mu.Unlock()
		return enc.Encode(struct {
			View string `json:"view"`
			*domain.RunReport
		}{id, report})
	})
	if err != nil {
		return err
	}

	slog.Info("watching run reports", "view", viewID)
	<-ctx.Done()
	return nil
}
