package usecases

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sakibstark11/geoplotter/internal/core/domain"
	"github.com/sakibstark11/geoplotter/internal/core/ports"
	"github.com/sakibstark11/geoplotter/internal/pkg/metrics"
	"github.com/sakibstark11/geoplotter/internal/pkg/telemetry"
)

// Pipeline runs ingest, aggregate, build and render-sync for a view.
type Pipeline struct {
	ingest    *IngestService
	sync      *RenderSync
	publisher ports.EventPublisher
	opacity   float64
}

// NewPipeline creates a new Pipeline. publisher may be nil.
func NewPipeline(ingest *IngestService, sync *RenderSync, publisher ports.EventPublisher, opacity float64) *Pipeline {
	return &Pipeline{ingest: ingest, sync: sync, publisher: publisher, opacity: opacity}
}

// Run executes one pipeline pass against h. Runs that lose to a newer run, or
// find the surface released or not yet ready, are reported through
// RunReport.Skipped and return a nil error.
func (p *Pipeline) Run(ctx context.Context, viewID string, h *SurfaceHandle, params domain.ViewParams) (domain.RunReport, error) {
	gen := h.Begin()
	report := domain.RunReport{
		Generation: gen,
		StartedAt:  time.Now(),
		Sources:    len(params.Sources),
	}

	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanPipelineRun, trace.WithAttributes(
		telemetry.AttrViewID.String(viewID),
		telemetry.AttrGeneration.Int64(int64(gen)),
		telemetry.AttrSources.Int(len(params.Sources)),
	))
	defer span.End()

	ingestCtx, ingestSpan := telemetry.Tracer().Start(ctx, telemetry.SpanIngest)
	ingested := p.ingest.Ingest(ingestCtx, params.Sources)
	ingestSpan.End()

	report.SourceCounts = make([]int, len(ingested))
	for i, sc := range ingested {
		report.SourceCounts[i] = len(sc.Codes)
		if sc.Err != nil {
			report.FailedSources++
		}
	}

	agg := Aggregate(ingested)
	report.Decoded = len(agg.Decoded)
	report.DecodeErrors = agg.DecodeErrors
	report.Markers = len(agg.Markers)
	metrics.CodesDecoded.Add(float64(report.Decoded))
	metrics.DecodeErrors.Add(float64(report.DecodeErrors))

	collections := BuildCollections(params.Sources, agg, params.Mode, p.opacity)
	annotations := BuildAnnotations(agg, params.Mode)

	if !h.Alive() {
		return p.finish(ctx, span, viewID, report, domain.ErrSurfaceReleased)
	}

	_, syncSpan := telemetry.Tracer().Start(ctx, telemetry.SpanRenderSync)
	err := p.sync.Apply(h, gen, collections, annotations)
	syncSpan.End()

	if err == nil {
		report.Displayed = report.Decoded
	}
	return p.finish(ctx, span, viewID, report, err)
}

func (p *Pipeline) finish(ctx context.Context, span trace.Span, viewID string, report domain.RunReport, err error) (domain.RunReport, error) {
	report.Duration = time.Since(report.StartedAt)
	metrics.PipelineDuration.Observe(report.Duration.Seconds())

	switch {
	case errors.Is(err, domain.ErrSurfaceReleased):
		report.Skipped = "released"
	case errors.Is(err, domain.ErrSurfaceNotReady):
		report.Skipped = "not_ready"
	case errors.Is(err, domain.ErrStaleRun):
		report.Skipped = "stale"
	case err != nil:
		metrics.PipelineRuns.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("pipeline run failed", "view", viewID, "generation", report.Generation, "error", err)
		return report, err
	}

	outcome := "ok"
	if report.Skipped != "" {
		outcome = "skipped_" + report.Skipped
		span.SetAttributes(telemetry.AttrSkipped.String(report.Skipped))
	}
	metrics.PipelineRuns.WithLabelValues(outcome).Inc()
	span.SetAttributes(
		telemetry.AttrDecoded.Int(report.Decoded),
		telemetry.AttrDecodeErrors.Int(report.DecodeErrors),
	)

	slog.Debug("pipeline run finished",
		"view", viewID,
		"generation", report.Generation,
		"decoded", report.Decoded,
		"decode_errors", report.DecodeErrors,
		"failed_sources", report.FailedSources,
		"skipped", report.Skipped,
		"duration", report.Duration,
	)

	if p.publisher != nil && report.Skipped != "released" {
		if err := p.publisher.PublishRunReport(ctx, viewID, report); err != nil {
			slog.Warn("publish run report failed", "view", viewID, "error", err)
		}
	}
	return report, nil
}
