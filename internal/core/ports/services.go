package ports

import (
	"context"

	"github.com/paulmach/orb/geojson"

	"github.com/sakibstark11/geoplotter/internal/core/domain"
)

// SourceFetcher retrieves the raw body of a remote source. Implementations
// must bypass every cache and wrap failures in domain.ErrSourceUnavailable.
type SourceFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// RenderSurface is the mutable drawing target of a view.
type RenderSurface interface {
	Ready() bool
	HasSource(id string) bool
	AddSource(id string, data *geojson.FeatureCollection) error
	SetSourceData(id string, data *geojson.FeatureCollection) error
	AddLayer(layer domain.Layer) error
	AddAnnotation(a domain.Annotation) (string, error)
	RemoveAnnotation(id string) error
	Release()
	Snapshot() domain.SurfaceSnapshot
}

// MapWidget exposes the lifecycle callbacks of the interactive map.
type MapWidget interface {
	OnReady(fn func())
	OnViewportChange(fn func(domain.Viewport))
}

// Surface is what a SurfaceFactory hands out: the drawing target plus the
// widget callbacks and the inputs that drive them.
type Surface interface {
	RenderSurface
	MapWidget
	MarkReady()
	SetViewport(vp domain.Viewport)
}

// SurfaceFactory creates a fresh surface for a view activation.
type SurfaceFactory func(viewID string) Surface

// EventPublisher publishes surface mutations and run reports to a message
// broker.
type EventPublisher interface {
	PublishSurfaceEvent(ctx context.Context, event domain.SurfaceEvent) error
	PublishRunReport(ctx context.Context, viewID string, report domain.RunReport) error
}

// EventSubscriber subscribes to run reports from a message broker.
type EventSubscriber interface {
	SubscribeRunReports(ctx context.Context, viewID string, handler func(ctx context.Context, viewID string, report *domain.RunReport) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
