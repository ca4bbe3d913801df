package domain

import (
	"time"

	"github.com/paulmach/orb/geojson"
)

// DefaultColor is used for any source that does not name its own color.
const DefaultColor = "FF0000"

// DefaultFillOpacity is the fill opacity of every geometry layer.
const DefaultFillOpacity = 0.4

// SourceKind tells the ingestor where a source's codes come from.
type SourceKind string

const (
	SourceLiteral SourceKind = "literal"
	SourceRemote  SourceKind = "remote"
)

// SourceSpec describes one input of a pipeline run.
type SourceSpec struct {
	ID       string     `json:"id"`
	Kind     SourceKind `json:"kind"`
	Codes    []string   `json:"codes,omitempty"` // literal payload
	URL      string     `json:"url,omitempty"`   // remote payload
	ColorTag string     `json:"color"`
}

// SourceCodes is the raw ingestion result for a single source.
// Err is set when a remote source failed; Codes is then empty.
type SourceCodes struct {
	Source SourceSpec
	Codes  []string
	Err    error
}

// DecodedCode is one decoded occurrence of a geohash in a source.
type DecodedCode struct {
	SourceID string   `json:"source_id"`
	Code     string   `json:"code"`
	ColorTag string   `json:"color"`
	Point    GeoPoint `json:"point"`
	Bounds   Bounds   `json:"bounds"`
}

// AggregatedMarker is a deduplicated (code, color) entry with its count.
// SourceID is the source the pair was first seen in.
type AggregatedMarker struct {
	SourceID string   `json:"source_id"`
	Code     string   `json:"code"`
	ColorTag string   `json:"color"`
	Point    GeoPoint `json:"point"`
	Count    int      `json:"count"`
}

// Aggregation is the output of folding every decoded occurrence of a run.
type Aggregation struct {
	Markers      []AggregatedMarker
	Decoded      []DecodedCode
	DecodeErrors int
}

// RenderMode selects how a view draws its codes.
type RenderMode string

const (
	ModeBoxes   RenderMode = "boxes"
	ModeMarkers RenderMode = "markers"
)

// PaintStyle is the display style attached to a source's layer.
type PaintStyle struct {
	FillColor   string  `json:"fill_color"`
	FillOpacity float64 `json:"fill_opacity"`
}

// GeometryCollection is the complete geometry of one source for one run.
type GeometryCollection struct {
	SourceID string                     `json:"source_id"`
	Mode     RenderMode                 `json:"mode"`
	Style    PaintStyle                 `json:"style"`
	Features *geojson.FeatureCollection `json:"features"`
}

// Layer is a display layer bound to a surface source.
type Layer struct {
	ID       string     `json:"id"`
	SourceID string     `json:"source_id"`
	Type     string     `json:"type"` // "fill" | "circle"
	Paint    PaintStyle `json:"paint"`
}

// Annotation is a text label pinned to a point (popup / marker label).
type Annotation struct {
	ID    string   `json:"id,omitempty"`
	Point GeoPoint `json:"point"`
	Text  string   `json:"text"`
	Color string   `json:"color"`
}

// ViewParams is the parsed query-style configuration of a view.
type ViewParams struct {
	Sources  []SourceSpec  `json:"sources"`
	Interval time.Duration `json:"interval"`
	Label    string        `json:"label,omitempty"`
	Mode     RenderMode    `json:"mode"`
}

// RunReport summarises one pipeline run.
type RunReport struct {
	Generation    uint64        `json:"generation"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	Sources       int           `json:"sources"`
	FailedSources int           `json:"failed_sources"`
	SourceCounts  []int         `json:"source_counts"`
	Decoded       int           `json:"decoded"`
	DecodeErrors  int           `json:"decode_errors"`
	Markers       int           `json:"markers"`
	Displayed     int           `json:"displayed"`
	Skipped       string        `json:"skipped,omitempty"`
}

// SurfaceSnapshot is a read-only copy of a rendering surface.
type SurfaceSnapshot struct {
	Ready       bool                                  `json:"ready"`
	Released    bool                                  `json:"released"`
	Sources     map[string]*geojson.FeatureCollection `json:"sources"`
	Layers      []Layer                               `json:"layers"`
	Annotations []Annotation                          `json:"annotations"`
	Viewport    *Viewport                             `json:"viewport,omitempty"`
}

// SchedulerState is the lifecycle state of a view's refresh scheduler.
type SchedulerState string

const (
	StateIdle      SchedulerState = "idle"
	StateScheduled SchedulerState = "scheduled"
	StateRunning   SchedulerState = "running"
	StateCancelled SchedulerState = "cancelled"
)

// View is the API representation of a mounted view.
type View struct {
	ID        string         `json:"id"`
	Params    ViewParams     `json:"params"`
	State     SchedulerState `json:"state"`
	Runs      int            `json:"runs"`
	LastRun   *RunReport     `json:"last_run,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// SurfaceEventType names a mutation applied to a rendering surface.
type SurfaceEventType string

const (
	EventSourceAdded       SurfaceEventType = "source.added"
	EventSourceData        SurfaceEventType = "source.data"
	EventLayerAdded        SurfaceEventType = "layer.added"
	EventAnnotationAdded   SurfaceEventType = "annotation.added"
	EventAnnotationRemoved SurfaceEventType = "annotation.removed"
	EventSurfaceReady      SurfaceEventType = "surface.ready"
	EventSurfaceReleased   SurfaceEventType = "surface.released"
)

// SurfaceEvent is published for every surface mutation so remote widgets can
// replay it.
type SurfaceEvent struct {
	Type       SurfaceEventType           `json:"type"`
	ViewID     string                     `json:"view_id"`
	SourceID   string                     `json:"source_id,omitempty"`
	Data       *geojson.FeatureCollection `json:"data,omitempty"`
	Layer      *Layer                     `json:"layer,omitempty"`
	Annotation *Annotation                `json:"annotation,omitempty"`
	At         time.Time                  `json:"at"`
}
