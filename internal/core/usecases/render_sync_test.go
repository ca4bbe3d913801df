package usecases_test

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/sakibstark11/geoplotter/internal/core/domain"
	"github.com/sakibstark11/geoplotter/internal/core/usecases"
)

func collection(id string, points ...orb.Point) domain.GeometryCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range points {
		fc.Append(geojson.NewFeature(p))
	}
	return domain.GeometryCollection{
		SourceID: id,
		Mode:     domain.ModeBoxes,
		Style:    domain.PaintStyle{FillColor: "#FF0000", FillOpacity: 0.4},
		Features: fc,
	}
}

func TestRenderSync_UpsertCreatesThenUpdates(t *testing.T) {
	surface := newFakeSurface(true)
	h := usecases.NewSurfaceHandle(surface)
	rs := usecases.NewRenderSync()

	a := collection("geo-1", orb.Point{1, 1})
	b := collection("geo-1", orb.Point{2, 2}, orb.Point{3, 3})

	if err := rs.Upsert(h, h.Begin(), a); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := rs.Upsert(h, h.Begin(), b); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	snap := surface.Snapshot()
	if len(snap.Sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(snap.Sources))
	}
	if snap.Sources["geo-1"] != b.Features {
		t.Error("expected source data to equal the second collection")
	}
	if len(snap.Layers) != 1 || snap.Layers[0].ID != "geo-1-layer" || snap.Layers[0].Type != "fill" {
		t.Errorf("expected a single fill layer, got %+v", snap.Layers)
	}
	adds, sets := surface.counts()
	if adds != 1 || sets != 1 {
		t.Errorf("expected 1 add and 1 set, got %d and %d", adds, sets)
	}
}

func TestRenderSync_Released(t *testing.T) {
	surface := newFakeSurface(true)
	h := usecases.NewSurfaceHandle(surface)
	gen := h.Begin()
	h.Release()

	err := usecases.NewRenderSync().Upsert(h, gen, collection("geo-1"))
	if !errors.Is(err, domain.ErrSurfaceReleased) {
		t.Fatalf("expected ErrSurfaceReleased, got %v", err)
	}
	if len(surface.Snapshot().Sources) != 0 {
		t.Error("expected no mutation after release")
	}
	if !surface.Snapshot().Released {
		t.Error("expected the surface to be released")
	}
	if h.Alive() {
		t.Error("expected handle to be dead")
	}
}

func TestRenderSync_NotReady(t *testing.T) {
	surface := newFakeSurface(false)
	h := usecases.NewSurfaceHandle(surface)

	err := usecases.NewRenderSync().Upsert(h, h.Begin(), collection("geo-1"))
	if !errors.Is(err, domain.ErrSurfaceNotReady) {
		t.Fatalf("expected ErrSurfaceNotReady, got %v", err)
	}
	if h.Committed() != 0 {
		t.Errorf("expected nothing committed, got %d", h.Committed())
	}
}

func TestRenderSync_StaleRunLoses(t *testing.T) {
	surface := newFakeSurface(true)
	h := usecases.NewSurfaceHandle(surface)
	rs := usecases.NewRenderSync()

	older := h.Begin()
	newer := h.Begin()

	b := collection("geo-1", orb.Point{2, 2})
	if err := rs.Upsert(h, newer, b); err != nil {
		t.Fatalf("newer upsert: %v", err)
	}
	err := rs.Upsert(h, older, collection("geo-1", orb.Point{1, 1}))
	if !errors.Is(err, domain.ErrStaleRun) {
		t.Fatalf("expected ErrStaleRun, got %v", err)
	}
	if surface.Snapshot().Sources["geo-1"] != b.Features {
		t.Error("expected newer run's data to survive")
	}
}

func TestRenderSync_ReplaceAnnotations(t *testing.T) {
	surface := newFakeSurface(true)
	h := usecases.NewSurfaceHandle(surface)
	rs := usecases.NewRenderSync()

	first := []domain.Annotation{{Text: "tdr1"}, {Text: "tdr2"}, {Text: "tdr3"}}
	if err := rs.ReplaceAnnotations(h, h.Begin(), first); err != nil {
		t.Fatal(err)
	}
	second := []domain.Annotation{{Text: "wh0r"}}
	if err := rs.ReplaceAnnotations(h, h.Begin(), second); err != nil {
		t.Fatal(err)
	}

	anns := surface.Snapshot().Annotations
	if len(anns) != 1 || anns[0].Text != "wh0r" {
		t.Errorf("expected only the latest annotation set, got %+v", anns)
	}
}

func TestRenderSync_ApplyMarkersLayer(t *testing.T) {
	surface := newFakeSurface(true)
	h := usecases.NewSurfaceHandle(surface)

	c := collection("geo-1", orb.Point{1, 1})
	c.Mode = domain.ModeMarkers
	if err := usecases.NewRenderSync().Apply(h, h.Begin(), []domain.GeometryCollection{c}, nil); err != nil {
		t.Fatal(err)
	}
	layers := surface.Snapshot().Layers
	if len(layers) != 1 || layers[0].Type != "circle" {
		t.Errorf("expected a circle layer, got %+v", layers)
	}
}
