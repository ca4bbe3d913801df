package usecases_test

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/sakibstark11/geoplotter/internal/core/domain"
	"github.com/sakibstark11/geoplotter/internal/core/ports"
)

// --- Mock SourceFetcher ---

type mockFetcher struct {
	fetchFn func(ctx context.Context, url string) ([]byte, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, url)
	}
	return nil, nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu      sync.Mutex
	reports []domain.RunReport
}

func (m *mockPublisher) PublishSurfaceEvent(ctx context.Context, event domain.SurfaceEvent) error {
	return nil
}

func (m *mockPublisher) PublishRunReport(ctx context.Context, viewID string, report domain.RunReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, report)
	return nil
}

// --- Fake Surface ---

// fakeSurface records the calls made against it. It rejects a second layer
// for the same id the way a map widget does.
type fakeSurface struct {
	mu          sync.Mutex
	ready       bool
	released    bool
	sources     map[string]*geojson.FeatureCollection
	layers      []domain.Layer
	annotations map[string]domain.Annotation
	nextAnn     int
	addSource   int
	setData     int
	onReady     []func()
}

var _ ports.Surface = (*fakeSurface)(nil)

func newFakeSurface(ready bool) *fakeSurface {
	return &fakeSurface{
		ready:       ready,
		sources:     make(map[string]*geojson.FeatureCollection),
		annotations: make(map[string]domain.Annotation),
	}
}

func (f *fakeSurface) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeSurface) HasSource(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sources[id]
	return ok
}

func (f *fakeSurface) AddSource(id string, data *geojson.FeatureCollection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sources[id]; ok {
		return fmt.Errorf("source %s exists", id)
	}
	f.sources[id] = data
	f.addSource++
	return nil
}

func (f *fakeSurface) SetSourceData(id string, data *geojson.FeatureCollection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sources[id]; !ok {
		return fmt.Errorf("source %s missing", id)
	}
	f.sources[id] = data
	f.setData++
	return nil
}

func (f *fakeSurface) AddLayer(layer domain.Layer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.layers {
		if l.ID == layer.ID {
			return fmt.Errorf("layer %s exists", layer.ID)
		}
	}
	f.layers = append(f.layers, layer)
	return nil
}

func (f *fakeSurface) AddAnnotation(a domain.Annotation) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextAnn++
	a.ID = "a" + strconv.Itoa(f.nextAnn)
	f.annotations[a.ID] = a
	return a.ID, nil
}

func (f *fakeSurface) RemoveAnnotation(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.annotations[id]; !ok {
		return fmt.Errorf("annotation %s missing", id)
	}
	delete(f.annotations, id)
	return nil
}

func (f *fakeSurface) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = true
}

func (f *fakeSurface) Snapshot() domain.SurfaceSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := domain.SurfaceSnapshot{
		Ready:    f.ready,
		Released: f.released,
		Sources:  make(map[string]*geojson.FeatureCollection, len(f.sources)),
		Layers:   append([]domain.Layer(nil), f.layers...),
	}
	for id, fc := range f.sources {
		snap.Sources[id] = fc
	}
	for _, a := range f.annotations {
		snap.Annotations = append(snap.Annotations, a)
	}
	return snap
}

func (f *fakeSurface) OnReady(fn func()) {
	f.mu.Lock()
	if f.ready {
		f.mu.Unlock()
		fn()
		return
	}
	f.onReady = append(f.onReady, fn)
	f.mu.Unlock()
}

func (f *fakeSurface) OnViewportChange(fn func(domain.Viewport)) {}

func (f *fakeSurface) MarkReady() {
	f.mu.Lock()
	f.ready = true
	fns := f.onReady
	f.onReady = nil
	f.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (f *fakeSurface) SetViewport(vp domain.Viewport) {}

func (f *fakeSurface) counts() (addSource, setData int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addSource, f.setData
}
