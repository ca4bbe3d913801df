// Package surface provides the server-side rendering surface of a view: an
// in-memory source/layer/annotation store that mirrors the calls a browser
// map widget receives. Mutations are fanned out to an EventPublisher so
// connected widgets can replay them, and source data can be mirrored into a
// cache for other replicas.
package surface

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/sakibstark11/geoplotter/internal/core/domain"
	"github.com/sakibstark11/geoplotter/internal/core/ports"
)

const publishTimeout = 2 * time.Second

// Surface implements ports.Surface.
type Surface struct {
	viewID    string
	publisher ports.EventPublisher
	mirror    ports.CacheService
	mirrorTTL int

	mu          sync.RWMutex
	ready       bool
	released    bool
	sources     map[string]*geojson.FeatureCollection
	layers      []domain.Layer
	annotations map[string]domain.Annotation
	order       []string
	nextAnn     int
	viewport    *domain.Viewport
	onReady     []func()
	onViewport  []func(domain.Viewport)
}

// Option configures a Surface.
type Option func(*Surface)

// WithPublisher publishes every mutation as a domain.SurfaceEvent.
func WithPublisher(p ports.EventPublisher) Option {
	return func(s *Surface) { s.publisher = p }
}

// WithMirror stores each source's data under MirrorKey for ttlSeconds.
func WithMirror(c ports.CacheService, ttlSeconds int) Option {
	return func(s *Surface) {
		s.mirror = c
		s.mirrorTTL = ttlSeconds
	}
}

// WithAutoReady makes the surface ready from the start, for headless views
// with no widget attached.
func WithAutoReady() Option {
	return func(s *Surface) { s.ready = true }
}

// New creates a surface for a view.
func New(viewID string, opts ...Option) *Surface {
	s := &Surface{
		viewID:      viewID,
		sources:     make(map[string]*geojson.FeatureCollection),
		annotations: make(map[string]domain.Annotation),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Factory returns a ports.SurfaceFactory building surfaces with opts.
func Factory(opts ...Option) ports.SurfaceFactory {
	return func(viewID string) ports.Surface {
		return New(viewID, opts...)
	}
}

// MirrorKey is the cache key of a view's source data.
func MirrorKey(viewID, sourceID string) string {
	return "surface:" + viewID + ":" + sourceID
}

func (s *Surface) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready && !s.released
}

func (s *Surface) HasSource(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sources[id]
	return ok
}

func (s *Surface) AddSource(id string, data *geojson.FeatureCollection) error {
	s.mu.Lock()
	if err := s.writableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if _, ok := s.sources[id]; ok {
		s.mu.Unlock()
		return fmt.Errorf("source %q already exists", id)
	}
	s.sources[id] = data
	s.mu.Unlock()

	s.emit(domain.SurfaceEvent{Type: domain.EventSourceAdded, SourceID: id, Data: data})
	s.mirrorSource(id, data)
	return nil
}

func (s *Surface) SetSourceData(id string, data *geojson.FeatureCollection) error {
	s.mu.Lock()
	if err := s.writableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if _, ok := s.sources[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("source %q does not exist", id)
	}
	s.sources[id] = data
	s.mu.Unlock()

	s.emit(domain.SurfaceEvent{Type: domain.EventSourceData, SourceID: id, Data: data})
	s.mirrorSource(id, data)
	return nil
}

func (s *Surface) AddLayer(layer domain.Layer) error {
	s.mu.Lock()
	if err := s.writableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if _, ok := s.sources[layer.SourceID]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("layer %q references unknown source %q", layer.ID, layer.SourceID)
	}
	for _, l := range s.layers {
		if l.ID == layer.ID {
			s.mu.Unlock()
			return fmt.Errorf("layer %q already exists", layer.ID)
		}
	}
	s.layers = append(s.layers, layer)
	s.mu.Unlock()

	s.emit(domain.SurfaceEvent{Type: domain.EventLayerAdded, SourceID: layer.SourceID, Layer: &layer})
	return nil
}

func (s *Surface) AddAnnotation(a domain.Annotation) (string, error) {
	s.mu.Lock()
	if err := s.writableLocked(); err != nil {
		s.mu.Unlock()
		return "", err
	}
	s.nextAnn++
	a.ID = "ann-" + strconv.Itoa(s.nextAnn)
	s.annotations[a.ID] = a
	s.order = append(s.order, a.ID)
	s.mu.Unlock()

	s.emit(domain.SurfaceEvent{Type: domain.EventAnnotationAdded, Annotation: &a})
	return a.ID, nil
}

func (s *Surface) RemoveAnnotation(id string) error {
	s.mu.Lock()
	if err := s.writableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	a, ok := s.annotations[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("annotation %q does not exist", id)
	}
	delete(s.annotations, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.emit(domain.SurfaceEvent{Type: domain.EventAnnotationRemoved, Annotation: &a})
	return nil
}

// Release drops the surface contents. Later mutations fail with
// domain.ErrSurfaceReleased.
func (s *Surface) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	ids := make([]string, 0, len(s.sources))
	for id := range s.sources {
		ids = append(ids, id)
	}
	s.sources = make(map[string]*geojson.FeatureCollection)
	s.layers = nil
	s.annotations = make(map[string]domain.Annotation)
	s.order = nil
	s.onReady = nil
	s.onViewport = nil
	s.mu.Unlock()

	s.emit(domain.SurfaceEvent{Type: domain.EventSurfaceReleased})
	if s.mirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		for _, id := range ids {
			if err := s.mirror.Delete(ctx, MirrorKey(s.viewID, id)); err != nil {
				slog.Warn("surface mirror delete failed", "view", s.viewID, "source", id, "error", err)
			}
		}
	}
}

// Snapshot returns a copy of the surface. Feature collections are shared and
// must be treated as read-only.
func (s *Surface) Snapshot() domain.SurfaceSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := domain.SurfaceSnapshot{
		Ready:       s.ready,
		Released:    s.released,
		Sources:     make(map[string]*geojson.FeatureCollection, len(s.sources)),
		Layers:      append([]domain.Layer(nil), s.layers...),
		Annotations: make([]domain.Annotation, 0, len(s.order)),
	}
	for id, fc := range s.sources {
		snap.Sources[id] = fc
	}
	for _, id := range s.order {
		snap.Annotations = append(snap.Annotations, s.annotations[id])
	}
	if s.viewport != nil {
		vp := *s.viewport
		snap.Viewport = &vp
	}
	return snap
}

// OnReady registers fn to run once the widget is ready. If it already is, fn
// runs immediately.
func (s *Surface) OnReady(fn func()) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	if s.ready {
		s.mu.Unlock()
		fn()
		return
	}
	s.onReady = append(s.onReady, fn)
	s.mu.Unlock()
}

// OnViewportChange registers fn for viewport updates.
func (s *Surface) OnViewportChange(fn func(domain.Viewport)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.released {
		s.onViewport = append(s.onViewport, fn)
	}
}

// MarkReady flips the surface to ready and runs the pending OnReady callbacks.
func (s *Surface) MarkReady() {
	s.mu.Lock()
	if s.ready || s.released {
		s.mu.Unlock()
		return
	}
	s.ready = true
	fns := s.onReady
	s.onReady = nil
	s.mu.Unlock()

	s.emit(domain.SurfaceEvent{Type: domain.EventSurfaceReady})
	for _, fn := range fns {
		fn()
	}
}

// SetViewport records the widget's viewport and notifies listeners.
func (s *Surface) SetViewport(vp domain.Viewport) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.viewport = &vp
	fns := slices.Clone(s.onViewport)
	s.mu.Unlock()

	for _, fn := range fns {
		fn(vp)
	}
}

func (s *Surface) writableLocked() error {
	if s.released {
		return domain.ErrSurfaceReleased
	}
	if !s.ready {
		return domain.ErrSurfaceNotReady
	}
	return nil
}

func (s *Surface) emit(ev domain.SurfaceEvent) {
	if s.publisher == nil {
		return
	}
	ev.ViewID = s.viewID
	ev.At = time.Now().UTC()

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.publisher.PublishSurfaceEvent(ctx, ev); err != nil {
		slog.Warn("surface event publish failed", "view", s.viewID, "type", ev.Type, "error", err)
	}
}

func (s *Surface) mirrorSource(id string, data *geojson.FeatureCollection) {
	if s.mirror == nil {
		return
	}
	b, err := json.Marshal(data)
	if err != nil {
		slog.Warn("surface mirror encode failed", "view", s.viewID, "source", id, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.mirror.Set(ctx, MirrorKey(s.viewID, id), b, s.mirrorTTL); err != nil {
		slog.Warn("surface mirror write failed", "view", s.viewID, "source", id, "error", err)
	}
}
