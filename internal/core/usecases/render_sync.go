package usecases

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sakibstark11/geoplotter/internal/core/domain"
	"github.com/sakibstark11/geoplotter/internal/core/ports"
	"github.com/sakibstark11/geoplotter/internal/pkg/metrics"
)

// SurfaceHandle owns a view's rendering surface for one activation. It is
// created when the view activates and released when it deactivates; every
// mutation goes through it so late runs can be turned away.
type SurfaceHandle struct {
	surface ports.RenderSurface

	released atomic.Bool
	next     atomic.Uint64

	mu          sync.Mutex
	committed   uint64
	annotations []string
}

// NewSurfaceHandle wraps a live surface.
func NewSurfaceHandle(surface ports.RenderSurface) *SurfaceHandle {
	return &SurfaceHandle{surface: surface}
}

// Begin allocates the generation of a new run. Generations increase in start
// order.
func (h *SurfaceHandle) Begin() uint64 {
	return h.next.Add(1)
}

// Alive reports whether the handle has not been released.
func (h *SurfaceHandle) Alive() bool {
	return !h.released.Load()
}

// Committed returns the newest generation that has written to the surface.
func (h *SurfaceHandle) Committed() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.committed
}

// Release invalidates the handle and releases the surface. Safe to call more
// than once.
func (h *SurfaceHandle) Release() {
	if h.released.Swap(true) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.annotations = nil
	h.surface.Release()
}

// Snapshot returns a copy of the surface state.
func (h *SurfaceHandle) Snapshot() domain.SurfaceSnapshot {
	return h.surface.Snapshot()
}

// admitLocked decides whether run gen may write. It must be called with mu
// held. An older run is turned away once a newer one has written.
func (h *SurfaceHandle) admitLocked(gen uint64) error {
	if h.released.Load() {
		return domain.ErrSurfaceReleased
	}
	if !h.surface.Ready() {
		return domain.ErrSurfaceNotReady
	}
	if gen < h.committed {
		return domain.ErrStaleRun
	}
	h.committed = gen
	return nil
}

// RenderSync applies run output to a surface with create-once,
// update-thereafter semantics.
type RenderSync struct{}

// NewRenderSync creates a new RenderSync.
func NewRenderSync() *RenderSync {
	return &RenderSync{}
}

// Upsert makes the surface hold exactly c under c.SourceID. The first call for
// a source adds the source and its layer; later calls only replace the data,
// so a source never gets a second layer.
func (r *RenderSync) Upsert(h *SurfaceHandle, gen uint64, c domain.GeometryCollection) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.admitLocked(gen); err != nil {
		return err
	}
	return r.upsertLocked(h.surface, c)
}

func (r *RenderSync) upsertLocked(s ports.RenderSurface, c domain.GeometryCollection) error {
	if s.HasSource(c.SourceID) {
		if err := s.SetSourceData(c.SourceID, c.Features); err != nil {
			return fmt.Errorf("set source data %s: %w", c.SourceID, err)
		}
		metrics.SurfaceUpserts.WithLabelValues("update").Inc()
		return nil
	}

	if err := s.AddSource(c.SourceID, c.Features); err != nil {
		return fmt.Errorf("add source %s: %w", c.SourceID, err)
	}
	if err := s.AddLayer(LayerFor(c)); err != nil {
		return fmt.Errorf("add layer %s: %w", c.SourceID, err)
	}
	metrics.SurfaceUpserts.WithLabelValues("create").Inc()
	return nil
}

// ReplaceAnnotations removes the annotations placed by earlier runs and adds
// anns, so labels never pile up across refreshes.
func (r *RenderSync) ReplaceAnnotations(h *SurfaceHandle, gen uint64, anns []domain.Annotation) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.admitLocked(gen); err != nil {
		return err
	}
	return r.replaceAnnotationsLocked(h, anns)
}

func (r *RenderSync) replaceAnnotationsLocked(h *SurfaceHandle, anns []domain.Annotation) error {
	for _, id := range h.annotations {
		if err := h.surface.RemoveAnnotation(id); err != nil {
			return fmt.Errorf("remove annotation %s: %w", id, err)
		}
	}
	h.annotations = h.annotations[:0]

	for _, a := range anns {
		id, err := h.surface.AddAnnotation(a)
		if err != nil {
			return fmt.Errorf("add annotation: %w", err)
		}
		h.annotations = append(h.annotations, id)
	}
	return nil
}

// Apply writes a whole run, every collection then the annotation set, under a
// single admission so a newer run cannot interleave with it.
func (r *RenderSync) Apply(h *SurfaceHandle, gen uint64, collections []domain.GeometryCollection, anns []domain.Annotation) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.admitLocked(gen); err != nil {
		return err
	}
	for _, c := range collections {
		if err := r.upsertLocked(h.surface, c); err != nil {
			return err
		}
	}
	return r.replaceAnnotationsLocked(h, anns)
}

// LayerFor returns the layer bound to a collection's source.
func LayerFor(c domain.GeometryCollection) domain.Layer {
	typ := "fill"
	if c.Mode == domain.ModeMarkers {
		typ = "circle"
	}
	return domain.Layer{
		ID:       c.SourceID + "-layer",
		SourceID: c.SourceID,
		Type:     typ,
		Paint:    c.Style,
	}
}
