package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"github.com/sakibstark11/geoplotter/internal/core/domain"
	"github.com/sakibstark11/geoplotter/internal/core/ports"
	"github.com/sakibstark11/geoplotter/internal/pkg/metrics"
)

// RunObserver is notified after every finished run of any view.
type RunObserver func(viewID string, report domain.RunReport, err error)

// ViewService mounts views: each owns a surface, a surface handle and a
// refresh scheduler for as long as its parameters stay the same.
type ViewService struct {
	ctx      context.Context
	pipeline *Pipeline
	surfaces ports.SurfaceFactory
	clock    clock.Clock
	observer RunObserver

	mu     sync.RWMutex
	views  map[string]*mountedView
	closed bool
}

type mountedView struct {
	id        string
	createdAt time.Time

	// life serializes activation changes; removed is guarded by it.
	life    sync.Mutex
	removed bool

	mu      sync.Mutex
	params  domain.ViewParams
	surface ports.Surface
	handle  *SurfaceHandle
	sched   *Scheduler
	lastRun *domain.RunReport
}

// ViewOption configures a ViewService.
type ViewOption func(*ViewService)

// WithClock replaces the wall clock used by view schedulers.
func WithClock(c clock.Clock) ViewOption {
	return func(s *ViewService) { s.clock = c }
}

// WithRunObserver registers a callback for finished runs.
func WithRunObserver(o RunObserver) ViewOption {
	return func(s *ViewService) { s.observer = o }
}

// NewViewService creates a new ViewService. Runs execute under ctx, so
// cancelling it stops in-flight fetches of every view.
func NewViewService(ctx context.Context, pipeline *Pipeline, surfaces ports.SurfaceFactory, opts ...ViewOption) *ViewService {
	s := &ViewService{
		ctx:      ctx,
		pipeline: pipeline,
		surfaces: surfaces,
		clock:    clock.New(),
		views:    make(map[string]*mountedView),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mount creates and activates a view. With wait set it returns after the
// immediate run has finished.
func (s *ViewService) Mount(ctx context.Context, params domain.ViewParams, wait bool) (*domain.View, error) {
	if err := ValidateViewParams(params); err != nil {
		return nil, err
	}

	v := &mountedView{id: uuid.NewString(), createdAt: time.Now().UTC()}
	v.life.Lock()
	first := s.activate(v, params)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		v.removed = true
		s.deactivate(v)
		v.life.Unlock()
		return nil, domain.ErrViewServiceClosed
	}
	s.views[v.id] = v
	metrics.ActiveViews.Set(float64(len(s.views)))
	s.mu.Unlock()
	v.life.Unlock()

	slog.Info("view mounted", "view", v.id, "sources", len(params.Sources), "interval", params.Interval, "mode", params.Mode)

	if err := s.await(ctx, first, wait); err != nil {
		// The caller never learns the id.
		_ = s.Unmount(v.id)
		return nil, err
	}
	return v.toDomain(), nil
}

// Update replaces a view's parameters: the current activation is torn down
// and a new one starts on a fresh surface.
func (s *ViewService) Update(ctx context.Context, id string, params domain.ViewParams, wait bool) (*domain.View, error) {
	if err := ValidateViewParams(params); err != nil {
		return nil, err
	}
	v, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	v.life.Lock()
	if v.removed {
		v.life.Unlock()
		return nil, domain.ErrViewNotFound
	}
	s.deactivate(v)
	first := s.activate(v, params)
	v.life.Unlock()
	slog.Info("view updated", "view", id, "sources", len(params.Sources), "interval", params.Interval)

	if err := s.await(ctx, first, wait); err != nil {
		return nil, err
	}
	return v.toDomain(), nil
}

// Unmount deactivates a view and forgets it.
func (s *ViewService) Unmount(id string) error {
	s.mu.Lock()
	v, ok := s.views[id]
	if ok {
		delete(s.views, id)
	}
	metrics.ActiveViews.Set(float64(len(s.views)))
	s.mu.Unlock()

	if !ok {
		return domain.ErrViewNotFound
	}

	v.life.Lock()
	v.removed = true
	s.deactivate(v)
	v.life.Unlock()
	slog.Info("view unmounted", "view", id)
	return nil
}

// Get returns a view.
func (s *ViewService) Get(id string) (*domain.View, error) {
	v, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return v.toDomain(), nil
}

// List returns every mounted view, oldest first.
func (s *ViewService) List() []domain.View {
	s.mu.RLock()
	views := make([]domain.View, 0, len(s.views))
	for _, v := range s.views {
		views = append(views, *v.toDomain())
	}
	s.mu.RUnlock()

	sort.Slice(views, func(i, j int) bool {
		if views[i].CreatedAt.Equal(views[j].CreatedAt) {
			return views[i].ID < views[j].ID
		}
		return views[i].CreatedAt.Before(views[j].CreatedAt)
	})
	return views
}

// Snapshot returns the current surface state of a view.
func (s *ViewService) Snapshot(id string) (domain.SurfaceSnapshot, error) {
	v, err := s.lookup(id)
	if err != nil {
		return domain.SurfaceSnapshot{}, err
	}
	v.mu.Lock()
	h := v.handle
	v.mu.Unlock()
	return h.Snapshot(), nil
}

// SourceData returns the features a view's surface holds for one source.
func (s *ViewService) SourceData(id, sourceID string) (*geojson.FeatureCollection, error) {
	snap, err := s.Snapshot(id)
	if err != nil {
		return nil, err
	}
	fc, ok := snap.Sources[sourceID]
	if !ok {
		return nil, fmt.Errorf("source %s: %w", sourceID, domain.ErrSourceNotFound)
	}
	return fc, nil
}

// MarkReady reports the view's widget as ready.
func (s *ViewService) MarkReady(id string) error {
	v, err := s.lookup(id)
	if err != nil {
		return err
	}
	v.mu.Lock()
	surface := v.surface
	v.mu.Unlock()
	surface.MarkReady()
	return nil
}

// SetViewport records a viewport change reported by the view's widget.
func (s *ViewService) SetViewport(id string, vp domain.Viewport) error {
	v, err := s.lookup(id)
	if err != nil {
		return err
	}
	v.mu.Lock()
	surface := v.surface
	v.mu.Unlock()
	surface.SetViewport(vp)
	return nil
}

// Shutdown deactivates every view and waits for in-flight runs.
func (s *ViewService) Shutdown() {
	s.mu.Lock()
	s.closed = true
	views := make([]*mountedView, 0, len(s.views))
	for id, v := range s.views {
		views = append(views, v)
		delete(s.views, id)
	}
	metrics.ActiveViews.Set(0)
	s.mu.Unlock()

	for _, v := range views {
		v.life.Lock()
		v.removed = true
		v.mu.Lock()
		sched, h := v.sched, v.handle
		v.mu.Unlock()
		v.life.Unlock()
		sched.Shutdown()
		h.Release()
	}
}

func (s *ViewService) lookup(id string) (*mountedView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.views[id]
	if !ok {
		return nil, domain.ErrViewNotFound
	}
	return v, nil
}

// activate wires a fresh surface, handle and scheduler into v and starts it.
// Callers hold v.life.
func (s *ViewService) activate(v *mountedView, params domain.ViewParams) <-chan struct{} {
	surface := s.surfaces(v.id)
	h := NewSurfaceHandle(surface)

	sched := NewScheduler(s.clock, func(ctx context.Context) {
		report, err := s.pipeline.Run(ctx, v.id, h, params)
		if h.Alive() {
			v.mu.Lock()
			if v.handle == h && (v.lastRun == nil || report.Generation >= v.lastRun.Generation) {
				v.lastRun = &report
			}
			v.mu.Unlock()
		}
		if s.observer != nil {
			s.observer(v.id, report, err)
		}
	})

	surface.OnReady(func() {
		// Runs that found the surface not ready were skipped; redraw now.
		if h.Alive() && h.Committed() == 0 {
			sched.Trigger()
		}
	})
	surface.OnViewportChange(func(vp domain.Viewport) {
		slog.Debug("viewport changed", "view", v.id, "lat", vp.Center.Lat, "lon", vp.Center.Lon, "zoom", vp.Zoom)
	})

	v.mu.Lock()
	v.params = params
	v.surface = surface
	v.handle = h
	v.sched = sched
	v.lastRun = nil
	v.mu.Unlock()

	return sched.Activate(s.ctx, params.Interval)
}

// deactivate disarms v's timer and releases its surface. In-flight runs are
// not waited for; they find the handle released and discard their output.
// Callers hold v.life.
func (s *ViewService) deactivate(v *mountedView) {
	v.mu.Lock()
	sched, h := v.sched, v.handle
	v.mu.Unlock()
	sched.Deactivate()
	h.Release()
}

func (s *ViewService) await(ctx context.Context, done <-chan struct{}, wait bool) error {
	if !wait {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (v *mountedView) toDomain() *domain.View {
	v.mu.Lock()
	defer v.mu.Unlock()
	view := &domain.View{
		ID:        v.id,
		Params:    v.params,
		State:     v.sched.State(),
		Runs:      v.sched.Runs(),
		CreatedAt: v.createdAt,
	}
	if v.lastRun != nil {
		r := *v.lastRun
		view.LastRun = &r
	}
	return view
}
