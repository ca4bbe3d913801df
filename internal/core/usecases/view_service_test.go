package usecases_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/facebookgo/clock"

	"github.com/sakibstark11/geoplotter/internal/core/domain"
	"github.com/sakibstark11/geoplotter/internal/core/ports"
	"github.com/sakibstark11/geoplotter/internal/core/usecases"
)

type surfaceRegistry struct {
	mu       sync.Mutex
	ready    bool
	surfaces []*fakeSurface
}

func (r *surfaceRegistry) factory() ports.SurfaceFactory {
	return func(viewID string) ports.Surface {
		r.mu.Lock()
		defer r.mu.Unlock()
		s := newFakeSurface(r.ready)
		r.surfaces = append(r.surfaces, s)
		return s
	}
}

func (r *surfaceRegistry) get(i int) *fakeSurface {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.surfaces[i]
}

func literalParams(codes ...string) domain.ViewParams {
	return domain.ViewParams{
		Mode:    domain.ModeBoxes,
		Sources: []domain.SourceSpec{{ID: "geo-1", Kind: domain.SourceLiteral, Codes: codes, ColorTag: "FF0000"}},
	}
}

func TestViewService_MountLiteralNoTimer(t *testing.T) {
	reg := &surfaceRegistry{ready: true}
	mock := clock.NewMock()
	svc := usecases.NewViewService(context.Background(), newPipeline(nil, nil), reg.factory(), usecases.WithClock(mock))
	defer svc.Shutdown()

	view, err := svc.Mount(context.Background(), literalParams("tdr1vj", "tdr1vk"), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.ID == "" {
		t.Fatal("expected a view id")
	}
	if view.LastRun == nil || view.LastRun.Displayed != 2 {
		t.Fatalf("expected a finished run displaying 2 codes, got %+v", view.LastRun)
	}

	mock.Add(time.Hour)
	got, err := svc.Get(view.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Runs != 1 {
		t.Errorf("expected exactly one run without a timer, got %d", got.Runs)
	}

	fc, err := svc.SourceData(view.ID, "geo-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(fc.Features) != 2 {
		t.Errorf("expected 2 polygons, got %d", len(fc.Features))
	}
}

func TestViewService_RemoteWithTimer(t *testing.T) {
	var calls atomic.Int32
	fetcher := &mockFetcher{
		fetchFn: func(ctx context.Context, url string) ([]byte, error) {
			calls.Add(1)
			return []byte("w1\nw2\nw3\n"), nil
		},
	}
	reg := &surfaceRegistry{ready: true}
	mock := clock.NewMock()
	svc := usecases.NewViewService(context.Background(), newPipeline(fetcher, nil), reg.factory(), usecases.WithClock(mock))
	defer svc.Shutdown()

	params := domain.ViewParams{
		Mode:     domain.ModeBoxes,
		Interval: 5 * time.Second,
		Sources:  []domain.SourceSpec{{ID: "geo-1", Kind: domain.SourceRemote, URL: "http://codes", ColorTag: "FF0000"}},
	}
	view, err := svc.Mount(context.Background(), params, true)
	if err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected the immediate fetch, got %d", calls.Load())
	}

	mock.Add(5 * time.Second)
	waitFor(t, func() bool {
		v, _ := svc.Get(view.ID)
		return calls.Load() == 2 && v.LastRun != nil && v.LastRun.Generation == 2
	})

	snap, _ := svc.Snapshot(view.ID)
	if len(snap.Sources) != 1 || len(snap.Layers) != 1 {
		t.Errorf("expected one source and one layer, got %d and %d", len(snap.Sources), len(snap.Layers))
	}
	if n := len(snap.Sources["geo-1"].Features); n != 3 {
		t.Errorf("expected 3 features, got %d", n)
	}

	if err := svc.Unmount(view.ID); err != nil {
		t.Fatal(err)
	}
	if !reg.get(0).Snapshot().Released {
		t.Error("expected surface to be released on unmount")
	}
	mock.Add(30 * time.Second)
	time.Sleep(10 * time.Millisecond)
	if calls.Load() != 2 {
		t.Errorf("expected no fetch after unmount, got %d", calls.Load())
	}
	if _, err := svc.Get(view.ID); !errors.Is(err, domain.ErrViewNotFound) {
		t.Errorf("expected ErrViewNotFound, got %v", err)
	}
}

func TestViewService_ReadyTriggersRun(t *testing.T) {
	reg := &surfaceRegistry{ready: false}
	svc := usecases.NewViewService(context.Background(), newPipeline(nil, nil), reg.factory(), usecases.WithClock(clock.NewMock()))
	defer svc.Shutdown()

	view, err := svc.Mount(context.Background(), literalParams("tdr1"), true)
	if err != nil {
		t.Fatal(err)
	}
	if view.LastRun == nil || view.LastRun.Skipped != "not_ready" {
		t.Fatalf("expected the first run to be skipped, got %+v", view.LastRun)
	}

	if err := svc.MarkReady(view.ID); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		snap, _ := svc.Snapshot(view.ID)
		return len(snap.Sources) == 1
	})
}

func TestViewService_UpdateSwapsSurface(t *testing.T) {
	reg := &surfaceRegistry{ready: true}
	svc := usecases.NewViewService(context.Background(), newPipeline(nil, nil), reg.factory(), usecases.WithClock(clock.NewMock()))
	defer svc.Shutdown()

	view, err := svc.Mount(context.Background(), literalParams("tdr1"), true)
	if err != nil {
		t.Fatal(err)
	}
	updated, err := svc.Update(context.Background(), view.ID, literalParams("wh0r", "wh0q", "wh0w"), true)
	if err != nil {
		t.Fatal(err)
	}
	if updated.ID != view.ID {
		t.Errorf("expected id to survive update")
	}
	if !reg.get(0).Snapshot().Released {
		t.Error("expected the old surface to be released")
	}
	if n := len(reg.get(1).Snapshot().Sources["geo-1"].Features); n != 3 {
		t.Errorf("expected 3 features on the new surface, got %d", n)
	}
}

func TestViewService_Validation(t *testing.T) {
	svc := usecases.NewViewService(context.Background(), newPipeline(nil, nil), (&surfaceRegistry{}).factory())
	defer svc.Shutdown()

	if _, err := svc.Mount(context.Background(), domain.ViewParams{Mode: domain.ModeBoxes}, false); !errors.Is(err, domain.ErrNoSources) {
		t.Errorf("expected ErrNoSources, got %v", err)
	}
	if err := svc.Unmount("missing"); !errors.Is(err, domain.ErrViewNotFound) {
		t.Errorf("expected ErrViewNotFound, got %v", err)
	}
	if len(svc.List()) != 0 {
		t.Error("expected no views")
	}
}

func TestViewService_RunObserver(t *testing.T) {
	var seen atomic.Int32
	svc := usecases.NewViewService(context.Background(), newPipeline(nil, nil), (&surfaceRegistry{ready: true}).factory(),
		usecases.WithClock(clock.NewMock()),
		usecases.WithRunObserver(func(viewID string, report domain.RunReport, err error) {
			if err == nil && report.Displayed == 1 {
				seen.Add(1)
			}
		}),
	)
	defer svc.Shutdown()

	if _, err := svc.Mount(context.Background(), literalParams("tdr1"), true); err != nil {
		t.Fatal(err)
	}
	if seen.Load() != 1 {
		t.Errorf("expected observer to see one run, got %d", seen.Load())
	}
}

func TestViewService_SourceNotFound(t *testing.T) {
	svc := usecases.NewViewService(context.Background(), newPipeline(nil, nil), (&surfaceRegistry{ready: true}).factory(), usecases.WithClock(clock.NewMock()))
	defer svc.Shutdown()

	view, err := svc.Mount(context.Background(), literalParams("tdr1"), true)
	if err != nil {
		t.Fatal(err)
	}
	_, err = svc.SourceData(view.ID, "geo-9")
	if !errors.Is(err, domain.ErrSourceNotFound) {
		t.Errorf("expected ErrSourceNotFound, got %v", err)
	}
	if errors.Is(err, domain.ErrViewNotFound) {
		t.Error("an unknown source of a live view must not read as a missing view")
	}
	if _, err := svc.SourceData("missing", "geo-1"); !errors.Is(err, domain.ErrViewNotFound) {
		t.Errorf("expected ErrViewNotFound, got %v", err)
	}
}

// Concurrent updates followed by an unmount must leave no timer behind.
func TestViewService_ConcurrentUpdateThenUnmount(t *testing.T) {
	for attempt := 0; attempt < 20; attempt++ {
		var calls atomic.Int32
		fetcher := &mockFetcher{
			fetchFn: func(ctx context.Context, url string) ([]byte, error) {
				calls.Add(1)
				return []byte("w1\n"), nil
			},
		}
		mock := clock.NewMock()
		svc := usecases.NewViewService(context.Background(), newPipeline(fetcher, nil), (&surfaceRegistry{ready: true}).factory(), usecases.WithClock(mock))

		params := domain.ViewParams{
			Mode:     domain.ModeBoxes,
			Interval: 5 * time.Second,
			Sources:  []domain.SourceSpec{{ID: "geo-1", Kind: domain.SourceRemote, URL: "http://codes", ColorTag: "FF0000"}},
		}
		view, err := svc.Mount(context.Background(), params, true)
		if err != nil {
			t.Fatal(err)
		}

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = svc.Update(context.Background(), view.ID, params, false)
			}()
		}
		wg.Wait()

		if err := svc.Unmount(view.ID); err != nil {
			t.Fatal(err)
		}
		svc.Shutdown()

		if _, err := svc.Update(context.Background(), view.ID, params, false); !errors.Is(err, domain.ErrViewNotFound) {
			t.Errorf("expected ErrViewNotFound after unmount, got %v", err)
		}

		// Let runs started by the updates drain before counting.
		time.Sleep(20 * time.Millisecond)
		before := calls.Load()
		mock.Add(5 * time.Second)
		time.Sleep(20 * time.Millisecond)
		if got := calls.Load(); got != before {
			t.Fatalf("attempt %d: a timer kept fetching after unmount (%d -> %d)", attempt, before, got)
		}
	}
}

func TestViewService_MountCancelledWaitUnmounts(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	fetcher := &mockFetcher{
		fetchFn: func(ctx context.Context, url string) ([]byte, error) {
			<-block
			return nil, nil
		},
	}
	svc := usecases.NewViewService(context.Background(), newPipeline(fetcher, nil), (&surfaceRegistry{ready: true}).factory(), usecases.WithClock(clock.NewMock()))
	defer svc.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	params := domain.ViewParams{
		Mode:     domain.ModeBoxes,
		Interval: 5 * time.Second,
		Sources:  []domain.SourceSpec{{ID: "geo-1", Kind: domain.SourceRemote, URL: "http://codes", ColorTag: "FF0000"}},
	}
	if _, err := svc.Mount(ctx, params, true); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if n := len(svc.List()); n != 0 {
		t.Errorf("expected the abandoned view to be unmounted, got %d views", n)
	}
}

func TestViewService_MountAfterShutdown(t *testing.T) {
	svc := usecases.NewViewService(context.Background(), newPipeline(nil, nil), (&surfaceRegistry{ready: true}).factory(), usecases.WithClock(clock.NewMock()))
	svc.Shutdown()

	if _, err := svc.Mount(context.Background(), literalParams("tdr1"), false); !errors.Is(err, domain.ErrViewServiceClosed) {
		t.Errorf("expected ErrViewServiceClosed, got %v", err)
	}
	if n := len(svc.List()); n != 0 {
		t.Errorf("expected no views, got %d", n)
	}
}
