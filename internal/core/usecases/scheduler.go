package usecases

import (
	"context"
	"sync"
	"time"

	"github.com/facebookgo/clock"

	"github.com/sakibstark11/geoplotter/internal/core/domain"
)

// Scheduler drives the pipeline runs of one view activation: one run right
// away, then one per interval until Deactivate. Runs execute on their own
// goroutines, so a slow run never delays the next tick; ordering between
// overlapping runs is settled by the surface handle's generations.
type Scheduler struct {
	clock clock.Clock
	run   func(ctx context.Context)

	mu       sync.Mutex
	state    domain.SchedulerState
	ticker   *clock.Ticker
	stop     chan struct{}
	done     chan struct{}
	inflight int
	runs     int
	ctx      context.Context
	cancel   context.CancelFunc

	wg sync.WaitGroup
}

// NewScheduler creates an idle scheduler. clk may be nil for the wall clock.
func NewScheduler(clk clock.Clock, run func(ctx context.Context)) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{clock: clk, run: run, state: domain.StateIdle}
}

// Activate starts the immediate run and, for a positive interval, arms the
// periodic timer. The returned channel closes when the immediate run is done.
// Activating a scheduler that is already active or cancelled is a no-op and
// returns a closed channel.
func (s *Scheduler) Activate(ctx context.Context, interval time.Duration) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateIdle || s.cancel != nil {
		done := make(chan struct{})
		close(done)
		return done
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.ctx = ctx

	if interval > 0 {
		s.ticker = s.clock.Ticker(interval)
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		go s.loop(ctx, s.ticker, s.stop, s.done)
	}

	return s.launchLocked(ctx)
}

func (s *Scheduler) loop(ctx context.Context, ticker *clock.Ticker, stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.launchLocked(ctx)
			s.mu.Unlock()
		}
	}
}

// Trigger starts an extra run outside the timer, e.g. when the widget
// becomes ready. It is ignored once the scheduler is cancelled.
func (s *Scheduler) Trigger() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return s.launchLocked(s.ctx)
}

// launchLocked must be called with mu held.
func (s *Scheduler) launchLocked(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if s.state == domain.StateCancelled {
		close(done)
		return done
	}

	s.runs++
	s.inflight++
	s.state = domain.StateRunning
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer close(done)
		s.run(ctx)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.inflight--
		if s.state == domain.StateRunning && s.inflight == 0 {
			s.state = s.restingStateLocked()
		}
	}()
	return done
}

func (s *Scheduler) restingStateLocked() domain.SchedulerState {
	if s.ticker != nil {
		return domain.StateScheduled
	}
	return domain.StateIdle
}

// Deactivate disarms the timer. No run starts after it returns; runs already
// in flight finish on their own and are expected to find the surface
// released.
func (s *Scheduler) Deactivate() {
	s.mu.Lock()
	if s.state == domain.StateCancelled {
		s.mu.Unlock()
		return
	}
	s.state = domain.StateCancelled
	if s.ticker != nil {
		s.ticker.Stop()
	}
	stop, done := s.stop, s.done
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

// Shutdown deactivates the scheduler, cancels the context of in-flight runs
// and waits for them to return.
func (s *Scheduler) Shutdown() {
	s.Deactivate()
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Wait blocks until every launched run has returned. Only meaningful after
// Deactivate, since an armed timer keeps launching runs.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// State returns the current lifecycle state.
func (s *Scheduler) State() domain.SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Runs returns how many runs have been launched, the immediate one included.
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// Armed reports whether a periodic timer is running.
func (s *Scheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticker != nil && s.state != domain.StateCancelled
}
