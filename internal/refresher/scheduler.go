package refresher

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/groupstate/module"
)

// minTick floors the scheduler tick to prevent CPU thrashing.
const minTick = time.Second

// Target is one module to refresh periodically.
type Target struct {
	// Name is the module name, used in results and logs.
	Name module.Name

	// Refresher reloads the module's data.
	Refresher module.Refresher

	// Interval overrides the scheduler's default interval. Zero uses the
	// default.
	Interval time.Duration
}

// Result is the outcome of refreshing one target.
type Result struct {
	Name     module.Name
	Duration time.Duration
	At       time.Time
	Err      error
}

// Scheduler refreshes modules periodically with a bounded worker pool.
//
// The scheduler ticks at the GCD of all target intervals and refreshes only
// targets that are due. Results are emitted on [Scheduler.Results], which
// consumers must drain; the channel is closed when the scheduler stops.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Scheduler struct {
	targets        []Target
	interval       time.Duration
	maxConcurrency int
	immediate      bool
	results        chan Result
	logger         *slog.Logger
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup

	mu        sync.Mutex
	started   bool
	stopped   bool
	closeOnce sync.Once

	lastRunAt map[module.Name]time.Time
	tick      time.Duration
	minTick   time.Duration
}

// Option configures a [Scheduler].
type Option func(*Scheduler)

// WithImmediate refreshes every target as soon as the scheduler starts.
func WithImmediate() Option {
	return func(s *Scheduler) { s.immediate = true }
}

// NewScheduler creates a refresh [Scheduler]. maxConcurrency below 1 is
// treated as 1.
func NewScheduler(targets []Target, interval time.Duration, maxConcurrency int, logger *slog.Logger, opts ...Option) *Scheduler {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		targets:        targets,
		interval:       interval,
		maxConcurrency: maxConcurrency,
		results:        make(chan Result, len(targets)),
		logger:         logger,
		minTick:        minTick,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Results returns a receive-only channel of refresh outcomes.
func (s *Scheduler) Results() <-chan Result {
	return s.results
}

func (s *Scheduler) intervalOf(t Target) time.Duration {
	if t.Interval > 0 {
		return t.Interval
	}
	return s.interval
}

// calculateTick returns the GCD of all target intervals, floored at minTick.
func (s *Scheduler) calculateTick() time.Duration {
	if len(s.targets) == 0 {
		return max(s.interval, s.minTick)
	}

	result := s.intervalOf(s.targets[0])
	for _, t := range s.targets[1:] {
		result = gcdDuration(result, s.intervalOf(t))
	}
	return max(result, s.minTick)
}

func gcdDuration(a, b time.Duration) time.Duration {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Start begins the refresh loop in a background goroutine.
//
// If ctx is nil, context.Background() is used. Start is idempotent; calls
// after the first, or after Stop, are no-ops.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.tick = s.calculateTick()

	// a target is first due one interval after start
	now := time.Now()
	s.lastRunAt = make(map[module.Name]time.Time, len(s.targets))
	for _, t := range s.targets {
		s.lastRunAt[t.Name] = now
	}

	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	runCtx := s.ctx
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.closeOnce.Do(func() { close(s.results) })

		if s.immediate {
			s.refreshDue(runCtx, true)
		}

		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.refreshDue(runCtx, false)
			}
		}
	}()
}

// Stop halts the scheduler and waits for in-flight refreshes. Stop is
// idempotent and safe to call before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.closeOnce.Do(func() { close(s.results) })
}

// refreshDue refreshes targets whose interval has elapsed, or all targets
// when all is true. lastRunAt is updated when a refresh starts so a slow
// refresh is never run twice concurrently by the scheduler.
func (s *Scheduler) refreshDue(ctx context.Context, all bool) {
	now := time.Now()
	due := make([]Target, 0, len(s.targets))

	s.mu.Lock()
	for _, t := range s.targets {
		if all || now.Sub(s.lastRunAt[t.Name]) >= s.intervalOf(t) {
			due = append(due, t)
			s.lastRunAt[t.Name] = now
		}
	}
	s.mu.Unlock()

	if len(due) == 0 {
		return
	}
	s.refreshTargets(ctx, due)
}

func (s *Scheduler) refreshTargets(ctx context.Context, targets []Target) {
	jobs := make(chan Target, len(targets))

	var wg sync.WaitGroup
	for range min(s.maxConcurrency, len(targets)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				result := s.refreshTarget(ctx, t)
				select {
				case s.results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for _, t := range targets {
		select {
		case jobs <- t:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		}
	}
	close(jobs)

	wg.Wait()
}

func (s *Scheduler) refreshTarget(ctx context.Context, t Target) Result {
	start := time.Now()
	err := s.safeRefresh(ctx, t)
	return Result{
		Name:     t.Name,
		Duration: time.Since(start),
		At:       start,
		Err:      err,
	}
}

// safeRefresh calls the refresher with panic recovery. A panic is logged
// with its stack under a correlation id, which is also put in the returned
// error.
func (s *Scheduler) safeRefresh(ctx context.Context, t Target) (err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.logger.Error("refresh panic",
				"module", t.Name,
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("refresh %s panic (correlation_id: %s)", t.Name, correlationID)
		}
	}()
	return t.Refresher.Refresh(ctx)
}
