// Package scheduler drives trading cycles on a fixed interval with
// market-hours gating.
//
// The scheduler is a singleton owned by the HTTP server's lifetime. One
// background goroutine owns the ticks; a tick runs its cycle to
// completion before the next may start, so late ticks coalesce. Stop
// cancels the timer but never an in-flight cycle. Cycle outcomes land in
// a bounded ring that survives Stop.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lunara-kim/market-auto-trader-sub000/internal/market"
	"github.com/lunara-kim/market-auto-trader-sub000/pkg/types"
)

const (
	minInterval = 1 * time.Minute
	maxInterval = 480 * time.Minute

	historyCap = 100
)

// Runner executes one trading cycle (the AutoTrader).
type Runner interface {
	RunCycle(ctx context.Context) (*types.CycleResult, error)
}

// Status is the scheduler's observable state.
type Status struct {
	Running     bool               `json:"running"`
	Interval    string             `json:"interval,omitempty"`
	KROnly      bool               `json:"kr_only"`
	USEnabled   bool               `json:"us_enabled"`
	NextRun     string             `json:"next_run,omitempty"` // RFC 3339
	TotalCycles int                `json:"total_cycles"`       // cycles run; skipped ticks excluded
	Last        *types.CycleResult `json:"last_result,omitempty"`
}

// Scheduler owns the periodic trigger and the cycle history ring.
// All state mutations are serialised on one mutex.
type Scheduler struct {
	runner   Runner
	logger   *slog.Logger
	cycleCtx context.Context // cycles outlive Stop; bound to process lifetime

	mu          sync.Mutex
	running     bool
	interval    time.Duration
	krOnly      bool
	usEnabled   bool
	stopCh      chan struct{}
	nextRun     time.Time
	totalCycles int
	history     []types.CycleResult

	// notify, when set, receives every appended CycleResult.
	notify func(types.CycleResult)

	now    func() time.Time
	krOpen func(time.Time) bool
	usOpen func(time.Time) bool
}

// New creates a stopped scheduler. cycleCtx bounds cycle execution to
// the process lifetime, independent of Stop.
func New(cycleCtx context.Context, runner Runner, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		logger:   logger.With("component", "scheduler"),
		cycleCtx: cycleCtx,
		now:      time.Now,
		krOpen:   market.IsKROpen,
		usOpen:   market.IsUSOpen,
	}
}

// SetNotify registers a sink for appended cycle results. Must be called
// before Start.
func (s *Scheduler) SetNotify(fn func(types.CycleResult)) {
	s.mu.Lock()
	s.notify = fn
	s.mu.Unlock()
}

// Start begins periodic execution. A no-op when already running. The
// first tick fires immediately; later ticks follow the interval.
func (s *Scheduler) Start(interval time.Duration, krOnly, usEnabled bool) error {
	if interval < minInterval || interval > maxInterval {
		return fmt.Errorf("interval %s out of range [%s, %s]", interval, minInterval, maxInterval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	s.running = true
	s.interval = interval
	s.krOnly = krOnly
	s.usEnabled = usEnabled
	s.stopCh = make(chan struct{})
	s.nextRun = s.now()

	go s.loop(s.stopCh, interval)

	s.logger.Info("scheduler started",
		"interval", interval,
		"kr_only", krOnly,
		"us_enabled", usEnabled,
	)
	return nil
}

// Stop cancels the periodic trigger. A no-op when stopped. History and
// counters are retained; an in-flight cycle runs to completion.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	s.stopCh = nil
	s.nextRun = time.Time{}
	s.logger.Info("scheduler stopped")
}

// Running reports whether the trigger is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// GetStatus snapshots the scheduler state.
func (s *Scheduler) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running:     s.running,
		KROnly:      s.krOnly,
		USEnabled:   s.usEnabled,
		TotalCycles: s.totalCycles,
	}
	if s.running {
		st.Interval = s.interval.String()
		st.NextRun = s.nextRun.Format(time.RFC3339)
	}
	if n := len(s.history); n > 0 {
		last := s.history[n-1]
		st.Last = &last
	}
	return st
}

// History returns up to limit results, newest first. limit <= 0 returns
// the whole ring.
func (s *Scheduler) History(limit int) []types.CycleResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]types.CycleResult, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.history[i])
	}
	return out
}

func (s *Scheduler) loop(stopCh chan struct{}, interval time.Duration) {
	s.tick()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick gates on market hours and runs one cycle to completion. A
// catastrophic cycle error is stored as an error result; the next tick
// still fires.
func (s *Scheduler) tick() {
	s.mu.Lock()
	krOnly, usEnabled := s.krOnly, s.usEnabled
	s.nextRun = s.now().Add(s.interval)
	s.mu.Unlock()

	now := s.now()
	krOpen := s.krOpen(now)
	usOpen := s.usOpen(now)

	runnable := (krOnly && krOpen) || (usEnabled && usOpen) || (!krOnly && !usEnabled)
	if !runnable {
		s.append(types.CycleResult{
			Timestamp: now.Format(time.RFC3339),
			Status:    types.CycleSkipped,
			Reason:    "market closed",
		})
		s.logger.Info("tick skipped, market closed", "kr_open", krOpen, "us_open", usOpen)
		return
	}

	result, err := s.runner.RunCycle(s.cycleCtx)
	if err != nil {
		s.logger.Error("cycle failed", "error", err)
		s.append(types.CycleResult{
			Timestamp: now.Format(time.RFC3339),
			Status:    types.CycleError,
			Reason:    err.Error(),
		})
		return
	}
	s.append(*result)
}

// append pushes a result into the ring, evicting the oldest past
// capacity, and feeds the notify sink. Skipped ticks land in the ring
// but never in the cycle counter: no cycle ran.
func (s *Scheduler) append(result types.CycleResult) {
	s.mu.Lock()
	s.history = append(s.history, result)
	if len(s.history) > historyCap {
		s.history = s.history[len(s.history)-historyCap:]
	}
	if result.Status != types.CycleSkipped {
		s.totalCycles++
	}
	notify := s.notify
	s.mu.Unlock()

	if notify != nil {
		notify(result)
	}
}
