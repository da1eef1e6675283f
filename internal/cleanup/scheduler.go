/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package cleanup

import (
	"context"
	"slices"
	"sync"
	"time"

	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mikelane/ttlsweeper/internal/usage"
)

// CycleObserver is called after every cycle the scheduler runs, with the
// wall-clock time the cycle took.
type CycleObserver func(s Summary, took time.Duration)

// Scheduler runs cleanup cycles over the watched roots on a fixed interval.
type Scheduler struct {
	cycle    *Cycle
	interval time.Duration
	clock    clock.WithTicker
	observer CycleObserver

	trigger chan struct{}

	mu      sync.RWMutex
	roots   []string
	lastRun time.Time
}

// SchedulerOption customizes a Scheduler.
type SchedulerOption func(*Scheduler)

// WithClock replaces the real clock, mainly for tests.
func WithClock(c clock.WithTicker) SchedulerOption {
	return func(s *Scheduler) { s.clock = c }
}

// WithCycleObserver registers a callback run after each cycle.
func WithCycleObserver(o CycleObserver) SchedulerOption {
	return func(s *Scheduler) { s.observer = o }
}

// NewScheduler creates a new cleanup scheduler with the specified interval.
// The scheduler will sweep roots once when started and then every interval.
//
// Parameters:
//   - cycle: the cleanup cycle to run
//   - roots: watched root directories, in configuration order
//   - interval: duration between cleanup runs (e.g., 5*time.Minute)
//
// Returns a configured Scheduler ready to start.
func NewScheduler(cycle *Cycle, roots []string, interval time.Duration, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		cycle:    cycle,
		interval: interval,
		clock:    clock.RealClock{},
		trigger:  make(chan struct{}, 1),
		roots:    slices.Clone(roots),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs a cycle immediately, then keeps running one per interval until
// the context is canceled. A cycle with failed outcomes never stops the
// scheduler.
//
// Returns nil on graceful shutdown.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	logger := log.FromContext(ctx)
	logger.Info("Starting cleanup scheduler", "interval", s.interval, "roots", s.Roots())

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping cleanup scheduler")
			return nil
		case <-ticker.C():
			s.RunOnce(ctx)
		case <-s.trigger:
			logger.Info("Running triggered cleanup")
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single cycle over the current roots using the
// scheduler's clock for "now".
func (s *Scheduler) RunOnce(ctx context.Context) Summary {
	logger := log.FromContext(ctx)

	start := s.clock.Now()
	summary := s.cycle.Run(ctx, s.Roots(), start)
	took := s.clock.Since(start)

	s.mu.Lock()
	s.lastRun = start
	s.mu.Unlock()

	if err := summary.Err(); err != nil {
		// Continue to next tick - individual outcomes were already reported
		logger.Error(err, "cleanup pass finished with failures")
	}
	logger.Info("Cleanup pass finished",
		"removed", summary.Count(DecisionRemoved),
		"skipped", summary.Count(DecisionSkipped),
		"failed", summary.Count(DecisionFailed),
		"reclaimed", summary.Reclaimed().String(),
		"reclaimedTotal", usage.Format(s.cycle.Reclaimed()),
		"took", took)

	if s.observer != nil {
		s.observer(summary, took)
	}
	return summary
}

// Trigger asks a running scheduler for an extra cycle as soon as the current
// one, if any, finishes. It never blocks and reports false if a triggered
// cycle is already pending.
func (s *Scheduler) Trigger() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// SetRoots replaces the watched roots. The change applies from the next cycle.
func (s *Scheduler) SetRoots(roots []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roots = slices.Clone(roots)
}

// Roots returns a copy of the watched roots.
func (s *Scheduler) Roots() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.roots)
}

// LastRun returns when the most recent cycle started, and false if none has run.
func (s *Scheduler) LastRun() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun, !s.lastRun.IsZero()
}
