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
	"errors"
	"io/fs"
	"os"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mikelane/ttlsweeper/internal/scanner"
	"github.com/mikelane/ttlsweeper/internal/ttl"
	"github.com/mikelane/ttlsweeper/internal/usage"
)

// DefaultWorkers is the number of roots swept in parallel when Options.Workers is unset.
const DefaultWorkers = 4

// DefaultBackoff retries a removal that hit a transient error three times,
// starting at 100ms and doubling with 20% jitter.
var DefaultBackoff = wait.Backoff{
	Duration: 100 * time.Millisecond,
	Factor:   2.0,
	Jitter:   0.2,
	Steps:    4,
}

// RemoveFunc deletes a directory tree.
type RemoveFunc func(path string) error

// SizeFunc measures a directory tree. On error it may still return the
// partial size it reached.
type SizeFunc func(path string) (*resource.Quantity, error)

// Options configures a Cycle.
type Options struct {
	// Workers bounds how many roots are swept at once.
	Workers int

	// DryRun reports expired directories as skipped instead of deleting them.
	DryRun bool

	// MeasureReclaimed sizes each expired directory before deleting it.
	MeasureReclaimed bool

	// Backoff governs retries of transient removal errors. A zero value
	// means DefaultBackoff.
	Backoff wait.Backoff

	// Remove overrides how directories are deleted. Nil means os.RemoveAll.
	Remove RemoveFunc

	// Size overrides how reclaimed space is measured. Nil means
	// usage.Estimator.DirSize.
	Size SizeFunc
}

// Cycle is one scan, evaluate and delete pass over a set of watched roots.
// A Cycle holds no state between runs and may be reused.
type Cycle struct {
	scanner  *scanner.Scanner
	reporter OutcomeReporter
	usage    *usage.Estimator

	workers          int
	dryRun           bool
	measureReclaimed bool
	backoff          wait.Backoff
	remove           RemoveFunc
	size             SizeFunc
}

// NewCycle creates a Cycle that reports every outcome to reporter.
func NewCycle(s *scanner.Scanner, reporter OutcomeReporter, opts Options) *Cycle {
	c := &Cycle{
		scanner:          s,
		reporter:         reporter,
		usage:            usage.NewEstimator(),
		workers:          opts.Workers,
		dryRun:           opts.DryRun,
		measureReclaimed: opts.MeasureReclaimed,
		backoff:          opts.Backoff,
		remove:           opts.Remove,
		size:             opts.Size,
	}
	if c.workers <= 0 {
		c.workers = DefaultWorkers
	}
	if c.backoff.Steps <= 0 {
		c.backoff = DefaultBackoff
	}
	if c.remove == nil {
		c.remove = os.RemoveAll
	}
	if c.size == nil {
		c.size = c.usage.DirSize
	}
	return c
}

// Reclaimed returns the total size of everything this Cycle has removed
// while measuring was enabled.
func (c *Cycle) Reclaimed() int64 {
	return c.usage.Total().Value()
}

// Run sweeps every root once against the given instant and returns all
// reported outcomes. Roots are independent: a root that cannot be scanned
// yields one failed outcome and the others carry on.
//
// When ctx is canceled, entries that have not started are dropped without an
// outcome and will be reconsidered next cycle. A removal already under way
// always runs to completion.
func (c *Cycle) Run(ctx context.Context, roots []string, now time.Time) Summary {
	rec := &recorder{reporter: c.reporter}

	var g errgroup.Group
	g.SetLimit(c.workers)
	for _, root := range roots {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			c.sweepRoot(ctx, root, now, rec)
			return nil
		})
	}
	_ = g.Wait()

	return Summary{Now: now, Outcomes: rec.snapshot()}
}

func (c *Cycle) sweepRoot(ctx context.Context, root string, now time.Time, rec *recorder) {
	if ctx.Err() != nil {
		return
	}
	logger := log.FromContext(ctx).WithValues("root", root)
	ctx = log.IntoContext(ctx, logger)
	logger.V(1).Info("Scanning watched root")

	entries, err := c.scanner.Scan(root)
	if err != nil {
		rec.report(ctx, rootFailure(root, err))
		return
	}

	for entry, err := range entries {
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			rec.report(ctx, scanFailure(root, entry, err))
			continue
		}
		rec.report(ctx, c.process(ctx, entry, now))
	}
}

// process applies the expiry gate to one entry and deletes it if expired.
func (c *Cycle) process(ctx context.Context, entry scanner.Entry, now time.Time) Outcome {
	o := Outcome{
		Root:       entry.Root,
		Path:       entry.Path,
		TTL:        entry.TTL,
		CreatedAt:  entry.CreatedAt,
		TimeSource: entry.TimeSource,
	}
	if expiresAt, ok := ttl.ExpiresAt(entry.TTL, entry.CreatedAt); ok {
		o.ExpiresAt = expiresAt
	}

	if !ttl.IsExpired(entry.TTL, entry.CreatedAt, now) {
		return o.skipped(ReasonNotExpired)
	}
	if _, err := os.Lstat(entry.Path); errors.Is(err, fs.ErrNotExist) {
		return o.skipped(ReasonAlreadyAbsent)
	}
	if c.dryRun {
		return o.skipped(ReasonDryRun)
	}

	if c.measureReclaimed {
		var err error
		if o.Reclaimed, err = c.size(entry.Path); err != nil {
			// Keep the partial size; the removal still goes ahead.
			log.FromContext(ctx).V(1).Info("Reclaimed size is incomplete",
				"path", entry.Path, "partial", o.Reclaimed.String(), "error", err.Error())
		}
	}

	if err := c.removeWithRetry(entry.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			o.Reclaimed = nil
			return o.skipped(ReasonAlreadyAbsent)
		}
		o.Reclaimed = nil
		o.Decision = DecisionFailed
		o.Reason = ReasonRemoveFailed
		o.Err = err
		return o
	}

	c.usage.Track(o.Reclaimed)
	o.Decision = DecisionRemoved
	o.Reason = ReasonExpired
	return o
}

// removeWithRetry deletes path, retrying errors caused by something still
// writing into the tree. Retries do not watch the cycle's context, so a
// started removal is never abandoned halfway.
func (c *Cycle) removeWithRetry(path string) error {
	var lastErr error
	err := wait.ExponentialBackoff(c.backoff, func() (bool, error) {
		lastErr = c.remove(path)
		switch {
		case lastErr == nil:
			return true, nil
		case isTransient(lastErr):
			return false, nil
		default:
			return false, lastErr
		}
	})
	if err != nil {
		return lastErr
	}
	return nil
}

func isTransient(err error) bool {
	return errors.Is(err, syscall.EBUSY) || errors.Is(err, syscall.ENOTEMPTY)
}

func (o Outcome) skipped(reason Reason) Outcome {
	o.Decision = DecisionSkipped
	o.Reason = reason
	return o
}

func rootFailure(root string, err error) Outcome {
	return Outcome{
		Root:     root,
		Path:     root,
		Decision: DecisionFailed,
		Reason:   ReasonRootUnavailable,
		Err:      err,
	}
}

// scanFailure classifies an error yielded while scanning a root.
func scanFailure(root string, entry scanner.Entry, err error) Outcome {
	var rootErr *scanner.RootError
	if errors.As(err, &rootErr) {
		return rootFailure(root, err)
	}

	o := Outcome{
		Root:       root,
		Path:       entry.Path,
		TTL:        entry.TTL,
		TimeSource: entry.TimeSource,
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Deleted between listing and stat.
		return o.skipped(ReasonAlreadyAbsent)
	case errors.Is(err, scanner.ErrNoBirthTime):
		return o.skipped(ReasonBirthTimeUnavailable)
	default:
		o.Decision = DecisionFailed
		o.Reason = ReasonMetadataUnavailable
		o.Err = err
		return o
	}
}
