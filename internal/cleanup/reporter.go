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
	"sync"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// OutcomeReporter receives every outcome of a cycle. Roots are swept in parallel,
// so Report may be called concurrently and must be safe for that. Each call
// carries one complete outcome.
type OutcomeReporter interface {
	Report(ctx context.Context, o Outcome)
}

// ReporterFunc adapts a function to an OutcomeReporter.
type ReporterFunc func(ctx context.Context, o Outcome)

// Report calls f.
func (f ReporterFunc) Report(ctx context.Context, o Outcome) { f(ctx, o) }

// Reporters fans an outcome out to several reporters in order.
type Reporters []OutcomeReporter

// Report forwards o to every reporter.
func (rs Reporters) Report(ctx context.Context, o Outcome) {
	for _, r := range rs {
		if r != nil {
			r.Report(ctx, o)
		}
	}
}

// LogReporter writes outcomes to the logger carried by the context.
type LogReporter struct{}

// Report logs o. Removals are logged at info level, skips at V(1) and
// failures as errors.
func (LogReporter) Report(ctx context.Context, o Outcome) {
	logger := log.FromContext(ctx).WithValues("root", o.Root, "path", o.Path)

	switch o.Decision {
	case DecisionRemoved:
		kv := []any{"ttl", o.TTL.String(), "createdAt", o.CreatedAt, "timeSource", o.TimeSource}
		if o.Reclaimed != nil {
			kv = append(kv, "reclaimed", o.Reclaimed.String())
		}
		logger.Info("Removed expired directory", kv...)
	case DecisionSkipped:
		logger.V(1).Info("Skipped directory", "reason", o.Reason, "ttl", o.TTL.String(), "expiresAt", o.ExpiresAt)
	case DecisionFailed:
		logger.Error(o.Err, "Failed to clean up directory", "reason", o.Reason)
	}
}

// recorder keeps every outcome for the summary and forwards it. The lock
// only guards the slice; reporters run outside it.
type recorder struct {
	mu       sync.Mutex
	reporter OutcomeReporter
	outcomes []Outcome
}

func (r *recorder) report(ctx context.Context, o Outcome) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, o)
	r.mu.Unlock()

	if r.reporter != nil {
		r.reporter.Report(ctx, o)
	}
}

func (r *recorder) snapshot() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outcome(nil), r.outcomes...)
}
