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

// Package metrics exposes Prometheus metrics for cleanup cycles.
//
// Collectors are registered on the controller-runtime registry, which is
// what the HTTP server serves on /metrics.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/mikelane/ttlsweeper/internal/cleanup"
)

const namespace = "ttlsweeper"

var (
	// Outcomes counts cycle outcomes by decision and reason.
	Outcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outcomes_total",
		Help:      "Number of directory outcomes, by decision and reason.",
	}, []string{"decision", "reason"})

	// ReclaimedBytes counts bytes freed by removals that were measured.
	ReclaimedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reclaimed_bytes_total",
		Help:      "Bytes freed by removing expired directories.",
	})

	// CycleDuration observes how long each cleanup cycle took.
	CycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cycle_duration_seconds",
		Help:      "Duration of cleanup cycles.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	})

	// LastCycle is the start time of the most recent cycle.
	LastCycle = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_cycle_timestamp_seconds",
		Help:      "Unix time the last cleanup cycle started.",
	})
)

func init() {
	ctrlmetrics.Registry.MustRegister(Outcomes, ReclaimedBytes, CycleDuration, LastCycle)
}

// Reporter counts outcomes as they are reported.
type Reporter struct{}

var _ cleanup.OutcomeReporter = Reporter{}

// Report increments the outcome counter and, for measured removals, the
// reclaimed bytes counter.
func (Reporter) Report(_ context.Context, o cleanup.Outcome) {
	Outcomes.WithLabelValues(string(o.Decision), string(o.Reason)).Inc()
	if o.Decision == cleanup.DecisionRemoved && o.Reclaimed != nil {
		ReclaimedBytes.Add(float64(o.Reclaimed.Value()))
	}
}

// ObserveCycle records cycle timing. It satisfies cleanup.CycleObserver.
func ObserveCycle(s cleanup.Summary, took time.Duration) {
	CycleDuration.Observe(took.Seconds())
	LastCycle.Set(float64(s.Now.Unix()))
}
