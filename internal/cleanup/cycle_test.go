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
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-logr/logr/funcr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mikelane/ttlsweeper/internal/scanner"
	"github.com/mikelane/ttlsweeper/internal/ttl"
)

// fakeBirthTimes serves creation times by full path and fails for any path
// it does not know.
type fakeBirthTimes struct {
	mu     sync.Mutex
	times  map[string]time.Time
	source ttl.TimeSource
	errs   map[string]error
}

func newFakeBirthTimes() *fakeBirthTimes {
	return &fakeBirthTimes{
		times:  map[string]time.Time{},
		errs:   map[string]error{},
		source: ttl.SourceBirthTime,
	}
}

func (f *fakeBirthTimes) get(path string) (time.Time, ttl.TimeSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[path]; ok {
		return time.Time{}, "", err
	}
	t, ok := f.times[path]
	if !ok {
		return time.Time{}, "", fs.ErrPermission
	}
	return t, f.source, nil
}

// collectingReporter records outcomes and tolerates concurrent calls.
type collectingReporter struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (r *collectingReporter) Report(_ context.Context, o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *collectingReporter) all() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outcome(nil), r.outcomes...)
}

func outcomeFor(s Summary, path string) (Outcome, bool) {
	for _, o := range s.Outcomes {
		if o.Path == path {
			return o, true
		}
	}
	return Outcome{}, false
}

var fastBackoff = wait.Backoff{Duration: time.Millisecond, Factor: 1, Steps: 3}

var (
	_ OutcomeReporter = Reporters{}
	_ OutcomeReporter = LogReporter{}
	_ OutcomeReporter = (*collectingReporter)(nil)
)

var _ = Describe("Cycle", func() {
	var (
		ctx      context.Context
		now      time.Time
		births   *fakeBirthTimes
		reporter *collectingReporter
		opts     Options
	)

	// mkTTLDir creates root/name and registers its creation time as now-age.
	mkTTLDir := func(root, name string, age time.Duration) string {
		path := filepath.Join(root, name)
		Expect(os.MkdirAll(path, 0o755)).To(Succeed())
		births.mu.Lock()
		births.times[path] = now.Add(-age)
		births.mu.Unlock()
		return path
	}

	newCycle := func() *Cycle {
		s := scanner.New(scanner.Options{BirthTime: births.get})
		return NewCycle(s, reporter, opts)
	}

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2025, time.June, 15, 9, 30, 0, 0, time.UTC)
		births = newFakeBirthTimes()
		reporter = &collectingReporter{}
		opts = Options{Backoff: fastBackoff}
	})

	Describe("Scenario: mixed directories under one root", func() {
		var (
			root    string
			expired string
			fresh   string
			yearOld string
			notes   string
			zeroTTL string
			summary Summary
		)

		BeforeEach(func() {
			root = GinkgoT().TempDir()
			expired = mkTTLDir(root, "ttl=10d", 11*ttl.Day)
			yearOld = mkTTLDir(root, "ttl=1y", 365*ttl.Day)
			zeroTTL = mkTTLDir(root, "ttl=0d", 400*ttl.Day)
			notes = filepath.Join(root, "notes")
			Expect(os.Mkdir(notes, 0o755)).To(Succeed())

			other := GinkgoT().TempDir()
			fresh = mkTTLDir(other, "ttl=10d", 5*ttl.Day)

			summary = newCycle().Run(ctx, []string{root, other}, now)
		})

		It("removes a 10 day directory created 11 days ago", func() {
			o, ok := outcomeFor(summary, expired)
			Expect(ok).To(BeTrue())
			Expect(o.Decision).To(Equal(DecisionRemoved))
			Expect(o.Reason).To(Equal(ReasonExpired))
			Expect(expired).NotTo(BeADirectory())
		})

		It("keeps a 10 day directory created 5 days ago", func() {
			o, ok := outcomeFor(summary, fresh)
			Expect(ok).To(BeTrue())
			Expect(o.Decision).To(Equal(DecisionSkipped))
			Expect(o.Reason).To(Equal(ReasonNotExpired))
			Expect(o.ExpiresAt).To(BeTemporally("==", now.Add(5*ttl.Day)))
			Expect(fresh).To(BeADirectory())
		})

		It("removes a one year directory created exactly 365 days ago", func() {
			o, ok := outcomeFor(summary, yearOld)
			Expect(ok).To(BeTrue())
			Expect(o.Decision).To(Equal(DecisionRemoved))
			Expect(yearOld).NotTo(BeADirectory())
		})

		It("emits nothing for directories without a valid ttl name", func() {
			_, ok := outcomeFor(summary, notes)
			Expect(ok).To(BeFalse())
			_, ok = outcomeFor(summary, zeroTTL)
			Expect(ok).To(BeFalse())
			Expect(notes).To(BeADirectory())
			Expect(zeroTTL).To(BeADirectory())
		})

		It("reports the same outcomes it returns", func() {
			Expect(reporter.all()).To(ConsistOf(summary.Outcomes))
			Expect(summary.Outcomes).To(HaveLen(3))
			Expect(summary.Err()).NotTo(HaveOccurred())
			Expect(summary.Now).To(Equal(now))
		})
	})

	Describe("Scenario: running twice with the same now", func() {
		It("removes expired entries once and reports no failures the second time", func() {
			root := GinkgoT().TempDir()
			mkTTLDir(root, "ttl=2d", 3*ttl.Day)
			mkTTLDir(root, "ttl=30min", 2*time.Hour)
			kept := mkTTLDir(root, "ttl=1m", 2*ttl.Day)

			cycle := newCycle()
			first := cycle.Run(ctx, []string{root}, now)
			Expect(first.Count(DecisionRemoved)).To(Equal(2))

			second := cycle.Run(ctx, []string{root}, now)
			Expect(second.Count(DecisionRemoved)).To(BeZero())
			Expect(second.Count(DecisionFailed)).To(BeZero())
			Expect(second.Outcomes).To(HaveLen(1))
			Expect(second.Outcomes[0].Path).To(Equal(kept))
			Expect(second.Outcomes[0].Reason).To(Equal(ReasonNotExpired))
		})
	})

	Describe("Scenario: a deletion fails", func() {
		It("still processes siblings and other roots", func() {
			rootA := GinkgoT().TempDir()
			rootB := GinkgoT().TempDir()
			blocked := mkTTLDir(rootA, "ttl=1d", 2*ttl.Day)
			sibling := mkTTLDir(rootA, "ttl=1min", time.Hour)
			elsewhere := mkTTLDir(rootB, "ttl=1d", 2*ttl.Day)

			opts.Remove = func(path string) error {
				if path == blocked {
					return &os.PathError{Op: "unlinkat", Path: path, Err: syscall.EACCES}
				}
				return os.RemoveAll(path)
			}
			opts.Workers = 1

			summary := newCycle().Run(ctx, []string{rootA, rootB}, now)

			o, _ := outcomeFor(summary, blocked)
			Expect(o.Decision).To(Equal(DecisionFailed))
			Expect(o.Reason).To(Equal(ReasonRemoveFailed))
			Expect(errors.Is(o.Err, fs.ErrPermission)).To(BeTrue())
			Expect(blocked).To(BeADirectory())

			Expect(sibling).NotTo(BeADirectory())
			Expect(elsewhere).NotTo(BeADirectory())
			Expect(summary.Count(DecisionRemoved)).To(Equal(2))
			Expect(summary.Err()).To(MatchError(ContainSubstring(blocked)))
		})
	})

	Describe("Scenario: a watched root is unusable", func() {
		It("reports a root failure and sweeps the remaining roots", func() {
			missing := filepath.Join(GinkgoT().TempDir(), "missing")
			file := filepath.Join(GinkgoT().TempDir(), "file")
			Expect(os.WriteFile(file, nil, 0o644)).To(Succeed())
			good := GinkgoT().TempDir()
			expired := mkTTLDir(good, "ttl=5min", 10*time.Minute)

			summary := newCycle().Run(ctx, []string{missing, file, good}, now)

			for _, root := range []string{missing, file} {
				o, ok := outcomeFor(summary, root)
				Expect(ok).To(BeTrue(), root)
				Expect(o.Decision).To(Equal(DecisionFailed))
				Expect(o.Reason).To(Equal(ReasonRootUnavailable))
				Expect(o.Root).To(Equal(root))
				Expect(o.Err).To(HaveOccurred())
			}
			o, _ := outcomeFor(summary, missing)
			Expect(errors.Is(o.Err, fs.ErrNotExist)).To(BeTrue())
			o, _ = outcomeFor(summary, file)
			Expect(errors.Is(o.Err, scanner.ErrNotDirectory)).To(BeTrue())

			Expect(expired).NotTo(BeADirectory())
		})
	})

	Describe("Scenario: metadata cannot be read", func() {
		It("fails the entry on permission errors and skips it when it vanished", func() {
			root := GinkgoT().TempDir()
			denied := mkTTLDir(root, "ttl=1d", 0)
			vanished := mkTTLDir(root, "ttl=2d", 0)
			expired := mkTTLDir(root, "ttl=3d", 4*ttl.Day)
			births.errs[denied] = &os.PathError{Op: "statx", Path: denied, Err: syscall.EACCES}
			births.errs[vanished] = &os.PathError{Op: "statx", Path: vanished, Err: syscall.ENOENT}

			summary := newCycle().Run(ctx, []string{root}, now)

			o, _ := outcomeFor(summary, denied)
			Expect(o.Decision).To(Equal(DecisionFailed))
			Expect(o.Reason).To(Equal(ReasonMetadataUnavailable))
			Expect(o.Err).To(MatchError(ContainSubstring(denied)))
			Expect(denied).To(BeADirectory())

			o, _ = outcomeFor(summary, vanished)
			Expect(o.Decision).To(Equal(DecisionSkipped))
			Expect(o.Reason).To(Equal(ReasonAlreadyAbsent))

			Expect(expired).NotTo(BeADirectory())
		})
	})

	Describe("Scenario: only a modification time is available", func() {
		BeforeEach(func() {
			births.source = ttl.SourceModTime
		})

		It("carries the time source on the outcome", func() {
			root := GinkgoT().TempDir()
			path := mkTTLDir(root, "ttl=1d", 2*ttl.Day)

			summary := newCycle().Run(ctx, []string{root}, now)

			o, _ := outcomeFor(summary, path)
			Expect(o.Decision).To(Equal(DecisionRemoved))
			Expect(o.TimeSource).To(Equal(ttl.SourceModTime))
		})

		It("skips the entry when birth time is required", func() {
			root := GinkgoT().TempDir()
			path := mkTTLDir(root, "ttl=1d", 2*ttl.Day)

			s := scanner.New(scanner.Options{BirthTime: births.get, RequireBirthTime: true})
			summary := NewCycle(s, reporter, opts).Run(ctx, []string{root}, now)

			o, _ := outcomeFor(summary, path)
			Expect(o.Decision).To(Equal(DecisionSkipped))
			Expect(o.Reason).To(Equal(ReasonBirthTimeUnavailable))
			Expect(path).To(BeADirectory())
		})
	})

	Describe("Scenario: dry run", func() {
		It("reports expired directories without deleting them", func() {
			root := GinkgoT().TempDir()
			path := mkTTLDir(root, "ttl=1d", 2*ttl.Day)
			opts.DryRun = true

			summary := newCycle().Run(ctx, []string{root}, now)

			o, _ := outcomeFor(summary, path)
			Expect(o.Decision).To(Equal(DecisionSkipped))
			Expect(o.Reason).To(Equal(ReasonDryRun))
			Expect(path).To(BeADirectory())
		})
	})

	Describe("Scenario: transient removal errors", func() {
		It("retries until the removal succeeds", func() {
			root := GinkgoT().TempDir()
			path := mkTTLDir(root, "ttl=1d", 2*ttl.Day)
			calls := 0
			opts.Remove = func(p string) error {
				calls++
				if calls < 3 {
					return &os.PathError{Op: "unlinkat", Path: p, Err: syscall.ENOTEMPTY}
				}
				return os.RemoveAll(p)
			}

			summary := newCycle().Run(ctx, []string{root}, now)

			Expect(calls).To(Equal(3))
			o, _ := outcomeFor(summary, path)
			Expect(o.Decision).To(Equal(DecisionRemoved))
		})

		It("fails with the last error once retries run out", func() {
			root := GinkgoT().TempDir()
			path := mkTTLDir(root, "ttl=1d", 2*ttl.Day)
			calls := 0
			opts.Remove = func(p string) error {
				calls++
				return &os.PathError{Op: "unlinkat", Path: p, Err: syscall.EBUSY}
			}

			summary := newCycle().Run(ctx, []string{root}, now)

			Expect(calls).To(Equal(fastBackoff.Steps))
			o, _ := outcomeFor(summary, path)
			Expect(o.Decision).To(Equal(DecisionFailed))
			Expect(errors.Is(o.Err, syscall.EBUSY)).To(BeTrue())
		})

		It("does not retry permanent errors", func() {
			root := GinkgoT().TempDir()
			mkTTLDir(root, "ttl=1d", 2*ttl.Day)
			calls := 0
			opts.Remove = func(p string) error {
				calls++
				return &os.PathError{Op: "unlinkat", Path: p, Err: syscall.EPERM}
			}

			newCycle().Run(ctx, []string{root}, now)
			Expect(calls).To(Equal(1))
		})

		It("skips an entry removed by someone else mid-flight", func() {
			root := GinkgoT().TempDir()
			path := mkTTLDir(root, "ttl=1d", 2*ttl.Day)
			opts.Remove = func(p string) error {
				return &os.PathError{Op: "unlinkat", Path: p, Err: syscall.ENOENT}
			}

			summary := newCycle().Run(ctx, []string{root}, now)
			o, _ := outcomeFor(summary, path)
			Expect(o.Decision).To(Equal(DecisionSkipped))
			Expect(o.Reason).To(Equal(ReasonAlreadyAbsent))
		})
	})

	Describe("Scenario: measuring reclaimed space", func() {
		It("sizes removed directories", func() {
			root := GinkgoT().TempDir()
			path := mkTTLDir(root, "ttl=1d", 2*ttl.Day)
			Expect(os.WriteFile(filepath.Join(path, "artifact.bin"), []byte(strings.Repeat("x", 2048)), 0o644)).To(Succeed())
			opts.MeasureReclaimed = true

			cycle := newCycle()
			summary := cycle.Run(ctx, []string{root}, now)

			o, _ := outcomeFor(summary, path)
			Expect(o.Decision).To(Equal(DecisionRemoved))
			Expect(o.Reclaimed).NotTo(BeNil())
			Expect(o.Reclaimed.Value()).To(Equal(int64(2048)))
			Expect(summary.Reclaimed().Value()).To(Equal(int64(2048)))
			Expect(cycle.Reclaimed()).To(Equal(int64(2048)))
		})

		It("logs an incomplete measurement and still removes the directory", func() {
			root := GinkgoT().TempDir()
			path := mkTTLDir(root, "ttl=1d", 2*ttl.Day)
			opts.MeasureReclaimed = true
			opts.Size = func(string) (*resource.Quantity, error) {
				return resource.NewQuantity(512, resource.BinarySI), fs.ErrPermission
			}

			var (
				mu    sync.Mutex
				lines []string
			)
			logger := funcr.New(func(prefix, args string) {
				mu.Lock()
				defer mu.Unlock()
				lines = append(lines, args)
			}, funcr.Options{Verbosity: 1})

			summary := newCycle().Run(log.IntoContext(ctx, logger), []string{root}, now)

			o, _ := outcomeFor(summary, path)
			Expect(o.Decision).To(Equal(DecisionRemoved))
			Expect(o.Reclaimed.Value()).To(Equal(int64(512)))
			Expect(path).NotTo(BeADirectory())

			mu.Lock()
			defer mu.Unlock()
			Expect(lines).To(ContainElement(And(
				ContainSubstring("Reclaimed size is incomplete"),
				ContainSubstring(fs.ErrPermission.Error()),
				ContainSubstring(`"partial"="512"`),
			)))
		})
	})

	Describe("Scenario: cancellation", func() {
		It("does nothing when the context is already canceled", func() {
			root := GinkgoT().TempDir()
			path := mkTTLDir(root, "ttl=1d", 2*ttl.Day)
			canceled, cancel := context.WithCancel(ctx)
			cancel()

			summary := newCycle().Run(canceled, []string{root}, now)

			Expect(summary.Outcomes).To(BeEmpty())
			Expect(path).To(BeADirectory())
		})

		It("finishes the in-flight removal and leaves the rest for the next cycle", func() {
			root := GinkgoT().TempDir()
			for _, name := range []string{"ttl=1d", "ttl=2d", "ttl=3d"} {
				mkTTLDir(root, name, 10*ttl.Day)
			}
			running, cancel := context.WithCancel(ctx)
			defer cancel()
			opts.Remove = func(p string) error {
				cancel()
				return os.RemoveAll(p)
			}

			summary := newCycle().Run(running, []string{root}, now)

			Expect(summary.Outcomes).To(HaveLen(1))
			Expect(summary.Outcomes[0].Decision).To(Equal(DecisionRemoved))
			Expect(summary.Outcomes[0].Path).NotTo(BeADirectory())

			entries, err := os.ReadDir(root)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(2))
		})
	})

	Describe("Scenario: many roots in parallel", func() {
		It("reports every outcome exactly once", func() {
			opts.Workers = 8
			var roots []string
			for i := 0; i < 20; i++ {
				root := GinkgoT().TempDir()
				mkTTLDir(root, "ttl=1d", 2*ttl.Day)
				mkTTLDir(root, "ttl=9d", 2*ttl.Day)
				roots = append(roots, root)
			}

			summary := newCycle().Run(ctx, roots, now)

			Expect(summary.Outcomes).To(HaveLen(40))
			Expect(summary.Count(DecisionRemoved)).To(Equal(20))
			Expect(summary.Count(DecisionSkipped)).To(Equal(20))
			Expect(reporter.all()).To(HaveLen(40))
		})
	})
})

var _ = Describe("Reporters", func() {
	It("fans outcomes out in order and ignores nil entries", func() {
		var got []string
		rs := Reporters{
			ReporterFunc(func(_ context.Context, o Outcome) { got = append(got, "a:"+o.Path) }),
			nil,
			ReporterFunc(func(_ context.Context, o Outcome) { got = append(got, "b:"+o.Path) }),
		}
		rs.Report(context.Background(), Outcome{Path: "/x"})
		Expect(got).To(Equal([]string{"a:/x", "b:/x"}))
	})

	It("logs every decision without panicking", func() {
		for _, o := range []Outcome{
			{Decision: DecisionRemoved, TTL: ttl.Value{Quantity: 1, Unit: ttl.UnitDay}},
			{Decision: DecisionSkipped, Reason: ReasonNotExpired},
			{Decision: DecisionFailed, Reason: ReasonRemoveFailed, Err: errors.New("boom")},
		} {
			Expect(func() { LogReporter{}.Report(context.Background(), o) }).NotTo(Panic())
		}
	})
})
