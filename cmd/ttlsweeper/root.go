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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	sweeperv1alpha1 "github.com/mikelane/ttlsweeper/api/v1alpha1"
	"github.com/mikelane/ttlsweeper/internal/cleanup"
	"github.com/mikelane/ttlsweeper/internal/config"
	"github.com/mikelane/ttlsweeper/internal/events"
	"github.com/mikelane/ttlsweeper/internal/metrics"
	"github.com/mikelane/ttlsweeper/internal/scanner"
	"github.com/mikelane/ttlsweeper/internal/server"
)

const defaultConfigPath = "config.yaml"

// errCycleFailed is returned in --once mode when any directory could not be
// cleaned up.
var errCycleFailed = errors.New("cleanup cycle finished with failures")

type rootOptions struct {
	configPath string
	once       bool
	dryRun     bool
	zap        zap.Options
}

// NewRootCommand builds the ttlsweeper command line.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{
		zap: zap.Options{
			Development: false,
			TimeEncoder: zapcore.ISO8601TimeEncoder,
		},
	}

	cmd := &cobra.Command{
		Use:   "ttlsweeper",
		Short: "Remove directories whose ttl= suffix has expired",
		Long: `ttlsweeper watches a set of root directories and deletes every immediate
subdirectory whose name ends in ttl=<n><unit> once that much time has passed
since the directory was created. Units are min, d, m (30 days) and y (365 days).`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, cmd.Flags().Changed("dry-run"))
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "Path to the SweeperConfiguration file.")
	flags.BoolVar(&opts.once, "once", false, "Run a single cleanup cycle and exit. Exits non-zero if any directory failed.")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "Report expired directories without deleting them. Overrides the config file.")

	goflags := flag.NewFlagSet("zap", flag.ContinueOnError)
	opts.zap.BindFlags(goflags)
	flags.AddGoFlagSet(goflags)

	return cmd
}

func run(ctx context.Context, opts *rootOptions, dryRunSet bool) error {
	logger := zap.New(zap.UseFlagOptions(&opts.zap))
	ctrl.SetLogger(logger)
	ctx = log.IntoContext(ctx, logger)

	cfg, err := config.Load(ctx, opts.configPath)
	if err != nil {
		return err
	}
	if dryRunSet {
		cfg.DryRun = opts.dryRun
	}

	reporters := cleanup.Reporters{cleanup.LogReporter{}, metrics.Reporter{}}
	if recorder := newEventRecorder(ctx, cfg); recorder != nil {
		reporters = append(reporters, recorder)
	}

	cycle := cleanup.NewCycle(
		scanner.New(scanner.Options{RequireBirthTime: cfg.RequireBirthTime}),
		reporters,
		cleanup.Options{
			Workers:          cfg.Workers,
			DryRun:           cfg.DryRun,
			MeasureReclaimed: cfg.MeasureReclaimed,
		},
	)
	scheduler := cleanup.NewScheduler(cycle, cfg.PathsToWatch, cfg.Interval.Duration,
		cleanup.WithCycleObserver(metrics.ObserveCycle))

	logger.Info("Starting ttlsweeper",
		"config", opts.configPath,
		"paths", cfg.PathsToWatch,
		"interval", cfg.Interval.Duration,
		"dryRun", cfg.DryRun,
		"once", opts.once)

	if opts.once {
		summary := scheduler.RunOnce(ctx)
		if n := summary.Count(cleanup.DecisionFailed); n > 0 {
			return fmt.Errorf("%w: %d failed", errCycleFailed, n)
		}
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.Start(ctx)
	})
	if cfg.ServerEnabled() {
		srv := server.NewServer(cfg.BindAddress, scheduler, cfg.TriggerSecret)
		g.Go(func() error {
			return srv.Start(ctx)
		})
	}
	g.Go(func() error {
		err := config.Watch(ctx, opts.configPath, func(next *sweeperv1alpha1.SweeperConfiguration) {
			scheduler.SetRoots(next.PathsToWatch)
		})
		if err != nil {
			logger.Error(err, "Config reload disabled")
		}
		return nil
	})

	return g.Wait()
}

// newEventRecorder returns nil when events are disabled or no cluster
// credentials are available.
func newEventRecorder(ctx context.Context, cfg *sweeperv1alpha1.SweeperConfiguration) *events.Recorder {
	if cfg.Events.NodeName == "" {
		return nil
	}
	logger := log.FromContext(ctx).WithValues("node", cfg.Events.NodeName)

	restConfig, err := ctrl.GetConfig()
	if err != nil {
		logger.Error(err, "Event recording disabled: no cluster credentials")
		return nil
	}
	c, err := client.New(restConfig, client.Options{Scheme: clientgoscheme.Scheme})
	if err != nil {
		logger.Error(err, "Event recording disabled: failed to create client")
		return nil
	}

	logger.Info("Recording events", "namespace", cfg.Events.Namespace)
	return events.NewRecorder(c, cfg.Events.NodeName, cfg.Events.Namespace)
}
