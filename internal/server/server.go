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

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
	"sigs.k8s.io/controller-runtime/pkg/log"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	// DefaultTriggerRate is the sustained rate of accepted POST /sweep calls.
	DefaultTriggerRate = rate.Limit(1)

	// DefaultTriggerBurst is how many triggers may arrive at once.
	DefaultTriggerBurst = 5

	maxBodyBytes = 64 << 10

	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Sweeper is the part of the scheduler the server drives.
type Sweeper interface {
	// Trigger requests an immediate cycle and reports whether it was queued.
	Trigger() bool
	// LastRun returns the start time of the most recent cycle.
	LastRun() (time.Time, bool)
}

// Server serves health, readiness, metrics and the trigger endpoint.
type Server struct {
	addr          string
	sweeper       Sweeper
	triggerSecret string
	limiter       *rate.Limiter
	gatherer      prometheus.Gatherer
	server        *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimit overrides the trigger rate limit.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(s *Server) {
		s.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithGatherer serves metrics from g instead of the controller-runtime
// registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// NewServer creates a server listening on addr.
func NewServer(addr string, sweeper Sweeper, triggerSecret string, opts ...Option) *Server {
	s := &Server{
		addr:          addr,
		sweeper:       sweeper,
		triggerSecret: triggerSecret,
		limiter:       rate.NewLimiter(DefaultTriggerRate, DefaultTriggerBurst),
		gatherer:      ctrlmetrics.Registry,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routes served by the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/sweep", s.handleSweep)
	return mux
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	logger := log.FromContext(ctx)

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("http server on %s: %w", s.addr, err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	log.FromContext(ctx).Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if _, ok := s.sweeper.LastRun(); !ok {
		http.Error(w, "no cleanup cycle has run yet", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context())

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		logger.Error(err, "Failed to read request body")
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	defer func() { _ = r.Body.Close() }()

	if s.triggerSecret != "" && !ValidateSignature(payload, r.Header.Get(SignatureHeader), s.triggerSecret) {
		logger.Info("Invalid trigger signature", "remote", r.RemoteAddr)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	if !s.limiter.Allow() {
		logger.Info("Trigger rate limit exceeded", "remote", r.RemoteAddr)
		http.Error(w, "Too many requests", http.StatusTooManyRequests)
		return
	}

	if s.sweeper.Trigger() {
		logger.Info("Cleanup cycle triggered", "remote", r.RemoteAddr)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("queued"))
		return
	}
	logger.V(1).Info("Cleanup cycle already pending", "remote", r.RemoteAddr)
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte("pending"))
}
