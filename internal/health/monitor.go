// Package health tracks gateway readiness and exposes it over HTTP and gRPC.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultProbeInterval is how often dependencies are probed.
	DefaultProbeInterval = 30 * time.Second

	probeTimeout = 5 * time.Second
)

// Pinger is a dependency whose reachability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor probes a dependency periodically and remembers the last outcome.
type Monitor struct {
	pinger   Pinger
	interval time.Duration
	logger   *slog.Logger

	ready atomic.Bool

	mu        sync.Mutex
	listeners []func(ready bool)
}

// NewMonitor creates a monitor. It reports not ready until the first probe passes.
func NewMonitor(p Pinger, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{pinger: p, interval: interval, logger: logger}
}

// OnChange registers fn to be called whenever readiness flips, and once
// immediately with the current state.
func (m *Monitor) OnChange(fn func(ready bool)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
	fn(m.ready.Load())
}

// Ready reports the outcome of the last probe.
func (m *Monitor) Ready() bool {
	return m.ready.Load()
}

// Run probes immediately and then on every tick until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Probe(ctx)
	for {
		select {
		case <-ticker.C:
			m.Probe(ctx)
		case <-ctx.Done():
			m.set(false)
			return nil
		}
	}
}

// Probe runs a single check and updates readiness.
func (m *Monitor) Probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	err := m.pinger.Ping(ctx)
	if err != nil {
		m.logger.Warn("Readiness probe failed", "error", err)
	}
	m.set(err == nil)
}

func (m *Monitor) set(ready bool) {
	if m.ready.Swap(ready) == ready {
		return
	}
	m.logger.Info("Readiness changed", "ready", ready)

	m.mu.Lock()
	listeners := append([]func(bool){}, m.listeners...)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(ready)
	}
}

// ServeHTTP answers readiness checks: 200 when ready, 503 otherwise.
func (m *Monitor) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if m.Ready() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}` + "\n"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte(`{"status":"not_ready"}` + "\n"))
}
