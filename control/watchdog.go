// File: control/watchdog.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Responsiveness watchdog. While a load is in progress and the game stops
// responding, the game is raised to realtime priority and kept there until
// the load ends or the process disappears.

package control

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/momentics/coreparker/api"
)

// DefaultWatchdogInterval is the poll period of the watchdog and of the
// reassertion loop.
const DefaultWatchdogInterval = 200 * time.Millisecond

// DefaultHangSamples is the number of consecutive unresponsive polls that
// trigger an escalation.
const DefaultHangSamples = 3

// LoadTracker exposes the load state to the watchdog.
type LoadTracker interface {
	Loading() bool
	ForceIdle() State
}

// Watchdog escalates a hung game during loads.
type Watchdog struct {
	proc     ProcessHandle
	loads    LoadTracker
	interval time.Duration
	samples  int
	metrics  *Metrics
	log      *slog.Logger
	warn     *rate.Limiter

	// hung counts consecutive unresponsive polls; only Tick touches it.
	hung int

	realtime atomic.Bool
	// gen identifies the current escalation; a reassertion loop exits once
	// it no longer matches.
	gen atomic.Uint64
	// mu serializes priority writes between Tick and the reassertion loop.
	mu sync.Mutex
	wg sync.WaitGroup
}

// WatchdogOption customizes a Watchdog.
type WatchdogOption func(*Watchdog)

// WithInterval sets the poll period.
func WithInterval(d time.Duration) WatchdogOption {
	return func(w *Watchdog) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithHangSamples sets how many consecutive unresponsive polls escalate.
// Short I/O waits during a load look hung to a single sample.
func WithHangSamples(n int) WatchdogOption {
	return func(w *Watchdog) {
		if n > 0 {
			w.samples = n
		}
	}
}

// WithWatchdogMetrics attaches collectors.
func WithWatchdogMetrics(m *Metrics) WatchdogOption {
	return func(w *Watchdog) {
		if m != nil {
			w.metrics = m
		}
	}
}

// WithWatchdogLogger sets the diagnostics logger.
func WithWatchdogLogger(l *slog.Logger) WatchdogOption {
	return func(w *Watchdog) {
		if l != nil {
			w.log = l
		}
	}
}

// NewWatchdog creates a watchdog over proc observing loads.
func NewWatchdog(proc ProcessHandle, loads LoadTracker, opts ...WatchdogOption) *Watchdog {
	w := &Watchdog{
		proc:     proc,
		loads:    loads,
		interval: DefaultWatchdogInterval,
		samples:  DefaultHangSamples,
		log:      slog.Default(),
		warn:     rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.metrics == nil {
		w.metrics = NewMetrics(nil)
	}
	return w
}

// Realtime reports whether the game is currently escalated by us.
func (w *Watchdog) Realtime() bool {
	return w.realtime.Load()
}

// Run polls until ctx ends, then waits for the reassertion loop.
func (w *Watchdog) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer w.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one watchdog iteration. It must not be called concurrently.
func (w *Watchdog) Tick(ctx context.Context) {
	loading := w.loads.Loading()
	escalated := w.realtime.Load()

	if !loading {
		w.hung = 0
	}

	switch {
	case loading && !escalated:
		t, ok := w.proc.FindTarget(ctx)
		if !ok || w.proc.IsResponsive(t) {
			w.hung = 0
			return
		}
		w.hung++
		if w.hung < w.samples {
			w.log.Debug("game unresponsive during load", "target", t.String(), "samples", w.hung)
			return
		}
		w.hung = 0
		if _, err := w.proc.SetPriority(ctx, api.PriorityRealtime); err != nil {
			w.log.Error("failed to escalate unresponsive game", "target", t.String(), "err", err)
			return
		}
		w.setRealtime(true)
		w.metrics.Escalations.Inc()
		w.log.Warn("game unresponsive during load, raised to realtime priority", "target", t.String())
		w.startReassert(ctx)

	case loading && escalated:
		if t, ok := w.proc.FindTarget(ctx); ok && !w.proc.HasExited(t) {
			return
		}
		w.setRealtime(false)
		w.loads.ForceIdle()
		w.metrics.CrashResets.Inc()
		w.log.Error("game process disappeared during an escalated load, resetting to idle")

	case !loading && escalated:
		w.mu.Lock()
		t, err := w.proc.SetPriority(ctx, api.PriorityNormal)
		if err != nil && !isGone(err) {
			w.mu.Unlock()
			w.log.Error("failed to restore normal priority, will retry", "err", err)
			return
		}
		w.setRealtime(false)
		w.mu.Unlock()
		w.log.Info("load finished, restored normal priority", "target", t.String())
	}
}

func (w *Watchdog) setRealtime(v bool) {
	w.realtime.Store(v)
	w.gen.Add(1)
	boolGauge(w.metrics.Realtime, v)
}

func (w *Watchdog) startReassert(ctx context.Context) {
	gen := w.gen.Load()
	w.wg.Add(1)
	go w.reassert(ctx, gen)
}

// reassert restores realtime priority whenever something else lowers it.
func (w *Watchdog) reassert(ctx context.Context, gen uint64) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if w.gen.Load() != gen || !w.realtime.Load() || !w.loads.Loading() {
			return
		}
		t, ok := w.proc.FindTarget(ctx)
		if !ok {
			continue
		}
		p, err := w.proc.Priority(t)
		if err != nil || p == api.PriorityRealtime {
			continue
		}
		w.mu.Lock()
		if w.gen.Load() != gen {
			w.mu.Unlock()
			return
		}
		_, err = w.proc.SetPriority(ctx, api.PriorityRealtime)
		w.mu.Unlock()
		if err != nil {
			w.log.Error("failed to reassert realtime priority", "target", t.String(), "err", err)
			continue
		}
		w.metrics.Reassertions.Inc()
		if w.warn.Allow() {
			w.log.Warn("priority was reset externally, restored realtime", "target", t.String(), "was", p.String())
		}
	}
}
