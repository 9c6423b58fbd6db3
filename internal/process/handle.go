// Package process
// Author: momentics <momentics@gmail.com>
//
// Target process lookup and control. The handle never caches a live process:
// every mutation re-resolves the target through a short, bounded retry so a
// game that exited and relaunched is picked up under its new PID.

package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/momentics/coreparker/affinity"
	"github.com/momentics/coreparker/api"
)

// Default lookup budget.
const (
	DefaultRetryInterval = 100 * time.Millisecond
	DefaultBudget        = 500 * time.Millisecond
)

// Handle resolves and controls the target process.
type Handle struct {
	ops     api.ProcessOps
	matches []api.Match
	retry   time.Duration
	budget  time.Duration
	log     *slog.Logger
}

// Option customizes a Handle.
type Option func(*Handle)

// WithBudget sets the retry interval and the total lookup budget.
func WithBudget(retry, budget time.Duration) Option {
	return func(h *Handle) {
		if retry > 0 {
			h.retry = retry
		}
		if budget >= 0 {
			h.budget = budget
		}
	}
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handle) {
		if l != nil {
			h.log = l
		}
	}
}

// NewHandle creates a handle over ops for the given matches.
func NewHandle(ops api.ProcessOps, matches []api.Match, opts ...Option) *Handle {
	h := &Handle{
		ops:     ops,
		matches: append([]api.Match(nil), matches...),
		retry:   DefaultRetryInterval,
		budget:  DefaultBudget,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Ops exposes the underlying platform operations.
func (h *Handle) Ops() api.ProcessOps { return h.ops }

// FindTarget looks the target up, retrying until the budget is spent. The OS
// may not expose final process metadata (window title) right after launch.
func (h *Handle) FindTarget(ctx context.Context) (api.Target, bool) {
	deadline := time.Now().Add(h.budget)
	for {
		t, ok, err := h.ops.Discover(h.matches)
		if err != nil {
			h.log.Debug("process discovery failed", "err", err)
		} else if ok && !h.ops.Exited(t.PID) {
			return t, true
		}
		if !time.Now().Add(h.retry).Before(deadline) {
			return api.Target{}, false
		}
		select {
		case <-ctx.Done():
			return api.Target{}, false
		case <-time.After(h.retry):
		}
	}
}

// WaitForLaunch blocks until the target exists or ctx ends. existed reports
// whether the target was already running on the first check.
func (h *Handle) WaitForLaunch(ctx context.Context, interval time.Duration) (t api.Target, existed bool, err error) {
	first := true
	for {
		if t, ok := h.FindTarget(ctx); ok {
			return t, first, nil
		}
		if first {
			h.log.Info("waiting for the game process to launch")
			first = false
		}
		select {
		case <-ctx.Done():
			return api.Target{}, false, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// SetAffinity applies mask to a freshly resolved target.
func (h *Handle) SetAffinity(ctx context.Context, mask affinity.Mask) (api.Target, error) {
	t, ok := h.FindTarget(ctx)
	if !ok {
		return api.Target{}, api.ErrTargetNotFound
	}
	if err := h.ops.SetAffinity(t.PID, mask.Bits()); err != nil {
		return t, h.classify(t, fmt.Errorf("set affinity %s on %s: %w", mask, t, err))
	}
	return t, nil
}

// SetPriority applies p to a freshly resolved target.
func (h *Handle) SetPriority(ctx context.Context, p api.Priority) (api.Target, error) {
	t, ok := h.FindTarget(ctx)
	if !ok {
		return api.Target{}, api.ErrTargetNotFound
	}
	if err := h.ops.SetPriority(t.PID, p); err != nil {
		return t, h.classify(t, fmt.Errorf("set priority %s on %s: %w", p, t, err))
	}
	return t, nil
}

// Priority reads the priority of target t.
func (h *Handle) Priority(t api.Target) (api.Priority, error) {
	return h.ops.Priority(t.PID)
}

// IsResponsive reports whether t services its main loop. Lookup errors count
// as responsive so that a transient failure never triggers escalation.
func (h *Handle) IsResponsive(t api.Target) bool {
	ok, err := h.ops.Responsive(t.PID)
	if err != nil {
		h.log.Debug("responsiveness check failed", "target", t.String(), "err", err)
		return true
	}
	return ok
}

// HasExited reports whether t is gone.
func (h *Handle) HasExited(t api.Target) bool {
	return h.ops.Exited(t.PID)
}

// Executable returns the image path of t.
func (h *Handle) Executable(t api.Target) (string, error) {
	return h.ops.Executable(t.PID)
}

// classify turns an error from a process that exited mid-call into
// ErrTargetExited so callers treat it like a missing target.
func (h *Handle) classify(t api.Target, err error) error {
	if h.ops.Exited(t.PID) && !errors.Is(err, api.ErrTargetExited) {
		return fmt.Errorf("%w: %v", api.ErrTargetExited, err)
	}
	return err
}

// Gone reports whether err means the target was absent or exited.
func Gone(err error) bool {
	return errors.Is(err, api.ErrTargetNotFound) || errors.Is(err, api.ErrTargetExited)
}
