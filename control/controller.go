// File: control/controller.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Load-state machine. Loading parks the configured number of low cores;
// Idle parks the baseline count. The intended state always advances, even
// when the game cannot be found, so the next successful lookup converges.

package control

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/momentics/coreparker/affinity"
	"github.com/momentics/coreparker/api"
)

// ProcessHandle is the process surface used by the controller and watchdog.
// Implementations re-resolve the target on every call.
type ProcessHandle interface {
	FindTarget(ctx context.Context) (api.Target, bool)
	SetAffinity(ctx context.Context, mask affinity.Mask) (api.Target, error)
	SetPriority(ctx context.Context, p api.Priority) (api.Target, error)
	Priority(t api.Target) (api.Priority, error)
	IsResponsive(t api.Target) bool
	HasExited(t api.Target) bool
}

// Controller owns the load state and applies the matching affinity mask.
type Controller struct {
	proc     ProcessHandle
	topo     affinity.Topology
	park     *Tunable
	idlePark int
	state    atomic.Int32
	metrics  *Metrics
	log      *slog.Logger
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithIdlePark sets how many cores stay parked outside loads.
func WithIdlePark(n int) ControllerOption {
	return func(c *Controller) {
		c.idlePark = n
	}
}

// WithMetrics attaches collectors.
func WithMetrics(m *Metrics) ControllerOption {
	return func(c *Controller) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithControllerLogger sets the diagnostics logger.
func WithControllerLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// DefaultIdlePark keeps one core parked permanently as a baseline.
const DefaultIdlePark = 1

// NewController creates an Idle controller.
func NewController(proc ProcessHandle, topo affinity.Topology, park *Tunable, opts ...ControllerOption) *Controller {
	c := &Controller{
		proc:     proc,
		topo:     topo,
		park:     park,
		idlePark: DefaultIdlePark,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	c.idlePark = topo.ClampPark(c.idlePark)
	return c
}

// State returns the current intended state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Loading reports whether a load is in progress.
func (c *Controller) Loading() bool {
	return c.State() == StateLoading
}

// Topology returns the core layout masks are built from.
func (c *Controller) Topology() affinity.Topology {
	return c.topo
}

// Mask returns the mask applied in state s with the current tunable.
func (c *Controller) Mask(s State) affinity.Mask {
	if s == StateLoading {
		return c.topo.Parked(c.park.Get())
	}
	return c.topo.Parked(c.idlePark)
}

// Prime covers the load that precedes the first log line: when the game was
// launched after us, park cores right away and assume Loading.
func (c *Controller) Prime(ctx context.Context, existedAtStart bool) {
	if existedAtStart {
		return
	}
	c.enter(ctx, StateLoading, "startup")
}

// Handle reacts to one transition event.
func (c *Controller) Handle(ctx context.Context, ev api.Event) {
	switch ev {
	case api.EventEngineInit, api.EventLoadStart:
		c.enter(ctx, StateLoading, ev.String())
	case api.EventLoadEnd:
		c.enter(ctx, StateIdle, ev.String())
	default:
		return
	}
	c.metrics.Transitions.WithLabelValues(ev.String()).Inc()
}

// ForceIdle drops the load state without touching the process. Used when the
// game vanished mid-load.
func (c *Controller) ForceIdle() State {
	prev := State(c.state.Swap(int32(StateIdle)))
	c.metrics.LoadState.Set(0)
	return prev
}

func (c *Controller) enter(ctx context.Context, next State, reason string) {
	prev := State(c.state.Swap(int32(next)))
	boolGauge(c.metrics.LoadState, next == StateLoading)
	mask := c.Mask(next)
	c.log.Info("load state transition",
		"from", prev.String(), "to", next.String(), "reason", reason, "mask", mask.String())
	c.apply(ctx, next, mask)
}

func (c *Controller) apply(ctx context.Context, s State, mask affinity.Mask) {
	t, err := c.proc.SetAffinity(ctx, mask)
	switch {
	case err == nil:
		c.metrics.MaskApplied.WithLabelValues(s.String(), resultOK).Inc()
		if s == StateLoading {
			c.log.Info("parked cores", "mask", mask.String(), "parked", mask.Parked(), "target", t.String())
		} else {
			c.log.Info("unparked cores", "mask", mask.String(), "parked", mask.Parked(), "target", t.String())
		}
	case isGone(err):
		c.metrics.MaskApplied.WithLabelValues(s.String(), resultNotFound).Inc()
		c.metrics.LookupFailures.Inc()
		c.log.Error("could not find the game process to apply the mask", "state", s.String(), "mask", mask.String())
	default:
		c.metrics.MaskApplied.WithLabelValues(s.String(), resultError).Inc()
		c.log.Error("failed to apply affinity mask", "state", s.String(), "mask", mask.String(), "err", err)
	}
}

func isGone(err error) bool {
	return errors.Is(err, api.ErrTargetNotFound) || errors.Is(err, api.ErrTargetExited)
}
