// File: cmd/coreparker/daemon.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Daemon wiring: topology, process handle, log tailer, controller, watchdog
// and the operator input, supervised by one errgroup.

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/coreparker/affinity"
	"github.com/momentics/coreparker/api"
	"github.com/momentics/coreparker/control"
	"github.com/momentics/coreparker/internal/config"
	"github.com/momentics/coreparker/internal/diag"
	"github.com/momentics/coreparker/internal/gamedir"
	"github.com/momentics/coreparker/internal/process"
)

type daemon struct {
	cfg      config.Config
	ops      api.ProcessOps
	prober   api.MaskProber
	reported int
	stdin    io.Reader // nil disables operator input
	reg      *prometheus.Registry
	log      *slog.Logger
}

// resolveTopology probes the usable core count. Failure is fatal.
func resolveTopology(ctx context.Context, p api.MaskProber, reported int, log *slog.Logger) (affinity.Topology, error) {
	topo, err := affinity.ResolveCount(p, reported)
	if err != nil {
		diag.Critical(ctx, log, "could not determine a usable core mask", "reported", reported, "err", err)
		return topo, err
	}
	if topo.Cores != reported {
		log.Warn("OS-reported core count rejected, using probed count", "reported", reported, "cores", topo.Cores)
	}
	log.Info("core topology resolved", "cores", topo.Cores, "mask", topo.Full.String())
	return topo, nil
}

func (d *daemon) run(ctx context.Context) error {
	cfg, log := d.cfg, d.log

	topo, err := resolveTopology(ctx, d.prober, d.reported, log)
	if err != nil {
		return err
	}
	park := cfg.ParkCores
	if park >= topo.Cores {
		log.Error("park count leaves no core enabled, clamping", "requested", park, "cores", topo.Cores)
		park = topo.ClampPark(park)
	}

	// NewMetrics skips registration only for a nil interface.
	var reg prometheus.Registerer
	if d.reg != nil {
		reg = d.reg
	}
	metrics := control.NewMetrics(reg)
	tunable := control.NewTunable(park, topo.Cores)
	metrics.BindTunable(tunable)

	handle := process.NewHandle(d.ops, cfg.Targets,
		process.WithBudget(cfg.DiscoveryRetry, cfg.DiscoveryBudget),
		process.WithLogger(log))
	ctrl := control.NewController(handle, topo, tunable,
		control.WithIdlePark(cfg.IdleParkCores),
		control.WithMetrics(metrics),
		control.WithControllerLogger(log))
	watchdog := control.NewWatchdog(handle, ctrl,
		control.WithInterval(cfg.WatchdogInterval),
		control.WithHangSamples(cfg.HangSamples),
		control.WithWatchdogMetrics(metrics),
		control.WithWatchdogLogger(log))
	probes := control.NewDebugProbes()
	control.RegisterStateProbes(probes, ctrl, tunable, watchdog)
	defer func() {
		log.Info("shutting down", "state", probes.DumpState())
	}()

	log.Info("waiting for the game", "targets", cfg.Targets)
	target, existed, err := handle.WaitForLaunch(ctx, cfg.LaunchPollInterval)
	if err != nil {
		return ignoreCancel(err)
	}
	log.Info("game found", "target", target.String(), "already_running", existed)

	exe, err := handle.Executable(target)
	if err != nil {
		log.Error("could not read the game executable path", "target", target.String(), "err", err)
	}
	follow := &follower{
		gameDir:    gamedir.Dir(exe, cfg.FallbackGameDir, log),
		logDir:     cfg.LogDir,
		candidates: cfg.LogFiles,
		poll:       cfg.TailPollInterval,
		retry:      cfg.LaunchPollInterval,
		log:        log,
	}
	probes.RegisterProbe("log.path", func() any { return follow.Path() })
	probes.RegisterProbe("log.delivered", func() any { return follow.Delivered() })
	if d.reg != nil {
		d.reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "coreparker",
			Subsystem: "tail",
			Name:      "skipped_lines_total",
			Help:      "Log lines dropped by the tailer: blank, longer than the line limit, or unterminated past the pending limit.",
		}, func() float64 { return float64(follow.Skipped()) }))
	}
	tailer, err := follow.open(ctx)
	if err != nil {
		return ignoreCancel(err)
	}

	ctrl.Prime(ctx, existed)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return follow.run(gctx, tailer, ctrl) })
	g.Go(func() error { return watchdog.Run(gctx) })
	if d.stdin != nil && cfg.StdinTunable {
		in := control.NewTunableInput(d.stdin, tunable, log)
		g.Go(func() error { return in.Run(gctx) })
	}
	if d.reg != nil && cfg.MetricsAddr != "" {
		h := control.NewHTTPHandler(d.reg, probes)
		g.Go(func() error {
			if err := control.Serve(gctx, cfg.MetricsAddr, h, log); err != nil {
				log.Error("metrics server stopped", "addr", cfg.MetricsAddr, "err", err)
			}
			return nil
		})
	}
	return ignoreCancel(g.Wait())
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
