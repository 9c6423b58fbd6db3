// File: cmd/coreparker/root.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/momentics/coreparker/affinity"
	"github.com/momentics/coreparker/internal/config"
	"github.com/momentics/coreparker/internal/diag"
	"github.com/momentics/coreparker/internal/process"
)

type rootFlags struct {
	configPath  string
	envFile     string
	park        int
	idlePark    int
	metricsAddr string
	logLevel    string
	logFormat   string
	noStdin     bool
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&rootFlags{})
}

func newRootCmdWith(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "coreparker",
		Short:         "Park CPU cores of the game during load screens",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd, f)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runRoot(ctx, cfg, log)
		},
	}
	cmd.SetContext(context.Background())

	pf := cmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "path to a YAML configuration file")
	pf.StringVar(&f.envFile, "env-file", ".env", "dotenv file loaded before the environment")
	pf.StringVar(&f.logLevel, "log-level", "", "diagnostics level: debug, info, warn, error, critical")
	pf.StringVar(&f.logFormat, "log-format", "", "diagnostics format: auto, text, json")
	pf.IntVar(&f.park, "park", 0, "cores to park during loads")
	pf.IntVar(&f.idlePark, "idle-park", 0, "cores to park outside loads")

	fl := cmd.Flags()
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "serve /metrics and /debug/state on this address")
	fl.BoolVar(&f.noStdin, "no-stdin", false, "do not read park counts from standard input")

	cmd.AddCommand(newTopologyCmd(f))
	return cmd
}

// loadConfig layers flags that were set explicitly over the file and
// environment configuration.
func loadConfig(cmd *cobra.Command, f *rootFlags) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(f.configPath, f.envFile)
	if err != nil {
		return cfg, nil, err
	}
	changed := func(name string) bool {
		fl := cmd.Flags().Lookup(name)
		return fl != nil && fl.Changed
	}
	if changed("park") {
		cfg.ParkCores = f.park
	}
	if changed("idle-park") {
		cfg.IdleParkCores = f.idlePark
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("log-format") {
		cfg.LogFormat = f.logFormat
	}
	if changed("no-stdin") {
		cfg.StdinTunable = !f.noStdin
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, fmt.Errorf("config: %w", err)
	}
	level, _ := diag.ParseLevel(cfg.LogLevel)
	log := diag.New(os.Stderr, level, cfg.LogFormat)
	slog.SetDefault(log)
	return cfg, log, nil
}

func runRoot(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	ops, err := process.NewOS()
	if err != nil {
		diag.Critical(ctx, log, "process control unavailable", "err", err)
		return err
	}
	var reg *prometheus.Registry
	if cfg.MetricsAddr != "" {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	d := &daemon{
		cfg:      cfg,
		ops:      ops,
		prober:   affinity.OSProber{},
		reported: affinity.ReportedCores(),
		stdin:    os.Stdin,
		reg:      reg,
		log:      log,
	}
	return d.run(ctx)
}
