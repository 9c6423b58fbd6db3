// Package config
// Author: momentics <momentics@gmail.com>
//
// Layered configuration: built-in defaults, optional YAML file, optional .env
// file and COREPARKER_* environment variables, in increasing precedence.
// CLI flags are applied on top by cmd/coreparker.

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/momentics/coreparker/api"
	"github.com/momentics/coreparker/internal/diag"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "COREPARKER"

// DefaultFallbackGameDir is used when the game executable cannot be located.
const DefaultFallbackGameDir = `C:\Program Files (x86)\Grinding Gear Games\Path of Exile 2`

// Config validation errors
var (
	ErrInvalidParkCores    = errors.New("park_cores must not be negative")
	ErrInvalidIdleCores    = errors.New("idle_park_cores must not be negative")
	ErrInvalidInterval     = errors.New("intervals must be positive")
	ErrNoTargets           = errors.New("targets cannot be empty")
	ErrNoLogFiles          = errors.New("log_files cannot be empty")
	ErrInvalidLogFormat    = errors.New("log_format must be auto, text or json")
	ErrInvalidLogLevel     = errors.New("log_level must be debug, info, warn, error or critical")
	ErrBudgetBelowInterval = errors.New("discovery_budget must be at least discovery_retry")
	ErrInvalidHangSamples  = errors.New("hang_samples must be at least 1")
)

// Config holds every tunable of the daemon.
type Config struct {
	ParkCores     int `yaml:"park_cores" envconfig:"PARK_CORES"`
	IdleParkCores int `yaml:"idle_park_cores" envconfig:"IDLE_PARK_CORES"`

	TailPollInterval   time.Duration `yaml:"tail_poll_interval" envconfig:"TAIL_POLL_INTERVAL"`
	WatchdogInterval   time.Duration `yaml:"watchdog_interval" envconfig:"WATCHDOG_INTERVAL"`
	DiscoveryBudget    time.Duration `yaml:"discovery_budget" envconfig:"DISCOVERY_BUDGET"`
	DiscoveryRetry     time.Duration `yaml:"discovery_retry" envconfig:"DISCOVERY_RETRY"`
	LaunchPollInterval time.Duration `yaml:"launch_poll_interval" envconfig:"LAUNCH_POLL_INTERVAL"`

	// HangSamples is how many consecutive unresponsive watchdog polls
	// trigger an escalation.
	HangSamples int `yaml:"hang_samples" envconfig:"HANG_SAMPLES"`

	FallbackGameDir string      `yaml:"fallback_game_dir" envconfig:"FALLBACK_GAME_DIR"`
	LogDir          string      `yaml:"log_dir" envconfig:"LOG_DIR"`
	LogFiles        []string    `yaml:"log_files" envconfig:"LOG_FILES"`
	Targets         []api.Match `yaml:"targets" ignored:"true"`

	LogLevel     string `yaml:"log_level" envconfig:"LOG_LEVEL"`
	LogFormat    string `yaml:"log_format" envconfig:"LOG_FORMAT"`
	MetricsAddr  string `yaml:"metrics_addr" envconfig:"METRICS_ADDR"`
	StdinTunable bool   `yaml:"stdin_tunable" envconfig:"STDIN_TUNABLE"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ParkCores:          2,
		IdleParkCores:      1,
		TailPollInterval:   20 * time.Millisecond,
		WatchdogInterval:   200 * time.Millisecond,
		DiscoveryBudget:    500 * time.Millisecond,
		DiscoveryRetry:     100 * time.Millisecond,
		LaunchPollInterval: time.Second,
		HangSamples:        3,
		FallbackGameDir:    DefaultFallbackGameDir,
		LogDir:             "logs",
		LogFiles:           []string{"client.txt", "KakaoClient.txt"},
		Targets:            []api.Match{{Title: "Path of Exile 2", Name: "PathOfExile"}},
		LogLevel:           "info",
		LogFormat:          diag.FormatAuto,
		StdinTunable:       true,
	}
}

// Load builds the configuration. yamlPath and envFile may be empty; a missing
// envFile is not an error, a missing yamlPath is.
func Load(yamlPath, envFile string) (Config, error) {
	cfg := Default()
	if yamlPath != "" {
		raw, err := os.ReadFile(yamlPath)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", yamlPath, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", yamlPath, err)
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("config: environment: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.ParkCores < 0 {
		return ErrInvalidParkCores
	}
	if c.IdleParkCores < 0 {
		return ErrInvalidIdleCores
	}
	for _, d := range []time.Duration{c.TailPollInterval, c.WatchdogInterval, c.DiscoveryBudget, c.DiscoveryRetry, c.LaunchPollInterval} {
		if d <= 0 {
			return ErrInvalidInterval
		}
	}
	if c.HangSamples < 1 {
		return ErrInvalidHangSamples
	}
	if c.DiscoveryBudget < c.DiscoveryRetry {
		return ErrBudgetBelowInterval
	}
	if len(c.Targets) == 0 {
		return ErrNoTargets
	}
	if len(c.LogFiles) == 0 {
		return ErrNoLogFiles
	}
	switch c.LogFormat {
	case diag.FormatAuto, diag.FormatText, diag.FormatJSON:
	default:
		return ErrInvalidLogFormat
	}
	if _, err := diag.ParseLevel(c.LogLevel); err != nil {
		return ErrInvalidLogLevel
	}
	return nil
}
