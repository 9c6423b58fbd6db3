package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2, cfg.ParkCores)
	assert.Equal(t, 1, cfg.IdleParkCores)
	assert.Equal(t, 200*time.Millisecond, cfg.WatchdogInterval)
	assert.Equal(t, 3, cfg.HangSamples)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	yml := filepath.Join(dir, "coreparker.yaml")
	require.NoError(t, os.WriteFile(yml, []byte(`
park_cores: 3
watchdog_interval: 150ms
log_files: [Client.txt]
targets:
  - title: Path of Exile
    name: PathOfExile
`), 0o600))

	t.Setenv("COREPARKER_PARK_CORES", "4")

	cfg, err := Load(yml, "")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.ParkCores, "environment wins over file")
	assert.Equal(t, 150*time.Millisecond, cfg.WatchdogInterval)
	assert.Equal(t, []string{"Client.txt"}, cfg.LogFiles)
	require.Len(t, cfg.Targets, 1)
	assert.Equal(t, "Path of Exile", cfg.Targets[0].Title)
	assert.Equal(t, 1, cfg.IdleParkCores, "unset keys keep defaults")
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(env, []byte("COREPARKER_IDLE_PARK_CORES=0\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("COREPARKER_IDLE_PARK_CORES") })

	cfg, err := Load("", env)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.IdleParkCores)
}

func TestLoad_MissingDotEnvIgnored(t *testing.T) {
	_, err := Load("", filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
}

func TestLoad_MissingYAMLFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), "")
	require.Error(t, err)
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("COREPARKER_PARK_CORES", "two")
	_, err := Load("", "")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
		want error
	}{
		{"negative park", func(c *Config) { c.ParkCores = -1 }, ErrInvalidParkCores},
		{"negative idle", func(c *Config) { c.IdleParkCores = -1 }, ErrInvalidIdleCores},
		{"zero poll", func(c *Config) { c.TailPollInterval = 0 }, ErrInvalidInterval},
		{"budget", func(c *Config) { c.DiscoveryBudget = time.Millisecond }, ErrBudgetBelowInterval},
		{"hang samples", func(c *Config) { c.HangSamples = 0 }, ErrInvalidHangSamples},
		{"targets", func(c *Config) { c.Targets = nil }, ErrNoTargets},
		{"logs", func(c *Config) { c.LogFiles = nil }, ErrNoLogFiles},
		{"format", func(c *Config) { c.LogFormat = "xml" }, ErrInvalidLogFormat},
		{"level", func(c *Config) { c.LogLevel = "chatty" }, ErrInvalidLogLevel},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mut(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tc.want)
		})
	}
}
