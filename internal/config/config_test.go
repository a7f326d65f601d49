package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 3030, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1:3030", cfg.Address())
	assert.Equal(t, 200*time.Millisecond, cfg.Watch.Interval)
	assert.Equal(t, []string{"target", ".git"}, cfg.Watch.Exclude)
	assert.Equal(t, ChecksumAdler32, cfg.Watch.Checksum)
	assert.False(t, cfg.Watch.Notify)
	assert.Equal(t, "cargo", cfg.Build.Command)
	assert.Equal(t, "wasm32-unknown-unknown", cfg.Build.Target)
	assert.Equal(t, "debug", cfg.Build.Profile)
	assert.Zero(t, cfg.Build.Timeout)
	assert.False(t, cfg.Build.ExitOnFailure)
	assert.True(t, cfg.Development.LiveReload)
	assert.Equal(t, 3, cfg.Prompt.Attempts)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".wasmreload.yml")
	content := `
server:
  host: localhost
  port: 8080
watch:
  interval: 500ms
  exclude: [target, .git, node_modules]
  checksum: XXHash
  notify: true
build:
  profile: release
  timeout: 2m
  exit_on_failure: true
development:
  live_reload: false
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.Address())
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Interval)
	assert.Equal(t, []string{"target", ".git", "node_modules"}, cfg.Watch.Exclude)
	assert.Equal(t, ChecksumXXHash, cfg.Watch.Checksum)
	assert.True(t, cfg.Watch.Notify)
	assert.Equal(t, "release", cfg.Build.Profile)
	assert.Equal(t, 2*time.Minute, cfg.Build.Timeout)
	assert.True(t, cfg.Build.ExitOnFailure)
	assert.False(t, cfg.Development.LiveReload)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadWithEnvironment(t *testing.T) {
	t.Setenv("WASMRELOAD_SERVER_PORT", "9090")
	t.Setenv("WASMRELOAD_DEVELOPMENT_LIVE_RELOAD", "false")

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(EnvKeyReplacer())
	v.AutomaticEnv()
	// AutomaticEnv only resolves keys viper already knows about.
	require.NoError(t, v.BindEnv("server.port"))
	require.NoError(t, v.BindEnv("development.live_reload"))

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.False(t, cfg.Development.LiveReload)
}

func TestLoadExplicitZeroPort(t *testing.T) {
	v := viper.New()
	v.Set("server.port", 0)

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Server.Port)
}

func TestLoadMessagesPerSecond(t *testing.T) {
	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)
	assert.Equal(t, 50.0, cfg.Development.MessagesPerSecond)

	v := viper.New()
	v.Set("development.messages_per_second", 0)
	cfg, err = LoadFrom(v)
	require.NoError(t, err)
	assert.Zero(t, cfg.Development.MessagesPerSecond, "zero disables the limit")

	v = viper.New()
	v.Set("development.messages_per_second", 5)
	cfg, err = LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 5.0, cfg.Development.MessagesPerSecond)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "not in valid range"},
		{"host injection", func(c *Config) { c.Server.Host = "localhost;rm -rf /" }, "dangerous character"},
		{"zero interval", func(c *Config) { c.Watch.Interval = 0 }, "interval must be positive"},
		{"nested exclude", func(c *Config) { c.Watch.Exclude = []string{"a/b"} }, "single directory name"},
		{"unknown checksum", func(c *Config) { c.Watch.Checksum = "md5" }, "unknown checksum"},
		{"command with args", func(c *Config) { c.Build.Command = "cargo build" }, "single word"},
		{"target injection", func(c *Config) { c.Build.Target = "x$(id)" }, "dangerous character"},
		{"negative timeout", func(c *Config) { c.Build.Timeout = -time.Second }, "timeout must not be negative"},
		{"no attempts", func(c *Config) { c.Prompt.Attempts = 0 }, "attempts must be at least 1"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "unknown log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	assert.NoError(t, Validate(Defaults()))
}
