// Package config provides configuration management for wasmreload using
// Viper for flexible loading from files, environment variables, and
// command-line flags.
//
// The configuration covers the HTTP bind address, the polling watcher
// (interval, excluded directories, checksum algorithm), the external build
// toolchain, live-reload behaviour and logging. Environment variables use the
// WASMRELOAD_ prefix, e.g. WASMRELOAD_SERVER_PORT=8080.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "WASMRELOAD"

// EnvKeyReplacer maps nested keys such as server.port to SERVER_PORT.
func EnvKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}

// Checksum algorithm names accepted in watch.checksum.
const (
	ChecksumAdler32 = "adler32"
	ChecksumCRC32C  = "crc32c"
	ChecksumXXHash  = "xxhash"
)

type Config struct {
	Server      ServerConfig      `yaml:"server" json:"server" mapstructure:"server"`
	Watch       WatchConfig       `yaml:"watch" json:"watch" mapstructure:"watch"`
	Build       BuildConfig       `yaml:"build" json:"build" mapstructure:"build"`
	Development DevelopmentConfig `yaml:"development" json:"development" mapstructure:"development"`
	Prompt      PromptConfig      `yaml:"prompt" json:"prompt" mapstructure:"prompt"`
	Assets      AssetsConfig      `yaml:"assets" json:"assets" mapstructure:"assets"`
	Log         LogConfig         `yaml:"log" json:"log" mapstructure:"log"`
	ProjectDir  string            `yaml:"-" json:"-" mapstructure:"-"` // CLI argument or prompt, not from config file
}

type ServerConfig struct {
	Host           string   `yaml:"host" json:"host" mapstructure:"host"`
	Port           int      `yaml:"port" json:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins" mapstructure:"allowed_origins"`
}

type WatchConfig struct {
	Interval time.Duration `yaml:"interval" json:"interval" mapstructure:"interval"`
	Exclude  []string      `yaml:"exclude" json:"exclude" mapstructure:"exclude"`
	Checksum string        `yaml:"checksum" json:"checksum" mapstructure:"checksum"`
	Notify   bool          `yaml:"notify" json:"notify" mapstructure:"notify"`
}

type BuildConfig struct {
	Command       string        `yaml:"command" json:"command" mapstructure:"command"`
	Target        string        `yaml:"target" json:"target" mapstructure:"target"`
	Profile       string        `yaml:"profile" json:"profile" mapstructure:"profile"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout"`
	ExitOnFailure bool          `yaml:"exit_on_failure" json:"exit_on_failure" mapstructure:"exit_on_failure"`
}

type DevelopmentConfig struct {
	LiveReload bool `yaml:"live_reload" json:"live_reload" mapstructure:"live_reload"`
	// MessagesPerSecond caps how fast a single websocket session is answered.
	// Zero means no limit.
	MessagesPerSecond float64 `yaml:"messages_per_second" json:"messages_per_second" mapstructure:"messages_per_second"`
}

type PromptConfig struct {
	Attempts int `yaml:"attempts" json:"attempts" mapstructure:"attempts"`
}

type AssetsConfig struct {
	Dir string `yaml:"dir" json:"dir" mapstructure:"dir"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level" mapstructure:"level"`
	Format string `yaml:"format" json:"format" mapstructure:"format"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 3030,
		},
		Watch: WatchConfig{
			Interval: 200 * time.Millisecond,
			Exclude:  []string{"target", ".git"},
			Checksum: ChecksumAdler32,
		},
		Build: BuildConfig{
			Command: "cargo",
			Target:  "wasm32-unknown-unknown",
			Profile: "debug",
		},
		Development: DevelopmentConfig{
			LiveReload:        true,
			MessagesPerSecond: 50,
		},
		Prompt: PromptConfig{Attempts: 3},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v, applies defaults for anything
// left unset and validates the result.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	defaults := Defaults()

	if config.Server.Host == "" {
		config.Server.Host = defaults.Server.Host
	}
	if !v.IsSet("server.port") {
		config.Server.Port = defaults.Server.Port
	}

	if config.Watch.Interval == 0 {
		config.Watch.Interval = defaults.Watch.Interval
	}
	// Handle exclude set via viper (workaround for viper slice handling)
	if v.IsSet("watch.exclude") && len(config.Watch.Exclude) == 0 {
		config.Watch.Exclude = v.GetStringSlice("watch.exclude")
	}
	if !v.IsSet("watch.exclude") {
		config.Watch.Exclude = defaults.Watch.Exclude
	}
	if config.Watch.Checksum == "" {
		config.Watch.Checksum = defaults.Watch.Checksum
	}
	config.Watch.Checksum = strings.ToLower(config.Watch.Checksum)

	if config.Build.Command == "" {
		config.Build.Command = defaults.Build.Command
	}
	if config.Build.Target == "" {
		config.Build.Target = defaults.Build.Target
	}
	if config.Build.Profile == "" {
		config.Build.Profile = defaults.Build.Profile
	}

	// Handle development settings set via viper (workaround for viper bool handling)
	if v.IsSet("development.live_reload") {
		config.Development.LiveReload = v.GetBool("development.live_reload")
	} else {
		config.Development.LiveReload = defaults.Development.LiveReload
	}
	// Zero is meaningful here: it turns the per-session limit off.
	if !v.IsSet("development.messages_per_second") {
		config.Development.MessagesPerSecond = defaults.Development.MessagesPerSecond
	}

	if config.Prompt.Attempts == 0 {
		config.Prompt.Attempts = defaults.Prompt.Attempts
	}

	if config.Log.Level == "" {
		config.Log.Level = defaults.Log.Level
	}
	if config.Log.Format == "" {
		config.Log.Format = defaults.Log.Format
	}

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Address returns the host:port the server binds to.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
