// Package cmd provides the command-line interface for wasmreload.
//
// Configuration System:
//
//	Configuration is read from several sources with clear precedence:
//	1. Command-line flags (--config, --port, etc.) - highest priority
//	2. WASMRELOAD_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (WASMRELOAD_SERVER_PORT, etc.)
//	4. Configuration file (.wasmreload.yml) - lowest priority
//
// Environment Variables:
//
//	WASMRELOAD_CONFIG_FILE: Path to custom configuration file
//	WASMRELOAD_SERVER_PORT: Override server port
//	WASMRELOAD_SERVER_HOST: Override server host
//	WASMRELOAD_DEVELOPMENT_LIVE_RELOAD: Enable/disable the change socket
//	And the rest following the WASMRELOAD_<SECTION>_<OPTION> pattern
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/conneroisu/wasmreload/internal/config"
	"github.com/conneroisu/wasmreload/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wasmreload",
	Short: "Rebuild and live-reload a Rust wasm project in the browser",
	Long: `wasmreload watches a Rust project, rebuilds its wasm32 artifact on demand
and tells the browser when the sources have changed.

Quick Start:
  wasmreload serve ./my-crate       Serve a project on http://127.0.0.1:3030
  wasmreload doctor ./my-crate      Check cargo, the wasm32 target and the port
  wasmreload config init            Write a default .wasmreload.yml

Documentation: https://github.com/conneroisu/wasmreload`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is .wasmreload.yml, can also use WASMRELOAD_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig initializes the configuration system.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag: Explicitly specified config file path
//  2. WASMRELOAD_CONFIG_FILE environment variable: Custom config file path
//  3. Default: .wasmreload.yml in current directory
//
// Values can be overridden individually with WASMRELOAD_ prefixed variables
// (e.g., WASMRELOAD_BUILD_PROFILE=release).
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(config.EnvPrefix + "_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".wasmreload")
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(config.EnvKeyReplacer())

	// A missing or unreadable file leaves the defaults in place.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the process logger from the log section.
func newLogger(cfg *config.Config, out io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: out,
	}), nil
}
