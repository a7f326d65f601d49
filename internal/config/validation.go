package config

import (
	"fmt"
	"strings"

	apperrors "github.com/conneroisu/wasmreload/internal/errors"
)

var dangerousChars = []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}

// Validate checks configuration values for security and correctness.
func Validate(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return wrap("server config", err)
	}

	if err := validateWatchConfig(&config.Watch); err != nil {
		return wrap("watch config", err)
	}

	if err := validateBuildConfig(&config.Build); err != nil {
		return wrap("build config", err)
	}

	if config.Development.MessagesPerSecond < 0 {
		return wrap("development config", fmt.Errorf("messages_per_second must not be negative"))
	}

	if config.Prompt.Attempts < 1 {
		return wrap("prompt config", fmt.Errorf("attempts must be at least 1, got %d", config.Prompt.Attempts))
	}

	if err := validateLogConfig(&config.Log); err != nil {
		return wrap("log config", err)
	}

	return nil
}

func wrap(section string, err error) error {
	ce := apperrors.NewConfigError(apperrors.ErrCodeConfigInvalid, section)
	ce.Cause = err

	return ce
}

func validateServerConfig(config *ServerConfig) error {
	// Allow 0 for system-assigned ports in testing
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if err := rejectDangerous("host", config.Host); err != nil {
		return err
	}

	return nil
}

func validateWatchConfig(config *WatchConfig) error {
	if config.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", config.Interval)
	}

	for _, name := range config.Exclude {
		if name == "" || strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("exclude entry %q must be a single directory name", name)
		}
	}

	switch config.Checksum {
	case ChecksumAdler32, ChecksumCRC32C, ChecksumXXHash:
	default:
		return fmt.Errorf("unknown checksum algorithm %q (supported: %s, %s, %s)",
			config.Checksum, ChecksumAdler32, ChecksumCRC32C, ChecksumXXHash)
	}

	return nil
}

func validateBuildConfig(config *BuildConfig) error {
	for field, value := range map[string]string{
		"command": config.Command,
		"target":  config.Target,
		"profile": config.Profile,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must not be empty", field)
		}
		if strings.ContainsAny(value, " \t\n") {
			return fmt.Errorf("%s must be a single word: %q", field, value)
		}
		if err := rejectDangerous(field, value); err != nil {
			return err
		}
	}

	if config.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", config.Timeout)
	}

	return nil
}

func validateLogConfig(config *LogConfig) error {
	switch strings.ToLower(config.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", config.Level)
	}

	switch config.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (supported: text, json)", config.Format)
	}

	return nil
}

func rejectDangerous(field, value string) error {
	for _, char := range dangerousChars {
		if strings.Contains(value, char) {
			return fmt.Errorf("%s contains dangerous character: %s", field, char)
		}
	}

	return nil
}
