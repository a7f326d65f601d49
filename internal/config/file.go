package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the configuration file looked up in the working
// directory.
const DefaultFileName = ".wasmreload.yml"

const fileHeader = "# wasmreload configuration\n# Environment variables override these values, e.g. WASMRELOAD_SERVER_PORT=8080.\n\n"

// Marshal renders config as YAML.
func Marshal(config *Config) ([]byte, error) {
	return yaml.Marshal(config)
}

// WriteFile writes config to path as YAML. An existing file is only
// replaced when overwrite is set.
func WriteFile(path string, config *Config, overwrite bool) error {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return fmt.Errorf("configuration file %s already exists", path)
	}

	data, err := Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}

	if err := os.WriteFile(path, append([]byte(fileHeader), data...), 0644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	return nil
}
