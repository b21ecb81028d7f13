package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
)

// EnvConfigPath names the environment variable holding the path to an
// optional TOML config file, checked before any of the individual
// per-field overrides in env.go.
const EnvConfigPath = "DRIFTD_CONFIG"

// Load builds a Config starting from DefaultConfig, layering an optional
// TOML file on top (if DRIFTD_CONFIG is set; a path that cannot be read
// or parsed is an error), then
// environment variable overrides, then validates the result: a plain
// decode-then-override-then-validate sequence, with no per-drive-section
// decode pass since this service has exactly one drive per process.
func Load(logger *slog.Logger) (*Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv(EnvConfigPath); path != "" {
		if err := loadFile(path, &cfg, logger); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(&cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func loadFile(path string, cfg *Config, logger *slog.Logger) error {
	logger.Debug("loading config file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return nil
}
