package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// configFile is the optional YAML file read from the config directory.
const configFile = "typedai.yaml"

// Load resolves the configuration: defaults, then the YAML file when
// present, then environment overrides, then validation.
func Load(configDir string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(configDir, configFile)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		slog.Info("No configuration file, using defaults", "path", path)
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	default:
		var fileCfg Config
		if err := yaml.Unmarshal(ExpandEnv(data), &fileCfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if err := mergo.Merge(cfg, fileCfg, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge configuration: %w", err)
		}
		slog.Info("Configuration file loaded", "path", path)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides maps deployment-level environment variables onto
// the configuration. These win over the YAML file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE"); v != "" {
		cfg.Database = v
	}
	if v := os.Getenv("AUTH"); v != "" {
		cfg.Auth = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		} else {
			slog.Warn("Ignoring invalid PORT", "value", v)
		}
	}
}
