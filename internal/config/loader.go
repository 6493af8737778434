package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading, mirroring
// the teacher's config.Initialize steps:
//
//  1. Load forge.yaml (and an optional forge.local.yaml override) from
//     configDir
//  2. Expand environment variables
//  3. Parse YAML into structs and merge override onto base
//  4. Apply WASM_COMPONENTS_PATH and LOG_LEVEL env overrides (spec.md §6)
//  5. Apply default values
//  6. Validate all configuration
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if override := os.Getenv("WASM_COMPONENTS_PATH"); override != "" {
		cfg.Catalog.WatchPath = override
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.System.LogLevel = lvl
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	log.Info("Configuration initialized successfully",
		"dataset_backend", cfg.Dataset.Backend,
		"catalog_watch_path", cfg.Catalog.WatchPath,
		"execution_max_concurrent", cfg.Execution.MaxConcurrent)

	return cfg, nil
}

func load(configDir string) (*Config, error) {
	cfg := &Config{configDir: configDir}

	base, err := readYAML(filepath.Join(configDir, "forge.yaml"))
	if err != nil {
		return nil, err
	}
	if base != nil {
		*cfg = *base
		cfg.configDir = configDir
	}

	override, err := readYAML(filepath.Join(configDir, "forge.local.yaml"))
	if err != nil {
		return nil, err
	}
	if override != nil {
		// User overrides win: mergo.WithOverride copies every non-zero
		// override value over the base. Zero values in the override (an
		// omitted field, false, 0, "") leave the base value in place.
		if err := mergo.Merge(cfg, override, mergo.WithOverride); err != nil {
			return nil, &LoadError{File: "forge.local.yaml", Err: err}
		}
	}

	return cfg, nil
}

func readYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &LoadError{File: path, Err: err}
	}

	expanded := ExpandEnv(data)

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, &LoadError{File: path, Err: fmt.Errorf("%w: %v", ErrInvalidYAML, err)}
	}
	return &cfg, nil
}
