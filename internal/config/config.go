// Package config loads and validates forge.yaml, the platform's single
// configuration file, the way the teacher repo's pkg/config loads
// tarsy.yaml: read, expand environment variables, parse, apply defaults,
// validate, return an immutable Config ready for use.
package config

import "time"

// Config is the umbrella configuration object returned by Initialize and
// threaded through every component that needs its own section.
type Config struct {
	configDir string

	System   SystemConfig   `yaml:"system"`
	Dataset  DatasetConfig  `yaml:"dataset"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Execution ExecutionConfig `yaml:"execution"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Simulation SimulationConfig `yaml:"simulation"`
	Security SecurityConfig `yaml:"security"`
	HTTP     HTTPConfig     `yaml:"http"`
	Slack    SlackConfig    `yaml:"slack"`
	Diagram  DiagramConfig  `yaml:"diagram"`
}

// SystemConfig groups system-wide infrastructure settings, mirroring the
// teacher's SystemYAMLConfig grouping.
type SystemConfig struct {
	LogLevel string `yaml:"log_level"`
}

// DatasetBackendKind selects which Dataset Store backend to use, per
// spec.md §6 "selected at startup by a configuration enum".
type DatasetBackendKind string

const (
	DatasetBackendTimeSeriesSQL DatasetBackendKind = "timeseries_sql"
	DatasetBackendTSDB          DatasetBackendKind = "tsdb"
	DatasetBackendKV            DatasetBackendKind = "kv"
	DatasetBackendInMemory      DatasetBackendKind = "in_memory"
)

// DatasetConfig configures the Dataset Store connection, per spec.md §6
// "Connection parameters: {host, port, database, username, password(via
// environment), tls}".
type DatasetConfig struct {
	Backend  DatasetBackendKind `yaml:"backend"`
	Host     string             `yaml:"host"`
	Port     int                `yaml:"port"`
	Database string             `yaml:"database"`
	Username string             `yaml:"username"`
	// PasswordEnv names the environment variable holding the password
	// (default DB_PASSWORD). The password itself is never stored here
	// and never logged.
	PasswordEnv string `yaml:"password_env"`
	TLS         bool   `yaml:"tls"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// Password resolves the dataset backend password from the environment at
// the point of use, never persisted in the struct and never logged.
func (d DatasetConfig) Password() string {
	env := d.PasswordEnv
	if env == "" {
		env = "DB_PASSWORD"
	}
	return envOrEmpty(env)
}

// CatalogConfig configures the Component Catalog's watched root, per
// spec.md §6 "WASM_COMPONENTS_PATH (opt) — override watched root".
type CatalogConfig struct {
	WatchPath      string        `yaml:"watch_path"`
	DebounceWindow time.Duration `yaml:"debounce_window"`
}

// ExecutionConfig configures the Execution Core, per spec.md §4.C. The
// sandbox fields (default_timeout, default_max_memory_mb,
// table_growth_ceiling, stack_ceiling_bytes) are defaulted and
// validated here, but no other package reads them.
type ExecutionConfig struct {
	MaxConcurrent        int           `yaml:"max_concurrent"`
	DefaultTimeout       time.Duration `yaml:"default_timeout"`
	DefaultMaxMemoryMB   int           `yaml:"default_max_memory_mb"`
	TableGrowthCeiling   int           `yaml:"table_growth_ceiling"`
	StackCeilingBytes    int           `yaml:"stack_ceiling_bytes"`
	CleanupRetentionTime time.Duration `yaml:"cleanup_retention"`
	CleanupInterval      time.Duration `yaml:"cleanup_interval"`
}

// PipelineConfig configures the Pipeline Engine, per spec.md §4.E.
type PipelineConfig struct {
	MaxConcurrentPipelines int `yaml:"max_concurrent_pipelines"`
}

// SimulationConfig configures default Simulation Engine parameters, per
// spec.md §4.F.
type SimulationConfig struct {
	DefaultTargetFPS        int `yaml:"default_target_fps"`
	MaxConcurrentSimulations int `yaml:"max_concurrent_simulations"`
}

// SecurityConfig configures the Security Scanner, per spec.md §4.G.
type SecurityConfig struct {
	DangerousImports  []string `yaml:"dangerous_imports"`
	ImportCountWarn   int      `yaml:"import_count_warn"`
	TrustedHashes     []string `yaml:"trusted_hashes"`
}

// HTTPConfig configures the thin health/diagram HTTP surface (§4.A health
// check, §7 "health-check failure and a refusal to serve").
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// SlackConfig configures optional Slack delivery for Simulation Engine
// ActionNotify scenario conditions. Leaving Token or Channel empty
// disables delivery; conditions still fire and log, they just don't
// reach Slack.
type SlackConfig struct {
	Channel  string `yaml:"channel"`
	TokenEnv string `yaml:"token_env"`
}

// Token resolves the Slack bot token from the environment at the point
// of use, never persisted in the struct and never logged.
func (s SlackConfig) Token() string {
	env := s.TokenEnv
	if env == "" {
		env = "SLACK_BOT_TOKEN"
	}
	return envOrEmpty(env)
}

// DiagramBackendKind selects which Diagram Model Store backend to use,
// mirroring DatasetBackendKind's startup-selected-enum shape.
type DiagramBackendKind string

const (
	DiagramBackendInMemory DiagramBackendKind = "in_memory"
	DiagramBackendPostgres DiagramBackendKind = "postgres"
)

// DiagramConfig configures the Diagram Model Store's persistence
// backend. Diagrams are the one piece of state SPEC_FULL.md calls out
// as actually persisted (§1), so — like DatasetConfig — the backend is
// chosen once at startup, not per-request.
type DiagramConfig struct {
	Backend  DiagramBackendKind `yaml:"backend"`
	Host     string             `yaml:"host"`
	Port     int                `yaml:"port"`
	Database string             `yaml:"database"`
	Username string             `yaml:"username"`
	// PasswordEnv names the environment variable holding the password
	// (default DIAGRAM_DB_PASSWORD). The password itself is never stored
	// here and never logged.
	PasswordEnv string `yaml:"password_env"`
	TLS         bool   `yaml:"tls"`

	MaxOpenConns int `yaml:"max_open_conns"`
	MaxIdleConns int `yaml:"max_idle_conns"`
}

// Password resolves the diagram backend password from the environment
// at the point of use, mirroring DatasetConfig.Password.
func (d DiagramConfig) Password() string {
	env := d.PasswordEnv
	if env == "" {
		env = "DIAGRAM_DB_PASSWORD"
	}
	return envOrEmpty(env)
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}
