package config

import "time"

// applyDefaults fills in zero-valued fields with the platform's defaults,
// the way the teacher's defaults.go backstops AgentConfig/ChainConfig.
func applyDefaults(cfg *Config) {
	if cfg.System.LogLevel == "" {
		cfg.System.LogLevel = "info"
	}

	if cfg.Dataset.Backend == "" {
		cfg.Dataset.Backend = DatasetBackendInMemory
	}
	if cfg.Dataset.PasswordEnv == "" {
		cfg.Dataset.PasswordEnv = "DB_PASSWORD"
	}
	if cfg.Dataset.MaxOpenConns == 0 {
		cfg.Dataset.MaxOpenConns = 10
	}
	if cfg.Dataset.MaxIdleConns == 0 {
		cfg.Dataset.MaxIdleConns = 5
	}
	if cfg.Dataset.ConnMaxLifetime == 0 {
		cfg.Dataset.ConnMaxLifetime = 30 * time.Minute
	}

	if cfg.Catalog.WatchPath == "" {
		cfg.Catalog.WatchPath = "./components"
	}
	if cfg.Catalog.DebounceWindow == 0 {
		cfg.Catalog.DebounceWindow = 250 * time.Millisecond
	}

	if cfg.Execution.MaxConcurrent == 0 {
		cfg.Execution.MaxConcurrent = 8
	}
	if cfg.Execution.DefaultTimeout == 0 {
		cfg.Execution.DefaultTimeout = 30 * time.Second
	}
	if cfg.Execution.DefaultMaxMemoryMB == 0 {
		cfg.Execution.DefaultMaxMemoryMB = 64
	}
	if cfg.Execution.TableGrowthCeiling == 0 {
		cfg.Execution.TableGrowthCeiling = 1000
	}
	if cfg.Execution.StackCeilingBytes == 0 {
		cfg.Execution.StackCeilingBytes = 512 * 1024
	}
	if cfg.Execution.CleanupRetentionTime == 0 {
		cfg.Execution.CleanupRetentionTime = 1 * time.Hour
	}
	if cfg.Execution.CleanupInterval == 0 {
		cfg.Execution.CleanupInterval = 10 * time.Minute
	}

	if cfg.Pipeline.MaxConcurrentPipelines == 0 {
		cfg.Pipeline.MaxConcurrentPipelines = 4
	}

	if cfg.Simulation.DefaultTargetFPS == 0 {
		cfg.Simulation.DefaultTargetFPS = 30
	}
	if cfg.Simulation.MaxConcurrentSimulations == 0 {
		cfg.Simulation.MaxConcurrentSimulations = 4
	}

	if cfg.Security.ImportCountWarn == 0 {
		cfg.Security.ImportCountWarn = 50
	}
	if len(cfg.Security.DangerousImports) == 0 {
		cfg.Security.DangerousImports = []string{
			"wasi_unstable::proc_exit",
			"wasi_snapshot_preview1::proc_raise",
			"env::execve",
			"env::system",
		}
	}

	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8585
	}

	if cfg.Diagram.Backend == "" {
		cfg.Diagram.Backend = DiagramBackendInMemory
	}
	if cfg.Diagram.PasswordEnv == "" {
		cfg.Diagram.PasswordEnv = "DIAGRAM_DB_PASSWORD"
	}
	if cfg.Diagram.MaxOpenConns == 0 {
		cfg.Diagram.MaxOpenConns = 10
	}
	if cfg.Diagram.MaxIdleConns == 0 {
		cfg.Diagram.MaxIdleConns = 5
	}
}
