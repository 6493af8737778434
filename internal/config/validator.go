package config

import "fmt"

// validate checks the fully-merged, defaulted configuration for
// consistency, mirroring the teacher's pkg/config/validator.go pass.
func validate(cfg *Config) error {
	switch cfg.Dataset.Backend {
	case DatasetBackendInMemory, DatasetBackendKV, DatasetBackendTSDB, DatasetBackendTimeSeriesSQL:
	default:
		return NewValidationError("dataset", "backend",
			fmt.Errorf("unknown backend %q", cfg.Dataset.Backend))
	}

	if cfg.Dataset.Backend != DatasetBackendInMemory {
		if cfg.Dataset.Host == "" {
			return NewValidationError("dataset", "host", fmt.Errorf("required for backend %q", cfg.Dataset.Backend))
		}
		if cfg.Dataset.Database == "" {
			return NewValidationError("dataset", "database", fmt.Errorf("required for backend %q", cfg.Dataset.Backend))
		}
	}

	if cfg.Execution.MaxConcurrent <= 0 {
		return NewValidationError("execution", "max_concurrent", fmt.Errorf("must be > 0"))
	}
	if cfg.Execution.TableGrowthCeiling <= 0 {
		return NewValidationError("execution", "table_growth_ceiling", fmt.Errorf("must be > 0"))
	}

	if cfg.Pipeline.MaxConcurrentPipelines <= 0 {
		return NewValidationError("pipeline", "max_concurrent_pipelines", fmt.Errorf("must be > 0"))
	}

	if cfg.Simulation.DefaultTargetFPS <= 0 {
		return NewValidationError("simulation", "default_target_fps", fmt.Errorf("must be > 0"))
	}

	if cfg.Security.ImportCountWarn <= 0 {
		return NewValidationError("security", "import_count_warn", fmt.Errorf("must be > 0"))
	}

	return nil
}
