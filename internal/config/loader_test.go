package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestInitialize_DefaultsOnMissingFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, DatasetBackendInMemory, cfg.Dataset.Backend)
	assert.Equal(t, 8, cfg.Execution.MaxConcurrent)
	assert.Equal(t, "./components", cfg.Catalog.WatchPath)
}

func TestInitialize_ParsesYAMLAndExpandsEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("FORGE_TEST_HOST", "db.internal")

	writeFile(t, dir, "forge.yaml", `
dataset:
  backend: timeseries_sql
  host: ${FORGE_TEST_HOST}
  database: sensors
execution:
  max_concurrent: 4
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, DatasetBackendTimeSeriesSQL, cfg.Dataset.Backend)
	assert.Equal(t, "db.internal", cfg.Dataset.Host)
	assert.Equal(t, "secret", cfg.Dataset.Password())
	assert.Equal(t, 4, cfg.Execution.MaxConcurrent)
}

func TestInitialize_WasmComponentsPathEnvOverridesWatchPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WASM_COMPONENTS_PATH", "/opt/components")

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, "/opt/components", cfg.Catalog.WatchPath)
}

func TestInitialize_InvalidBackendFailsValidation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "forge.yaml", "dataset:\n  backend: not_a_real_backend\n")

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
}

func TestInitialize_LocalOverrideWinsOverBase(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "forge.yaml", "execution:\n  max_concurrent: 4\n")
	writeFile(t, dir, "forge.local.yaml", "execution:\n  max_concurrent: 16\n")

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Execution.MaxConcurrent)
}
