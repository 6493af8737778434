package wasmexec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempBinary(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestCompilationCache_LoadMemoizes(t *testing.T) {
	dir := t.TempDir()
	path := writeTempBinary(t, dir, "a.wasm", minimalCoreModule)

	cache := newCompilationCache()
	hash1, binary1, err := cache.load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, hash1)
	assert.Equal(t, minimalCoreModule, binary1)

	require.NoError(t, os.Remove(path))

	hash2, binary2, err := cache.load(path)
	require.NoError(t, err)
	assert.Equal(t, hash1, hash2)
	assert.Equal(t, binary1, binary2)
}

func TestCompilationCache_EvictPathForcesReload(t *testing.T) {
	dir := t.TempDir()
	path := writeTempBinary(t, dir, "a.wasm", minimalCoreModule)

	cache := newCompilationCache()
	_, _, err := cache.load(path)
	require.NoError(t, err)

	cache.evictPath(path)

	require.NoError(t, os.Remove(path))
	_, _, err = cache.load(path)
	assert.Error(t, err)
}

func TestCompilationCache_LoadMissingFileErrors(t *testing.T) {
	cache := newCompilationCache()
	_, _, err := cache.load(filepath.Join(t.TempDir(), "missing.wasm"))
	assert.Error(t, err)
}
