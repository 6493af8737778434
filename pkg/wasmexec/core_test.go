package wasmexec

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glsp-mcp/forge/pkg/catalog"
	"github.com/glsp-mcp/forge/pkg/security"
)

// minimalCoreModule is a syntactically and semantically valid core
// WebAssembly module exporting a single niladic, no-op function named
// "run" — enough for wazero to compile and instantiate without any
// host imports.
var minimalCoreModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, // magic + version
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00, // type section: () -> ()
	0x03, 0x02, 0x01, 0x00, // function section: fn 0 uses type 0
	0x07, 0x07, 0x01, 0x03, 'r', 'u', 'n', 0x00, 0x00, // export "run" as func 0
	0x0a, 0x04, 0x01, 0x02, 0x00, 0x0b, // code section: empty body
}

func writeModule(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func waitTerminal(t *testing.T, core *Core, id string) Result {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r, ok := core.Result(id); ok {
			return r
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("execution %s did not reach a terminal state in time", id)
	return Result{}
}

func TestCore_SubmitAndRunSucceeds(t *testing.T) {
	path := writeModule(t, "ok.wasm", minimalCoreModule)
	core := New(Options{MaxConcurrent: 2})

	id, err := core.Submit(context.Background(), Context{
		ComponentName:  "sensor-fusion",
		MethodName:     "run",
		TimeoutMS:      1000,
		MaxMemoryBytes: 16 * 1024 * 1024,
	}, path)
	require.NoError(t, err)

	result := waitTerminal(t, core, id)
	assert.True(t, result.Success)
	assert.Empty(t, result.FailureKind)
}

func TestCore_MethodNotFoundIsAFailureNotAPanic(t *testing.T) {
	path := writeModule(t, "ok.wasm", minimalCoreModule)
	core := New(Options{MaxConcurrent: 2})

	id, err := core.Submit(context.Background(), Context{
		ComponentName:  "sensor-fusion",
		MethodName:     "does_not_exist",
		TimeoutMS:      1000,
		MaxMemoryBytes: 16 * 1024 * 1024,
	}, path)
	require.NoError(t, err)

	result := waitTerminal(t, core, id)
	assert.False(t, result.Success)
	assert.Equal(t, FailureMethodNotFound, result.FailureKind)
}

func TestCore_LoadFailedForMissingBinary(t *testing.T) {
	core := New(Options{MaxConcurrent: 2})

	id, err := core.Submit(context.Background(), Context{
		ComponentName: "missing",
		MethodName:    "run",
		TimeoutMS:     1000,
	}, filepath.Join(t.TempDir(), "nope.wasm"))
	require.NoError(t, err)

	result := waitTerminal(t, core, id)
	assert.False(t, result.Success)
	assert.Equal(t, FailureLoadFailed, result.FailureKind)
}

func TestCore_ZeroTimeoutIsAnImmediateTimeoutResult(t *testing.T) {
	path := writeModule(t, "ok.wasm", minimalCoreModule)
	core := New(Options{MaxConcurrent: 2})

	id, err := core.Submit(context.Background(), Context{
		ComponentName: "sensor-fusion",
		MethodName:    "run",
		TimeoutMS:     0,
	}, path)
	require.NoError(t, err)

	result, ok := core.Result(id)
	require.True(t, ok, "a timeout_ms=0 submission must be terminal on return, not just eventually")
	assert.False(t, result.Success)
	assert.Equal(t, FailureTimeout, result.FailureKind)

	progress, ok := core.Progress(id)
	require.True(t, ok)
	assert.Equal(t, StageError, progress.Stage)
	assert.Equal(t, float64(1), progress.Fraction)
}

func TestCore_CapacityExceeded(t *testing.T) {
	core := New(Options{MaxConcurrent: 1})

	core.mu.Lock()
	core.executions["already-running"] = &execution{stage: StageExecuting, done: make(chan struct{})}
	core.mu.Unlock()

	path := writeModule(t, "ok.wasm", minimalCoreModule)
	_, err := core.Submit(context.Background(), Context{
		ComponentName: "sensor-fusion",
		MethodName:    "run",
	}, path)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestCore_CancelUnknownExecutionReturnsFalse(t *testing.T) {
	core := New(Options{MaxConcurrent: 2})
	assert.False(t, core.Cancel("does-not-exist"))
}

func TestCore_CancelTerminalExecutionIsANoOp(t *testing.T) {
	path := writeModule(t, "ok.wasm", minimalCoreModule)
	core := New(Options{MaxConcurrent: 2})

	id, err := core.Submit(context.Background(), Context{
		ComponentName: "sensor-fusion",
		MethodName:    "run",
		TimeoutMS:     1000,
	}, path)
	require.NoError(t, err)
	waitTerminal(t, core, id)

	assert.False(t, core.Cancel(id))
}

func TestCore_ProgressUnknownIDNotFound(t *testing.T) {
	core := New(Options{MaxConcurrent: 2})
	_, ok := core.Progress("nope")
	assert.False(t, ok)
}

func TestCore_CleanupDropsOldTerminalExecutions(t *testing.T) {
	path := writeModule(t, "ok.wasm", minimalCoreModule)
	core := New(Options{MaxConcurrent: 2})

	id, err := core.Submit(context.Background(), Context{
		ComponentName: "sensor-fusion",
		MethodName:    "run",
		TimeoutMS:     1000,
	}, path)
	require.NoError(t, err)
	waitTerminal(t, core, id)

	core.Cleanup(0)

	_, ok := core.Progress(id)
	assert.False(t, ok)
}

type stubScanner struct {
	risk security.RiskLevel
}

func (s stubScanner) Scan(componentName, contentHash string, data []byte) security.Report {
	return security.Report{ComponentName: componentName, OverallRisk: s.risk}
}

func TestCore_SecurityScannerRejectsCriticalRisk(t *testing.T) {
	path := writeModule(t, "ok.wasm", minimalCoreModule)
	core := New(Options{MaxConcurrent: 2, Scanner: stubScanner{risk: security.RiskCritical}})

	id, err := core.Submit(context.Background(), Context{
		ComponentName: "sensor-fusion",
		MethodName:    "run",
		TimeoutMS:     1000,
	}, path)
	require.NoError(t, err)

	result := waitTerminal(t, core, id)
	assert.False(t, result.Success)
	assert.Equal(t, FailureLoadFailed, result.FailureKind)
}

func TestCore_SecurityScannerAllowsNonCriticalRisk(t *testing.T) {
	path := writeModule(t, "ok.wasm", minimalCoreModule)
	core := New(Options{MaxConcurrent: 2, Scanner: stubScanner{risk: security.RiskHigh}})

	id, err := core.Submit(context.Background(), Context{
		ComponentName: "sensor-fusion",
		MethodName:    "run",
		TimeoutMS:     1000,
	}, path)
	require.NoError(t, err)

	result := waitTerminal(t, core, id)
	assert.True(t, result.Success)
}

type stubLocator struct {
	ch chan catalog.Change
}

func (s stubLocator) FindFlexible(name string) (catalog.Descriptor, bool) { return catalog.Descriptor{}, false }
func (s stubLocator) Changes() <-chan catalog.Change                      { return s.ch }

func TestCore_CatalogRemovalEvictsCache(t *testing.T) {
	path := writeModule(t, "ok.wasm", minimalCoreModule)
	changes := make(chan catalog.Change, 1)
	core := New(Options{MaxConcurrent: 2, Catalog: stubLocator{ch: changes}})

	_, _, err := core.cache.load(path)
	require.NoError(t, err)

	changes <- catalog.Change{Kind: catalog.ChangeRemoved, Descriptor: catalog.Descriptor{AbsolutePath: path}}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		core.cache.mu.Lock()
		_, cached := core.cache.entries[path]
		core.cache.mu.Unlock()
		if !cached {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("cache entry was not evicted after catalog removal event")
}

func TestCore_SensorConfigWithoutSourceFails(t *testing.T) {
	path := writeModule(t, "ok.wasm", minimalCoreModule)
	core := New(Options{MaxConcurrent: 2})

	id, err := core.Submit(context.Background(), Context{
		ComponentName: "sensor-fusion",
		MethodName:    "run",
		TimeoutMS:     1000,
		SensorConfig:  &SensorConfig{SensorIDs: []string{"s1"}},
	}, path)
	require.NoError(t, err)

	result := waitTerminal(t, core, id)
	assert.False(t, result.Success)
	assert.Equal(t, FailureLoadFailed, result.FailureKind)
}
