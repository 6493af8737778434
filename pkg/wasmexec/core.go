package wasmexec

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"

	"github.com/glsp-mcp/forge/pkg/catalog"
	"github.com/glsp-mcp/forge/pkg/security"
)

// Scanner is the narrow contract the Execution Core needs from a
// Security Scanner, per spec.md's data-flow note: "The Security
// Scanner (G) is consulted before (C) accepts a new binary."
type Scanner interface {
	Scan(componentName, contentHash string, data []byte) security.Report
}

// ComponentLocator is the narrow contract the Execution Core needs
// from a Component Catalog to resolve a component name to a binary on
// disk, per spec.md §4.C "submit(Context, binary_path)".
type ComponentLocator interface {
	FindFlexible(name string) (catalog.Descriptor, bool)
	Changes() <-chan catalog.Change
}

// SensorSourceFactory builds the Sensor Bridge snapshot source for one
// execution's sensor configuration. It is called at most once per
// execution, only when that execution's Context carries a
// SensorConfig, per spec.md §4.C "Sensor host interface".
type SensorSourceFactory func(ctx context.Context, cfg SensorConfig) (SensorSource, error)

// Options configures a Core.
type Options struct {
	MaxConcurrent int
	Catalog       ComponentLocator
	Scanner       Scanner
	SensorSource  SensorSourceFactory
	Logger        *slog.Logger
}

// execution is the Core's private bookkeeping for one in-flight or
// completed invocation.
type execution struct {
	mu       sync.Mutex
	stage    Stage
	progress Progress
	result   *Result
	cancel   context.CancelFunc
	done     chan struct{}
}

func (e *execution) snapshotProgress() Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress
}

func (e *execution) snapshotResult() (Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.result == nil {
		return Result{}, false
	}
	return *e.result, true
}

// setProgress records a new, monotonic Progress. Per spec.md §5
// "Within a single execution, Progress updates are totally ordered
// and non-decreasing", setProgress is a no-op once the stage is
// terminal.
func (e *execution) setProgress(p Progress) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stage.terminal() {
		return
	}
	e.stage = p.Stage
	e.progress = p
}

func (e *execution) setResult(r Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stage.terminal() {
		return
	}
	e.stage = StageComplete
	if !r.Success {
		e.stage = StageError
	}
	e.result = &r
}

// Core is the WASM Execution Core, per spec.md §4.C. It owns the
// binary cache and the in-flight execution table exclusively
// (spec.md §3's ownership rule), enforces a fixed concurrency
// ceiling via the reserved-slot pattern, and never panics: every
// guest failure becomes a terminal Result rather than an unwound
// stack.
type Core struct {
	mu         sync.Mutex
	executions map[string]*execution
	reserved   int

	maxConcurrent int
	catalogRef    ComponentLocator
	scanner       Scanner
	scanCache     map[string]security.Report
	sensorSource  SensorSourceFactory

	cache  *compilationCache
	logger *slog.Logger

	closeOnce sync.Once
	closeCh   chan struct{}
}

// New builds a Core. Per spec.md §5's shared-resources rule, the
// executions table and the compilation cache are the Core's only
// globally shared structures; every wazero.Runtime used to run a
// guest is created and torn down per execution instead, since
// max_memory_bytes varies per Context and wazero's memory ceiling is
// a Runtime-level setting applied at compile time.
func New(opts Options) *Core {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}

	c := &Core{
		executions:    make(map[string]*execution),
		maxConcurrent: maxConcurrent,
		catalogRef:    opts.Catalog,
		scanner:       opts.Scanner,
		scanCache:     make(map[string]security.Report),
		sensorSource:  opts.SensorSource,
		cache:         newCompilationCache(),
		logger:        logger,
		closeCh:       make(chan struct{}),
	}

	if opts.Catalog != nil {
		go c.watchCatalog(opts.Catalog.Changes())
	}

	return c
}

// watchCatalog invalidates the compilation cache for a path when the
// Catalog reports its file removed or modified, per spec.md §4.B "emits
// descriptor-change events the Execution Core subscribes to for
// cache invalidation."
func (c *Core) watchCatalog(changes <-chan catalog.Change) {
	for {
		select {
		case change, ok := <-changes:
			if !ok {
				return
			}
			if change.Kind == catalog.ChangeRemoved || change.Kind == catalog.ChangeModified {
				c.cache.evictPath(change.Descriptor.AbsolutePath)
			}
		case <-c.closeCh:
			return
		}
	}
}

// Submit accepts a new execution request, reserving a concurrency
// slot before doing any work so concurrent Submit calls cannot both
// pass the ceiling check (the same TOCTOU-safe reservation pattern
// orchestrator.SubAgentRunner.Dispatch uses for sub-agent dispatch).
// It returns immediately; the invocation itself runs on its own
// goroutine.
func (c *Core) Submit(ctx context.Context, execCtx Context, binaryPath string) (string, error) {
	c.mu.Lock()
	active := 0
	for _, e := range c.executions {
		e.mu.Lock()
		terminal := e.stage.terminal()
		e.mu.Unlock()
		if !terminal {
			active++
		}
	}
	if active+c.reserved >= c.maxConcurrent {
		c.mu.Unlock()
		return "", ErrCapacityExceeded
	}
	c.reserved++
	c.mu.Unlock()

	released := true
	defer func() {
		if released {
			c.mu.Lock()
			c.reserved--
			c.mu.Unlock()
		}
	}()

	if execCtx.ExecutionID == "" {
		execCtx.ExecutionID = NewExecutionID()
	}
	if execCtx.CreatedAt.IsZero() {
		execCtx.CreatedAt = time.Now()
	}

	// spec.md §8: "Execution with timeout_ms=0 -> immediate Timeout
	// Result." A zero budget never reaches the sandbox at all.
	if execCtx.TimeoutMS == 0 {
		exec := &execution{
			stage: StageError,
			progress: Progress{
				ExecutionID: execCtx.ExecutionID,
				Stage:       StageError,
				Fraction:    1,
				Message:     "timeout_ms=0",
				Timestamp:   execCtx.CreatedAt,
			},
			result: &Result{
				ExecutionID: execCtx.ExecutionID,
				Success:     false,
				Error:       "timeout_ms=0: no execution budget",
				FailureKind: FailureTimeout,
				CompletedAt: execCtx.CreatedAt,
			},
			cancel: func() {},
			done:   make(chan struct{}),
		}
		close(exec.done)

		c.mu.Lock()
		c.executions[execCtx.ExecutionID] = exec
		c.reserved--
		released = false
		c.mu.Unlock()

		return execCtx.ExecutionID, nil
	}

	runCtx, cancel := context.WithTimeout(context.Background(), time.Duration(execCtx.TimeoutMS)*time.Millisecond)

	exec := &execution{
		stage:  StagePreparing,
		cancel: cancel,
		done:   make(chan struct{}),
		progress: Progress{
			ExecutionID: execCtx.ExecutionID,
			Stage:       StagePreparing,
			Timestamp:   execCtx.CreatedAt,
		},
	}

	c.mu.Lock()
	c.executions[execCtx.ExecutionID] = exec
	c.reserved--
	released = false
	c.mu.Unlock()

	go c.run(runCtx, cancel, exec, execCtx, binaryPath)

	return execCtx.ExecutionID, nil
}

// run drives one execution end-to-end: load (cached) + scan, compile,
// instantiate under sandbox limits, invoke, and record a terminal
// Result. It never panics outward; any guest or host failure becomes
// a Result with a FailureKind.
func (c *Core) run(ctx context.Context, cancel context.CancelFunc, exec *execution, execCtx Context, binaryPath string) {
	defer cancel()
	defer close(exec.done)

	start := time.Now()
	logger := c.logger.With("execution_id", execCtx.ExecutionID, "component", execCtx.ComponentName)

	emit := func(stage Stage, fraction float64, message string) {
		exec.setProgress(Progress{
			ExecutionID: execCtx.ExecutionID,
			Stage:       stage,
			Fraction:    fraction,
			Message:     message,
			Timestamp:   time.Now(),
		})
	}

	fail := func(kind FailureKind, err error) {
		logger.Error("execution failed", "stage", exec.snapshotProgress().Stage, "failure_kind", kind, "error", err)
		exec.setResult(Result{
			ExecutionID: execCtx.ExecutionID,
			Success:     false,
			Error:       err.Error(),
			FailureKind: kind,
			ElapsedMS:   time.Since(start).Milliseconds(),
			CompletedAt: time.Now(),
		})
	}

	emit(StagePreparing, 0, "resolving component binary")

	contentHash, binary, err := c.cache.load(binaryPath)
	if err != nil {
		fail(FailureLoadFailed, err)
		return
	}

	if c.scanner != nil {
		if report, rejected := c.consultScanner(execCtx.ComponentName, contentHash, binary); rejected {
			fail(FailureLoadFailed, fmt.Errorf("security scan rejected binary: overall risk %s", report.OverallRisk))
			return
		}
	}

	emit(StageLoading, 0.2, "compiling module")

	limits := newSandboxLimits(execCtx.MaxMemoryBytes)
	runtime := wazero.NewRuntimeWithConfig(ctx, newSandboxRuntimeConfig(limits))
	defer runtime.Close(ctx)

	mod, err := runtime.CompileModule(ctx, binary)
	if err != nil {
		fail(FailureLoadFailed, err)
		return
	}
	defer mod.Close(ctx)

	if execCtx.SensorConfig != nil {
		if c.sensorSource == nil {
			fail(FailureLoadFailed, fmt.Errorf("execution requests a sensor config but no sensor source is wired"))
			return
		}
		source, err := c.sensorSource(ctx, *execCtx.SensorConfig)
		if err != nil {
			fail(FailureInstantiationFailed, err)
			return
		}
		builder, err := buildSensorHostModule(runtime, source)
		if err != nil {
			fail(FailureInstantiationFailed, err)
			return
		}
		hostInstance, err := builder.Instantiate(ctx)
		if err != nil {
			fail(FailureInstantiationFailed, err)
			return
		}
		defer hostInstance.Close(ctx)
	}

	emit(StageExecuting, 0.5, "instantiating module")

	instance, err := runtime.InstantiateModule(ctx, mod, newSandboxModuleConfig(execCtx.ComponentName))
	if err != nil {
		fail(FailureInstantiationFailed, err)
		return
	}
	defer instance.Close(ctx)

	fn := instance.ExportedFunction(execCtx.MethodName)
	if fn == nil {
		fail(FailureMethodNotFound, fmt.Errorf("method %q not exported", execCtx.MethodName))
		return
	}

	emit(StageExecuting, 0.7, "invoking method")

	var results []uint64
	kind, err := withSandboxGuard(ctx, func(ctx context.Context) error {
		var callErr error
		results, callErr = fn.Call(ctx)
		return callErr
	})
	if err != nil {
		if kind == "" {
			kind = FailureTrap
		}
		fail(kind, err)
		return
	}

	elapsed := time.Since(start).Milliseconds()
	exec.setResult(Result{
		ExecutionID: execCtx.ExecutionID,
		Success:     true,
		Value:       encodeResults(results),
		ElapsedMS:   elapsed,
		CompletedAt: time.Now(),
	})
}

func encodeResults(results []uint64) []byte {
	if len(results) == 0 {
		return nil
	}
	b := make([]byte, 0, len(results)*8)
	for _, r := range results {
		b = append(b, byte(r), byte(r>>8), byte(r>>16), byte(r>>24), byte(r>>32), byte(r>>40), byte(r>>48), byte(r>>56))
	}
	return b
}

// consultScanner runs (or reuses a cached) Security Scanner report for
// contentHash and reports whether the binary should be rejected.
// Per spec.md §4.G, a Critical overall risk is the only level this
// Core refuses outright; High/Medium/Low findings are logged but do
// not block execution — the scanner classifies, it does not gate,
// except at the ceiling the spec calls "structural risk" rather than
// "policy violation".
func (c *Core) consultScanner(componentName, contentHash string, binary []byte) (security.Report, bool) {
	c.mu.Lock()
	if report, ok := c.scanCache[contentHash]; ok {
		c.mu.Unlock()
		return report, report.OverallRisk == security.RiskCritical
	}
	c.mu.Unlock()

	report := c.scanner.Scan(componentName, contentHash, binary)

	c.mu.Lock()
	c.scanCache[contentHash] = report
	c.mu.Unlock()

	return report, report.OverallRisk == security.RiskCritical
}

func loadBinary(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	sum := sha256.Sum256(data)
	return data, hex.EncodeToString(sum[:]), nil
}

// Progress returns the latest Progress snapshot for id.
func (c *Core) Progress(id string) (Progress, bool) {
	c.mu.Lock()
	exec, ok := c.executions[id]
	c.mu.Unlock()
	if !ok {
		return Progress{}, false
	}
	return exec.snapshotProgress(), true
}

// Result returns the terminal Result for id, if it has completed.
func (c *Core) Result(id string) (Result, bool) {
	c.mu.Lock()
	exec, ok := c.executions[id]
	c.mu.Unlock()
	if !ok {
		return Result{}, false
	}
	return exec.snapshotResult()
}

// Cancel requests cancellation of id. Per spec.md §5, cancellation is
// cooperative and idempotent: a terminal execution's Cancel is a no-op
// returning false.
func (c *Core) Cancel(id string) bool {
	c.mu.Lock()
	exec, ok := c.executions[id]
	c.mu.Unlock()
	if !ok {
		return false
	}
	exec.mu.Lock()
	terminal := exec.stage.terminal()
	exec.mu.Unlock()
	if terminal {
		return false
	}
	exec.cancel()
	return true
}

// Cleanup drops bookkeeping for terminal executions older than
// olderThan, bounding the executions table's memory footprint.
func (c *Core) Cleanup(olderThan time.Duration) {
	cutoff := time.Now().Add(-olderThan)
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, exec := range c.executions {
		exec.mu.Lock()
		terminal := exec.stage.terminal()
		var completedAt time.Time
		if exec.result != nil {
			completedAt = exec.result.CompletedAt
		}
		exec.mu.Unlock()
		if terminal && completedAt.Before(cutoff) {
			delete(c.executions, id)
		}
	}
}

// Close stops the Core's catalog-change subscription. It does not
// cancel in-flight executions; each execution's own wazero.Runtime is
// torn down when that execution's goroutine returns.
func (c *Core) Close(context.Context) {
	c.closeOnce.Do(func() { close(c.closeCh) })
}
