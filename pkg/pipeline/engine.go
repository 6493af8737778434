package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/glsp-mcp/forge/pkg/wasmexec"
)

// Submitter is the narrow contract the Pipeline Engine needs from the
// Execution Core to run one stage, per spec.md §5: "the Pipeline
// Engine ... submits each stage as an ordinary Execution Context; a
// stage timeout is a wrapper around Execution Core submission, not a
// separate mechanism."
type Submitter interface {
	Submit(ctx context.Context, execCtx wasmexec.Context, binaryPath string) (string, error)
	Result(id string) (wasmexec.Result, bool)
}

// ComponentResolver resolves a stage's component name to the binary
// path Submitter.Submit expects.
type ComponentResolver interface {
	ResolveBinaryPath(componentName string) (string, error)
}

// Options configures an Engine.
type Options struct {
	MaxConcurrentPipelines int
	Executor               Submitter
	Resolver               ComponentResolver
	Transforms             *TransformRegistry
	Logger                 *slog.Logger
	PollInterval           time.Duration
}

// Engine is the Pipeline Engine, per spec.md §4.E. It exclusively owns
// Pipeline Executions and drives each one's stages through the
// Execution Core, enforcing max_concurrent_pipelines via the same
// reserved-slot pattern as the Execution Core's own concurrency
// ceiling.
type Engine struct {
	mu         sync.Mutex
	executions map[string]*pipelineRun
	reserved   int

	maxConcurrent int
	executor      Submitter
	resolver      ComponentResolver
	transforms    *TransformRegistry
	logger        *slog.Logger
	pollInterval  time.Duration
}

type pipelineRun struct {
	mu    sync.Mutex
	exec  Execution
	cancel context.CancelFunc
	done  chan struct{}
}

func (r *pipelineRun) snapshot() Execution {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.exec
	out.StageResults = make(map[string]StageResult, len(r.exec.StageResults))
	for k, v := range r.exec.StageResults {
		out.StageResults[k] = v
	}
	return out
}

func (r *pipelineRun) setState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exec.State.terminal() {
		return
	}
	r.exec.State = s
}

func (r *pipelineRun) setStageResult(res StageResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exec.StageResults[res.StageID] = res
}

func (r *pipelineRun) finish(state State, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exec.State.terminal() {
		return
	}
	r.exec.State = state
	r.exec.Error = errMsg
	r.exec.CompletedAt = time.Now()
}

// New builds an Engine.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxConcurrent := opts.MaxConcurrentPipelines
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	transforms := opts.Transforms
	if transforms == nil {
		transforms = NewTransformRegistry()
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 25 * time.Millisecond
	}

	return &Engine{
		executions:    make(map[string]*pipelineRun),
		maxConcurrent: maxConcurrent,
		executor:      opts.Executor,
		resolver:      opts.Resolver,
		transforms:    transforms,
		logger:        logger,
		pollInterval:  pollInterval,
	}
}

// Execute validates cfg, reserves a concurrency slot, and starts the
// pipeline on its own goroutine, returning immediately with an
// execution id — mirroring wasmexec.Core.Submit's reserved-slot
// concurrency gate and async-run shape.
func (e *Engine) Execute(ctx context.Context, cfg Config) (string, error) {
	if err := e.validate(cfg); err != nil {
		return "", err
	}

	e.mu.Lock()
	active := 0
	for _, r := range e.executions {
		r.mu.Lock()
		terminal := r.exec.State.terminal()
		r.mu.Unlock()
		if !terminal {
			active++
		}
	}
	if active+e.reserved >= e.maxConcurrent {
		e.mu.Unlock()
		return "", ErrCapacityExceeded
	}
	e.reserved++
	e.mu.Unlock()

	released := true
	defer func() {
		if released {
			e.mu.Lock()
			e.reserved--
			e.mu.Unlock()
		}
	}()

	executionID := uuid.NewString()
	runCtx, cancel := context.WithCancel(context.Background())

	run := &pipelineRun{
		exec: Execution{
			ExecutionID:  executionID,
			Config:       cfg,
			State:        StatePreparing,
			StageResults: make(map[string]StageResult),
			StartedAt:    time.Now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	e.mu.Lock()
	e.executions[executionID] = run
	e.reserved--
	released = false
	e.mu.Unlock()

	if len(cfg.Stages) == 0 {
		run.finish(StateCompleted, "")
		close(run.done)
		return executionID, nil
	}

	go e.run(runCtx, run)

	return executionID, nil
}

// validate rejects a cyclic graph and any Data Connection naming a
// stage that doesn't exist, per spec.md §4.E's ErrUnknownStage /
// ErrCyclicDependency edge cases, before any stage runs.
func (e *Engine) validate(cfg Config) error {
	ids := make(map[string]bool, len(cfg.Stages))
	for _, s := range cfg.Stages {
		ids[s.StageID] = true
	}
	for _, conn := range cfg.Connections {
		if !ids[conn.FromStage] || !ids[conn.ToStage] {
			return ErrUnknownStage
		}
	}
	for _, s := range cfg.Stages {
		for _, dep := range s.Dependencies {
			if !ids[dep] {
				return ErrUnknownStage
			}
		}
	}

	_, err := batch(cfg.Stages)
	return err
}

// run drives the pipeline's batches to completion in dependency order,
// co-scheduling each batch's stages concurrently via errgroup, per
// spec.md §4.E.
func (e *Engine) run(ctx context.Context, run *pipelineRun) {
	defer close(run.done)

	run.setState(StateRunning)
	batches, err := batch(run.exec.Config.Stages)
	if err != nil {
		run.finish(StateFailed, err.Error())
		return
	}

	for _, b := range batches {
		select {
		case <-ctx.Done():
			run.finish(StateCancelled, ctx.Err().Error())
			return
		default:
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, stage := range b {
			stage := stage
			g.Go(func() error {
				return e.runStage(gctx, run, stage)
			})
		}

		if err := g.Wait(); err != nil {
			if ctx.Err() != nil {
				run.finish(StateCancelled, ctx.Err().Error())
				return
			}
			run.finish(StateFailed, err.Error())
			return
		}
	}

	run.finish(StateCompleted, "")
}

// stageHaltError signals that a stage failed and ContinueOnError was
// false, which should halt the whole pipeline. continue_on_error
// failures are recorded but never returned as an error, per spec.md
// §4.E: "the stage records failure, downstream connections see null
// inputs, and the pipeline proceeds."
type stageHaltError struct {
	stageID string
	cause   error
}

func (e *stageHaltError) Error() string {
	return "stage " + e.stageID + " failed: " + e.cause.Error()
}

// runStage builds the stage's input, submits it to the Execution Core
// (retrying per its RetryPolicy), and records a StageResult.
func (e *Engine) runStage(ctx context.Context, run *pipelineRun, stage Stage) error {
	cfg := run.snapshot().Config
	results := run.snapshot().StageResults

	input, err := e.buildStageInput(cfg, stage, results)
	if err != nil {
		res := StageResult{StageID: stage.StageID, Success: false, Error: err.Error(), StartedAt: time.Now(), CompletedAt: time.Now()}
		run.setStageResult(res)
		if stage.ContinueOnError {
			return nil
		}
		return &stageHaltError{stageID: stage.StageID, cause: err}
	}

	started := time.Now()
	var lastErr error
	attempts := 0

	backOff := withMaxRetries(stage.RetryPolicy)
	for {
		attempts++
		value, err := e.submitStage(ctx, stage, input)
		if err == nil {
			run.setStageResult(StageResult{
				StageID:     stage.StageID,
				Success:     true,
				Value:       value,
				Attempts:    attempts,
				StartedAt:   started,
				CompletedAt: time.Now(),
			})
			return nil
		}

		lastErr = err
		delay := backOff.NextBackOff()
		if delay == backoff.Stop {
			break
		}
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			goto fail
		case <-time.After(delay):
		}
	}

fail:
	res := StageResult{
		StageID:     stage.StageID,
		Success:     false,
		Error:       lastErr.Error(),
		Attempts:    attempts,
		StartedAt:   started,
		CompletedAt: time.Now(),
	}
	run.setStageResult(res)
	if stage.ContinueOnError {
		return nil
	}
	return &stageHaltError{stageID: stage.StageID, cause: lastErr}
}

// submitStage resolves the stage's component binary, submits it to
// the Execution Core with the stage's own timeout/memory ceiling, and
// polls for the terminal Result. A stage timeout is purely the
// underlying Execution Context's TimeoutMS, per spec.md §5.
func (e *Engine) submitStage(ctx context.Context, stage Stage, input json.RawMessage) (json.RawMessage, error) {
	binaryPath, err := e.resolver.ResolveBinaryPath(stage.ComponentName)
	if err != nil {
		return nil, err
	}

	execID, err := e.executor.Submit(ctx, wasmexec.Context{
		ComponentName:  stage.ComponentName,
		MethodName:     stage.MethodName,
		Args:           input,
		TimeoutMS:      stage.TimeoutMS,
		MaxMemoryBytes: stage.MaxMemoryMB * 1024 * 1024,
	}, binaryPath)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		if res, ok := e.executor.Result(execID); ok {
			if !res.Success {
				return nil, errString(res.Error)
			}
			return json.RawMessage(res.Value), nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

type errString string

func (e errString) Error() string { return string(e) }

// Status returns a snapshot of a pipeline execution's current state.
func (e *Engine) Status(id string) (Execution, bool) {
	e.mu.Lock()
	run, ok := e.executions[id]
	e.mu.Unlock()
	if !ok {
		return Execution{}, false
	}
	return run.snapshot(), true
}

// Cancel requests cancellation of a pipeline execution. Idempotent: a
// terminal execution's Cancel is a no-op returning false, matching
// wasmexec.Core.Cancel's contract.
func (e *Engine) Cancel(id string) bool {
	e.mu.Lock()
	run, ok := e.executions[id]
	e.mu.Unlock()
	if !ok {
		return false
	}
	run.mu.Lock()
	terminal := run.exec.State.terminal()
	run.mu.Unlock()
	if terminal {
		return false
	}
	run.cancel()
	return true
}
