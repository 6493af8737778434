package simulation

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/glsp-mcp/forge/pkg/dataset"
	"github.com/glsp-mcp/forge/pkg/pipeline"
)

// PipelineSubmitter is the narrow contract the Simulation Engine needs
// from the Pipeline Engine, per spec.md §4.F step 3 "submit a pipeline
// execution". Declared consumer-side so pkg/simulation depends only on
// pipeline's plain value types, not a concrete *pipeline.Engine.
type PipelineSubmitter interface {
	Execute(ctx context.Context, cfg pipeline.Config) (string, error)
	Status(id string) (pipeline.Execution, bool)
}

// Notifier delivers an ActionNotify scenario condition to an external
// channel. Declared consumer-side so pkg/simulation depends on no
// particular notification backend. A nil Notifier is valid: notify
// actions are logged but not otherwise delivered.
type Notifier interface {
	Notify(ctx context.Context, target, message string)
}

// Options configures an Engine.
type Options struct {
	MaxConcurrentSimulations int
	Pipelines                PipelineSubmitter
	Store                    dataset.Store
	Notifier                 Notifier
	Logger                   *slog.Logger
	PausePollInterval        time.Duration
}

// Engine is the Simulation Engine, per spec.md §4.F. It exclusively
// owns Simulation Executions and the Sensor Bridge cursor backing
// each one, per spec.md §3's ownership rule.
type Engine struct {
	mu         sync.Mutex
	executions map[string]*simRun
	reserved   int

	maxConcurrent int
	pipelines     PipelineSubmitter
	store         dataset.Store
	notifier      Notifier
	logger        *slog.Logger
	pausePoll     time.Duration
}

type simRun struct {
	mu          sync.Mutex
	exec        Execution
	cancel      context.CancelFunc
	done        chan struct{}
	stepCh      chan struct{}
}

func (r *simRun) snapshot() Execution {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.exec
	out.ScenarioExecutions = make(map[string]ScenarioExecution, len(r.exec.ScenarioExecutions))
	for k, v := range r.exec.ScenarioExecutions {
		out.ScenarioExecutions[k] = v
	}
	out.SharedData = make(map[string]json.RawMessage, len(r.exec.SharedData))
	for k, v := range r.exec.SharedData {
		out.SharedData[k] = v
	}
	return out
}

func (r *simRun) setState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exec.State.terminal() {
		return
	}
	r.exec.State = s
}

func (r *simRun) state() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exec.State
}

func (r *simRun) finish(state State, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exec.State.terminal() {
		return
	}
	r.exec.State = state
	r.exec.Error = errMsg
	r.exec.CompletedAt = time.Now()
}

func (r *simRun) setScenario(se ScenarioExecution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exec.ScenarioExecutions[se.ScenarioID] = se
}

func (r *simRun) scenario(id string) ScenarioExecution {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exec.ScenarioExecutions[id]
}

func (r *simRun) setShared(key string, value json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exec.SharedData[key] = value
}

func (r *simRun) addAlerts(alerts []ResourceAlert) {
	if len(alerts) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exec.Stats.Alerts = append(r.exec.Stats.Alerts, alerts...)
}

// New builds an Engine.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxConcurrent := opts.MaxConcurrentSimulations
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	pausePoll := opts.PausePollInterval
	if pausePoll <= 0 {
		pausePoll = 20 * time.Millisecond
	}

	return &Engine{
		executions:    make(map[string]*simRun),
		maxConcurrent: maxConcurrent,
		pipelines:     opts.Pipelines,
		store:         opts.Store,
		notifier:      opts.Notifier,
		logger:        logger,
		pausePoll:     pausePoll,
	}
}

// Execute reserves a concurrency slot and starts the simulation on its
// own goroutine, mirroring pipeline.Engine.Execute's and
// wasmexec.Core.Submit's async-run, reserved-slot shape.
func (e *Engine) Execute(ctx context.Context, cfg Config) (string, error) {
	e.mu.Lock()
	active := 0
	for _, r := range e.executions {
		if !r.state().terminal() {
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

	scenarioExecs := make(map[string]ScenarioExecution, len(cfg.Scenarios))
	for _, sc := range cfg.Scenarios {
		scenarioExecs[sc.ScenarioID] = ScenarioExecution{
			ScenarioID:         sc.ScenarioID,
			State:              ScenarioWaiting,
			PipelineExecutions: make(map[string]string),
		}
	}

	executionID := uuid.NewString()

	// spec.md §8's "timeout_ms=0 -> immediate Timeout Result" invariant
	// applies here too: a simulation given no time budget never starts.
	if cfg.TimeoutMS == 0 {
		run := &simRun{
			exec: Execution{
				ExecutionID:        executionID,
				Config:             cfg,
				State:              StateFailed,
				Error:              "timeout_ms=0: no execution budget",
				ScenarioExecutions: scenarioExecs,
				SharedData:         make(map[string]json.RawMessage),
				StartedAt:          time.Now(),
				CompletedAt:        time.Now(),
			},
			cancel: func() {},
			done:   make(chan struct{}),
			stepCh: make(chan struct{}, 1),
		}
		close(run.done)

		e.mu.Lock()
		e.executions[executionID] = run
		e.reserved--
		released = false
		e.mu.Unlock()

		return executionID, nil
	}

	runCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.TimeoutMS)*time.Millisecond)

	run := &simRun{
		exec: Execution{
			ExecutionID:        executionID,
			Config:              cfg,
			State:               StatePreparing,
			ScenarioExecutions:  scenarioExecs,
			SharedData:          make(map[string]json.RawMessage),
			StartedAt:           time.Now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
		stepCh: make(chan struct{}, 1),
	}

	e.mu.Lock()
	e.executions[executionID] = run
	e.reserved--
	released = false
	e.mu.Unlock()

	if len(cfg.Scenarios) == 0 {
		run.finish(StateCompleted, "")
		close(run.done)
		return executionID, nil
	}

	go e.run(runCtx, run)

	return executionID, nil
}

// Status returns a snapshot of a simulation execution's current state.
func (e *Engine) Status(id string) (Execution, bool) {
	e.mu.Lock()
	run, ok := e.executions[id]
	e.mu.Unlock()
	if !ok {
		return Execution{}, false
	}
	return run.snapshot(), true
}

// Pause requests the frame clock suspend, per spec.md §4.F step 1
// "If state == Paused, wait". A no-op on a terminal or already-paused
// execution.
func (e *Engine) Pause(id string) bool {
	e.mu.Lock()
	run, ok := e.executions[id]
	e.mu.Unlock()
	if !ok {
		return false
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	if run.exec.State != StateRunning {
		return false
	}
	run.exec.State = StatePaused
	return true
}

// Resume un-pauses a paused execution.
func (e *Engine) Resume(id string) bool {
	e.mu.Lock()
	run, ok := e.executions[id]
	e.mu.Unlock()
	if !ok {
		return false
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	if run.exec.State != StatePaused {
		return false
	}
	run.exec.State = StateRunning
	return true
}

// Cancel requests cancellation. Idempotent: a terminal execution's
// Cancel is a no-op returning false, matching wasmexec.Core.Cancel's
// and pipeline.Engine.Cancel's contract.
func (e *Engine) Cancel(id string) bool {
	e.mu.Lock()
	run, ok := e.executions[id]
	e.mu.Unlock()
	if !ok {
		return false
	}
	if run.state().terminal() {
		return false
	}
	run.cancel()
	return true
}

// Step releases one frame for a StepByStep-clock execution that is
// currently waiting for its external trigger, per spec.md §4.F
// "StepByStep: the engine advances exactly one frame per external
// trigger." A no-op (but non-blocking) if a step is already pending or
// the execution is terminal.
func (e *Engine) Step(id string) bool {
	e.mu.Lock()
	run, ok := e.executions[id]
	e.mu.Unlock()
	if !ok || run.state().terminal() {
		return false
	}
	select {
	case run.stepCh <- struct{}{}:
		return true
	default:
		return false
	}
}
