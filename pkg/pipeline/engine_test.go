package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glsp-mcp/forge/pkg/wasmexec"
)

// fakeExecutor stands in for wasmexec.Core: it runs every submission
// on its own goroutine through a caller-supplied handler and stores
// terminal Results, keyed by a counter rather than
// wasmexec.NewExecutionID to keep the test deterministic.
type fakeExecutor struct {
	mu      sync.Mutex
	results map[string]wasmexec.Result
	next    int
	handler func(execCtx wasmexec.Context) wasmexec.Result
}

func newFakeExecutor(handler func(wasmexec.Context) wasmexec.Result) *fakeExecutor {
	return &fakeExecutor{results: make(map[string]wasmexec.Result), handler: handler}
}

// Submit returns immediately and runs the handler on its own
// goroutine, mirroring wasmexec.Core.Submit's async-run contract —
// callers learn the outcome only by polling Result.
func (f *fakeExecutor) Submit(ctx context.Context, execCtx wasmexec.Context, binaryPath string) (string, error) {
	f.mu.Lock()
	f.next++
	id := "exec-" + string(rune('a'+f.next))
	f.mu.Unlock()

	go func() {
		res := f.handler(execCtx)
		res.ExecutionID = id
		f.mu.Lock()
		f.results[id] = res
		f.mu.Unlock()
	}()

	return id, nil
}

func (f *fakeExecutor) Result(id string) (wasmexec.Result, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.results[id]
	return r, ok
}

type fakeResolver struct{}

func (fakeResolver) ResolveBinaryPath(componentName string) (string, error) {
	return "/components/" + componentName + ".wasm", nil
}

func waitPipelineTerminal(t *testing.T, e *Engine, id string) Execution {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		exec, ok := e.Status(id)
		require.True(t, ok)
		if exec.State.terminal() {
			return exec
		}
		select {
		case <-deadline:
			t.Fatal("pipeline did not reach a terminal state in time")
		case <-time.After(time.Millisecond):
		}
	}
}

func echoHandler(execCtx wasmexec.Context) wasmexec.Result {
	return wasmexec.Result{Success: true, Value: execCtx.Args}
}

func TestEngine_ExecuteLinearPipelineCompletes(t *testing.T) {
	e := New(Options{Executor: newFakeExecutor(echoHandler), Resolver: fakeResolver{}, PollInterval: time.Millisecond})
	cfg := Config{
		Stages: []Stage{
			{StageID: "a", ComponentName: "gen", MethodName: "run"},
			{StageID: "b", ComponentName: "consume", MethodName: "run", Dependencies: []string{"a"}},
		},
	}

	id, err := e.Execute(context.Background(), cfg)
	require.NoError(t, err)

	exec := waitPipelineTerminal(t, e, id)
	assert.Equal(t, StateCompleted, exec.State)
	assert.True(t, exec.StageResults["a"].Success)
	assert.True(t, exec.StageResults["b"].Success)
}

func TestEngine_ExecuteEmptyPipelineCompletesImmediately(t *testing.T) {
	e := New(Options{Executor: newFakeExecutor(echoHandler), Resolver: fakeResolver{}})
	id, err := e.Execute(context.Background(), Config{Name: "empty"})
	require.NoError(t, err)

	exec, ok := e.Status(id)
	require.True(t, ok)
	assert.Equal(t, StateCompleted, exec.State)
}

func TestEngine_DataConnectionRoutesUpstreamResult(t *testing.T) {
	executor := newFakeExecutor(echoHandler)
	e := New(Options{Executor: executor, Resolver: fakeResolver{}, PollInterval: time.Millisecond})
	cfg := Config{
		Stages: []Stage{
			{StageID: "a", ComponentName: "gen", MethodName: "run", Args: json.RawMessage(`{"seed":7}`)},
			{StageID: "b", ComponentName: "consume", MethodName: "run", Dependencies: []string{"a"}},
		},
		Connections: []DataConnection{
			{FromStage: "a", ToStage: "b", SourceField: "*", TargetField: "upstream"},
		},
	}

	id, err := e.Execute(context.Background(), cfg)
	require.NoError(t, err)

	exec := waitPipelineTerminal(t, e, id)
	require.Equal(t, StateCompleted, exec.State)

	var bInput map[string]any
	require.NoError(t, json.Unmarshal(exec.StageResults["b"].Value, &bInput))
	upstream, ok := bInput["upstream"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(7), upstream["seed"])
}

func TestEngine_ContinueOnErrorDoesNotHaltPipeline(t *testing.T) {
	executor := newFakeExecutor(func(execCtx wasmexec.Context) wasmexec.Result {
		if execCtx.ComponentName == "flaky" {
			return wasmexec.Result{Success: false, Error: "boom", FailureKind: wasmexec.FailureTrap}
		}
		return echoHandler(execCtx)
	})
	e := New(Options{Executor: executor, Resolver: fakeResolver{}, PollInterval: time.Millisecond})
	cfg := Config{
		Stages: []Stage{
			{StageID: "a", ComponentName: "flaky", MethodName: "run", ContinueOnError: true},
			{StageID: "b", ComponentName: "consume", MethodName: "run", Dependencies: []string{"a"}},
		},
	}

	id, err := e.Execute(context.Background(), cfg)
	require.NoError(t, err)

	exec := waitPipelineTerminal(t, e, id)
	assert.Equal(t, StateCompleted, exec.State)
	assert.False(t, exec.StageResults["a"].Success)
	assert.True(t, exec.StageResults["b"].Success)
}

func TestEngine_StageFailureWithoutContinueOnErrorFailsPipeline(t *testing.T) {
	executor := newFakeExecutor(func(execCtx wasmexec.Context) wasmexec.Result {
		return wasmexec.Result{Success: false, Error: "boom", FailureKind: wasmexec.FailureTrap}
	})
	e := New(Options{Executor: executor, Resolver: fakeResolver{}, PollInterval: time.Millisecond})
	cfg := Config{
		Stages: []Stage{
			{StageID: "a", ComponentName: "broken", MethodName: "run"},
			{StageID: "b", ComponentName: "consume", MethodName: "run", Dependencies: []string{"a"}},
		},
	}

	id, err := e.Execute(context.Background(), cfg)
	require.NoError(t, err)

	exec := waitPipelineTerminal(t, e, id)
	assert.Equal(t, StateFailed, exec.State)
	assert.False(t, exec.StageResults["a"].Success)
	assert.NotContains(t, exec.StageResults, "b")
}

func TestEngine_UnknownStageInConnectionRejected(t *testing.T) {
	e := New(Options{Executor: newFakeExecutor(echoHandler), Resolver: fakeResolver{}})
	cfg := Config{
		Stages: []Stage{{StageID: "a", ComponentName: "gen", MethodName: "run"}},
		Connections: []DataConnection{
			{FromStage: "a", ToStage: "ghost", TargetField: "x"},
		},
	}

	_, err := e.Execute(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrUnknownStage)
}

func TestEngine_CyclicDependencyRejected(t *testing.T) {
	e := New(Options{Executor: newFakeExecutor(echoHandler), Resolver: fakeResolver{}})
	cfg := Config{
		Stages: []Stage{
			{StageID: "a", ComponentName: "gen", MethodName: "run", Dependencies: []string{"b"}},
			{StageID: "b", ComponentName: "gen", MethodName: "run", Dependencies: []string{"a"}},
		},
	}

	_, err := e.Execute(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrCyclicDependency)
}

func TestEngine_MaxConcurrentPipelinesEnforced(t *testing.T) {
	blocker := make(chan struct{})
	executor := newFakeExecutor(func(execCtx wasmexec.Context) wasmexec.Result {
		<-blocker
		return echoHandler(execCtx)
	})
	e := New(Options{Executor: executor, Resolver: fakeResolver{}, MaxConcurrentPipelines: 1, PollInterval: time.Millisecond})
	cfg := Config{Stages: []Stage{{StageID: "a", ComponentName: "gen", MethodName: "run"}}}

	_, err := e.Execute(context.Background(), cfg)
	require.NoError(t, err)

	_, err = e.Execute(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	close(blocker)
}

func TestEngine_CancelStopsAPendingPipeline(t *testing.T) {
	blocker := make(chan struct{})
	executor := newFakeExecutor(func(execCtx wasmexec.Context) wasmexec.Result {
		<-blocker
		return echoHandler(execCtx)
	})
	e := New(Options{Executor: executor, Resolver: fakeResolver{}, PollInterval: time.Millisecond})
	cfg := Config{Stages: []Stage{{StageID: "a", ComponentName: "gen", MethodName: "run"}}}

	id, err := e.Execute(context.Background(), cfg)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return e.Cancel(id) }, time.Second, time.Millisecond)
	close(blocker)

	exec := waitPipelineTerminal(t, e, id)
	assert.Equal(t, StateCancelled, exec.State)
}

func TestEngine_CancelUnknownExecutionReturnsFalse(t *testing.T) {
	e := New(Options{Executor: newFakeExecutor(echoHandler), Resolver: fakeResolver{}})
	assert.False(t, e.Cancel("no-such-id"))
}
