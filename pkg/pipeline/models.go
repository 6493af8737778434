// Package pipeline implements the Pipeline Engine, per spec.md §4.E: a
// directed-acyclic graph of component executions with typed data
// flow, parallel groups, retry/backoff, and a partial-failure policy.
package pipeline

import (
	"encoding/json"
	"time"
)

// BackoffKind selects a retry-policy's delay curve, per spec.md §4.E.
type BackoffKind string

const (
	BackoffFixed       BackoffKind = "fixed"
	BackoffExponential BackoffKind = "exponential"
	BackoffLinear      BackoffKind = "linear"
)

// RetryPolicy is a per-stage retry configuration, per spec.md §3
// "Pipeline Stage" / §4.E.
type RetryPolicy struct {
	MaxRetries  int
	BaseDelayMS int64
	Backoff     BackoffKind
	Multiplier  float64 // Exponential
	IncrementMS int64   // Linear
}

// TransformKind selects a Data Connection's value transform, per
// spec.md §4.E "Transforms".
type TransformKind string

const (
	TransformIdentity TransformKind = "identity"
	TransformToJSON   TransformKind = "to_json"
	TransformFromJSON TransformKind = "from_json"
	TransformExtract  TransformKind = "extract"
	TransformCustom   TransformKind = "custom"
)

// Transform is a Data Connection's value transform, per spec.md §3
// "Transform ∈ {Identity, ToJson, FromJson, Extract(path), Custom(name)}".
type Transform struct {
	Kind TransformKind
	Path string // Extract
	Name string // Custom
}

// DataConnection routes one field from an upstream stage's result into
// a downstream stage's input, per spec.md §3 "Data Connection".
type DataConnection struct {
	FromStage   string
	ToStage     string
	SourceField string
	TargetField string
	Transform   Transform
}

// Stage is one node in a pipeline's dependency graph, per spec.md §3
// "Pipeline Stage".
type Stage struct {
	StageID         string
	ComponentName   string
	MethodName      string
	Args            json.RawMessage
	TimeoutMS       uint64
	MaxMemoryMB     uint64
	RetryPolicy     RetryPolicy
	ContinueOnError bool
	Dependencies    []string
	ParallelGroup   string
}

// Config is the full declaration submitted to execute(), per spec.md
// §4.E "execute(PipelineConfig)".
type Config struct {
	Name        string
	Stages      []Stage
	Connections []DataConnection
}

// State is a Pipeline Execution's lifecycle state, per spec.md §3
// "Pipeline Execution".
type State string

const (
	StatePreparing State = "preparing"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
	StatePaused    State = "paused"
)

func (s State) terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Terminal reports whether s never transitions again, for callers
// outside this package (e.g. the Simulation Engine polling a pipeline
// execution's status).
func (s State) Terminal() bool {
	return s.terminal()
}

// StageResult is one stage's outcome within a Pipeline Execution.
type StageResult struct {
	StageID     string
	Success     bool
	Value       json.RawMessage
	Error       string
	Attempts    int
	StartedAt   time.Time
	CompletedAt time.Time
}

// Execution is the Pipeline Engine's live record for one submitted
// Config, per spec.md §3 "Pipeline Execution". The Pipeline Engine
// exclusively owns Executions, per spec.md §3's ownership rule.
type Execution struct {
	ExecutionID  string
	Config       Config
	State        State
	StageResults map[string]StageResult
	StartedAt    time.Time
	CompletedAt  time.Time
	Error        string
}
