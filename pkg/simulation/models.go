// Package simulation implements the Simulation Engine, per spec.md
// §4.F: time-stepped orchestration of Pipeline Engine executions under
// a clock, with scenario triggers/actions, shared data between
// scenarios, and advisory resource budgeting.
package simulation

import (
	"encoding/json"
	"time"
)

// ClockMode selects how the per-frame clock advances, per spec.md
// §4.F "Execution modes".
type ClockMode string

const (
	ClockRealTime    ClockMode = "real_time"
	ClockAccelerated ClockMode = "accelerated"
	ClockStepByStep  ClockMode = "step_by_step"
	ClockBatch       ClockMode = "batch"
)

// FrameOverrunPolicy governs what a RealTime clock does when a frame
// overruns its tick boundary, per spec.md §4.F "RealTime".
type FrameOverrunPolicy string

const (
	OverrunBestEffort FrameOverrunPolicy = "best_effort"
	OverrunVariable   FrameOverrunPolicy = "variable"
	OverrunStrict     FrameOverrunPolicy = "strict"
)

// ClockConfig configures one simulation's frame clock.
type ClockConfig struct {
	Mode             ClockMode
	TargetFPS        float64
	AcceleratedMult  float64
	BatchSize        int
	OverrunPolicy    FrameOverrunPolicy
}

// TriggerType classifies a ScenarioTrigger, per original_source
// simulation.rs's TriggerType.
type TriggerType string

const (
	TriggerTime              TriggerType = "time"
	TriggerSensorData        TriggerType = "sensor_data"
	TriggerPipelineCompletion TriggerType = "pipeline_completion"
	TriggerExternalEvent     TriggerType = "external_event"
	TriggerSystemState       TriggerType = "system_state"
)

// CompareOp is the comparison a SensorData trigger or a ResourceUsage
// condition applies to its threshold.
type CompareOp string

const (
	CompareGT CompareOp = "gt"
	CompareGE CompareOp = "ge"
	CompareLT CompareOp = "lt"
	CompareLE CompareOp = "le"
	CompareEQ CompareOp = "eq"
)

// ScenarioTrigger gates when a scenario starts, per spec.md §4.F
// "every scenario whose triggers are satisfied". Only the fields
// relevant to Type are populated; unused fields are the type's zero
// value.
type ScenarioTrigger struct {
	Type    TriggerType
	Enabled bool

	AtTimeUS    int64  // Time
	DelayUS     int64  // SystemState (wall-clock delay since the simulation loop started)
	SensorID    string // SensorData
	Op          CompareOp // SensorData
	Threshold   float64   // SensorData
	PipelineID  string    // PipelineCompletion (pipeline_id of a completed pipeline in any scenario)
	EventName   string    // ExternalEvent
}

// ConditionType classifies a ScenarioCondition's severity, per
// original_source simulation.rs's ConditionType.
type ConditionType string

const (
	ConditionSuccess ConditionType = "success"
	ConditionFailure ConditionType = "failure"
	ConditionWarning ConditionType = "warning"
	ConditionInfo    ConditionType = "info"
)

// ConditionSpecKind selects how a ScenarioCondition is evaluated.
type ConditionSpecKind string

const (
	SpecAllPipelinesSuccess ConditionSpecKind = "all_pipelines_success"
	SpecPipelinesSuccess    ConditionSpecKind = "pipelines_success"
	SpecExecutionTime       ConditionSpecKind = "execution_time"
	SpecResourceUsage       ConditionSpecKind = "resource_usage"
)

// ActionKind is the action a satisfied ScenarioCondition takes, per
// spec.md §4.F step 5: "take actions (Continue, Stop, Restart, Log,
// Notify, Custom)".
type ActionKind string

const (
	ActionContinue ActionKind = "continue"
	ActionStop     ActionKind = "stop"
	ActionRestart  ActionKind = "restart"
	ActionLog      ActionKind = "log"
	ActionNotify   ActionKind = "notify"
	ActionCustom   ActionKind = "custom"
)

// ScenarioCondition evaluates a scenario's pipelines after each frame
// and takes an Action when its Spec matches, per spec.md §4.F step 5.
type ScenarioCondition struct {
	Type   ConditionType
	Spec   ConditionSpecKind

	PipelineIDs []string // PipelinesSuccess
	MaxMS       int64    // ExecutionTime
	Limits      ResourceLimits // ResourceUsage

	Action        ActionKind
	Message       string // Log/Notify
	NotifyTarget  string // Notify
	CustomAction  string // Custom
}

// ResourceLimits are the advisory per-scenario/per-simulation budgets
// spec.md §4.F "Resource budgeting" describes: exceeding them raises
// an alert but never kills the run.
type ResourceLimits struct {
	MaxMemoryMB     float64
	MaxCPUPercent   float64
	MaxThreads      int
	MaxDiskMB       float64
	MaxNetworkMbps  float64
}

// ScenarioPipeline declares one pipeline a Scenario submits when its
// triggers fire, carrying the pipeline.Config inline since the
// Simulation Engine depends only on pipeline's plain value types (see
// PipelineSubmitter in engine.go).
type ScenarioPipeline struct {
	PipelineID string
	Config     json.RawMessage // pipeline.Config, pre-serialized by the caller
}

// Scenario is one named unit of triggered pipeline execution within a
// SimulationConfig, per original_source simulation.rs's
// SimulationScenario (trimmed to the fields spec.md's per-frame loop
// actually consults).
type Scenario struct {
	ScenarioID  string
	Name        string
	Pipelines   []ScenarioPipeline
	Triggers    []ScenarioTrigger
	Conditions  []ScenarioCondition
	Limits      ResourceLimits
}

// DataSharingRule seeds one shared_data key from a completed
// pipeline's stage result (whole, or one field of it), applied per
// spec.md §4.F step 4 "Apply data-sharing rules (§6 shared_data)".
type DataSharingRule struct {
	SourceScenarioID string
	SourcePipelineID string
	SourceStageID    string
	SourceField      string // "*" for the whole stage value
	TargetKey        string // key under Execution.SharedData
}

// Config is the full declaration submitted to Execute, per spec.md
// §4.F "execute(SimulationConfig)".
type Config struct {
	Name         string
	Clock        ClockConfig
	Scenarios    []Scenario
	SharingRules []DataSharingRule
	Limits       ResourceLimits
	TimeoutMS    uint64

	SensorIDs  []string // attaches a Sensor Bridge when non-empty
	SensorStepUS int64
}

// State is a Simulation Execution's lifecycle state, per spec.md §3
// "Simulation Execution".
type State string

const (
	StatePreparing State = "preparing"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

func (s State) terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// ScenarioState is one scenario's lifecycle state within a running
// simulation, per original_source simulation.rs's ScenarioState.
type ScenarioState string

const (
	ScenarioWaiting   ScenarioState = "waiting"
	ScenarioRunning   ScenarioState = "running"
	ScenarioCompleted ScenarioState = "completed"
	ScenarioFailed    ScenarioState = "failed"
	ScenarioCancelled ScenarioState = "cancelled"
)

// ScenarioExecution is one scenario's live bookkeeping within a
// Simulation Execution.
type ScenarioExecution struct {
	ScenarioID         string
	State              ScenarioState
	PipelineExecutions map[string]string // pipeline_id -> pipeline execution_id
	PipelinesExecuted  int
	PipelinesFailed    int
	StartedAt          time.Time
	CompletedAt        time.Time
	Error              string
}

// ResourceAlert is a structured alert raised when a scenario or the
// simulation as a whole exceeds its advisory ResourceLimits, per
// original_source simulation.rs's alerting and spec.md §4.F "Resource
// budgeting" (SUPPLEMENTED FEATURES item 4: a structured event, not
// just a log line).
type ResourceAlert struct {
	ScenarioID string // empty for a simulation-level alert
	Metric     string
	Limit      float64
	Observed   float64
	Frame      int64
	Timestamp  time.Time
}

// Stats accumulates per spec.md §4.F step 6 "Accumulate statistics".
type Stats struct {
	ScenariosExecuted int
	ScenariosFailed   int
	PipelinesExecuted int
	PipelinesFailed   int
	FramesProcessed   int64
	AvgFrameRate      float64
	Alerts            []ResourceAlert
}

// Execution is the Simulation Engine's live record for one submitted
// Config, per spec.md §3 "Simulation Execution". The Simulation
// Engine exclusively owns Executions and the Sensor Bridge cursor
// backing them, per spec.md §3's ownership rule.
type Execution struct {
	ExecutionID       string
	Config            Config
	State             State
	ScenarioExecutions map[string]ScenarioExecution
	SharedData        map[string]json.RawMessage
	Stats             Stats
	StartedAt         time.Time
	CompletedAt       time.Time
	Error             string
}
