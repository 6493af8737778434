// Package mcpserver exposes spec.md §6's tool-call surface over the
// Model Context Protocol, using the server side of
// github.com/modelcontextprotocol/go-sdk/mcp — the same SDK the
// teacher uses client-side in pkg/mcp. Each tool's input/output is a
// plain struct with json tags, per mcp.AddTool's generic signature.
package mcpserver

import "encoding/json"

// ComponentSummary is the wire shape of one catalog entry returned by
// scan_components and check_component_status.
type ComponentSummary struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	ContentHash string `json:"content_hash"`
	Available   bool   `json:"available"`
	WorldName   string `json:"world_name,omitempty"`
}

// ScanComponentsInput takes no parameters; present so mcp.AddTool has a
// concrete (empty) input type to bind against.
type ScanComponentsInput struct{}

// ScanComponentsOutput is scan_components' result, per spec.md §6.
type ScanComponentsOutput struct {
	Components []ComponentSummary `json:"components"`
	Total      int                `json:"total"`
	Available  int                `json:"available"`
	Missing    int                `json:"missing"`
}

// CheckComponentStatusInput names the component to look up.
type CheckComponentStatusInput struct {
	Name string `json:"name"`
}

// CheckComponentStatusOutput reports whether a named component is
// currently known to the catalog.
type CheckComponentStatusOutput struct {
	Found     bool             `json:"found"`
	Component ComponentSummary `json:"component,omitzero"`
}

// GetComponentPathInput names the component whose filesystem path is
// requested.
type GetComponentPathInput struct {
	Name string `json:"name"`
}

// GetComponentPathOutput carries the resolved absolute path.
type GetComponentPathOutput struct {
	Found bool   `json:"found"`
	Path  string `json:"path,omitempty"`
}

// DebugComponentInterfacesInput names a binary (by catalog name or
// filesystem path) to statically analyze, per spec.md §4.B
// "analyze(path)".
type DebugComponentInterfacesInput struct {
	Name string `json:"name,omitempty"`
	Path string `json:"path,omitempty"`
}

// InterfaceSummary flattens catalog.Interface into wire shape.
type InterfaceSummary struct {
	Kind      string   `json:"kind"`
	Name      string   `json:"name"`
	Namespace string   `json:"namespace,omitempty"`
	Package   string   `json:"package,omitempty"`
	Version   string   `json:"version,omitempty"`
	Functions []string `json:"functions"`
}

// DebugComponentInterfacesOutput is debug_component_interfaces' result.
type DebugComponentInterfacesOutput struct {
	ComponentName string             `json:"component_name"`
	WorldName     string             `json:"world_name,omitempty"`
	Imports       []InterfaceSummary `json:"imports"`
	Exports       []InterfaceSummary `json:"exports"`
	RawWIT        string             `json:"raw_wit,omitempty"`
	Diagnostic    string             `json:"diagnostic,omitempty"`
}

// SensorConfigInput mirrors wasmexec.SensorConfig for the wire.
type SensorConfigInput struct {
	SensorIDs []string `json:"sensor_ids"`
	StepUS    int64    `json:"step_us"`
}

// ExecuteComponentInput is execute_component's request, per spec.md §6
// "execute_component(name, method, args, limits, sensor_config?)".
type ExecuteComponentInput struct {
	Name           string             `json:"name"`
	Method         string             `json:"method"`
	Args           json.RawMessage    `json:"args,omitempty"`
	TimeoutMS      uint64             `json:"timeout_ms,omitempty"`
	MaxMemoryBytes uint64             `json:"max_memory_bytes,omitempty"`
	SensorConfig   *SensorConfigInput `json:"sensor_config,omitempty"`
}

// ExecuteComponentOutput carries the execution id assigned on submit.
type ExecuteComponentOutput struct {
	ExecutionID string `json:"execution_id"`
}

// ExecutionIDInput is shared by execution_progress, execution_result,
// and cancel_execution, which all identify their target by id alone.
type ExecutionIDInput struct {
	ExecutionID string `json:"execution_id"`
}

// ExecutionProgressOutput mirrors wasmexec.Progress.
type ExecutionProgressOutput struct {
	Found     bool    `json:"found"`
	Stage     string  `json:"stage,omitempty"`
	Fraction  float64 `json:"fraction,omitempty"`
	Message   string  `json:"message,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// ExecutionResultOutput mirrors wasmexec.Result.
type ExecutionResultOutput struct {
	Found        bool            `json:"found"`
	Success      bool            `json:"success,omitempty"`
	Value        json.RawMessage `json:"value,omitempty"`
	Error        string          `json:"error,omitempty"`
	FailureKind  string          `json:"failure_kind,omitempty"`
	ElapsedMS    int64           `json:"elapsed_ms,omitempty"`
	MemoryPeakMB float64         `json:"memory_peak_mb,omitempty"`
}

// CancelOutput is shared by every cancel_* tool.
type CancelOutput struct {
	Cancelled bool `json:"cancelled"`
}

// PipelineStageInput is the wire shape of one pipeline.Stage.
type PipelineStageInput struct {
	StageID         string              `json:"stage_id"`
	ComponentName   string              `json:"component_name"`
	MethodName      string              `json:"method_name"`
	Args            json.RawMessage     `json:"args,omitempty"`
	TimeoutMS       uint64              `json:"timeout_ms,omitempty"`
	MaxMemoryMB     uint64              `json:"max_memory_mb,omitempty"`
	RetryPolicy     *RetryPolicyInput   `json:"retry_policy,omitempty"`
	ContinueOnError bool                `json:"continue_on_error,omitempty"`
	Dependencies    []string            `json:"dependencies,omitempty"`
	ParallelGroup   string              `json:"parallel_group,omitempty"`
}

// RetryPolicyInput is the wire shape of pipeline.RetryPolicy.
type RetryPolicyInput struct {
	MaxRetries  int     `json:"max_retries"`
	BaseDelayMS int64   `json:"base_delay_ms"`
	Backoff     string  `json:"backoff,omitempty"`
	Multiplier  float64 `json:"multiplier,omitempty"`
	IncrementMS int64   `json:"increment_ms,omitempty"`
}

// DataConnectionInput is the wire shape of pipeline.DataConnection.
type DataConnectionInput struct {
	FromStage     string `json:"from_stage"`
	ToStage       string `json:"to_stage"`
	SourceField   string `json:"source_field"`
	TargetField   string `json:"target_field"`
	TransformKind string `json:"transform_kind,omitempty"`
	TransformPath string `json:"transform_path,omitempty"`
	TransformName string `json:"transform_name,omitempty"`
}

// ExecutePipelineInput is execute_pipeline's request, per spec.md §6
// "execute_pipeline(config)".
type ExecutePipelineInput struct {
	Name        string                 `json:"name"`
	Stages      []PipelineStageInput   `json:"stages"`
	Connections []DataConnectionInput  `json:"connections,omitempty"`
}

// ExecutePipelineOutput carries the pipeline execution id.
type ExecutePipelineOutput struct {
	ExecutionID string `json:"execution_id"`
}

// PipelineIDInput is shared by pipeline_status and cancel_pipeline.
type PipelineIDInput struct {
	ExecutionID string `json:"execution_id"`
}

// StageResultOutput is the wire shape of pipeline.StageResult.
type StageResultOutput struct {
	StageID  string          `json:"stage_id"`
	Success  bool            `json:"success"`
	Value    json.RawMessage `json:"value,omitempty"`
	Error    string          `json:"error,omitempty"`
	Attempts int             `json:"attempts"`
}

// PipelineStatusOutput mirrors pipeline.Execution.
type PipelineStatusOutput struct {
	Found        bool                `json:"found"`
	State        string              `json:"state,omitempty"`
	StageResults []StageResultOutput `json:"stage_results,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// ExecuteSimulationInput is execute_simulation's request, per spec.md
// §6 "execute_simulation(config)". Scenarios and sharing rules are
// accepted pre-encoded as raw JSON matching simulation.Config's shape,
// since the tool surface's job is dispatch, not re-validation of the
// domain's own structures.
type ExecuteSimulationInput struct {
	Name         string          `json:"name"`
	ClockMode    string          `json:"clock_mode,omitempty"`
	TargetFPS    float64         `json:"target_fps,omitempty"`
	BatchSize    int             `json:"batch_size,omitempty"`
	Scenarios    json.RawMessage `json:"scenarios"`
	SharingRules json.RawMessage `json:"sharing_rules,omitempty"`
	TimeoutMS    uint64          `json:"timeout_ms,omitempty"`
	SensorIDs    []string        `json:"sensor_ids,omitempty"`
	SensorStepUS int64           `json:"sensor_step_us,omitempty"`
}

// ExecuteSimulationOutput carries the simulation execution id.
type ExecuteSimulationOutput struct {
	ExecutionID string `json:"execution_id"`
}

// SimulationIDInput is shared by pause, resume, cancel_simulation, and
// simulation_status.
type SimulationIDInput struct {
	ExecutionID string `json:"execution_id"`
}

// SimulationActionOutput is shared by pause and resume.
type SimulationActionOutput struct {
	Ok bool `json:"ok"`
}

// ScenarioStatusOutput is the wire shape of one
// simulation.ScenarioExecution.
type ScenarioStatusOutput struct {
	ScenarioID        string `json:"scenario_id"`
	State             string `json:"state"`
	PipelinesExecuted int    `json:"pipelines_executed"`
	PipelinesFailed   int    `json:"pipelines_failed"`
}

// SimulationStatusOutput mirrors simulation.Execution.
type SimulationStatusOutput struct {
	Found      bool                   `json:"found"`
	State      string                 `json:"state,omitempty"`
	Scenarios  []ScenarioStatusOutput `json:"scenarios,omitempty"`
	FramesDone int64                  `json:"frames_processed,omitempty"`
	Error      string                 `json:"error,omitempty"`
}
