package wasmexec

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Stage is a point in an execution's state machine, per spec.md §4.C.
type Stage string

const (
	StagePreparing Stage = "preparing"
	StageLoading   Stage = "loading"
	StageExecuting Stage = "executing"
	StageComplete  Stage = "complete"
	StageError     Stage = "error"
)

// terminal reports whether a stage never transitions again, per spec.md
// §4.C "Progress updates ... never leave a terminal state."
func (s Stage) terminal() bool {
	return s == StageComplete || s == StageError
}

// FailureKind enumerates the Execution Core's failure taxonomy, per
// spec.md §4.C "Failure semantics".
type FailureKind string

const (
	FailureLoadFailed         FailureKind = "load_failed"
	FailureInstantiationFailed FailureKind = "instantiation_failed"
	FailureMethodNotFound     FailureKind = "method_not_found"
	FailureTrap               FailureKind = "trap"
	FailureResourceExhausted  FailureKind = "resource_exhausted"
	FailureTimeout            FailureKind = "timeout"
	FailureCancelled          FailureKind = "cancelled"
	FailureCapacityExceeded   FailureKind = "capacity_exceeded"
)

// SensorConfig, when present on a Context, asks the Execution Core to
// instantiate a Sensor Bridge and expose its snapshot to the guest, per
// spec.md §4.C "Sensor host interface".
type SensorConfig struct {
	SensorIDs []string
	StepUS    int64
}

// Context is the caller-owned request to run one invocation, per
// spec.md §3 "Execution Context". Ownership transfers to the Execution
// Core once Submit accepts it.
type Context struct {
	ExecutionID     string
	ComponentName   string
	MethodName      string
	Args            json.RawMessage
	TimeoutMS       uint64
	MaxMemoryBytes  uint64
	CreatedAt       time.Time
	SensorConfig    *SensorConfig
}

// NewExecutionID mints a fresh execution identifier.
func NewExecutionID() string {
	return uuid.NewString()
}

// Progress is a single state-machine snapshot for one execution, per
// spec.md §3 "Execution Progress". Monotonic: once Complete or Error,
// the Core emits no further Progress for that execution.
type Progress struct {
	ExecutionID string
	Stage       Stage
	Fraction    float64
	Message     string
	Error       string
	Timestamp   time.Time
}

// Result is emitted exactly once per execution, per spec.md §3
// "Execution Result". success ⇔ stage=Complete, per spec.md §4.C.
type Result struct {
	ExecutionID  string
	Success      bool
	Value        json.RawMessage
	Error        string
	FailureKind  FailureKind
	ElapsedMS    int64
	MemoryPeakMB float64
	OutputBytes  *int64
	CompletedAt  time.Time
}
