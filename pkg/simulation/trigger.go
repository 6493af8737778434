package simulation

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/glsp-mcp/forge/pkg/dataset"
)

// frameContext carries what a trigger or condition needs to evaluate
// against the current frame, per spec.md §4.F step 3 "every scenario
// whose triggers are satisfied".
type frameContext struct {
	frameIndex      int64
	simTimeUS       int64
	elapsedSinceSim time.Duration
	latestReadings  map[string]dataset.Reading // sensor_id -> most recent reading this frame
	completedPipelines map[string]bool          // pipeline_id and "scenarioID/pipelineID" -> success, across all scenarios
	externalEvents  map[string]bool            // event_name -> fired this frame
}

// satisfied reports whether t fires given fc and the scenario's
// registration time, per original_source simulation.rs's TriggerType
// variants.
func (t ScenarioTrigger) satisfied(fc frameContext, registeredAt time.Time, now time.Time) bool {
	if !t.Enabled {
		return false
	}

	switch t.Type {
	case TriggerTime:
		return fc.simTimeUS >= t.AtTimeUS

	case TriggerSensorData:
		reading, ok := fc.latestReadings[t.SensorID]
		if !ok {
			return false
		}
		value, ok := decodeNumericPayload(reading.Payload)
		if !ok {
			slog.Warn("simulation: sensor trigger payload is not numeric, skipping", "sensor_id", t.SensorID)
			return false
		}
		return compare(t.Op, value, t.Threshold)

	case TriggerPipelineCompletion:
		return fc.completedPipelines[t.PipelineID]

	case TriggerExternalEvent:
		return fc.externalEvents[t.EventName]

	case TriggerSystemState:
		return now.Sub(registeredAt) >= time.Duration(t.DelayUS)*time.Microsecond

	default:
		return false
	}
}

func decodeNumericPayload(payload []byte) (float64, bool) {
	var v float64
	if err := json.Unmarshal(payload, &v); err != nil {
		return 0, false
	}
	return v, true
}

func compare(op CompareOp, value, threshold float64) bool {
	switch op {
	case CompareGT:
		return value > threshold
	case CompareGE:
		return value >= threshold
	case CompareLT:
		return value < threshold
	case CompareLE:
		return value <= threshold
	case CompareEQ:
		return value == threshold
	default:
		return false
	}
}

// anyEnabledSatisfied reports whether any of a scenario's enabled
// triggers fire — scenarios start on the first trigger to fire, not
// requiring all of them, matching original_source simulation.rs's
// independent per-trigger evaluation.
func anyEnabledSatisfied(triggers []ScenarioTrigger, fc frameContext, registeredAt, now time.Time) bool {
	if len(triggers) == 0 {
		return true
	}
	for _, t := range triggers {
		if t.satisfied(fc, registeredAt, now) {
			return true
		}
	}
	return false
}
