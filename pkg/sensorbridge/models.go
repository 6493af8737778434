// Package sensorbridge implements the Sensor Bridge, per spec.md
// §4.D: a cursor over the Dataset Store that advances in simulated
// time and produces a Frame — a lazily computed snapshot of the
// nearest reading per configured sensor-id.
package sensorbridge

import "github.com/glsp-mcp/forge/pkg/dataset"

// Frame is a derived, recomputed-on-each-advance snapshot, per
// spec.md §3 "Sensor Frame".
type Frame struct {
	SimulationTimeUS  int64
	Readings          map[string]dataset.Reading
	AvailableSensors  []string
}

// BridgeStatus reports the bridge's current cursor state.
type BridgeStatus struct {
	Attached     bool
	CursorTimeUS int64
	StepUS       int64
	SensorIDs    []string
}

// Snapshot is the bridge's native read-only view exposed to a WASM
// guest via the Execution Core's sensor host interface (spec.md §4.C
// "a snapshot of {simulation_time_us, current_frame,
// available_sensors}"). CurrentFrame uses generic values (rather than
// dataset.Reading) so it marshals directly to the JSON payload the
// guest reads; pkg/wasmexec never imports this package, so a small
// adapter at wiring time converts one to the other.
type Snapshot struct {
	SimulationTimeUS int64
	CurrentFrame     map[string]any
	AvailableSensors []string
}
