package main

import (
	"context"

	"github.com/glsp-mcp/forge/pkg/dataset"
	"github.com/glsp-mcp/forge/pkg/sensorbridge"
	"github.com/glsp-mcp/forge/pkg/wasmexec"
)

// sensorSourceAdapter satisfies wasmexec.SensorSource by wrapping a
// *sensorbridge.Bridge, translating sensorbridge.Snapshot to
// wasmexec.SensorSnapshot field-for-field — the two shapes already
// agree (spec.md §4.C "a snapshot of {simulation_time_us,
// current_frame, available_sensors}"), so this is a pure relabeling,
// not a transform.
type sensorSourceAdapter struct {
	bridge *sensorbridge.Bridge
}

func (a *sensorSourceAdapter) Snapshot(ctx context.Context) (wasmexec.SensorSnapshot, error) {
	snap, err := a.bridge.Snapshot(ctx)
	if err != nil {
		return wasmexec.SensorSnapshot{}, err
	}
	return wasmexec.SensorSnapshot{
		SimulationTimeUS: snap.SimulationTimeUS,
		CurrentFrame:     snap.CurrentFrame,
		AvailableSensors: snap.AvailableSensors,
	}, nil
}

// newSensorSourceFactory builds the wasmexec.SensorSourceFactory the
// Execution Core calls at most once per execution that carries a
// SensorConfig, per spec.md §4.C. Each call gets its own Bridge
// instance over the shared Dataset Store, started immediately.
// SensorConfig carries no start time, so the cursor starts at 0, and
// the Execution Core never advances it: every snapshot an execution
// reads is the frame at cursor 0.
func newSensorSourceFactory(store dataset.Store) wasmexec.SensorSourceFactory {
	return func(ctx context.Context, cfg wasmexec.SensorConfig) (wasmexec.SensorSource, error) {
		bridge := sensorbridge.New(store, sensorbridge.Config{
			SensorIDs: cfg.SensorIDs,
			StepUS:    cfg.StepUS,
		})
		bridge.Start()
		return &sensorSourceAdapter{bridge: bridge}, nil
	}
}
