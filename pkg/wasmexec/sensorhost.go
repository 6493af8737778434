package wasmexec

import (
	"context"
	"encoding/json"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// SensorSnapshot is the read-only view of the Sensor Bridge the host
// exposes to a guest instance, per spec.md §4.C "Sensor host
// interface": "a snapshot of {simulation_time_us, current_frame,
// available_sensors}. ... read-only from the guest's perspective; the
// host advances frames between invocations."
type SensorSnapshot struct {
	SimulationTimeUS  int64                  `json:"simulation_time_us"`
	CurrentFrame      map[string]interface{} `json:"current_frame"`
	AvailableSensors  []string               `json:"available_sensors"`
}

// SensorSource is the narrow contract the Execution Core needs from a
// Sensor Bridge instance. It is declared here, consumer-side, so
// pkg/wasmexec does not depend on pkg/sensorbridge's package;
// cmd/forge wraps a *sensorbridge.Bridge in an adapter that satisfies
// it and hands the Core a SensorSourceFactory that builds one.
type SensorSource interface {
	Snapshot(ctx context.Context) (SensorSnapshot, error)
}

// sensorHostModuleName is the import namespace a component links
// against to read the sensor snapshot, mirroring the wasi:* namespacing
// convention the Component Catalog already recognizes.
const sensorHostModuleName = "forge:sensor/host"

// buildSensorHostModule registers a single host function,
// `snapshot(ptr, cap) -> i32`, that marshals source's current snapshot
// to JSON and writes it into the guest's own memory at ptr. It returns
// the number of bytes written, or the negated required length if cap
// was too small, letting the guest retry with a larger buffer — the
// same grow-and-retry convention WASI preview1 argv/environ getters
// use.
func buildSensorHostModule(runtime wazero.Runtime, source SensorSource) (wazero.HostModuleBuilder, error) {
	builder := runtime.NewHostModuleBuilder(sensorHostModuleName)

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			ptr := uint32(stack[0])
			cap := uint32(stack[1])

			snap, err := source.Snapshot(ctx)
			if err != nil {
				stack[0] = uint64(uint32(int32(-1)))
				return
			}
			payload, err := json.Marshal(snap)
			if err != nil {
				stack[0] = uint64(uint32(int32(-1)))
				return
			}
			if uint32(len(payload)) > cap {
				stack[0] = uint64(uint32(int32(-int64(len(payload)))))
				return
			}
			if !mod.Memory().Write(ptr, payload) {
				stack[0] = uint64(uint32(int32(-1)))
				return
			}
			stack[0] = uint64(uint32(len(payload)))
		}),
			[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
			[]api.ValueType{api.ValueTypeI32}).
		Export("snapshot")

	return builder, nil
}
