package sensorbridge

import (
	"context"
	"sort"
	"sync"

	"github.com/glsp-mcp/forge/pkg/dataset"
)

// Config configures one Bridge instance, per spec.md §4.D's cursor
// fields `{cursor_time_us, step_us, dataset_handle, sensor_ids}`.
type Config struct {
	SensorIDs    []string
	StepUS       int64
	StartCursorUS int64
}

// Bridge holds a cursor over a Dataset Store and produces Frames
// advancing in simulated time, per spec.md §4.D. Frames are computed
// lazily: CurrentFrame re-queries the store on every call rather than
// caching, so repeated pulls without an intervening AdvanceFrame
// return the same data consistently.
type Bridge struct {
	mu sync.Mutex

	store     dataset.Store
	sensorIDs []string
	stepUS    int64

	cursorUS int64
	attached bool
}

// New builds a Bridge over store with the given Config. The cursor
// starts at cfg.StartCursorUS but the bridge does not query until
// Start is called.
func New(store dataset.Store, cfg Config) *Bridge {
	ids := make([]string, len(cfg.SensorIDs))
	copy(ids, cfg.SensorIDs)
	sort.Strings(ids)

	return &Bridge{
		store:     store,
		sensorIDs: ids,
		stepUS:    cfg.StepUS,
		cursorUS:  cfg.StartCursorUS,
	}
}

// Start attaches the cursor, per spec.md §4.D "start()".
func (b *Bridge) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attached = true
}

// Stop detaches the cursor, per spec.md §4.D "stop()". A stopped
// bridge still answers CurrentFrame/Status queries; it refuses
// further AdvanceFrame calls.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attached = false
}

// AdvanceFrame moves the cursor forward by step_us and reports
// whether any configured sensor still has data at or after the new
// cursor position, per spec.md §4.D. A detached bridge does not
// advance and reports false.
func (b *Bridge) AdvanceFrame(ctx context.Context) (bool, error) {
	b.mu.Lock()
	if !b.attached {
		b.mu.Unlock()
		return false, nil
	}
	nextCursor := b.cursorUS + b.stepUS
	sensorIDs := append([]string(nil), b.sensorIDs...)
	b.mu.Unlock()

	hasMore, err := b.anyReadingAtOrAfter(ctx, sensorIDs, nextCursor)
	if err != nil {
		return false, err
	}

	b.mu.Lock()
	b.cursorUS = nextCursor
	b.mu.Unlock()

	return hasMore, nil
}

// anyReadingAtOrAfter reports whether any configured sensor's time
// range extends to or past cursorUS — spec.md's end-of-data condition
// ("no reading exists at or after the new cursor for any configured
// sensor").
func (b *Bridge) anyReadingAtOrAfter(ctx context.Context, sensorIDs []string, cursorUS int64) (bool, error) {
	for _, id := range sensorIDs {
		tr, ok, err := b.store.TimeRange(ctx, id)
		if err != nil {
			return false, err
		}
		if ok && tr.EndUS >= cursorUS {
			return true, nil
		}
	}
	return false, nil
}

// CurrentFrame returns the lazily computed frame at the current
// cursor position: for each configured sensor-id, the nearest reading
// within the Dataset Store's default window (spec.md §4.D
// "current_frame()"). Sensors with nothing in window are simply
// absent from Readings, not an error.
func (b *Bridge) CurrentFrame(ctx context.Context) (Frame, error) {
	b.mu.Lock()
	cursorUS := b.cursorUS
	sensorIDs := append([]string(nil), b.sensorIDs...)
	b.mu.Unlock()

	readings := make(map[string]dataset.Reading, len(sensorIDs))
	available := make([]string, 0, len(sensorIDs))
	for _, id := range sensorIDs {
		reading, ok, err := b.store.GetReadingAt(ctx, id, cursorUS)
		if err != nil {
			return Frame{}, err
		}
		if ok {
			readings[id] = reading
			available = append(available, id)
		}
	}

	return Frame{
		SimulationTimeUS: cursorUS,
		Readings:         readings,
		AvailableSensors: available,
	}, nil
}

// Status reports the bridge's current cursor state.
func (b *Bridge) Status() BridgeStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BridgeStatus{
		Attached:     b.attached,
		CursorTimeUS: b.cursorUS,
		StepUS:       b.stepUS,
		SensorIDs:    append([]string(nil), b.sensorIDs...),
	}
}

// Snapshot adapts CurrentFrame into the generic, JSON-friendly shape
// the Execution Core's sensor host interface exposes to a guest, per
// spec.md §4.C.
func (b *Bridge) Snapshot(ctx context.Context) (Snapshot, error) {
	frame, err := b.CurrentFrame(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	currentFrame := make(map[string]any, len(frame.Readings))
	for sensorID, reading := range frame.Readings {
		currentFrame[sensorID] = map[string]any{
			"timestamp_us": reading.TimestampUS,
			"data_type":    reading.DataType,
			"quality":      reading.Quality,
			"payload":      reading.Payload,
		}
	}

	return Snapshot{
		SimulationTimeUS: frame.SimulationTimeUS,
		CurrentFrame:     currentFrame,
		AvailableSensors: frame.AvailableSensors,
	}, nil
}
