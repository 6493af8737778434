package sensorbridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glsp-mcp/forge/pkg/dataset"
)

func seedReadings(t *testing.T, store dataset.Store, sensorID string, count int, stepUS int64) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < count; i++ {
		require.NoError(t, store.StoreReading(ctx, dataset.Reading{
			SensorID:    sensorID,
			TimestampUS: int64(i) * stepUS,
			DataType:    "temperature",
			Quality:     0.9,
		}))
	}
}

func TestBridge_AdvanceFrameEndOfData(t *testing.T) {
	store := dataset.NewMemoryStore()
	seedReadings(t, store, "s1", 10, 1000)

	b := New(store, Config{SensorIDs: []string{"s1"}, StepUS: 1000})
	b.Start()

	steps := 0
	for {
		hasMore, err := b.AdvanceFrame(context.Background())
		require.NoError(t, err)
		if !hasMore {
			break
		}
		steps++
		require.Less(t, steps, 100, "advance loop did not terminate")
	}

	assert.Equal(t, 9, steps)
}

func TestBridge_CurrentFrameReturnsNearestPerSensor(t *testing.T) {
	store := dataset.NewMemoryStore()
	seedReadings(t, store, "s1", 5, 1000)
	seedReadings(t, store, "s2", 5, 1000)

	b := New(store, Config{SensorIDs: []string{"s1", "s2"}, StepUS: 1000, StartCursorUS: 2000})
	b.Start()

	frame, err := b.CurrentFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2000), frame.SimulationTimeUS)
	assert.Contains(t, frame.Readings, "s1")
	assert.Contains(t, frame.Readings, "s2")
	assert.ElementsMatch(t, []string{"s1", "s2"}, frame.AvailableSensors)
}

func TestBridge_CurrentFrameOmitsSensorsWithoutData(t *testing.T) {
	store := dataset.NewMemoryStore()
	seedReadings(t, store, "s1", 3, 1000)

	b := New(store, Config{SensorIDs: []string{"s1", "s2"}, StepUS: 1000})
	b.Start()

	frame, err := b.CurrentFrame(context.Background())
	require.NoError(t, err)
	assert.Contains(t, frame.Readings, "s1")
	assert.NotContains(t, frame.Readings, "s2")
	assert.Equal(t, []string{"s1"}, frame.AvailableSensors)
}

func TestBridge_DetachedBridgeDoesNotAdvance(t *testing.T) {
	store := dataset.NewMemoryStore()
	seedReadings(t, store, "s1", 10, 1000)

	b := New(store, Config{SensorIDs: []string{"s1"}, StepUS: 1000})

	hasMore, err := b.AdvanceFrame(context.Background())
	require.NoError(t, err)
	assert.False(t, hasMore)
	assert.Equal(t, int64(0), b.Status().CursorTimeUS)
}

func TestBridge_StopHaltsAdvancing(t *testing.T) {
	store := dataset.NewMemoryStore()
	seedReadings(t, store, "s1", 10, 1000)

	b := New(store, Config{SensorIDs: []string{"s1"}, StepUS: 1000})
	b.Start()
	_, err := b.AdvanceFrame(context.Background())
	require.NoError(t, err)

	b.Stop()
	cursorBefore := b.Status().CursorTimeUS
	hasMore, err := b.AdvanceFrame(context.Background())
	require.NoError(t, err)
	assert.False(t, hasMore)
	assert.Equal(t, cursorBefore, b.Status().CursorTimeUS)
}

func TestBridge_Status(t *testing.T) {
	store := dataset.NewMemoryStore()
	b := New(store, Config{SensorIDs: []string{"s2", "s1"}, StepUS: 500})
	b.Start()

	status := b.Status()
	assert.True(t, status.Attached)
	assert.Equal(t, int64(500), status.StepUS)
	assert.Equal(t, []string{"s1", "s2"}, status.SensorIDs)
}

func TestBridge_SnapshotIsJSONFriendly(t *testing.T) {
	store := dataset.NewMemoryStore()
	seedReadings(t, store, "s1", 2, 1000)

	b := New(store, Config{SensorIDs: []string{"s1"}, StepUS: 1000})
	b.Start()

	snap, err := b.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, snap.AvailableSensors)
	assert.Contains(t, snap.CurrentFrame, "s1")
}
