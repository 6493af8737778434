package dataset

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reading(sensorID string, ts int64, quality float32) Reading {
	return Reading{SensorID: sensorID, TimestampUS: ts, DataType: "temperature", Quality: quality}
}

func TestMemoryStore_StoreAndQuery(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.StoreReading(ctx, reading("s1", 1000, 0.9)))
	require.NoError(t, store.StoreReading(ctx, reading("s1", 2000, 0.95)))
	require.NoError(t, store.StoreReading(ctx, reading("s2", 1500, 0.5)))

	out, err := store.Query(ctx, Query{StartUS: 0, EndUS: 3000})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, int64(1000), out[0].TimestampUS)
	assert.Equal(t, int64(1500), out[1].TimestampUS)
	assert.Equal(t, int64(2000), out[2].TimestampUS)
}

func TestMemoryStore_QueryFiltersBySensorAndQuality(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.StoreReading(ctx, reading("s1", 1000, 0.2)))
	require.NoError(t, store.StoreReading(ctx, reading("s1", 2000, 0.9)))
	require.NoError(t, store.StoreReading(ctx, reading("s2", 1000, 0.9)))

	min := float32(0.5)
	out, err := store.Query(ctx, Query{SensorIDs: []string{"s1"}, StartUS: 0, EndUS: 3000, MinQuality: &min})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(2000), out[0].TimestampUS)
}

func TestMemoryStore_QueryInvalidRange(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_, err := store.Query(ctx, Query{StartUS: 5000, EndUS: 1000})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestMemoryStore_QueryLimitZeroReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.StoreReading(ctx, reading("s1", 1000, 0.9)))

	zero := 0
	out, err := store.Query(ctx, Query{StartUS: 0, EndUS: 5000, Limit: &zero})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMemoryStore_QueryLimitTruncatesToEarliest(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for _, ts := range []int64{3000, 1000, 2000} {
		require.NoError(t, store.StoreReading(ctx, reading("s1", ts, 0.9)))
	}

	one := 1
	out, err := store.Query(ctx, Query{StartUS: 0, EndUS: 5000, Limit: &one})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1000), out[0].TimestampUS)
}

func TestMemoryStore_QueryNegativeLimitIsInvalid(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	neg := -1
	_, err := store.Query(ctx, Query{StartUS: 0, EndUS: 5000, Limit: &neg})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestMemoryStore_StoreBatchEmptyIsNoop(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	stored, err := store.StoreBatch(ctx, Batch{})
	require.NoError(t, err)
	assert.Equal(t, 0, stored)
}

func TestMemoryStore_StoreBatchReportsFullCount(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	stored, err := store.StoreBatch(ctx, Batch{Readings: []Reading{
		reading("s1", 1000, 0.9),
		reading("s1", 2000, 0.9),
		reading("s2", 1000, 0.9),
	}})
	require.NoError(t, err)
	assert.Equal(t, 3, stored)
}

func TestMemoryStore_GetReadingAtNearest(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.StoreReading(ctx, reading("s1", 1_000_000, 0.9)))
	require.NoError(t, store.StoreReading(ctx, reading("s1", 1_500_000, 0.9)))

	r, ok, err := store.GetReadingAt(ctx, "s1", 1_400_000)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1_500_000), r.TimestampUS)
}

func TestMemoryStore_GetReadingAtOutsideWindow(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.StoreReading(ctx, reading("s1", 0, 0.9)))

	_, ok, err := store.GetReadingAt(ctx, "s1", 5_000_000)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_TimeRangePerSensorAndGlobal(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.StoreReading(ctx, reading("s1", 1000, 0.9)))
	require.NoError(t, store.StoreReading(ctx, reading("s1", 3000, 0.9)))
	require.NoError(t, store.StoreReading(ctx, reading("s2", 5000, 0.9)))

	tr, ok, err := store.TimeRange(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1000), tr.StartUS)
	assert.Equal(t, int64(3000), tr.EndUS)
	assert.Equal(t, int64(2), tr.Count)

	global, ok, err := store.TimeRange(ctx, "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(3), global.Count)
}

func TestMemoryStore_TimeRangeEmptySensor(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_, ok, err := store.TimeRange(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_ListSensorsSorted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.StoreReading(ctx, reading("zeta", 1000, 0.9)))
	require.NoError(t, store.StoreReading(ctx, reading("alpha", 1000, 0.9)))

	sensors, err := store.ListSensors(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, sensors)
}

func TestMemoryStore_Downsample(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.StoreReading(ctx, reading("s1", 0, 0.8)))
	require.NoError(t, store.StoreReading(ctx, reading("s1", 500_000, 1.0)))
	require.NoError(t, store.StoreReading(ctx, reading("s1", 1_200_000, 0.5)))

	out, err := store.Downsample(ctx, "s1", 0, 2_000_000, 1_000_000)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.InDelta(t, 0.9, out[0].Quality, 0.001)
	assert.InDelta(t, 0.5, out[1].Quality, 0.001)
}

func TestMemoryStore_Interpolate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.StoreReading(ctx, reading("s1", 1_000_000, 0.9)))

	out, err := store.Interpolate(ctx, "s1", []int64{1_100_000, 10_000_000})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1_000_000), out[0].TimestampUS)
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.StoreReading(ctx, reading("s1", 1000, 0.9)))
	require.NoError(t, store.StoreReading(ctx, reading("s1", 2000, 0.9)))
	require.NoError(t, store.StoreReading(ctx, reading("s1", 9000, 0.9)))

	removed, err := store.Delete(ctx, "s1", 0, 3000)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	out, err := store.Query(ctx, Query{StartUS: 0, EndUS: 10000})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(9000), out[0].TimestampUS)
}

func TestMemoryStore_MetadataRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.StoreReading(ctx, reading("s1", 1000, 0.9)))

	md, ok, err := store.MetadataGet(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, md.IsActive)
	assert.Equal(t, int64(1000), md.FirstSeenTS)

	md.Name = "front-door"
	require.NoError(t, store.MetadataSet(ctx, md))

	md2, ok, err := store.MetadataGet(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "front-door", md2.Name)
}

func TestMemoryStore_ConfigRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, ok, err := store.ConfigGet(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.ConfigSet(ctx, "retention_days", "30"))
	v, ok, err := store.ConfigGet(ctx, "retention_days")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "30", v)
}

func TestMemoryStore_FeaturesAdvertiseAllButStreaming(t *testing.T) {
	store := NewMemoryStore()
	f := store.Features()
	assert.True(t, f.Transactions)
	assert.True(t, f.Downsampling)
	assert.True(t, f.Interpolation)
	assert.False(t, f.Streaming)
}

func TestMemoryStore_HealthCheckAlwaysConnected(t *testing.T) {
	store := NewMemoryStore()
	h := store.HealthCheck(context.Background())
	assert.True(t, h.Connected)
	assert.Equal(t, "memory", h.Version)
}
