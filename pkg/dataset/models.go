// Package dataset implements the time-indexed sensor reading store
// (spec.md §4.A) as a capability-set interface over pluggable backends
// (TimeSeriesSQL, TSDB, KV, InMemory), following the teacher repo's
// pattern of a thin Store façade over a concrete driver (pkg/database
// wraps pgx behind an Ent client; here Store wraps each backend behind
// one Go interface).
package dataset

import "time"

// Reading is an immutable sensor reading record, per spec.md §3.
type Reading struct {
	SensorID    string
	TimestampUS int64
	DataType    string
	Payload     []byte
	Quality     float32
	Metadata    map[string]any
	Checksum    string
}

// Batch is an ordered sequence of readings submitted atomically, per
// spec.md §3 "Sensor Batch".
type Batch struct {
	Readings []Reading
}

// Metadata describes a sensor, per spec.md §3 "Sensor Metadata".
type Metadata struct {
	SensorID       string
	Name           string
	SensorType     string
	Location       string
	SamplingRateHz float64
	Calibration    map[string]any
	FirstSeenTS    int64
	LastSeenTS     int64
	IsActive       bool
}

// Query selects readings from the store, per spec.md §3 "Query".
type Query struct {
	SensorIDs            []string
	StartUS              int64
	EndUS                int64
	DataTypes            []string
	MinQuality           *float32
	// Limit is nil when unset (no limit). A non-nil zero means "return
	// nothing", per spec.md §8 boundary behavior "Query with limit=0 ->
	// empty result".
	Limit                *int
	DownsampleIntervalUS int64
}

// TimeRange summarizes the extent of data for a sensor (or globally when
// SensorID is empty), per spec.md §4.A "time_range".
type TimeRange struct {
	SensorID string
	StartUS  int64
	EndUS    int64
	Count    int64
	SizeBytes int64
}

// Features describes which optional capabilities a backend implements,
// per spec.md §4.A "Feature matrix" — callers must query this before
// exercising an optional operation instead of assuming support.
type Features struct {
	Transactions        bool
	TimeSeries          bool
	Aggregation         bool
	Downsampling        bool
	Interpolation       bool
	Streaming           bool
	MaxBatchSize        int
	SupportedDataTypes  []string
}

// Health reports backend connectivity, per spec.md §4.A "Health check".
type Health struct {
	Connected bool
	LatencyMS float64
	Version   string
	Error     string
	LastCheck time.Time
}
