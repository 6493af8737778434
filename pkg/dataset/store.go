package dataset

import "context"

// Store is the capability-set every Dataset Store backend implements, per
// spec.md §4.A. Backends advertise optional capabilities through
// Features() instead of the caller assuming support (spec.md §9
// "Polymorphism over backends").
type Store interface {
	// StoreReading persists a single reading. Fails with ErrConnectionLost,
	// ErrSerializationError, or ErrQueryFailed.
	StoreReading(ctx context.Context, r Reading) error

	// StoreBatch persists a batch atomically per sensor-id: all readings
	// for one sensor-id either all succeed or none do. Across different
	// sensor-ids, a backend may report partial success only if it
	// returns the set that succeeded.
	StoreBatch(ctx context.Context, b Batch) (stored int, err error)

	// Query returns readings ordered by (timestamp_us asc, sensor_id asc).
	// If q.Limit is set, the earliest Limit matches are returned.
	Query(ctx context.Context, q Query) ([]Reading, error)

	// GetReadingAt returns the reading nearest ts for sensorID within the
	// default ±1s window (ties broken by lower timestamp), or ok=false if
	// none exists in the window.
	GetReadingAt(ctx context.Context, sensorID string, tsUS int64) (Reading, bool, error)

	// TimeRange reports the extent of stored data, global if sensorID=="".
	TimeRange(ctx context.Context, sensorID string) (TimeRange, bool, error)

	// ListSensors returns all known sensor IDs in sorted order.
	ListSensors(ctx context.Context) ([]string, error)

	// Downsample buckets readings into fixed [start+k*interval, start+(k+1)*interval)
	// windows and emits one reading per non-empty bucket (spec.md §4.A).
	// Returns ErrFeatureNotSupported if Features().Downsampling is false.
	Downsample(ctx context.Context, sensorID string, startUS, endUS, intervalUS int64) ([]Reading, error)

	// Interpolate returns, for each target timestamp, the nearest-neighbor
	// reading, skipping targets with nothing in store. Returns
	// ErrFeatureNotSupported if Features().Interpolation is false.
	Interpolate(ctx context.Context, sensorID string, targetsUS []int64) ([]Reading, error)

	// Delete removes readings for sensorID in [startUS, endUS] and returns
	// the count removed.
	Delete(ctx context.Context, sensorID string, startUS, endUS int64) (int, error)

	// MetadataGet/MetadataSet manage per-sensor metadata.
	MetadataGet(ctx context.Context, sensorID string) (Metadata, bool, error)
	MetadataSet(ctx context.Context, m Metadata) error

	// ConfigGet/ConfigSet are a generic key-value extension point used by
	// backends that support config_* operations (spec.md §4.A).
	ConfigGet(ctx context.Context, key string) (string, bool, error)
	ConfigSet(ctx context.Context, key, value string) error

	// Features describes this backend's optional capabilities.
	Features() Features

	// HealthCheck reports backend connectivity (spec.md §4.A).
	HealthCheck(ctx context.Context) Health

	// Close releases backend resources.
	Close() error
}
