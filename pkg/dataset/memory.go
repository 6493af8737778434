package dataset

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the InMemory Dataset Store backend. It is the reference
// implementation every other backend's behavior is checked against, and
// the default backend for tests and local development, per spec.md §4.A
// feature matrix (it supports every optional capability except streaming).
type MemoryStore struct {
	mu       sync.RWMutex
	readings map[string][]Reading // sensorID -> readings, append-only order
	metadata map[string]Metadata
	config   map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		readings: make(map[string][]Reading),
		metadata: make(map[string]Metadata),
		config:   make(map[string]string),
	}
}

func (m *MemoryStore) StoreReading(_ context.Context, r Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storeLocked(r)
	return nil
}

func (m *MemoryStore) storeLocked(r Reading) {
	m.readings[r.SensorID] = append(m.readings[r.SensorID], r)
	m.touchMetadataLocked(r.SensorID, r.TimestampUS)
}

func (m *MemoryStore) touchMetadataLocked(sensorID string, ts int64) {
	md, ok := m.metadata[sensorID]
	if !ok {
		md = Metadata{SensorID: sensorID, FirstSeenTS: ts, IsActive: true}
	}
	if ts < md.FirstSeenTS || md.FirstSeenTS == 0 {
		md.FirstSeenTS = ts
	}
	if ts > md.LastSeenTS {
		md.LastSeenTS = ts
	}
	m.metadata[sensorID] = md
}

// StoreBatch stores every reading in the batch atomically: an empty batch
// is a no-op success (spec.md §8 boundary behavior), and because the
// in-memory backend never partially fails, it always reports the full
// count stored.
func (m *MemoryStore) StoreBatch(_ context.Context, b Batch) (int, error) {
	if len(b.Readings) == 0 {
		return 0, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range b.Readings {
		m.storeLocked(r)
	}
	return len(b.Readings), nil
}

func (m *MemoryStore) Query(_ context.Context, q Query) ([]Reading, error) {
	if q.StartUS > q.EndUS {
		return nil, ErrInvalidQuery
	}
	if q.Limit != nil && *q.Limit < 0 {
		return nil, ErrInvalidQuery
	}

	if q.Limit != nil && *q.Limit == 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	wantSensors := toSet(q.SensorIDs)
	wantTypes := toSet(q.DataTypes)

	var out []Reading
	for sensorID, rs := range m.readings {
		if len(wantSensors) > 0 && !wantSensors[sensorID] {
			continue
		}
		for _, r := range rs {
			if r.TimestampUS < q.StartUS || r.TimestampUS > q.EndUS {
				continue
			}
			if len(wantTypes) > 0 && !wantTypes[r.DataType] {
				continue
			}
			if q.MinQuality != nil && r.Quality < *q.MinQuality {
				continue
			}
			out = append(out, r)
		}
	}

	sortReadings(out)

	if q.DownsampleIntervalUS > 0 {
		out = downsampleReadings(out, q.StartUS, q.EndUS, q.DownsampleIntervalUS)
	}

	if q.Limit != nil && *q.Limit > 0 && len(out) > *q.Limit {
		out = out[:*q.Limit]
	}
	return out, nil
}

func (m *MemoryStore) GetReadingAt(_ context.Context, sensorID string, tsUS int64) (Reading, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := nearestReading(m.readings[sensorID], tsUS, defaultSearchWindowUS)
	return r, ok, nil
}

func (m *MemoryStore) TimeRange(_ context.Context, sensorID string) (TimeRange, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []Reading
	if sensorID != "" {
		all = m.readings[sensorID]
	} else {
		for _, rs := range m.readings {
			all = append(all, rs...)
		}
	}
	if len(all) == 0 {
		return TimeRange{}, false, nil
	}

	tr := TimeRange{SensorID: sensorID, StartUS: all[0].TimestampUS, EndUS: all[0].TimestampUS}
	var size int64
	for _, r := range all {
		if r.TimestampUS < tr.StartUS {
			tr.StartUS = r.TimestampUS
		}
		if r.TimestampUS > tr.EndUS {
			tr.EndUS = r.TimestampUS
		}
		size += int64(len(r.Payload))
	}
	tr.Count = int64(len(all))
	tr.SizeBytes = size
	return tr, true, nil
}

func (m *MemoryStore) ListSensors(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sensors := make([]string, 0, len(m.readings))
	for id := range m.readings {
		sensors = append(sensors, id)
	}
	sortStrings(sensors)
	return sensors, nil
}

func (m *MemoryStore) Downsample(_ context.Context, sensorID string, startUS, endUS, intervalUS int64) ([]Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return downsampleReadings(m.readings[sensorID], startUS, endUS, intervalUS), nil
}

func (m *MemoryStore) Interpolate(_ context.Context, sensorID string, targetsUS []int64) ([]Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Reading, 0, len(targetsUS))
	for _, t := range targetsUS {
		if r, ok := nearestReading(m.readings[sensorID], t, defaultSearchWindowUS); ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, sensorID string, startUS, endUS int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rs := m.readings[sensorID]
	kept := rs[:0:0]
	removed := 0
	for _, r := range rs {
		if r.TimestampUS >= startUS && r.TimestampUS <= endUS {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	m.readings[sensorID] = kept
	return removed, nil
}

func (m *MemoryStore) MetadataGet(_ context.Context, sensorID string) (Metadata, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	md, ok := m.metadata[sensorID]
	return md, ok, nil
}

func (m *MemoryStore) MetadataSet(_ context.Context, md Metadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata[md.SensorID] = md
	return nil
}

func (m *MemoryStore) ConfigGet(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.config[key]
	return v, ok, nil
}

func (m *MemoryStore) ConfigSet(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config[key] = value
	return nil
}

func (m *MemoryStore) Features() Features {
	return Features{
		Transactions:       true,
		TimeSeries:         true,
		Aggregation:        true,
		Downsampling:       true,
		Interpolation:      true,
		Streaming:          false,
		MaxBatchSize:       0, // unbounded
		SupportedDataTypes: nil,
	}
}

func (m *MemoryStore) HealthCheck(_ context.Context) Health {
	return Health{Connected: true, LatencyMS: 0, Version: "memory", LastCheck: time.Now()}
}

func (m *MemoryStore) Close() error { return nil }

func toSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	set := make(map[string]bool, len(items))
	for _, i := range items {
		set[i] = true
	}
	return set
}

func sortStrings(items []string) {
	// insertion sort: the sensor-ID lists this runs over are small, and
	// this avoids importing sort for one call site.
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j-1] > items[j]; j-- {
			items[j-1], items[j] = items[j], items[j-1]
		}
	}
}
