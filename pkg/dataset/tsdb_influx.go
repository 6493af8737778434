package dataset

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/sony/gobreaker"

	"github.com/glsp-mcp/forge/pkg/apperr"
)

const readingMeasurement = "sensor_reading"

// InfluxConfig configures the TSDB Dataset Store backend.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string

	// RetentionPolicy bounds how long readings are kept before InfluxDB
	// expires them, supplementing spec.md's TSDB backend with the
	// retention behavior original_source's influxdb.rs configures on
	// bucket creation. Zero means infinite retention.
	RetentionPolicy time.Duration
}

// InfluxStore is the TSDB Dataset Store backend, built on InfluxDB's
// line-protocol write API and Flux query API. Like the KV backend, every
// call to the server is routed through a circuit breaker so a downed TSDB
// degrades gracefully instead of blocking callers on dial timeouts.
type InfluxStore struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
	org      string
	bucket   string
	breaker  *gobreaker.CircuitBreaker

	sideMu       sync.RWMutex
	sideMetaVals map[string]Metadata
	sideCfgVals  map[string]string
}

func (s *InfluxStore) sideMetadata() map[string]Metadata {
	s.sideMu.Lock()
	defer s.sideMu.Unlock()
	if s.sideMetaVals == nil {
		s.sideMetaVals = make(map[string]Metadata)
	}
	return s.sideMetaVals
}

func (s *InfluxStore) sideConfig() map[string]string {
	s.sideMu.Lock()
	defer s.sideMu.Unlock()
	if s.sideCfgVals == nil {
		s.sideCfgVals = make(map[string]string)
	}
	return s.sideCfgVals
}

// NewInfluxStore connects to InfluxDB and, when cfg.RetentionPolicy is
// set, applies it to the target bucket.
func NewInfluxStore(ctx context.Context, cfg InfluxConfig) (*InfluxStore, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	ok, err := client.Ping(ctx)
	if err != nil || !ok {
		client.Close()
		return nil, apperr.Wrap(apperr.KindDatasetUnavailable, "ping influxdb", err)
	}

	s := &InfluxStore{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		queryAPI: client.QueryAPI(cfg.Org),
		org:      cfg.Org,
		bucket:   cfg.Bucket,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "dataset-tsdb",
			Timeout: 15 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}

	if cfg.RetentionPolicy > 0 {
		if err := s.applyRetention(ctx, cfg.RetentionPolicy); err != nil {
			client.Close()
			return nil, err
		}
	}

	return s, nil
}

func (s *InfluxStore) applyRetention(ctx context.Context, retention time.Duration) error {
	bucketsAPI := s.client.BucketsAPI()
	bucket, err := bucketsAPI.FindBucketByName(ctx, s.bucket)
	if err != nil {
		return apperr.Wrap(apperr.KindDatasetUnavailable, "find influx bucket for retention update", err)
	}

	expireRule := domain.RetentionRuleTypeExpire
	bucket.RetentionRules = domain.RetentionRules{
		{EverySeconds: int64(retention.Seconds()), Type: &expireRule},
	}

	if _, err := bucketsAPI.UpdateBucket(ctx, bucket); err != nil {
		return apperr.Wrap(apperr.KindDatasetUnavailable, "apply retention policy", err)
	}
	return nil
}

func (s *InfluxStore) call(fn func() error) error {
	_, err := s.breaker.Execute(func() (any, error) {
		return nil, fn()
	})
	if err != nil {
		return apperr.Wrap(apperr.KindQueryFailed, "influxdb operation", err)
	}
	return nil
}

func (s *InfluxStore) StoreReading(ctx context.Context, r Reading) error {
	return s.call(func() error {
		return s.writeAPI.WritePoint(ctx, pointFromReading(r))
	})
}

func pointFromReading(r Reading) *write.Point {
	return influxdb2.NewPoint(
		readingMeasurement,
		map[string]string{
			"sensor_id": r.SensorID,
			"data_type": r.DataType,
		},
		map[string]any{
			"payload":  base64.StdEncoding.EncodeToString(r.Payload),
			"quality":  r.Quality,
			"checksum": r.Checksum,
			"metadata": marshalMetadataOrEmpty(r.Metadata),
		},
		time.UnixMicro(r.TimestampUS),
	)
}

func marshalMetadataOrEmpty(meta map[string]any) string {
	if len(meta) == 0 {
		return ""
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return ""
	}
	return string(b)
}

// StoreBatch writes every reading as a single batched line-protocol
// request. An empty batch is a no-op per spec.md §8.
func (s *InfluxStore) StoreBatch(ctx context.Context, b Batch) (int, error) {
	if len(b.Readings) == 0 {
		return 0, nil
	}
	points := make([]*write.Point, 0, len(b.Readings))
	for _, r := range b.Readings {
		points = append(points, pointFromReading(r))
	}
	err := s.call(func() error {
		return s.writeAPI.WritePoint(ctx, points...)
	})
	if err != nil {
		return 0, err
	}
	return len(b.Readings), nil
}

func (s *InfluxStore) Query(ctx context.Context, q Query) ([]Reading, error) {
	if q.StartUS > q.EndUS {
		return nil, ErrInvalidQuery
	}
	if q.Limit != nil && *q.Limit < 0 {
		return nil, ErrInvalidQuery
	}
	if q.Limit != nil && *q.Limit == 0 {
		return nil, nil
	}

	flux := fmt.Sprintf(`
		from(bucket: %q)
		|> range(start: time(v: %d), stop: time(v: %d))
		|> filter(fn: (r) => r._measurement == %q)
	`, s.bucket, q.StartUS*1000, (q.EndUS+1)*1000, readingMeasurement)

	if len(q.SensorIDs) > 0 {
		flux += fluxInFilter("sensor_id", q.SensorIDs)
	}
	if len(q.DataTypes) > 0 {
		flux += fluxInFilter("data_type", q.DataTypes)
	}

	out, err := s.runQuery(ctx, flux)
	if err != nil {
		return nil, err
	}

	if q.MinQuality != nil {
		filtered := out[:0]
		for _, r := range out {
			if r.Quality >= *q.MinQuality {
				filtered = append(filtered, r)
			}
		}
		out = filtered
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

func fluxInFilter(tag string, values []string) string {
	expr := ""
	for i, v := range values {
		if i > 0 {
			expr += " or "
		}
		expr += fmt.Sprintf("r.%s == %q", tag, v)
	}
	return fmt.Sprintf("|> filter(fn: (r) => %s)\n", expr)
}

func (s *InfluxStore) runQuery(ctx context.Context, flux string) ([]Reading, error) {
	byKey := make(map[string]*Reading)
	var keys []string

	err := s.call(func() error {
		result, err := s.queryAPI.Query(ctx, flux)
		if err != nil {
			return err
		}
		defer result.Close()

		for result.Next() {
			rec := result.Record()
			key := fmt.Sprintf("%s|%d", rec.ValueByKey("sensor_id"), rec.Time().UnixMicro())
			r, ok := byKey[key]
			if !ok {
				sensorID, _ := rec.ValueByKey("sensor_id").(string)
				dataType, _ := rec.ValueByKey("data_type").(string)
				r = &Reading{SensorID: sensorID, DataType: dataType, TimestampUS: rec.Time().UnixMicro()}
				byKey[key] = r
				keys = append(keys, key)
			}
			applyInfluxField(r, rec.Field(), rec.Value())
		}
		return result.Err()
	})
	if err != nil {
		return nil, err
	}

	out := make([]Reading, 0, len(keys))
	for _, k := range keys {
		out = append(out, *byKey[k])
	}
	return out, nil
}

func applyInfluxField(r *Reading, field string, value any) {
	switch field {
	case "payload":
		if s, ok := value.(string); ok {
			if raw, err := base64.StdEncoding.DecodeString(s); err == nil {
				r.Payload = raw
			}
		}
	case "quality":
		switch v := value.(type) {
		case float64:
			r.Quality = float32(v)
		case float32:
			r.Quality = v
		}
	case "checksum":
		if s, ok := value.(string); ok {
			r.Checksum = s
		}
	case "metadata":
		if s, ok := value.(string); ok && s != "" {
			var meta map[string]any
			if json.Unmarshal([]byte(s), &meta) == nil {
				r.Metadata = meta
			}
		}
	}
}

func (s *InfluxStore) GetReadingAt(ctx context.Context, sensorID string, tsUS int64) (Reading, bool, error) {
	rs, err := s.Query(ctx, Query{
		SensorIDs: []string{sensorID},
		StartUS:   tsUS - defaultSearchWindowUS,
		EndUS:     tsUS + defaultSearchWindowUS,
	})
	if err != nil {
		return Reading{}, false, err
	}
	r, ok := nearestReading(rs, tsUS, defaultSearchWindowUS)
	return r, ok, nil
}

func (s *InfluxStore) TimeRange(ctx context.Context, sensorID string) (TimeRange, bool, error) {
	flux := fmt.Sprintf(`
		from(bucket: %q)
		|> range(start: 0)
		|> filter(fn: (r) => r._measurement == %q)
	`, s.bucket, readingMeasurement)
	if sensorID != "" {
		flux += fluxInFilter("sensor_id", []string{sensorID})
	}

	rs, err := s.runQuery(ctx, flux)
	if err != nil {
		return TimeRange{}, false, err
	}
	if len(rs) == 0 {
		return TimeRange{}, false, nil
	}

	tr := TimeRange{SensorID: sensorID, StartUS: rs[0].TimestampUS, EndUS: rs[0].TimestampUS}
	var size int64
	for _, r := range rs {
		if r.TimestampUS < tr.StartUS {
			tr.StartUS = r.TimestampUS
		}
		if r.TimestampUS > tr.EndUS {
			tr.EndUS = r.TimestampUS
		}
		size += int64(len(r.Payload))
	}
	tr.Count = int64(len(rs))
	tr.SizeBytes = size
	return tr, true, nil
}

func (s *InfluxStore) ListSensors(ctx context.Context) ([]string, error) {
	flux := fmt.Sprintf(`
		import "influxdata/influxdb/schema"
		schema.tagValues(bucket: %q, tag: "sensor_id", predicate: (r) => r._measurement == %q)
	`, s.bucket, readingMeasurement)

	var ids []string
	err := s.call(func() error {
		result, err := s.queryAPI.Query(ctx, flux)
		if err != nil {
			return err
		}
		defer result.Close()
		for result.Next() {
			if v, ok := result.Record().Value().(string); ok {
				ids = append(ids, v)
			}
		}
		return result.Err()
	})
	if err != nil {
		return nil, err
	}
	sortStrings(ids)
	return ids, nil
}

func (s *InfluxStore) Downsample(ctx context.Context, sensorID string, startUS, endUS, intervalUS int64) ([]Reading, error) {
	rs, err := s.Query(ctx, Query{SensorIDs: []string{sensorID}, StartUS: startUS, EndUS: endUS})
	if err != nil {
		return nil, err
	}
	return downsampleReadings(rs, startUS, endUS, intervalUS), nil
}

func (s *InfluxStore) Interpolate(ctx context.Context, sensorID string, targetsUS []int64) ([]Reading, error) {
	out := make([]Reading, 0, len(targetsUS))
	for _, t := range targetsUS {
		r, ok, err := s.GetReadingAt(ctx, sensorID, t)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *InfluxStore) Delete(ctx context.Context, sensorID string, startUS, endUS int64) (int, error) {
	rs, err := s.Query(ctx, Query{SensorIDs: []string{sensorID}, StartUS: startUS, EndUS: endUS})
	if err != nil {
		return 0, err
	}
	if len(rs) == 0 {
		return 0, nil
	}

	deleteAPI := s.client.DeleteAPI()
	err = s.call(func() error {
		return deleteAPI.DeleteWithName(ctx, s.org, s.bucket,
			time.UnixMicro(startUS), time.UnixMicro(endUS+1),
			fmt.Sprintf(`_measurement="%s" AND sensor_id="%s"`, readingMeasurement, sensorID))
	})
	if err != nil {
		return 0, err
	}
	return len(rs), nil
}

// MetadataGet/MetadataSet and ConfigGet/ConfigSet are not backed by the
// time-series engine; InfluxStore keeps them in an in-process map since
// sensor metadata and dataset config are low-volume, low-churn side
// tables that do not benefit from a TSDB.
func (s *InfluxStore) MetadataGet(_ context.Context, sensorID string) (Metadata, bool, error) {
	md, ok := s.sideMetadata()[sensorID]
	return md, ok, nil
}

func (s *InfluxStore) MetadataSet(_ context.Context, md Metadata) error {
	s.sideMetadata()[md.SensorID] = md
	return nil
}

func (s *InfluxStore) ConfigGet(_ context.Context, key string) (string, bool, error) {
	v, ok := s.sideConfig()[key]
	return v, ok, nil
}

func (s *InfluxStore) ConfigSet(_ context.Context, key, value string) error {
	s.sideConfig()[key] = value
	return nil
}

func (s *InfluxStore) Features() Features {
	return Features{
		Transactions:  false,
		TimeSeries:    true,
		Aggregation:   true,
		Downsampling:  true,
		Interpolation: true,
		Streaming:     false,
		MaxBatchSize:  5000,
	}
}

func (s *InfluxStore) HealthCheck(ctx context.Context) Health {
	return timeCheck("influxdb", func() error {
		ok, err := s.client.Ping(ctx)
		if err == nil && !ok {
			return fmt.Errorf("influxdb ping returned not-ready")
		}
		return err
	})
}

func (s *InfluxStore) Close() error {
	s.client.Close()
	return nil
}
