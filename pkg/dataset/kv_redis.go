package dataset

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/glsp-mcp/forge/pkg/apperr"
)

// RedisConfig configures the KV Dataset Store backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KVStore is the KV Dataset Store backend. Readings for a sensor are kept
// in a Redis sorted set keyed by timestamp_us, with the encoded reading as
// the member payload, so range queries map onto ZRANGEBYSCORE. Every call
// to Redis is wrapped by a circuit breaker, since a KV cache outage should
// degrade a caller's request instead of hanging it indefinitely — the
// breaker trips after five consecutive failures and probes again after a
// cooldown, the same shape the teacher uses for its LLM provider calls in
// pkg/llm.
type KVStore struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
}

// NewKVStore connects to Redis and wires up the circuit breaker.
func NewKVStore(cfg RedisConfig) *KVStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "dataset-kv",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &KVStore{client: client, breaker: cb}
}

// NewKVStoreWithClient wraps an already-constructed redis.Client, letting
// tests point the store at an in-process fake (alicebob/miniredis)
// instead of a real server.
func NewKVStoreWithClient(client *redis.Client) *KVStore {
	return &KVStore{
		client: client,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "dataset-kv",
			Timeout: 15 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func readingsKey(sensorID string) string {
	return "forge:sensor:" + sensorID + ":readings"
}

func metadataKey(sensorID string) string {
	return "forge:sensor:" + sensorID + ":metadata"
}

func configKey(key string) string {
	return "forge:config:" + key
}

func (k *KVStore) call(ctx context.Context, fn func() error) error {
	_, err := k.breaker.Execute(func() (any, error) {
		return nil, fn()
	})
	if err != nil {
		return apperr.Wrap(apperr.KindQueryFailed, "redis operation", err)
	}
	_ = ctx
	return nil
}

func (k *KVStore) StoreReading(ctx context.Context, r Reading) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return apperr.Wrap(apperr.KindSerializationError, "marshal reading", err)
	}
	return k.call(ctx, func() error {
		if err := k.client.ZAdd(ctx, readingsKey(r.SensorID), redis.Z{
			Score:  float64(r.TimestampUS),
			Member: payload,
		}).Err(); err != nil {
			return err
		}
		return k.touchMetadata(ctx, r.SensorID, r.TimestampUS)
	})
}

func (k *KVStore) touchMetadata(ctx context.Context, sensorID string, ts int64) error {
	md, found, err := k.MetadataGet(ctx, sensorID)
	if err != nil {
		return err
	}
	if !found {
		md = Metadata{SensorID: sensorID, FirstSeenTS: ts, IsActive: true}
	}
	if ts < md.FirstSeenTS || md.FirstSeenTS == 0 {
		md.FirstSeenTS = ts
	}
	if ts > md.LastSeenTS {
		md.LastSeenTS = ts
	}
	md.IsActive = true
	return k.metadataSetNoBreak(ctx, md)
}

// StoreBatch stores every reading in the batch, never partially failing
// short of a connection error (Redis pipelines are all-or-nothing here).
// An empty batch is a no-op per spec.md §8.
func (k *KVStore) StoreBatch(ctx context.Context, b Batch) (int, error) {
	if len(b.Readings) == 0 {
		return 0, nil
	}
	stored := 0
	err := k.call(ctx, func() error {
		pipe := k.client.TxPipeline()
		for _, r := range b.Readings {
			payload, err := json.Marshal(r)
			if err != nil {
				return err
			}
			pipe.ZAdd(ctx, readingsKey(r.SensorID), redis.Z{Score: float64(r.TimestampUS), Member: payload})
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		stored = len(b.Readings)
		for sensorID, ts := range latestTimestampPerSensor(b.Readings) {
			if err := k.touchMetadata(ctx, sensorID, ts); err != nil {
				return err
			}
		}
		return nil
	})
	return stored, err
}

func latestTimestampPerSensor(readings []Reading) map[string]int64 {
	latest := make(map[string]int64)
	for _, r := range readings {
		if r.TimestampUS > latest[r.SensorID] {
			latest[r.SensorID] = r.TimestampUS
		}
	}
	return latest
}

func (k *KVStore) fetchRange(ctx context.Context, sensorID string, startUS, endUS int64) ([]Reading, error) {
	var members []string
	err := k.call(ctx, func() error {
		res, err := k.client.ZRangeByScore(ctx, readingsKey(sensorID), &redis.ZRangeBy{
			Min: strconv.FormatInt(startUS, 10),
			Max: strconv.FormatInt(endUS, 10),
		}).Result()
		members = res
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]Reading, 0, len(members))
	for _, m := range members {
		var r Reading
		if err := json.Unmarshal([]byte(m), &r); err != nil {
			return nil, apperr.Wrap(apperr.KindSerializationError, "unmarshal reading", err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (k *KVStore) Query(ctx context.Context, q Query) ([]Reading, error) {
	if q.StartUS > q.EndUS {
		return nil, ErrInvalidQuery
	}
	if q.Limit != nil && *q.Limit < 0 {
		return nil, ErrInvalidQuery
	}
	if q.Limit != nil && *q.Limit == 0 {
		return nil, nil
	}

	sensorIDs := q.SensorIDs
	if len(sensorIDs) == 0 {
		var err error
		sensorIDs, err = k.ListSensors(ctx)
		if err != nil {
			return nil, err
		}
	}

	wantTypes := toSet(q.DataTypes)
	var out []Reading
	for _, sensorID := range sensorIDs {
		rs, err := k.fetchRange(ctx, sensorID, q.StartUS, q.EndUS)
		if err != nil {
			return nil, err
		}
		for _, r := range rs {
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

func (k *KVStore) GetReadingAt(ctx context.Context, sensorID string, tsUS int64) (Reading, bool, error) {
	rs, err := k.fetchRange(ctx, sensorID, tsUS-defaultSearchWindowUS, tsUS+defaultSearchWindowUS)
	if err != nil {
		return Reading{}, false, err
	}
	r, ok := nearestReading(rs, tsUS, defaultSearchWindowUS)
	return r, ok, nil
}

func (k *KVStore) TimeRange(ctx context.Context, sensorID string) (TimeRange, bool, error) {
	sensorIDs := []string{sensorID}
	if sensorID == "" {
		var err error
		sensorIDs, err = k.ListSensors(ctx)
		if err != nil {
			return TimeRange{}, false, err
		}
	}

	var all []Reading
	for _, id := range sensorIDs {
		rs, err := k.fetchRange(ctx, id, 0, 1<<62)
		if err != nil {
			return TimeRange{}, false, err
		}
		all = append(all, rs...)
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

func (k *KVStore) ListSensors(ctx context.Context) ([]string, error) {
	var keys []string
	err := k.call(ctx, func() error {
		res, err := k.client.Keys(ctx, "forge:sensor:*:metadata").Result()
		keys = res
		return err
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		id := key
		id = id[len("forge:sensor:") : len(id)-len(":metadata")]
		ids = append(ids, id)
	}
	sortStrings(ids)
	return ids, nil
}

func (k *KVStore) Downsample(ctx context.Context, sensorID string, startUS, endUS, intervalUS int64) ([]Reading, error) {
	rs, err := k.fetchRange(ctx, sensorID, startUS, endUS)
	if err != nil {
		return nil, err
	}
	return downsampleReadings(rs, startUS, endUS, intervalUS), nil
}

func (k *KVStore) Interpolate(ctx context.Context, sensorID string, targetsUS []int64) ([]Reading, error) {
	out := make([]Reading, 0, len(targetsUS))
	for _, t := range targetsUS {
		r, ok, err := k.GetReadingAt(ctx, sensorID, t)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (k *KVStore) Delete(ctx context.Context, sensorID string, startUS, endUS int64) (int, error) {
	rs, err := k.fetchRange(ctx, sensorID, startUS, endUS)
	if err != nil {
		return 0, err
	}
	if len(rs) == 0 {
		return 0, nil
	}

	removed := 0
	err = k.call(ctx, func() error {
		for _, r := range rs {
			payload, merr := json.Marshal(r)
			if merr != nil {
				return merr
			}
			if zerr := k.client.ZRem(ctx, readingsKey(sensorID), payload).Err(); zerr != nil {
				return zerr
			}
			removed++
		}
		return nil
	})
	return removed, err
}

func (k *KVStore) MetadataGet(ctx context.Context, sensorID string) (Metadata, bool, error) {
	var raw string
	err := k.call(ctx, func() error {
		v, err := k.client.Get(ctx, metadataKey(sensorID)).Result()
		if err == redis.Nil {
			return nil
		}
		raw = v
		return err
	})
	if err != nil {
		return Metadata{}, false, err
	}
	if raw == "" {
		return Metadata{}, false, nil
	}
	var md Metadata
	if err := json.Unmarshal([]byte(raw), &md); err != nil {
		return Metadata{}, false, apperr.Wrap(apperr.KindSerializationError, "unmarshal metadata", err)
	}
	return md, true, nil
}

func (k *KVStore) MetadataSet(ctx context.Context, md Metadata) error {
	return k.call(ctx, func() error { return k.metadataSetNoBreak(ctx, md) })
}

func (k *KVStore) metadataSetNoBreak(ctx context.Context, md Metadata) error {
	payload, err := json.Marshal(md)
	if err != nil {
		return err
	}
	return k.client.Set(ctx, metadataKey(md.SensorID), payload, 0).Err()
}

func (k *KVStore) ConfigGet(ctx context.Context, key string) (string, bool, error) {
	var v string
	var found bool
	err := k.call(ctx, func() error {
		res, err := k.client.Get(ctx, configKey(key)).Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		v, found = res, true
		return nil
	})
	return v, found, err
}

func (k *KVStore) ConfigSet(ctx context.Context, key, value string) error {
	return k.call(ctx, func() error {
		return k.client.Set(ctx, configKey(key), value, 0).Err()
	})
}

func (k *KVStore) Features() Features {
	return Features{
		Transactions:  false,
		TimeSeries:    true,
		Aggregation:   false,
		Downsampling:  true,
		Interpolation: true,
		Streaming:     false,
		MaxBatchSize:  1000,
	}
}

func (k *KVStore) HealthCheck(ctx context.Context) Health {
	return timeCheck("redis", func() error {
		return k.call(ctx, func() error { return k.client.Ping(ctx).Err() })
	})
}

func (k *KVStore) Close() error {
	return k.client.Close()
}
