package dataset

import (
	"context"
	stdsql "database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/glsp-mcp/forge/pkg/apperr"
)

//go:embed postgresmigrations
var postgresMigrationsFS embed.FS

// PostgresConfig configures the TimeSeriesSQL backend, following the
// teacher's pkg/database.Config connection-pool fields.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// PostgresStore is the TimeSeriesSQL Dataset Store backend. It uses raw
// SQL over database/sql (via the pgx driver) rather than an ORM, matching
// the hand-written queries in original_source's database/postgresql.rs —
// ent (the teacher's ORM) is generated-code-driven and has no schema
// here to generate against, so plain SQL is both simpler and more
// faithful to the original.
type PostgresStore struct {
	db *stdsql.DB
}

// NewPostgresStore opens a connection pool, runs embedded migrations, and
// returns a ready-to-use backend, mirroring the teacher's
// database.NewClient flow minus the Ent client wrapper.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, sslMode,
	)

	db, err := stdsql.Open("pgx", dsn)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatasetUnavailable, "open postgres connection", err)
	}
	db.SetMaxOpenConns(orDefault(cfg.MaxOpenConns, 10))
	db.SetMaxIdleConns(orDefault(cfg.MaxIdleConns, 5))
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, apperr.Wrap(apperr.KindDatasetUnavailable, "ping postgres", err)
	}

	if err := runPostgresMigrations(db, cfg.Database); err != nil {
		_ = db.Close()
		return nil, err
	}

	slog.Info("Postgres dataset store ready", "database", cfg.Database)
	return &PostgresStore{db: db}, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func runPostgresMigrations(db *stdsql.DB, databaseName string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return apperr.Wrap(apperr.KindDatasetUnavailable, "create postgres migration driver", err)
	}

	sourceDriver, err := iofs.New(postgresMigrationsFS, "postgresmigrations")
	if err != nil {
		return apperr.Wrap(apperr.KindDatasetUnavailable, "create migration source", err)
	}
	defer sourceDriver.Close()

	m, err := migrate.NewWithInstance("iofs", sourceDriver, databaseName, driver)
	if err != nil {
		return apperr.Wrap(apperr.KindDatasetUnavailable, "create migrate instance", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return apperr.Wrap(apperr.KindDatasetUnavailable, "apply migrations", err)
	}
	return nil
}

func (p *PostgresStore) StoreReading(ctx context.Context, r Reading) error {
	return p.insertReading(ctx, p.db, r)
}

func (p *PostgresStore) insertReading(ctx context.Context, execer interface {
	ExecContext(context.Context, string, ...any) (stdsql.Result, error)
}, r Reading) error {
	meta, err := json.Marshal(r.Metadata)
	if err != nil {
		return apperr.Wrap(apperr.KindSerializationError, "marshal metadata", err)
	}
	_, err = execer.ExecContext(ctx, `
		INSERT INTO sensor_readings (sensor_id, timestamp_us, data_type, payload, quality, metadata, checksum)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (sensor_id, timestamp_us) DO UPDATE SET
			data_type = EXCLUDED.data_type,
			payload   = EXCLUDED.payload,
			quality   = EXCLUDED.quality,
			metadata  = EXCLUDED.metadata,
			checksum  = EXCLUDED.checksum
	`, r.SensorID, r.TimestampUS, r.DataType, r.Payload, r.Quality, meta, r.Checksum)
	if err != nil {
		return apperr.Wrap(apperr.KindQueryFailed, "insert reading", err)
	}
	return p.touchMetadata(ctx, r.SensorID, r.TimestampUS)
}

func (p *PostgresStore) touchMetadata(ctx context.Context, sensorID string, ts int64) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO sensor_metadata (sensor_id, first_seen_ts, last_seen_ts, is_active)
		VALUES ($1, $2, $2, true)
		ON CONFLICT (sensor_id) DO UPDATE SET
			first_seen_ts = LEAST(sensor_metadata.first_seen_ts, EXCLUDED.first_seen_ts),
			last_seen_ts  = GREATEST(sensor_metadata.last_seen_ts, EXCLUDED.last_seen_ts),
			is_active     = true
	`, sensorID, ts)
	if err != nil {
		return apperr.Wrap(apperr.KindQueryFailed, "touch sensor metadata", err)
	}
	return nil
}

// StoreBatch groups readings by sensor-id and commits each sensor-id's
// readings in its own transaction, so a failure for one sensor-id does
// not roll back another's. Sensor-ids are written in first-appearance
// order; on a failure the failing sensor-id is rolled back, later ones
// are not attempted, and the error is returned together with the count
// of readings committed for the sensor-ids before it.
func (p *PostgresStore) StoreBatch(ctx context.Context, b Batch) (int, error) {
	if len(b.Readings) == 0 {
		return 0, nil
	}

	bySensor := make(map[string][]Reading)
	var order []string
	for _, r := range b.Readings {
		if _, ok := bySensor[r.SensorID]; !ok {
			order = append(order, r.SensorID)
		}
		bySensor[r.SensorID] = append(bySensor[r.SensorID], r)
	}

	stored := 0
	for _, sensorID := range order {
		rs := bySensor[sensorID]
		tx, err := p.db.BeginTx(ctx, nil)
		if err != nil {
			return stored, apperr.Wrap(apperr.KindQueryFailed, "begin batch transaction", err)
		}
		var insertErr error
		for _, r := range rs {
			if err := p.insertReading(ctx, tx, r); err != nil {
				insertErr = err
				break
			}
		}
		if insertErr != nil {
			_ = tx.Rollback()
			return stored, insertErr
		}
		if err := tx.Commit(); err != nil {
			return stored, apperr.Wrap(apperr.KindQueryFailed, "commit batch transaction", err)
		}
		stored += len(rs)
	}
	return stored, nil
}

func (p *PostgresStore) Query(ctx context.Context, q Query) ([]Reading, error) {
	if q.StartUS > q.EndUS {
		return nil, ErrInvalidQuery
	}
	if q.Limit != nil && *q.Limit == 0 {
		return nil, nil
	}

	sql := `SELECT sensor_id, timestamp_us, data_type, payload, quality, metadata, checksum
		FROM sensor_readings WHERE timestamp_us BETWEEN $1 AND $2`
	args := []any{q.StartUS, q.EndUS}

	if len(q.SensorIDs) > 0 {
		sql += fmt.Sprintf(" AND sensor_id = ANY($%d)", len(args)+1)
		args = append(args, q.SensorIDs)
	}
	if len(q.DataTypes) > 0 {
		sql += fmt.Sprintf(" AND data_type = ANY($%d)", len(args)+1)
		args = append(args, q.DataTypes)
	}
	if q.MinQuality != nil {
		sql += fmt.Sprintf(" AND quality >= $%d", len(args)+1)
		args = append(args, *q.MinQuality)
	}
	sql += " ORDER BY timestamp_us ASC, sensor_id ASC"
	if q.Limit != nil && *q.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", *q.Limit)
	}

	rows, err := p.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindQueryFailed, "query readings", err)
	}
	defer rows.Close()

	out, err := scanReadings(rows)
	if err != nil {
		return nil, err
	}
	if q.DownsampleIntervalUS > 0 {
		out = downsampleReadings(out, q.StartUS, q.EndUS, q.DownsampleIntervalUS)
	}
	return out, nil
}

func scanReadings(rows *stdsql.Rows) ([]Reading, error) {
	var out []Reading
	for rows.Next() {
		var r Reading
		var metaRaw []byte
		if err := rows.Scan(&r.SensorID, &r.TimestampUS, &r.DataType, &r.Payload, &r.Quality, &metaRaw, &r.Checksum); err != nil {
			return nil, apperr.Wrap(apperr.KindQueryFailed, "scan reading row", err)
		}
		if len(metaRaw) > 0 {
			if err := json.Unmarshal(metaRaw, &r.Metadata); err != nil {
				return nil, apperr.Wrap(apperr.KindSerializationError, "unmarshal reading metadata", err)
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindQueryFailed, "iterate reading rows", err)
	}
	return out, nil
}

func (p *PostgresStore) GetReadingAt(ctx context.Context, sensorID string, tsUS int64) (Reading, bool, error) {
	readings, err := p.Query(ctx, Query{
		SensorIDs: []string{sensorID},
		StartUS:   tsUS - defaultSearchWindowUS,
		EndUS:     tsUS + defaultSearchWindowUS,
	})
	if err != nil {
		return Reading{}, false, err
	}
	r, ok := nearestReading(readings, tsUS, defaultSearchWindowUS)
	return r, ok, nil
}

func (p *PostgresStore) TimeRange(ctx context.Context, sensorID string) (TimeRange, bool, error) {
	sql := `SELECT MIN(timestamp_us), MAX(timestamp_us), COUNT(*), COALESCE(SUM(octet_length(payload)), 0)
		FROM sensor_readings`
	var args []any
	if sensorID != "" {
		sql += " WHERE sensor_id = $1"
		args = append(args, sensorID)
	}

	var start, end stdsql.NullInt64
	var count, size int64
	if err := p.db.QueryRowContext(ctx, sql, args...).Scan(&start, &end, &count, &size); err != nil {
		return TimeRange{}, false, apperr.Wrap(apperr.KindQueryFailed, "time range", err)
	}
	if count == 0 {
		return TimeRange{}, false, nil
	}
	return TimeRange{SensorID: sensorID, StartUS: start.Int64, EndUS: end.Int64, Count: count, SizeBytes: size}, true, nil
}

func (p *PostgresStore) ListSensors(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT DISTINCT sensor_id FROM sensor_readings ORDER BY sensor_id ASC`)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindQueryFailed, "list sensors", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Wrap(apperr.KindQueryFailed, "scan sensor id", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Downsample(ctx context.Context, sensorID string, startUS, endUS, intervalUS int64) ([]Reading, error) {
	readings, err := p.Query(ctx, Query{SensorIDs: []string{sensorID}, StartUS: startUS, EndUS: endUS})
	if err != nil {
		return nil, err
	}
	return downsampleReadings(readings, startUS, endUS, intervalUS), nil
}

func (p *PostgresStore) Interpolate(ctx context.Context, sensorID string, targetsUS []int64) ([]Reading, error) {
	out := make([]Reading, 0, len(targetsUS))
	for _, t := range targetsUS {
		r, ok, err := p.GetReadingAt(ctx, sensorID, t)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (p *PostgresStore) Delete(ctx context.Context, sensorID string, startUS, endUS int64) (int, error) {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM sensor_readings WHERE sensor_id = $1 AND timestamp_us BETWEEN $2 AND $3`,
		sensorID, startUS, endUS)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindQueryFailed, "delete readings", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (p *PostgresStore) MetadataGet(ctx context.Context, sensorID string) (Metadata, bool, error) {
	var m Metadata
	var calib []byte
	err := p.db.QueryRowContext(ctx, `
		SELECT sensor_id, name, sensor_type, location, sampling_rate_hz, calibration, first_seen_ts, last_seen_ts, is_active
		FROM sensor_metadata WHERE sensor_id = $1`, sensorID,
	).Scan(&m.SensorID, &m.Name, &m.SensorType, &m.Location, &m.SamplingRateHz, &calib, &m.FirstSeenTS, &m.LastSeenTS, &m.IsActive)
	if errors.Is(err, stdsql.ErrNoRows) {
		return Metadata{}, false, nil
	}
	if err != nil {
		return Metadata{}, false, apperr.Wrap(apperr.KindQueryFailed, "get sensor metadata", err)
	}
	if len(calib) > 0 {
		_ = json.Unmarshal(calib, &m.Calibration)
	}
	return m, true, nil
}

func (p *PostgresStore) MetadataSet(ctx context.Context, m Metadata) error {
	calib, err := json.Marshal(m.Calibration)
	if err != nil {
		return apperr.Wrap(apperr.KindSerializationError, "marshal calibration", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO sensor_metadata (sensor_id, name, sensor_type, location, sampling_rate_hz, calibration, first_seen_ts, last_seen_ts, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (sensor_id) DO UPDATE SET
			name = EXCLUDED.name, sensor_type = EXCLUDED.sensor_type, location = EXCLUDED.location,
			sampling_rate_hz = EXCLUDED.sampling_rate_hz, calibration = EXCLUDED.calibration,
			first_seen_ts = EXCLUDED.first_seen_ts, last_seen_ts = EXCLUDED.last_seen_ts, is_active = EXCLUDED.is_active
	`, m.SensorID, m.Name, m.SensorType, m.Location, m.SamplingRateHz, calib, m.FirstSeenTS, m.LastSeenTS, m.IsActive)
	if err != nil {
		return apperr.Wrap(apperr.KindQueryFailed, "set sensor metadata", err)
	}
	return nil
}

func (p *PostgresStore) ConfigGet(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := p.db.QueryRowContext(ctx, `SELECT value FROM dataset_config WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, stdsql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperr.Wrap(apperr.KindQueryFailed, "get config", err)
	}
	return v, true, nil
}

func (p *PostgresStore) ConfigSet(ctx context.Context, key, value string) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO dataset_config (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	if err != nil {
		return apperr.Wrap(apperr.KindQueryFailed, "set config", err)
	}
	return nil
}

func (p *PostgresStore) Features() Features {
	return Features{
		Transactions:  true,
		TimeSeries:    true,
		Aggregation:   true,
		Downsampling:  true,
		Interpolation: true,
		Streaming:     false,
		MaxBatchSize:  10_000,
	}
}

func (p *PostgresStore) HealthCheck(ctx context.Context) Health {
	return timeCheck("postgres", func() error {
		return p.db.PingContext(ctx)
	})
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}
