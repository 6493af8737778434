package dataset

import (
	"context"
	"fmt"

	"github.com/glsp-mcp/forge/internal/config"
)

// Open constructs the Store selected by cfg.Backend, following spec.md §6:
// the backend is chosen once at startup from configuration, not
// per-request. KV dials Host:Port with Password() and ignores Database.
// TSDB connects to http://Host:Port, using Password() as the token,
// Username as the org and Database as the bucket.
func Open(ctx context.Context, cfg config.DatasetConfig) (Store, error) {
	switch cfg.Backend {
	case config.DatasetBackendInMemory, "":
		return NewMemoryStore(), nil

	case config.DatasetBackendTimeSeriesSQL:
		return NewPostgresStore(ctx, PostgresConfig{
			Host:            cfg.Host,
			Port:            cfg.Port,
			User:            cfg.Username,
			Password:        cfg.Password(),
			Database:        cfg.Database,
			SSLMode:         sslModeFor(cfg.TLS),
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})

	case config.DatasetBackendKV:
		return NewKVStore(RedisConfig{
			Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password: cfg.Password(),
		}), nil

	case config.DatasetBackendTSDB:
		return NewInfluxStore(ctx, InfluxConfig{
			URL:    fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port),
			Token:  cfg.Password(),
			Org:    cfg.Username,
			Bucket: cfg.Database,
		})

	default:
		return nil, fmt.Errorf("dataset: unknown backend %q", cfg.Backend)
	}
}

func sslModeFor(tls bool) string {
	if tls {
		return "require"
	}
	return "disable"
}
