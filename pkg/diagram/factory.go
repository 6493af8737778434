package diagram

import (
	"context"
	"fmt"

	"github.com/glsp-mcp/forge/internal/config"
)

// Open constructs the Store selected by cfg.Backend, mirroring
// pkg/dataset.Open's startup-selected-backend shape.
func Open(ctx context.Context, cfg config.DiagramConfig) (Store, error) {
	switch cfg.Backend {
	case config.DiagramBackendInMemory, "":
		return NewInMemoryStore(), nil

	case config.DiagramBackendPostgres:
		return NewPostgresStore(ctx, PostgresConfig{
			Host:         cfg.Host,
			Port:         cfg.Port,
			User:         cfg.Username,
			Password:     cfg.Password(),
			Database:     cfg.Database,
			SSLMode:      sslModeFor(cfg.TLS),
			MaxOpenConns: cfg.MaxOpenConns,
			MaxIdleConns: cfg.MaxIdleConns,
		})

	default:
		return nil, fmt.Errorf("diagram: unknown backend %q", cfg.Backend)
	}
}

func sslModeFor(tls bool) string {
	if tls {
		return "require"
	}
	return "disable"
}
