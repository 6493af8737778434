package diagram

import (
	"context"
	stdsql "database/sql"
	"embed"
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

//go:embed diagrammigrations
var diagramMigrationsFS embed.FS

// PostgresConfig configures the Postgres-backed Diagram Store,
// mirroring pkg/dataset.PostgresConfig's connection-pool fields (both
// trace back to the teacher's pkg/database.Config).
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns int
	MaxIdleConns int
}

// PostgresStore is the Diagram Model Store's persisted backend: plain
// SQL over database/sql via the pgx driver, not ent — see DESIGN.md
// for why this package follows pkg/dataset's lead in dropping ent.
type PostgresStore struct {
	db *stdsql.DB
}

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

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, apperr.Wrap(apperr.KindDatasetUnavailable, "ping postgres", err)
	}

	if err := runDiagramMigrations(db, cfg.Database); err != nil {
		_ = db.Close()
		return nil, err
	}

	slog.Info("Postgres diagram store ready", "database", cfg.Database)
	return &PostgresStore{db: db}, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func runDiagramMigrations(db *stdsql.DB, databaseName string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return apperr.Wrap(apperr.KindDatasetUnavailable, "create postgres migration driver", err)
	}

	sourceDriver, err := iofs.New(diagramMigrationsFS, "diagrammigrations")
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

func (p *PostgresStore) Create(ctx context.Context, d Diagram) (Diagram, error) {
	if d.ID == "" {
		return Diagram{}, ErrInvalid
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return Diagram{}, apperr.Wrap(apperr.KindQueryFailed, "begin create transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO diagrams (id, name, created_at, updated_at) VALUES ($1, $2, $3, $3)`,
		d.ID, d.Name, now,
	); err != nil {
		return Diagram{}, apperr.Wrap(apperr.KindQueryFailed, "insert diagram", err)
	}

	if err := writeNodesAndEdges(ctx, tx, d); err != nil {
		return Diagram{}, err
	}

	if err := tx.Commit(); err != nil {
		return Diagram{}, apperr.Wrap(apperr.KindQueryFailed, "commit create transaction", err)
	}

	d.CreatedAt = now
	d.UpdatedAt = now
	return d, nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (Diagram, bool, error) {
	var d Diagram
	d.ID = id
	row := p.db.QueryRowContext(ctx, `SELECT name, created_at, updated_at FROM diagrams WHERE id = $1`, id)
	if err := row.Scan(&d.Name, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return Diagram{}, false, nil
		}
		return Diagram{}, false, apperr.Wrap(apperr.KindQueryFailed, "select diagram", err)
	}

	nodes, edges, err := readNodesAndEdges(ctx, p.db, id)
	if err != nil {
		return Diagram{}, false, err
	}
	d.Nodes = nodes
	d.Edges = edges
	return d, true, nil
}

func (p *PostgresStore) List(ctx context.Context) ([]Diagram, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, name, created_at, updated_at FROM diagrams ORDER BY id`)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindQueryFailed, "list diagrams", err)
	}
	defer rows.Close()

	var out []Diagram
	for rows.Next() {
		var d Diagram
		if err := rows.Scan(&d.ID, &d.Name, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindQueryFailed, "scan diagram row", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindQueryFailed, "iterate diagram rows", err)
	}

	for i := range out {
		nodes, edges, err := readNodesAndEdges(ctx, p.db, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Nodes = nodes
		out[i].Edges = edges
	}
	return out, nil
}

func (p *PostgresStore) Update(ctx context.Context, d Diagram) (Diagram, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return Diagram{}, apperr.Wrap(apperr.KindQueryFailed, "begin update transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	res, err := tx.ExecContext(ctx, `UPDATE diagrams SET name = $2, updated_at = $3 WHERE id = $1`, d.ID, d.Name, now)
	if err != nil {
		return Diagram{}, apperr.Wrap(apperr.KindQueryFailed, "update diagram", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Diagram{}, apperr.Wrap(apperr.KindQueryFailed, "check update result", err)
	}
	if affected == 0 {
		return Diagram{}, ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM diagram_nodes WHERE diagram_id = $1`, d.ID); err != nil {
		return Diagram{}, apperr.Wrap(apperr.KindQueryFailed, "clear diagram nodes", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM diagram_edges WHERE diagram_id = $1`, d.ID); err != nil {
		return Diagram{}, apperr.Wrap(apperr.KindQueryFailed, "clear diagram edges", err)
	}
	if err := writeNodesAndEdges(ctx, tx, d); err != nil {
		return Diagram{}, err
	}

	if err := tx.Commit(); err != nil {
		return Diagram{}, apperr.Wrap(apperr.KindQueryFailed, "commit update transaction", err)
	}

	d.UpdatedAt = now
	return d, nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM diagrams WHERE id = $1`, id)
	if err != nil {
		return apperr.Wrap(apperr.KindQueryFailed, "delete diagram", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.KindQueryFailed, "check delete result", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type execer interface {
	ExecContext(context.Context, string, ...any) (stdsql.Result, error)
}

func writeNodesAndEdges(ctx context.Context, ex execer, d Diagram) error {
	for _, n := range d.Nodes {
		if _, err := ex.ExecContext(ctx,
			`INSERT INTO diagram_nodes (diagram_id, id, kind, component_name, label, pos_x, pos_y)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			d.ID, n.ID, string(n.Kind), n.ComponentName, n.Label, n.Position.X, n.Position.Y,
		); err != nil {
			return apperr.Wrap(apperr.KindQueryFailed, "insert diagram node", err)
		}
	}
	for _, e := range d.Edges {
		if _, err := ex.ExecContext(ctx,
			`INSERT INTO diagram_edges (diagram_id, id, from_node, to_node, kind) VALUES ($1, $2, $3, $4, $5)`,
			d.ID, e.ID, e.From, e.To, e.Kind,
		); err != nil {
			return apperr.Wrap(apperr.KindQueryFailed, "insert diagram edge", err)
		}
	}
	return nil
}

func readNodesAndEdges(ctx context.Context, db *stdsql.DB, diagramID string) ([]Node, []Edge, error) {
	nodeRows, err := db.QueryContext(ctx,
		`SELECT id, kind, component_name, label, pos_x, pos_y FROM diagram_nodes WHERE diagram_id = $1 ORDER BY id`,
		diagramID,
	)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindQueryFailed, "select diagram nodes", err)
	}
	defer nodeRows.Close()

	var nodes []Node
	for nodeRows.Next() {
		var n Node
		var kind string
		if err := nodeRows.Scan(&n.ID, &kind, &n.ComponentName, &n.Label, &n.Position.X, &n.Position.Y); err != nil {
			return nil, nil, apperr.Wrap(apperr.KindQueryFailed, "scan diagram node", err)
		}
		n.Kind = NodeKind(kind)
		nodes = append(nodes, n)
	}
	if err := nodeRows.Err(); err != nil {
		return nil, nil, apperr.Wrap(apperr.KindQueryFailed, "iterate diagram nodes", err)
	}

	edgeRows, err := db.QueryContext(ctx,
		`SELECT id, from_node, to_node, kind FROM diagram_edges WHERE diagram_id = $1 ORDER BY id`,
		diagramID,
	)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindQueryFailed, "select diagram edges", err)
	}
	defer edgeRows.Close()

	var edges []Edge
	for edgeRows.Next() {
		var e Edge
		if err := edgeRows.Scan(&e.ID, &e.From, &e.To, &e.Kind); err != nil {
			return nil, nil, apperr.Wrap(apperr.KindQueryFailed, "scan diagram edge", err)
		}
		edges = append(edges, e)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, nil, apperr.Wrap(apperr.KindQueryFailed, "iterate diagram edges", err)
	}

	return nodes, edges, nil
}
