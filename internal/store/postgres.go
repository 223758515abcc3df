package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/addis-analytics/fi-dataset-cli/internal/db"
	"github.com/addis-analytics/fi-dataset-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_run": `INSERT INTO merge_runs (id, dataset_path, curator, note, mode, batch_size, accepted, columns_added, dataset_rows, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
	"get_run":    `SELECT id, dataset_path, curator, note, mode, batch_size, accepted, columns_added, dataset_rows, created_at FROM merge_runs WHERE id = $1`,
	"list_runs":  `SELECT id, dataset_path, curator, note, mode, batch_size, accepted, columns_added, dataset_rows, created_at FROM merge_runs ORDER BY created_at DESC LIMIT $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS merge_runs (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	dataset_path  TEXT NOT NULL,
	curator       TEXT NOT NULL DEFAULT '',
	note          TEXT NOT NULL DEFAULT '',
	mode          TEXT NOT NULL,
	batch_size    INTEGER NOT NULL,
	accepted      INTEGER NOT NULL,
	columns_added TEXT NOT NULL DEFAULT '',
	dataset_rows  INTEGER NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS merge_run_rejections (
	run_id    TEXT NOT NULL REFERENCES merge_runs(id),
	record_id TEXT NOT NULL DEFAULT '',
	field     TEXT NOT NULL DEFAULT '',
	reason    TEXT NOT NULL,
	dangling  BOOLEAN NOT NULL DEFAULT false
);

CREATE INDEX IF NOT EXISTS idx_merge_runs_created_at ON merge_runs(created_at);
CREATE INDEX IF NOT EXISTS idx_merge_run_rejections_run_id ON merge_run_rejections(run_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) RecordRun(ctx context.Context, run model.MergeRun) (*model.MergeRun, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	columnsAdded, err := json.Marshal(run.ColumnsAdded)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal columns added")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO merge_runs (id, dataset_path, curator, note, mode, batch_size, accepted, columns_added, dataset_rows, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.DatasetPath, run.Curator, run.Note, string(run.Mode),
		run.BatchSize, run.Accepted, string(columnsAdded), run.DatasetRows, run.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert merge run")
	}

	// Rejections go through COPY: runs with large rejected batches stay cheap.
	if len(run.Rejections) > 0 {
		rows := make([][]any, len(run.Rejections))
		for i, rej := range run.Rejections {
			rows[i] = []any{run.ID, rej.RecordID, rej.Field, rej.Reason, rej.Dangling}
		}
		if _, err := db.CopyFrom(ctx, s.pool, "merge_run_rejections",
			[]string{"run_id", "record_id", "field", "reason", "dangling"}, rows); err != nil {
			return nil, eris.Wrapf(err, "postgres: insert rejections for run %s", run.ID)
		}
	}

	return &run, nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.MergeRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, dataset_path, curator, note, mode, batch_size, accepted, columns_added, dataset_rows, created_at FROM merge_runs WHERE id = $1`, id)

	run, err := scanPostgresRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("postgres: merge run %s not found", id)
		}
		return nil, eris.Wrapf(err, "postgres: get merge run %s", id)
	}

	rejRows, err := s.pool.Query(ctx,
		`SELECT record_id, field, reason, dangling FROM merge_run_rejections WHERE run_id = $1`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get rejections for run %s", id)
	}
	defer rejRows.Close()
	for rejRows.Next() {
		var rej model.Rejection
		if err := rejRows.Scan(&rej.RecordID, &rej.Field, &rej.Reason, &rej.Dangling); err != nil {
			return nil, eris.Wrap(err, "postgres: scan rejection")
		}
		run.Rejections = append(run.Rejections, rej)
	}
	if err := rejRows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate rejections")
	}

	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.MergeRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, dataset_path, curator, note, mode, batch_size, accepted, columns_added, dataset_rows, created_at FROM merge_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list merge runs")
	}
	defer rows.Close()

	var runs []model.MergeRun
	for rows.Next() {
		run, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan merge run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate merge runs")
}

func scanPostgresRun(row pgx.Row) (*model.MergeRun, error) {
	var run model.MergeRun
	var mode, columnsAdded string
	if err := row.Scan(&run.ID, &run.DatasetPath, &run.Curator, &run.Note, &mode,
		&run.BatchSize, &run.Accepted, &columnsAdded, &run.DatasetRows, &run.CreatedAt); err != nil {
		return nil, err
	}
	run.Mode = model.MergeMode(mode)
	if columnsAdded != "" && columnsAdded != "null" {
		if err := json.Unmarshal([]byte(columnsAdded), &run.ColumnsAdded); err != nil {
			return nil, eris.Wrap(err, "unmarshal columns added")
		}
	}
	return &run, nil
}
