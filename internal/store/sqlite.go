package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/addis-analytics/fi-dataset-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS merge_runs (
	id            TEXT PRIMARY KEY,
	dataset_path  TEXT NOT NULL,
	curator       TEXT NOT NULL DEFAULT '',
	note          TEXT NOT NULL DEFAULT '',
	mode          TEXT NOT NULL,
	batch_size    INTEGER NOT NULL,
	accepted      INTEGER NOT NULL,
	rejections    TEXT,
	columns_added TEXT NOT NULL DEFAULT '',
	dataset_rows  INTEGER NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_merge_runs_created_at ON merge_runs(created_at);
CREATE INDEX IF NOT EXISTS idx_merge_runs_dataset ON merge_runs(dataset_path);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run model.MergeRun) (*model.MergeRun, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	rejectionsJSON, err := json.Marshal(run.Rejections)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal rejections")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO merge_runs (id, dataset_path, curator, note, mode, batch_size, accepted, rejections, columns_added, dataset_rows, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.DatasetPath, run.Curator, run.Note, string(run.Mode),
		run.BatchSize, run.Accepted, string(rejectionsJSON),
		strings.Join(run.ColumnsAdded, ","), run.DatasetRows, run.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert merge run")
	}
	return &run, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.MergeRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, dataset_path, curator, note, mode, batch_size, accepted, rejections, columns_added, dataset_rows, created_at
		 FROM merge_runs WHERE id = ?`, id)
	run, err := scanMergeRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Errorf("sqlite: merge run %s not found", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get merge run %s", id)
	}
	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.MergeRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, dataset_path, curator, note, mode, batch_size, accepted, rejections, columns_added, dataset_rows, created_at
		 FROM merge_runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list merge runs")
	}
	defer rows.Close()

	var runs []model.MergeRun
	for rows.Next() {
		run, err := scanMergeRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan merge run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate merge runs")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMergeRun(row rowScanner) (*model.MergeRun, error) {
	var run model.MergeRun
	var mode, rejectionsJSON, columnsAdded string
	if err := row.Scan(&run.ID, &run.DatasetPath, &run.Curator, &run.Note, &mode,
		&run.BatchSize, &run.Accepted, &rejectionsJSON, &columnsAdded,
		&run.DatasetRows, &run.CreatedAt); err != nil {
		return nil, err
	}
	run.Mode = model.MergeMode(mode)
	if rejectionsJSON != "" && rejectionsJSON != "null" {
		if err := json.Unmarshal([]byte(rejectionsJSON), &run.Rejections); err != nil {
			return nil, eris.Wrap(err, "unmarshal rejections")
		}
	}
	if columnsAdded != "" {
		run.ColumnsAdded = strings.Split(columnsAdded, ",")
	}
	return &run, nil
}
