// Package store persists the merge-run audit log: one row per enrichment
// run, with its rejections, so curators can trace when and by whom the
// dataset was extended.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/addis-analytics/fi-dataset-cli/internal/config"
	"github.com/addis-analytics/fi-dataset-cli/internal/model"
)

// Store defines the audit-log persistence interface.
type Store interface {
	// RecordRun persists one merge run. A missing id or created_at is
	// filled in; the stored run is returned.
	RecordRun(ctx context.Context, run model.MergeRun) (*model.MergeRun, error)

	// GetRun fetches a run by id.
	GetRun(ctx context.Context, id string) (*model.MergeRun, error)

	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]model.MergeRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open builds a Store from config, selecting the backend by driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
	default:
		return nil, eris.Errorf("store: unknown driver %q (want sqlite or postgres)", cfg.Driver)
	}
}
