package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/parkvision/visionserve/common/db"
)

// VersionRepository persists the per-kind monotonic cache version counters
// in Postgres (SPEC_FULL.md Resolved Open Question 3: "durable, one row
// per kind ... incremented inside a single UPDATE ... RETURNING statement
// for atomicity"). Implements common/cache.VersionStore.
type VersionRepository struct {
	db *db.DB
}

// NewVersionRepository creates a new version repository.
func NewVersionRepository(database *db.DB) *VersionRepository {
	return &VersionRepository{db: database}
}

// CurrentVersion returns kind's current version, inserting a fresh row at
// version 0 on first access.
func (r *VersionRepository) CurrentVersion(ctx context.Context, kind string) (int64, error) {
	var version int64
	err := r.db.QueryRow(ctx, `SELECT version FROM cache_version WHERE kind = $1`, kind).Scan(&version)
	if err == nil {
		return version, nil
	}
	if err != pgx.ErrNoRows {
		return 0, fmt.Errorf("read cache version: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO cache_version (kind, version) VALUES ($1, 0)
		ON CONFLICT (kind) DO NOTHING
	`, kind)
	if err != nil {
		return 0, fmt.Errorf("seed cache version: %w", err)
	}
	return 0, nil
}

// BumpVersion atomically increments kind's version and returns the new
// value, creating the row at version 1 if this is the kind's first bump.
func (r *VersionRepository) BumpVersion(ctx context.Context, kind string) (int64, error) {
	var version int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO cache_version (kind, version) VALUES ($1, 1)
		ON CONFLICT (kind) DO UPDATE SET version = cache_version.version + 1
		RETURNING version
	`, kind).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("bump cache version: %w", err)
	}
	return version, nil
}
