package shippersist

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// ServerStatsRepo persists named server-wide counters (spec §6:
// ServerStats(tag, value)) — e.g. total logins, concurrent players —
// read back by admin/status tooling outside this package's scope.
type ServerStatsRepo struct {
	db *DB
}

func NewServerStatsRepo(db *DB) *ServerStatsRepo {
	return &ServerStatsRepo{db: db}
}

func (r *ServerStatsRepo) Get(ctx context.Context, tag string) (int64, error) {
	var value int64
	err := r.db.Pool.QueryRow(ctx,
		`SELECT value FROM server_stats WHERE tag = $1`, tag,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil // unknown tag reads as zero, matching a fresh counter
	}
	if err != nil {
		return 0, err
	}
	return value, nil
}

func (r *ServerStatsRepo) Set(ctx context.Context, tag string, value int64) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO server_stats (tag, value) VALUES ($1, $2)
		 ON CONFLICT (tag) DO UPDATE SET value = EXCLUDED.value`,
		tag, value,
	)
	return err
}

func (r *ServerStatsRepo) Increment(ctx context.Context, tag string, delta int64) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO server_stats (tag, value) VALUES ($1, $2)
		 ON CONFLICT (tag) DO UPDATE SET value = server_stats.value + EXCLUDED.value`,
		tag, delta,
	)
	return err
}
