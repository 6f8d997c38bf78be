package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS registered_model (
	id           TEXT PRIMARY KEY,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL,
	project      TEXT NOT NULL,
	region       TEXT NOT NULL,
	display_name TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	state        TEXT NOT NULL,
	labels       JSONB NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS registered_model_scope_idx
	ON registered_model (project, region, display_name);

CREATE TABLE IF NOT EXISTS model_version (
	id                  TEXT PRIMARY KEY,
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL,
	registered_model_id TEXT NOT NULL REFERENCES registered_model(id),
	name                TEXT NOT NULL,
	description         TEXT NOT NULL DEFAULT '',
	state               TEXT NOT NULL,
	status              TEXT NOT NULL,
	artifact_type       TEXT NOT NULL,
	model_framework     TEXT NOT NULL DEFAULT '',
	container_image     TEXT NOT NULL DEFAULT '',
	uri                 TEXT NOT NULL,
	accuracy            DOUBLE PRECISION,
	pipeline_run_id     TEXT NOT NULL DEFAULT '',
	labels              JSONB NOT NULL DEFAULT '{}',
	UNIQUE (registered_model_id, name)
);
`

// execer is the part of pgx.Tx the insert helpers need.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// EnsureSchema creates the registry tables if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return errors.Wrap(err, "create registry schema")
	}
	return nil
}

// orderColumn maps a requested sort key onto a column, falling back to
// created_at for anything not listed.
func orderColumn(sortBy string, allowed map[string]string) string {
	if col, ok := allowed[sortBy]; ok {
		return col
	}
	return "created_at"
}
