package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema creates the tables this service owns. The asset and
// asset_assignment tables are shared with the asset catalogue; the
// statements only create them when missing.
const schema = `
CREATE TABLE IF NOT EXISTS asset (
	id                  UUID PRIMARY KEY,
	article_id          TEXT NOT NULL,
	status              TEXT NOT NULL DEFAULT 'not_started',
	revision_count      INTEGER NOT NULL DEFAULT 0 CHECK (revision_count >= 0),
	model_artifact_ref  TEXT,
	source_artifact_ref TEXT,
	qa_approved         BOOLEAN,
	artifact_token      BIGINT NOT NULL DEFAULT 0,
	row_version         BIGINT NOT NULL DEFAULT 0,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS asset_feedback (
	id              UUID PRIMARY KEY,
	asset_id        UUID NOT NULL REFERENCES asset(id),
	kind            TEXT NOT NULL,
	parent_id       UUID REFERENCES asset_feedback(id) ON DELETE CASCADE,
	revision_number INTEGER NOT NULL DEFAULT 0,
	is_superseded   BOOLEAN NOT NULL DEFAULT FALSE,
	author_id       TEXT NOT NULL DEFAULT '',
	body            TEXT NOT NULL,
	position        JSONB,
	normal          JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS asset_feedback_asset_revision_idx ON asset_feedback (asset_id, revision_number);
CREATE INDEX IF NOT EXISTS asset_feedback_parent_idx ON asset_feedback (parent_id);

CREATE TABLE IF NOT EXISTS artifact_version (
	id             UUID PRIMARY KEY,
	asset_id       UUID NOT NULL REFERENCES asset(id),
	file_kind      TEXT NOT NULL,
	locator        TEXT NOT NULL,
	source_locator TEXT NOT NULL,
	size_bytes     BIGINT NOT NULL DEFAULT 0,
	group_key      TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (asset_id, locator),
	UNIQUE (asset_id, file_kind, group_key)
);

CREATE TABLE IF NOT EXISTS asset_status_history (
	id              UUID PRIMARY KEY,
	asset_id        UUID NOT NULL REFERENCES asset(id),
	previous_status TEXT NOT NULL,
	new_status      TEXT NOT NULL,
	action_type     TEXT NOT NULL,
	revision_number INTEGER NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS asset_status_history_asset_idx ON asset_status_history (asset_id, created_at);

CREATE TABLE IF NOT EXISTS asset_assignment (
	id           UUID PRIMARY KEY,
	asset_id     UUID NOT NULL REFERENCES asset(id),
	user_id      TEXT NOT NULL,
	role         TEXT NOT NULL,
	assigned_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at TIMESTAMPTZ
);
`

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
