package durable

import "context"

// Schema is the DDL for the raw-SQL UCG tables. GORM's AutoMigrate owns the
// ancillary tables (users, session audit, plugin registry); these three
// stay hand-written because the UCG store issues hand-written SQL against
// them and a migration tool would fight that.
const schema = `
CREATE TABLE IF NOT EXISTS ucg_entities (
	id            UUID PRIMARY KEY,
	tag           TEXT NOT NULL,
	semantic_name TEXT,
	payload       JSONB NOT NULL DEFAULT '{}',
	created_by    UUID,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (tag, semantic_name)
);

CREATE TABLE IF NOT EXISTS ucg_associations (
	id         UUID PRIMARY KEY,
	parent_id  UUID NOT NULL REFERENCES ucg_entities(id) ON DELETE RESTRICT,
	child_id   UUID NOT NULL REFERENCES ucg_entities(id) ON DELETE RESTRICT,
	kind       TEXT NOT NULL,
	weight     INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS ucg_associations_parent_idx ON ucg_associations (parent_id, kind);
CREATE INDEX IF NOT EXISTS ucg_associations_child_idx ON ucg_associations (child_id, kind);

CREATE TABLE IF NOT EXISTS ucg_entity_history (
	id         BIGSERIAL PRIMARY KEY,
	entity_id  UUID NOT NULL REFERENCES ucg_entities(id) ON DELETE CASCADE,
	version    INTEGER NOT NULL,
	payload    JSONB NOT NULL,
	summary    TEXT,
	actor      UUID,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (entity_id, version)
);
`

// Migrate applies the raw-SQL schema. Idempotent: safe to call on every
// startup.
func Migrate(ctx context.Context, pool *Pool) error {
	return pool.Exec(ctx, schema)
}
