package durable

import (
	"context"
	"encoding/json"
	"time"

	"github.com/reedcms/reed/reederr"
)

// AllEntities returns every entity row, ordered by id for a deterministic
// CSV export. Used only by csvrecovery: the graph API never needs an
// unbounded full-table scan.
func (s *Store) AllEntities(ctx context.Context) ([]EntityRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+entityColumns+` FROM ucg_entities ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EntityRecord
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// AllAssociations returns every association row, ordered by id.
func (s *Store) AllAssociations(ctx context.Context) ([]AssociationRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, parent_id, child_id, kind, weight, created_at FROM ucg_associations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AssociationRecord
	for rows.Next() {
		a := AssociationRecord{}
		if err := rows.Scan(&a.ID, &a.ParentID, &a.ChildID, &a.Kind, &a.Weight, &a.CreatedAt); err != nil {
			return nil, reederr.DurableStoreError("scan association: %v", err).Wrap(err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// InsertEntityRaw inserts an entity preserving an explicit id and
// created_at, used when replaying entities.csv during a rebuild (as
// opposed to CreateEntity, which always assigns created_at = now()).
func (s *Store) InsertEntityRaw(ctx context.Context, id, tag string, semanticName *string, payload json.RawMessage, createdBy *string, createdAt time.Time) error {
	_, err := s.pool.pool.Exec(ctx, `
		INSERT INTO ucg_entities (id, tag, semantic_name, payload, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		id, tag, semanticName, payload, createdBy, createdAt)
	if err != nil {
		if isUniqueViolation(err) {
			return reederr.SemanticNameTaken(tag, derefOrEmpty(semanticName))
		}
		return reederr.DurableStoreError("insert entity %s: %v", id, err).Wrap(err)
	}
	return nil
}

// InsertAssociationRaw inserts an association preserving an explicit id and
// created_at.
func (s *Store) InsertAssociationRaw(ctx context.Context, id, parentID, childID, kind string, weight int, createdAt time.Time) error {
	_, err := s.pool.pool.Exec(ctx, `
		INSERT INTO ucg_associations (id, parent_id, child_id, kind, weight, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, parentID, childID, kind, weight, createdAt)
	if err != nil {
		return reederr.DurableStoreError("insert association %s: %v", id, err).Wrap(err)
	}
	return nil
}

// TruncateGraph discards every entity, association, and history row. Used
// only at the start of a successful CSV rebuild's load phase (after the
// full parse has already validated cleanly), never on a partial failure.
func (s *Store) TruncateGraph(ctx context.Context) error {
	_, err := s.pool.pool.Exec(ctx, `TRUNCATE ucg_entity_history, ucg_associations, ucg_entities`)
	if err != nil {
		return reederr.DurableStoreError("truncate graph: %v", err).Wrap(err)
	}
	return nil
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
