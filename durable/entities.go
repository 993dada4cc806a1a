package durable

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/reedcms/reed/reederr"
)

// EntityRecord is the durable-store row for a UCG entity.
type EntityRecord struct {
	ID           string
	Tag          string
	SemanticName *string
	Payload      json.RawMessage
	CreatedBy    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AssociationRecord is the durable-store row for a UCG association.
type AssociationRecord struct {
	ID        string
	ParentID  string
	ChildID   string
	Kind      string
	Weight    int
	CreatedAt time.Time
}

// HistoryRecord is an append-only entity version row.
type HistoryRecord struct {
	EntityID  string
	Version   int
	Payload   json.RawMessage
	Summary   string
	Actor     *string
	CreatedAt time.Time
}

// Store is the raw-SQL UCG data-access layer.
type Store struct {
	pool *Pool
}

func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

const entityColumns = `id, tag, semantic_name, payload, created_by, created_at, updated_at`

func scanEntity(row pgx.Row) (*EntityRecord, error) {
	e := &EntityRecord{}
	err := row.Scan(&e.ID, &e.Tag, &e.SemanticName, &e.Payload, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, reederr.DurableStoreError("scan entity: %v", err).Wrap(err)
	}
	return e, nil
}

// CreateEntity inserts a new entity row. A unique-violation on
// (tag, semantic_name) surfaces as reederr.SemanticNameTaken.
func (s *Store) CreateEntity(ctx context.Context, id, tag string, semanticName *string, payload json.RawMessage, createdBy *string) (*EntityRecord, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO ucg_entities (id, tag, semantic_name, payload, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING %s`, entityColumns),
		id, tag, semanticName, payload, createdBy)

	e, err := scanEntity(row)
	if err != nil {
		if isUniqueViolation(err) {
			name := ""
			if semanticName != nil {
				name = *semanticName
			}
			return nil, reederr.SemanticNameTaken(tag, name)
		}
		return nil, err
	}
	return e, nil
}

func (s *Store) GetEntity(ctx context.Context, id string) (*EntityRecord, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM ucg_entities WHERE id = $1`, entityColumns), id)
	e, err := scanEntity(row)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, reederr.EntityNotFound(id)
	}
	return e, nil
}

// UpdateEntity replaces payload and appends a history row in one
// transaction, returning the new version number.
func (s *Store) UpdateEntity(ctx context.Context, id string, payload json.RawMessage, actor *string, summary string) (int, error) {
	var version int
	err := s.pool.WithTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT true FROM ucg_entities WHERE id = $1 FOR UPDATE`, id).Scan(&exists); err != nil {
			if err == pgx.ErrNoRows {
				return reederr.EntityNotFound(id)
			}
			return reederr.DurableStoreError("lock entity: %v", err).Wrap(err)
		}

		if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) + 1 FROM ucg_entity_history WHERE entity_id = $1`, id).Scan(&version); err != nil {
			return reederr.DurableStoreError("next version: %v", err).Wrap(err)
		}

		if _, err := tx.Exec(ctx, `UPDATE ucg_entities SET payload = $1, updated_at = now() WHERE id = $2`, payload, id); err != nil {
			return reederr.DurableStoreError("update entity: %v", err).Wrap(err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO ucg_entity_history (entity_id, version, payload, summary, actor)
			VALUES ($1, $2, $3, $4, $5)`, id, version, payload, summary, actor); err != nil {
			return reederr.DurableStoreError("insert history: %v", err).Wrap(err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

// DeleteEntity removes an entity. Callers must have already verified no
// incoming containment associations remain (or passed cascade semantics
// through DetachAll beforehand); this method itself performs no cascade.
func (s *Store) DeleteEntity(ctx context.Context, id string) error {
	tag, err := s.pool.pool.Exec(ctx, `DELETE FROM ucg_entities WHERE id = $1`, id)
	if err != nil {
		return reederr.DurableStoreError("delete entity: %v", err).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return reederr.EntityNotFound(id)
	}
	return nil
}

// History returns every version of an entity's payload, oldest first.
func (s *Store) History(ctx context.Context, id string) ([]HistoryRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT entity_id, version, payload, COALESCE(summary, ''), actor, created_at
		FROM ucg_entity_history WHERE entity_id = $1 ORDER BY version ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryRecord
	for rows.Next() {
		var h HistoryRecord
		if err := rows.Scan(&h.EntityID, &h.Version, &h.Payload, &h.Summary, &h.Actor, &h.CreatedAt); err != nil {
			return nil, reederr.DurableStoreError("scan history: %v", err).Wrap(err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// CreateAssociation inserts a new edge. Cycle and existence checks happen
// in the ucg package before this is called; this layer only persists.
func (s *Store) CreateAssociation(ctx context.Context, id, parentID, childID, kind string, weight int) (*AssociationRecord, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO ucg_associations (id, parent_id, child_id, kind, weight)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, parent_id, child_id, kind, weight, created_at`,
		id, parentID, childID, kind, weight)

	a := &AssociationRecord{}
	if err := row.Scan(&a.ID, &a.ParentID, &a.ChildID, &a.Kind, &a.Weight, &a.CreatedAt); err != nil {
		return nil, reederr.DurableStoreError("create association: %v", err).Wrap(err)
	}
	return a, nil
}

func (s *Store) DeleteAssociation(ctx context.Context, id string) error {
	tag, err := s.pool.pool.Exec(ctx, `DELETE FROM ucg_associations WHERE id = $1`, id)
	if err != nil {
		return reederr.DurableStoreError("delete association: %v", err).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return reederr.InvalidPath("association " + id + " not found")
	}
	return nil
}

// ChildrenOf returns a parent's children ordered by (weight, created_at, id)
// for kind, the total order the EPC and UCG path resolver depend on.
func (s *Store) ChildrenOf(ctx context.Context, parentID, kind string) ([]EntityRecord, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT e.id, e.tag, e.semantic_name, e.payload, e.created_by, e.created_at, e.updated_at
		FROM ucg_associations a
		JOIN ucg_entities e ON e.id = a.child_id
		WHERE a.parent_id = $1 AND a.kind = $2
		ORDER BY a.weight ASC, a.created_at ASC, e.id ASC`), parentID, kind)
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

// ParentOf returns the single containment parent of id, if any.
func (s *Store) ParentOf(ctx context.Context, childID, kind string) (*EntityRecord, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT e.id, e.tag, e.semantic_name, e.payload, e.created_by, e.created_at, e.updated_at
		FROM ucg_associations a
		JOIN ucg_entities e ON e.id = a.parent_id
		WHERE a.child_id = $1 AND a.kind = $2
		LIMIT 1`), childID, kind)
	return scanEntity(row)
}

// AncestorOf is the lookup graph.WouldCycle needs: the single containment
// (or extension) parent id of id, if any.
func (s *Store) AncestorOf(ctx context.Context, id, kind string) (string, bool, error) {
	var parentID string
	err := s.pool.QueryRow(ctx, `
		SELECT parent_id FROM ucg_associations WHERE child_id = $1 AND kind = $2 LIMIT 1`, id, kind).Scan(&parentID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", false, nil
		}
		return "", false, reederr.DurableStoreError("ancestor lookup: %v", err).Wrap(err)
	}
	return parentID, true, nil
}

// HasIncomingContainment reports whether id is the parent of any association
// of kind="contains", i.e. whether it still has containment children.
func (s *Store) HasIncomingContainment(ctx context.Context, id string) (bool, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM ucg_associations WHERE parent_id = $1 AND kind = 'contains'`, id).Scan(&count)
	if err != nil {
		return false, reederr.DurableStoreError("incoming containment check: %v", err).Wrap(err)
	}
	return count > 0, nil
}

// Query is a filtered, sorted, paginated entity listing (spec §4.1 query).
type Query struct {
	Tag          string
	SemanticName string
	Equals       map[string]string // JSONB field -> exact value
	SortBy       string            // "created_at" | "updated_at" | "semantic_name"
	SortDesc     bool
	Offset       int
	Limit        int
}

// QueryResult bundles the page plus the total matching count.
type QueryResult struct {
	Entities []EntityRecord
	Total    int
	Elapsed  time.Duration
}

var allowedSort = map[string]bool{"created_at": true, "updated_at": true, "semantic_name": true}

func (s *Store) QueryEntities(ctx context.Context, q Query) (*QueryResult, error) {
	start := time.Now()

	where := []string{"1=1"}
	args := []interface{}{}
	argN := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Tag != "" {
		where = append(where, "tag = "+argN(q.Tag))
	}
	if q.SemanticName != "" {
		where = append(where, "semantic_name = "+argN(q.SemanticName))
	}
	for field, value := range q.Equals {
		where = append(where, fmt.Sprintf("payload ->> %s = %s", argN(field), argN(value)))
	}

	sortBy := "created_at"
	if allowedSort[q.SortBy] {
		sortBy = q.SortBy
	}
	dir := "ASC"
	if q.SortDesc {
		dir = "DESC"
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM ucg_entities WHERE %s`, whereClause), args...).Scan(&total); err != nil {
		return nil, reederr.DurableStoreError("query count: %v", err).Wrap(err)
	}

	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	pageArgs := append(append([]interface{}{}, args...), limit, q.Offset)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM ucg_entities WHERE %s ORDER BY %s %s, id ASC LIMIT $%d OFFSET $%d`,
		entityColumns, whereClause, sortBy, dir, len(args)+1, len(args)+2), pageArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []EntityRecord
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, reederr.DurableStoreError("query rows: %v", err).Wrap(err)
	}

	return &QueryResult{Entities: entities, Total: total, Elapsed: time.Since(start)}, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "23505") || strings.Contains(strings.ToLower(err.Error()), "unique")
}
