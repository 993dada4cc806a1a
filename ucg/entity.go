// Package ucg implements the Universal Content Graph: entity/association
// storage, cycle-safe attachment, path resolution, and queries, backed by
// the durable store with a hot-store cache in front of read paths.
package ucg

import (
	"context"
	"encoding/json"
	"time"

	"github.com/reedcms/reed/durable"
	"github.com/reedcms/reed/graph"
	"github.com/reedcms/reed/hotstore"
	"github.com/reedcms/reed/ids"
	"github.com/reedcms/reed/reederr"
)

// Kind names an association's role in the graph.
type Kind string

const (
	KindContains  Kind = "contains"
	KindReferences Kind = "references"
	KindExtends   Kind = "extends"
)

// MaxCycleDepth bounds the ancestor walk attach() performs before giving up.
const MaxCycleDepth = 64

// Entity is the in-memory view of a UCG entity.
type Entity struct {
	ID           string
	Tag          string
	SemanticName *string
	Payload      map[string]interface{}
	CreatedBy    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Association is the in-memory view of a UCG edge.
type Association struct {
	ID        string
	ParentID  string
	ChildID   string
	Kind      Kind
	Weight    int
	CreatedAt time.Time
}

// SchemaValidator is implemented by the snippet registry. Graph accepts it
// as an interface so ucg never imports snippet (snippet imports ucg for
// entity storage, not the other way around).
type SchemaValidator interface {
	Validate(tag string, payload map[string]interface{}) error
}

// dataStore is the durable-store surface Graph depends on. *durable.Store
// satisfies it; tests substitute an in-memory fake.
type dataStore interface {
	CreateEntity(ctx context.Context, id, tag string, semanticName *string, payload json.RawMessage, createdBy *string) (*durable.EntityRecord, error)
	GetEntity(ctx context.Context, id string) (*durable.EntityRecord, error)
	UpdateEntity(ctx context.Context, id string, payload json.RawMessage, actor *string, summary string) (int, error)
	DeleteEntity(ctx context.Context, id string) error
	CreateAssociation(ctx context.Context, id, parentID, childID, kind string, weight int) (*durable.AssociationRecord, error)
	DeleteAssociation(ctx context.Context, id string) error
	ChildrenOf(ctx context.Context, parentID, kind string) ([]durable.EntityRecord, error)
	ParentOf(ctx context.Context, childID, kind string) (*durable.EntityRecord, error)
	AncestorOf(ctx context.Context, id, kind string) (string, bool, error)
	HasIncomingContainment(ctx context.Context, id string) (bool, error)
	QueryEntities(ctx context.Context, q durable.Query) (*durable.QueryResult, error)
}

// Graph is the UCG core: durable store of record, hot-store read cache,
// and an optional schema validator for create/update.
type Graph struct {
	durable   dataStore
	hot       *hotstore.Store
	validator SchemaValidator
}

// New builds a Graph. validator may be nil, in which case payloads are
// accepted unconditionally (used by tests and by snippet/theme bootstrap
// that predates schema registration). hot may also be nil, degrading every
// read to durable-only (§4.2).
func New(store *durable.Store, hot *hotstore.Store, validator SchemaValidator) *Graph {
	return &Graph{durable: store, hot: hot, validator: validator}
}

// newForTest wires a fake dataStore directly, without a hot-store cache.
func newForTest(store dataStore, validator SchemaValidator) *Graph {
	return &Graph{durable: store, validator: validator}
}

func toEntity(r *durable.EntityRecord) (*Entity, error) {
	if r == nil {
		return nil, nil
	}
	var payload map[string]interface{}
	if len(r.Payload) > 0 {
		if err := json.Unmarshal(r.Payload, &payload); err != nil {
			return nil, reederr.UCGIntegrity("entity %s has malformed payload: %v", r.ID, err)
		}
	}
	return &Entity{
		ID: r.ID, Tag: r.Tag, SemanticName: r.SemanticName, Payload: payload,
		CreatedBy: r.CreatedBy, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}, nil
}

// CreateEntity validates payload (if a schema is registered for tag) and
// persists a new entity.
func (g *Graph) CreateEntity(ctx context.Context, tag string, semanticName *string, payload map[string]interface{}, actor *string) (*Entity, error) {
	if g.validator != nil {
		if err := g.validator.Validate(tag, payload); err != nil {
			return nil, err
		}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, reederr.SchemaViolation("payload is not serialisable: %v", err)
	}

	record, err := g.durable.CreateEntity(ctx, ids.New(), tag, semanticName, raw, actor)
	if err != nil {
		return nil, err
	}

	entity, err := toEntity(record)
	if err != nil {
		return nil, err
	}
	if g.hot != nil {
		g.hot.SetJSON(ctx, hotstore.ClassEntity, entity, entity.ID)
	}
	return entity, nil
}

// GetEntity reads through the hot-store cache, falling back to the durable
// store on a miss or hot-store unavailability (§4.2).
func (g *Graph) GetEntity(ctx context.Context, id string) (*Entity, error) {
	if g.hot != nil {
		var cached Entity
		found, err := g.hot.GetJSON(ctx, hotstore.ClassEntity, &cached, id)
		if err == nil && found {
			return &cached, nil
		}
	}

	record, err := g.durable.GetEntity(ctx, id)
	if err != nil {
		return nil, err
	}
	entity, err := toEntity(record)
	if err != nil {
		return nil, err
	}
	if g.hot != nil {
		g.hot.SetJSON(ctx, hotstore.ClassEntity, entity, id)
	}
	return entity, nil
}

// UpdateEntity validates and replaces an entity's payload, appending a
// history row, then invalidates the hot-store cache entry.
func (g *Graph) UpdateEntity(ctx context.Context, id string, payload map[string]interface{}, actor *string, summary string) (int, error) {
	existing, err := g.durable.GetEntity(ctx, id)
	if err != nil {
		return 0, err
	}

	if g.validator != nil {
		if err := g.validator.Validate(existing.Tag, payload); err != nil {
			return 0, err
		}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, reederr.SchemaViolation("payload is not serialisable: %v", err)
	}

	version, err := g.durable.UpdateEntity(ctx, id, raw, actor, summary)
	if err != nil {
		return 0, err
	}
	if g.hot != nil {
		g.hot.Invalidate(ctx, hotstore.ClassEntity, id)
	}
	return version, nil
}

// DeleteEntity removes an entity. When cascade is false, an entity that
// still has containment children cannot be deleted.
func (g *Graph) DeleteEntity(ctx context.Context, id string, cascade bool) error {
	if !cascade {
		has, err := g.durable.HasIncomingContainment(ctx, id)
		if err != nil {
			return err
		}
		if has {
			return reederr.HasIncomingContainment(id)
		}
	} else {
		children, err := g.durable.ChildrenOf(ctx, id, string(KindContains))
		if err != nil {
			return err
		}
		for _, child := range children {
			if err := g.DeleteEntity(ctx, child.ID, true); err != nil {
				return err
			}
		}
	}

	if err := g.durable.DeleteEntity(ctx, id); err != nil {
		return err
	}
	if g.hot != nil {
		g.hot.Invalidate(ctx, hotstore.ClassEntity, id)
	}
	return nil
}

// Attach creates a new association, rejecting containment/extension edges
// that would introduce a cycle.
func (g *Graph) Attach(ctx context.Context, parent, child string, kind Kind, weight int) (*Association, error) {
	if kind == KindContains || kind == KindExtends {
		lookup := func(id string) (string, bool) {
			p, ok, err := g.durable.AncestorOf(ctx, id, string(kind))
			if err != nil {
				return "", false
			}
			return p, ok
		}
		would, err := graph.WouldCycle(parent, child, lookup, MaxCycleDepth)
		if err != nil {
			return nil, reederr.UCGIntegrity("cycle check: %v", err)
		}
		if would {
			return nil, reederr.WouldCycle(parent, child)
		}
	}

	record, err := g.durable.CreateAssociation(ctx, ids.New(), parent, child, string(kind), weight)
	if err != nil {
		return nil, err
	}
	if g.hot != nil {
		g.hot.Invalidate(ctx, hotstore.ClassChildren, parent)
	}

	return &Association{
		ID: record.ID, ParentID: record.ParentID, ChildID: record.ChildID,
		Kind: Kind(record.Kind), Weight: record.Weight, CreatedAt: record.CreatedAt,
	}, nil
}

// Detach removes an association and invalidates the parent's children
// cache entry.
func (g *Graph) Detach(ctx context.Context, assocID, parentID string) error {
	if err := g.durable.DeleteAssociation(ctx, assocID); err != nil {
		return err
	}
	if g.hot != nil {
		g.hot.Invalidate(ctx, hotstore.ClassChildren, parentID)
	}
	return nil
}

// ChildrenOf returns a parent's containment children, ordered by
// (weight ASC, created_at ASC, id ASC), reading through the hot-store
// children-index cache.
func (g *Graph) ChildrenOf(ctx context.Context, parentID string) ([]Entity, error) {
	if g.hot != nil {
		var cached []Entity
		found, err := g.hot.GetJSON(ctx, hotstore.ClassChildren, &cached, parentID)
		if err == nil && found {
			return cached, nil
		}
	}

	records, err := g.durable.ChildrenOf(ctx, parentID, string(KindContains))
	if err != nil {
		return nil, err
	}
	children := make([]Entity, 0, len(records))
	for i := range records {
		e, err := toEntity(&records[i])
		if err != nil {
			return nil, err
		}
		children = append(children, *e)
	}
	if g.hot != nil {
		g.hot.SetJSON(ctx, hotstore.ClassChildren, children, parentID)
	}
	return children, nil
}

// ParentOf returns the containment parent of id, if any.
func (g *Graph) ParentOf(ctx context.Context, id string) (*Entity, Kind, error) {
	record, err := g.durable.ParentOf(ctx, id, string(KindContains))
	if err != nil {
		return nil, "", err
	}
	if record == nil {
		return nil, "", nil
	}
	entity, err := toEntity(record)
	if err != nil {
		return nil, "", err
	}
	return entity, KindContains, nil
}
