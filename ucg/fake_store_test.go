package ucg

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/reedcms/reed/durable"
	"github.com/reedcms/reed/reederr"
)

// fakeStore is an in-memory dataStore used to unit test Graph without a
// real Postgres instance, mirroring the shape of the teacher's in-memory
// test doubles for its repository interfaces.
type fakeStore struct {
	mu    sync.Mutex
	seq   int
	ent   map[string]durable.EntityRecord
	assoc map[string]durable.AssociationRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		ent:   map[string]durable.EntityRecord{},
		assoc: map[string]durable.AssociationRecord{},
	}
}

func (f *fakeStore) CreateEntity(ctx context.Context, id, tag string, semanticName *string, payload json.RawMessage, createdBy *string) (*durable.EntityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if semanticName != nil {
		for _, e := range f.ent {
			if e.Tag == tag && e.SemanticName != nil && *e.SemanticName == *semanticName {
				return nil, reederr.SemanticNameTaken(tag, *semanticName)
			}
		}
	}

	now := time.Now()
	rec := durable.EntityRecord{
		ID: id, Tag: tag, SemanticName: semanticName, Payload: payload,
		CreatedBy: createdBy, CreatedAt: now, UpdatedAt: now,
	}
	f.ent[id] = rec
	return &rec, nil
}

func (f *fakeStore) GetEntity(ctx context.Context, id string) (*durable.EntityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.ent[id]
	if !ok {
		return nil, reederr.EntityNotFound(id)
	}
	return &rec, nil
}

func (f *fakeStore) UpdateEntity(ctx context.Context, id string, payload json.RawMessage, actor *string, summary string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.ent[id]
	if !ok {
		return 0, reederr.EntityNotFound(id)
	}
	rec.Payload = payload
	rec.UpdatedAt = time.Now()
	f.ent[id] = rec
	f.seq++
	return f.seq, nil
}

func (f *fakeStore) DeleteEntity(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ent[id]; !ok {
		return reederr.EntityNotFound(id)
	}
	delete(f.ent, id)
	return nil
}

func (f *fakeStore) CreateAssociation(ctx context.Context, id, parentID, childID, kind string, weight int) (*durable.AssociationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := durable.AssociationRecord{ID: id, ParentID: parentID, ChildID: childID, Kind: kind, Weight: weight, CreatedAt: time.Now()}
	f.assoc[id] = rec
	return &rec, nil
}

func (f *fakeStore) DeleteAssociation(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.assoc, id)
	return nil
}

func (f *fakeStore) ChildrenOf(ctx context.Context, parentID, kind string) ([]durable.EntityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	type withOrder struct {
		rec   durable.EntityRecord
		order durable.AssociationRecord
	}
	var matches []withOrder
	for _, a := range f.assoc {
		if a.ParentID == parentID && a.Kind == kind {
			if child, ok := f.ent[a.ChildID]; ok {
				matches = append(matches, withOrder{rec: child, order: a})
			}
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].order.Weight != matches[j].order.Weight {
			return matches[i].order.Weight < matches[j].order.Weight
		}
		if !matches[i].order.CreatedAt.Equal(matches[j].order.CreatedAt) {
			return matches[i].order.CreatedAt.Before(matches[j].order.CreatedAt)
		}
		return matches[i].rec.ID < matches[j].rec.ID
	})

	out := make([]durable.EntityRecord, len(matches))
	for i, m := range matches {
		out[i] = m.rec
	}
	return out, nil
}

func (f *fakeStore) ParentOf(ctx context.Context, childID, kind string) (*durable.EntityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.assoc {
		if a.ChildID == childID && a.Kind == kind {
			if parent, ok := f.ent[a.ParentID]; ok {
				return &parent, nil
			}
		}
	}
	return nil, nil
}

func (f *fakeStore) AncestorOf(ctx context.Context, id, kind string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.assoc {
		if a.ChildID == id && a.Kind == kind {
			return a.ParentID, true, nil
		}
	}
	return "", false, nil
}

func (f *fakeStore) HasIncomingContainment(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.assoc {
		if a.ParentID == id && a.Kind == "contains" {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) QueryEntities(ctx context.Context, q durable.Query) (*durable.QueryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []durable.EntityRecord
	for _, e := range f.ent {
		if q.Tag != "" && e.Tag != q.Tag {
			continue
		}
		if q.SemanticName != "" && (e.SemanticName == nil || *e.SemanticName != q.SemanticName) {
			continue
		}
		matched = append(matched, e)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })

	total := len(matched)
	limit := q.Limit
	if limit <= 0 {
		limit = len(matched)
	}
	end := q.Offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	start := q.Offset
	if start > len(matched) {
		start = len(matched)
	}

	return &durable.QueryResult{Entities: matched[start:end], Total: total}, nil
}
