package ucg

import (
	"context"
	"strings"
	"time"

	"github.com/reedcms/reed/durable"
)

// Filter is a single equals/not-equals/comparison constraint on a payload
// field. Only Equals is pushed down to SQL today; the richer operators
// (not-equals, contains, <, >, in) are applied in-process over the page
// the durable store returns, since the spec's filter language is richer
// than a single JSONB equality predicate.
type Filter struct {
	Field string
	Op    string // "eq" | "neq" | "contains" | "lt" | "gt" | "in"
	Value interface{}
}

// Query describes a listing request (spec §4.1 query).
type Query struct {
	Tag          string
	SemanticName string
	Filters      []Filter
	SortBy       string
	SortDesc     bool
	Offset       int
	Limit        int
}

// QueryResult is the page of entities plus a total count and the time spent
// producing it. Total is the durable store's count for the pushed-down
// filters only; filters applied in-process afterwards are not reflected in
// it, so Entities can hold fewer matches than Total suggests.
type QueryResult struct {
	Entities []Entity
	Total    int
	Elapsed  time.Duration
}

func durableQueryBySemanticName(name string) durable.Query {
	return durable.Query{SemanticName: name, Limit: 1}
}

// Query lists entities matching Filters, sorted and paginated.
func (g *Graph) Query(ctx context.Context, q Query) (*QueryResult, error) {
	equals := map[string]string{}
	var postFilters []Filter
	for _, f := range q.Filters {
		if f.Op == "eq" {
			if s, ok := f.Value.(string); ok {
				equals[f.Field] = s
				continue
			}
		}
		postFilters = append(postFilters, f)
	}

	result, err := g.durable.QueryEntities(ctx, durable.Query{
		Tag:          q.Tag,
		SemanticName: q.SemanticName,
		Equals:       equals,
		SortBy:       q.SortBy,
		SortDesc:     q.SortDesc,
		Offset:       q.Offset,
		Limit:        q.Limit,
	})
	if err != nil {
		return nil, err
	}

	entities := make([]Entity, 0, len(result.Entities))
	for i := range result.Entities {
		e, err := toEntity(&result.Entities[i])
		if err != nil {
			return nil, err
		}
		if matchesPostFilters(*e, postFilters) {
			entities = append(entities, *e)
		}
	}

	return &QueryResult{Entities: entities, Total: result.Total, Elapsed: result.Elapsed}, nil
}

func matchesPostFilters(e Entity, filters []Filter) bool {
	for _, f := range filters {
		v, ok := e.Payload[f.Field]
		if !ok {
			return false
		}
		if !matchOp(v, f.Op, f.Value) {
			return false
		}
	}
	return true
}

func matchOp(actual interface{}, op string, expected interface{}) bool {
	switch op {
	case "eq":
		return actual == expected
	case "neq":
		return actual != expected
	case "contains":
		s, ok1 := actual.(string)
		sub, ok2 := expected.(string)
		return ok1 && ok2 && strings.Contains(s, sub)
	case "lt", "gt":
		a, ok1 := toFloat(actual)
		b, ok2 := toFloat(expected)
		if !ok1 || !ok2 {
			return false
		}
		if op == "lt" {
			return a < b
		}
		return a > b
	case "in":
		list, ok := expected.([]interface{})
		if !ok {
			return false
		}
		for _, item := range list {
			if item == actual {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
