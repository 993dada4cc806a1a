package ucg

import (
	"context"
	"strconv"
	"strings"

	"github.com/reedcms/reed/hotstore"
	"github.com/reedcms/reed/reederr"
)

// RootSemanticName is the well-known semantic name of the entity a "root.*"
// path resolves against.
const RootSemanticName = "root"

// ResolvePath walks a dotted positional address ("root.2.1") left to
// right: each segment after "root" is the 1-based rank of a child among
// its containment siblings. It returns the resolved entity (the root
// entity itself for a bare "root") and the resolved entity's own children.
func (g *Graph) ResolvePath(ctx context.Context, path string) (*Entity, []Entity, error) {
	segments := strings.Split(path, ".")
	if len(segments) == 0 || segments[0] != "root" {
		return nil, nil, reederr.InvalidPath(path)
	}

	root, err := g.findRoot(ctx)
	if err != nil {
		return nil, nil, err
	}

	current := root
	for _, seg := range segments[1:] {
		pos, err := strconv.Atoi(seg)
		if err != nil || pos < 1 {
			return nil, nil, reederr.InvalidPath(path)
		}

		children, err := g.ChildrenOf(ctx, current.ID)
		if err != nil {
			return nil, nil, err
		}
		if pos > len(children) {
			return nil, nil, reederr.InvalidPath(path)
		}
		current = &children[pos-1]
	}

	children, err := g.ChildrenOf(ctx, current.ID)
	if err != nil {
		return nil, nil, err
	}
	return current, children, nil
}

// findRoot resolves the singular entity with semantic name "root", used as
// the anchor for every path. Memoised briefly in the hot store since it is
// read on every path resolution.
func (g *Graph) findRoot(ctx context.Context) (*Entity, error) {
	if g.hot != nil {
		var cached Entity
		found, err := g.hot.GetJSON(ctx, hotstore.ClassEntity, &cached, "by-semantic-name", RootSemanticName)
		if err == nil && found {
			return &cached, nil
		}
	}

	result, err := g.durable.QueryEntities(ctx, durableQueryBySemanticName(RootSemanticName))
	if err != nil {
		return nil, err
	}
	if len(result.Entities) == 0 {
		return nil, reederr.InvalidPath("root")
	}
	entity, err := toEntity(&result.Entities[0])
	if err != nil {
		return nil, err
	}
	if g.hot != nil {
		g.hot.SetJSON(ctx, hotstore.ClassEntity, entity, "by-semantic-name", RootSemanticName)
	}
	return entity, nil
}

// Path computes the dotted positional address of id by walking containment
// parents to the root, then resolving each hop's 1-based rank. Used to
// render canonical URLs and for diagnostics; the stored truth remains
// (parent_id, child_id, weight), never this derived string (§3).
func (g *Graph) Path(ctx context.Context, id string) (string, error) {
	var ranks []string
	current := id

	for {
		parent, kind, err := g.ParentOf(ctx, current)
		if err != nil {
			return "", err
		}
		if parent == nil {
			break
		}
		if kind != KindContains {
			break
		}

		siblings, err := g.ChildrenOf(ctx, parent.ID)
		if err != nil {
			return "", err
		}
		rank := -1
		for i, sibling := range siblings {
			if sibling.ID == current {
				rank = i + 1
				break
			}
		}
		if rank == -1 {
			return "", reederr.UCGIntegrity("entity %s not found among its own parent's children", current)
		}
		ranks = append([]string{strconv.Itoa(rank)}, ranks...)
		current = parent.ID
	}

	if len(ranks) == 0 {
		return "root", nil
	}
	return "root." + strings.Join(ranks, "."), nil
}
