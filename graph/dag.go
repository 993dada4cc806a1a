// Package graph provides directed acyclic graph utilities shared by the
// content graph's containment/extension edges and the plugin host's
// dependency ordering.
package graph

import "fmt"

// Node is anything that can participate in a dependency graph: it has a
// stable key and a list of keys it depends on (must come before it).
type Node interface {
	Key() string
	DependsOn() []string
}

// AncestorLookup resolves a node's parent key, or ("", false) if the node
// has no parent.
type AncestorLookup func(id string) (parent string, ok bool)

// WouldCycle reports whether attaching child under parent would make child
// its own ancestor. It walks the parent chain starting at parent, bounded by
// maxDepth, looking for child.
func WouldCycle(parent, child string, lookup AncestorLookup, maxDepth int) (bool, error) {
	if parent == child {
		return true, nil
	}
	current := parent
	for depth := 0; depth < maxDepth; depth++ {
		if current == child {
			return true, nil
		}
		next, ok := lookup(current)
		if !ok {
			return false, nil
		}
		current = next
	}
	return false, fmt.Errorf("graph: ancestor walk exceeded max depth %d", maxDepth)
}

// TopologicalSort orders nodes so every node appears after everything it
// depends on, using Kahn's algorithm seeded in input order for determinism.
// Unresolved dependency keys (not present in nodes) are ignored, matching
// the plugin host's "optional dependency" semantics.
func TopologicalSort(nodes []Node) ([]Node, error) {
	byKey := make(map[string]Node, len(nodes))
	inDegree := make(map[string]int, len(nodes))
	dependents := make(map[string][]string)

	for _, n := range nodes {
		byKey[n.Key()] = n
		if _, exists := inDegree[n.Key()]; !exists {
			inDegree[n.Key()] = 0
		}
	}
	for _, n := range nodes {
		for _, dep := range n.DependsOn() {
			if _, known := byKey[dep]; !known {
				continue
			}
			inDegree[n.Key()]++
			dependents[dep] = append(dependents[dep], n.Key())
		}
	}

	var queue []string
	for _, n := range nodes {
		if inDegree[n.Key()] == 0 {
			queue = append(queue, n.Key())
		}
	}

	result := make([]Node, 0, len(nodes))
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		result = append(result, byKey[key])

		for _, dep := range dependents[key] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(result) != len(nodes) {
		return nil, fmt.Errorf("graph: cycle detected, %d of %d nodes unorderable", len(nodes)-len(result), len(nodes))
	}
	return result, nil
}
