// Package outline derives the nested outline view from flat, parent-pointer
// outline node rows, and provides the sibling and ancestry helpers the stores
// use to keep the tree consistent. Everything here is pure: no I/O, no
// mutation of the input slices.
package outline

import (
	"fmt"
	"sort"

	"github.com/mesh-intelligence/interfold/pkg/types"
)

// BuildTree nests flat nodes under their parents, sorts every sibling list by
// OrderIndex (ties broken by ID), and stamps each node's Depth.
//
// Rows that cannot be reached from a root are returned as detached instead of
// being placed in the tree: a parent ID that does not resolve within nodes, or
// a parent chain that loops back on itself.
func BuildTree(nodes []types.OutlineNode) (roots []*types.OutlineTreeNode, detached []types.OutlineNode) {
	byID := make(map[string]*types.OutlineTreeNode, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = &types.OutlineTreeNode{OutlineNode: n, Children: []*types.OutlineTreeNode{}}
	}

	for _, n := range nodes {
		tn := byID[n.ID]
		if n.ParentID == nil {
			roots = append(roots, tn)
			continue
		}
		if parent, ok := byID[*n.ParentID]; ok {
			parent.Children = append(parent.Children, tn)
		}
	}

	sortSiblings(roots)
	visited := make(map[string]bool, len(nodes))
	for _, r := range roots {
		stamp(r, 0, visited)
	}

	for _, n := range nodes {
		if !visited[n.ID] {
			detached = append(detached, n)
		}
	}
	if roots == nil {
		roots = []*types.OutlineTreeNode{}
	}
	return roots, detached
}

// stamp sets depth for node and its subtree and sorts each child list.
func stamp(node *types.OutlineTreeNode, depth int, visited map[string]bool) {
	visited[node.ID] = true
	node.Depth = depth
	sortSiblings(node.Children)
	for _, child := range node.Children {
		stamp(child, depth+1, visited)
	}
}

func sortSiblings(nodes []*types.OutlineTreeNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].OrderIndex != nodes[j].OrderIndex {
			return nodes[i].OrderIndex < nodes[j].OrderIndex
		}
		return nodes[i].ID < nodes[j].ID
	})
}

// FlattenTree returns every node of the forest in depth-first pre-order,
// without the Children and Depth decorations.
func FlattenTree(roots []*types.OutlineTreeNode) []types.OutlineNode {
	var flat []types.OutlineNode
	var walk func(n *types.OutlineTreeNode)
	walk = func(n *types.OutlineTreeNode) {
		flat = append(flat, n.OutlineNode)
		for _, child := range n.Children {
			walk(child)
		}
	}
	for _, r := range roots {
		walk(r)
	}
	return flat
}

// Index maps node IDs to nodes.
func Index(nodes []types.OutlineNode) map[string]types.OutlineNode {
	byID := make(map[string]types.OutlineNode, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	return byID
}

// IsAncestor reports whether ancestorID lies on the parent chain of
// descendantID, the descendant itself included. The walk stops at a root, at
// an unknown ID, or when it revisits a node.
func IsAncestor(ancestorID, descendantID string, byID map[string]types.OutlineNode) bool {
	seen := make(map[string]bool)
	current := &descendantID
	for current != nil {
		if *current == ancestorID {
			return true
		}
		if seen[*current] {
			return false
		}
		seen[*current] = true
		node, ok := byID[*current]
		if !ok {
			return false
		}
		current = node.ParentID
	}
	return false
}

// PathFromRoot returns the IDs from the root down to nodeID, inclusive.
func PathFromRoot(nodeID string, byID map[string]types.OutlineNode) ([]string, error) {
	var path []string
	seen := make(map[string]bool)
	current := &nodeID
	for current != nil {
		if seen[*current] {
			return nil, fmt.Errorf("parent chain of %s loops at %s", nodeID, *current)
		}
		seen[*current] = true
		node, ok := byID[*current]
		if !ok {
			return nil, fmt.Errorf("node %s: %w", *current, types.ErrNotFound)
		}
		path = append(path, node.ID)
		current = node.ParentID
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// ContentFromPath maps a path of node IDs to the nodes' content.
func ContentFromPath(path []string, byID map[string]types.OutlineNode) ([]string, error) {
	contents := make([]string, len(path))
	for i, id := range path {
		node, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("node %s: %w", id, types.ErrNotFound)
		}
		contents[i] = node.Content
	}
	return contents, nil
}

// SameParent reports whether two parent pointers name the same parent.
func SameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Siblings returns the nodes under parentID sorted by OrderIndex.
func Siblings(parentID *string, nodes []types.OutlineNode) []types.OutlineNode {
	var siblings []types.OutlineNode
	for _, n := range nodes {
		if SameParent(n.ParentID, parentID) {
			siblings = append(siblings, n)
		}
	}
	sortByOrder(siblings)
	return siblings
}

// NextOrderIndex returns one past the largest OrderIndex under parentID, or 0
// when the group is empty.
func NextOrderIndex(parentID *string, nodes []types.OutlineNode) int {
	next := 0
	for _, n := range nodes {
		if SameParent(n.ParentID, parentID) && n.OrderIndex >= next {
			next = n.OrderIndex + 1
		}
	}
	return next
}

// ReorderSiblings renumbers the group under parentID to 0..n-1, keeping the
// current relative order. Other nodes are returned unchanged, ahead of the
// renumbered group.
func ReorderSiblings(parentID *string, nodes []types.OutlineNode) []types.OutlineNode {
	out := make([]types.OutlineNode, 0, len(nodes))
	var siblings []types.OutlineNode
	for _, n := range nodes {
		if SameParent(n.ParentID, parentID) {
			siblings = append(siblings, n)
			continue
		}
		out = append(out, n)
	}
	sortByOrder(siblings)
	for i := range siblings {
		siblings[i].OrderIndex = i
	}
	return append(out, siblings...)
}

// ApplyOrder returns the sibling IDs in their new order: the IDs listed in
// order come first, the remaining siblings follow in their current order.
// siblings must already be sorted by OrderIndex.
func ApplyOrder(siblings []types.OutlineNode, order []string) []string {
	listed := make(map[string]bool, len(order))
	ids := make([]string, 0, len(siblings))
	for _, id := range order {
		listed[id] = true
		ids = append(ids, id)
	}
	for _, s := range siblings {
		if !listed[s.ID] {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// InsertAt returns the sibling IDs with id placed at position, clamped to the
// group size. id is removed from its previous position first.
// siblings must already be sorted by OrderIndex.
func InsertAt(siblings []types.OutlineNode, id string, position int) []string {
	ids := make([]string, 0, len(siblings)+1)
	for _, s := range siblings {
		if s.ID != id {
			ids = append(ids, s.ID)
		}
	}
	if position > len(ids) {
		position = len(ids)
	}
	ids = append(ids, "")
	copy(ids[position+1:], ids[position:])
	ids[position] = id
	return ids
}

func sortByOrder(nodes []types.OutlineNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].OrderIndex != nodes[j].OrderIndex {
			return nodes[i].OrderIndex < nodes[j].OrderIndex
		}
		return nodes[i].ID < nodes[j].ID
	})
}
