package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/interfold/pkg/outline"
	"github.com/mesh-intelligence/interfold/pkg/types"
)

const outlineNodeColumns = `node_id, user_id, parent_id, content, order_index, is_expanded, intersection_id, created_at, updated_at`

// outlineStore renumbers a sibling group to 0..n-1 whenever a node moves
// into or out of it, is reordered in it or is deleted from it. Structural
// mutations load the caller's rows inside the transaction and compute the new
// layout with package outline.
type outlineStore struct {
	scope *scope
}

// GetUserOutline returns the caller's outline as nested, ordered roots. Rows
// whose parent chain does not reach a root are logged and left out.
func (st *outlineStore) GetUserOutline(ctx context.Context) ([]*types.OutlineTreeNode, error) {
	var nodes []types.OutlineNode
	err := st.scope.backend.read(func(q queryer) error {
		var err error
		nodes, err = st.loadNodes(ctx, q)
		return err
	})
	if err != nil {
		return nil, err
	}

	roots, detached := outline.BuildTree(nodes)
	for _, n := range detached {
		st.scope.backend.log.Warn().Str("user", st.scope.userID).Str("id", n.ID).Msg("outline node unreachable from any root")
	}
	return roots, nil
}

// GetFlatOutline returns the caller's rows in tree pre-order, followed by any
// rows unreachable from a root.
func (st *outlineStore) GetFlatOutline(ctx context.Context) ([]types.OutlineNode, error) {
	var nodes []types.OutlineNode
	err := st.scope.backend.read(func(q queryer) error {
		var err error
		nodes, err = st.loadNodes(ctx, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	roots, detached := outline.BuildTree(nodes)
	return append(outline.FlattenTree(roots), detached...), nil
}

func (st *outlineStore) GetNodeByID(ctx context.Context, id string) (*types.OutlineNode, error) {
	if err := types.ValidateID("id", id); err != nil {
		return nil, err
	}
	var node *types.OutlineNode
	err := st.scope.backend.read(func(q queryer) error {
		var err error
		node, err = st.selectOne(ctx, q, id)
		return err
	})
	return node, err
}

// GetNodePath returns the entries from the root down to the node.
func (st *outlineStore) GetNodePath(ctx context.Context, id string) ([]types.PathEntry, error) {
	if err := types.ValidateID("id", id); err != nil {
		return nil, err
	}
	var nodes []types.OutlineNode
	err := st.scope.backend.read(func(q queryer) error {
		var err error
		nodes, err = st.loadNodes(ctx, q)
		return err
	})
	if err != nil {
		return nil, err
	}

	byID := outline.Index(nodes)
	if _, ok := byID[id]; !ok {
		return nil, notFound("outline node", id)
	}
	ids, err := outline.PathFromRoot(id, byID)
	if err != nil {
		return nil, err
	}
	contents, err := outline.ContentFromPath(ids, byID)
	if err != nil {
		return nil, err
	}
	entries := make([]types.PathEntry, len(ids))
	for i, nodeID := range ids {
		entries[i] = types.PathEntry{ID: nodeID, Content: contents[i]}
	}
	return entries, nil
}

// CreateNode appends the node to its sibling group, or stores the explicit
// OrderIndex as given. Siblings are not shifted, so the group may hold gaps
// or ties until the next move or reorder renumbers it.
func (st *outlineStore) CreateNode(ctx context.Context, in types.CreateOutlineNodeInput) (*types.OutlineNode, error) {
	if err := in.Normalize(); err != nil {
		return nil, err
	}

	ts := now()
	node := types.OutlineNode{
		ID:             newUUID(),
		UserID:         st.scope.userID,
		ParentID:       in.ParentID,
		Content:        in.Content,
		IsExpanded:     true,
		IntersectionID: in.IntersectionID,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}

	err := st.scope.backend.write(ctx, func(tx *sql.Tx) error {
		if in.ParentID != nil {
			if _, err := st.selectOne(ctx, tx, *in.ParentID); err != nil {
				return err
			}
		}
		if in.IntersectionID != nil {
			if err := st.requireIntersection(ctx, tx, *in.IntersectionID); err != nil {
				return err
			}
		}

		if in.OrderIndex != nil {
			node.OrderIndex = *in.OrderIndex
		} else {
			err := tx.QueryRowContext(ctx,
				`SELECT COALESCE(MAX(order_index) + 1, 0) FROM outline_nodes WHERE user_id = ? AND parent_id IS ?`,
				st.scope.userID, nullString(in.ParentID),
			).Scan(&node.OrderIndex)
			if err != nil {
				return fmt.Errorf("computing order index: %w", err)
			}
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO outline_nodes (`+outlineNodeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			node.ID, node.UserID, nullString(node.ParentID), node.Content, node.OrderIndex,
			node.IsExpanded, nullString(node.IntersectionID), formatTime(ts), formatTime(ts),
		)
		if err != nil {
			return fmt.Errorf("inserting outline node: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	st.scope.backend.log.Debug().Str("user", st.scope.userID).Str("id", node.ID).Int("order", node.OrderIndex).Msg("outline node created")
	return &node, nil
}

func (st *outlineStore) UpdateNodeContent(ctx context.Context, in types.UpdateNodeContentInput) (*types.OutlineNode, error) {
	if err := in.Normalize(); err != nil {
		return nil, err
	}
	return st.updateColumn(ctx, in.ID, `content = ?, updated_at = ?`, in.Content, formatTime(now()))
}

// MoveNode reparents the node and places it at NewOrderIndex among its new
// siblings. Both the old and the new sibling groups are renumbered.
func (st *outlineStore) MoveNode(ctx context.Context, in types.MoveNodeInput) (*types.OutlineNode, error) {
	if err := in.Normalize(); err != nil {
		return nil, err
	}
	return st.restructure(ctx, in.ID, func(node types.OutlineNode, nodes []types.OutlineNode, byID map[string]types.OutlineNode) (*string, int, error) {
		if in.NewParentID != nil {
			if _, ok := byID[*in.NewParentID]; !ok {
				return nil, 0, notFound("outline node", *in.NewParentID)
			}
			if outline.IsAncestor(node.ID, *in.NewParentID, byID) {
				return nil, 0, fmt.Errorf("moving %s under %s: %w", node.ID, *in.NewParentID, types.ErrCycle)
			}
		}
		return in.NewParentID, in.NewOrderIndex, nil
	})
}

// IndentNode makes the node the last child of its previous sibling.
func (st *outlineStore) IndentNode(ctx context.Context, id string) (*types.OutlineNode, error) {
	if err := types.ValidateID("id", id); err != nil {
		return nil, err
	}
	return st.restructure(ctx, id, func(node types.OutlineNode, nodes []types.OutlineNode, _ map[string]types.OutlineNode) (*string, int, error) {
		siblings := outline.Siblings(node.ParentID, nodes)
		pos := indexOf(siblings, node.ID)
		if pos <= 0 {
			return nil, 0, fmt.Errorf("indenting %s: no previous sibling: %w", node.ID, types.ErrInvalidMove)
		}
		prev := siblings[pos-1].ID
		return &prev, len(outline.Siblings(&prev, nodes)), nil
	})
}

// OutdentNode moves the node to its grandparent's group, right after its
// former parent.
func (st *outlineStore) OutdentNode(ctx context.Context, id string) (*types.OutlineNode, error) {
	if err := types.ValidateID("id", id); err != nil {
		return nil, err
	}
	return st.restructure(ctx, id, func(node types.OutlineNode, nodes []types.OutlineNode, byID map[string]types.OutlineNode) (*string, int, error) {
		if node.ParentID == nil {
			return nil, 0, fmt.Errorf("outdenting %s: already a root: %w", node.ID, types.ErrInvalidMove)
		}
		parent, ok := byID[*node.ParentID]
		if !ok {
			return nil, 0, notFound("outline node", *node.ParentID)
		}
		pos := indexOf(outline.Siblings(parent.ParentID, nodes), parent.ID)
		return parent.ParentID, pos + 1, nil
	})
}

// placement picks the destination parent and position for a node.
type placement func(node types.OutlineNode, nodes []types.OutlineNode, byID map[string]types.OutlineNode) (*string, int, error)

// restructure relocates one node inside a transaction. place sees the
// caller's rows as they were before the move; nothing is written when it
// fails.
func (st *outlineStore) restructure(ctx context.Context, id string, place placement) (*types.OutlineNode, error) {
	var moved *types.OutlineNode
	err := st.scope.backend.write(ctx, func(tx *sql.Tx) error {
		nodes, err := st.loadNodes(ctx, tx)
		if err != nil {
			return err
		}
		byID := outline.Index(nodes)
		node, ok := byID[id]
		if !ok {
			return notFound("outline node", id)
		}

		newParent, position, err := place(node, nodes, byID)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE outline_nodes SET parent_id = ?, updated_at = ? WHERE node_id = ?`,
			nullString(newParent), formatTime(now()), id,
		)
		if err != nil {
			return fmt.Errorf("reparenting outline node: %w", err)
		}

		if !outline.SameParent(node.ParentID, newParent) {
			var rest []string
			for _, s := range outline.Siblings(node.ParentID, nodes) {
				if s.ID != id {
					rest = append(rest, s.ID)
				}
			}
			if err := st.renumber(ctx, tx, rest, byID); err != nil {
				return err
			}
		}

		order := outline.InsertAt(outline.Siblings(newParent, nodes), id, position)
		// The moved node's stored index no longer applies in its new group.
		delete(byID, id)
		if err := st.renumber(ctx, tx, order, byID); err != nil {
			return err
		}

		moved, err = st.selectOne(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	st.scope.backend.log.Debug().
		Str("user", st.scope.userID).
		Str("id", id).
		Int("order", moved.OrderIndex).
		Msg("outline node moved")
	return moved, nil
}

// ReorderNodes puts the listed siblings first, in the given order, followed
// by the rest of the group in their current order.
func (st *outlineStore) ReorderNodes(ctx context.Context, in types.ReorderNodesInput) ([]types.OutlineNode, error) {
	if err := in.Normalize(); err != nil {
		return nil, err
	}

	var group []types.OutlineNode
	err := st.scope.backend.write(ctx, func(tx *sql.Tx) error {
		nodes, err := st.loadNodes(ctx, tx)
		if err != nil {
			return err
		}
		byID := outline.Index(nodes)
		if in.ParentID != nil {
			if _, ok := byID[*in.ParentID]; !ok {
				return notFound("outline node", *in.ParentID)
			}
		}

		siblings := outline.Siblings(in.ParentID, nodes)
		inGroup := make(map[string]bool, len(siblings))
		for _, s := range siblings {
			inGroup[s.ID] = true
		}
		for _, id := range in.NodeIDs {
			if !inGroup[id] {
				return notFound("sibling", id)
			}
		}

		order := outline.ApplyOrder(siblings, in.NodeIDs)
		if err := st.renumber(ctx, tx, order, byID); err != nil {
			return err
		}

		group = make([]types.OutlineNode, 0, len(order))
		for _, id := range order {
			n, err := st.selectOne(ctx, tx, id)
			if err != nil {
				return err
			}
			group = append(group, *n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	st.scope.backend.log.Debug().Str("user", st.scope.userID).Int("siblings", len(group)).Msg("outline nodes reordered")
	return group, nil
}

// ToggleExpanded flips the collapse state. It is presentation state, so
// UpdatedAt is left alone.
func (st *outlineStore) ToggleExpanded(ctx context.Context, id string) (*types.OutlineNode, error) {
	if err := types.ValidateID("id", id); err != nil {
		return nil, err
	}
	return st.updateColumn(ctx, id, `is_expanded = 1 - is_expanded`)
}

func (st *outlineStore) SetIntersection(ctx context.Context, id string, intersectionID *string) (*types.OutlineNode, error) {
	if err := types.ValidateID("id", id); err != nil {
		return nil, err
	}
	if intersectionID != nil {
		if err := types.ValidateID("intersection_id", *intersectionID); err != nil {
			return nil, err
		}
		err := st.scope.backend.read(func(q queryer) error {
			return st.requireIntersection(ctx, q, *intersectionID)
		})
		if err != nil {
			return nil, err
		}
	}
	return st.updateColumn(ctx, id, `intersection_id = ?, updated_at = ?`, nullString(intersectionID), formatTime(now()))
}

// DeleteNode removes the node and its descendants, then renumbers the
// siblings it leaves behind.
func (st *outlineStore) DeleteNode(ctx context.Context, id string) (int, error) {
	if err := types.ValidateID("id", id); err != nil {
		return 0, err
	}

	var removed int
	err := st.scope.backend.write(ctx, func(tx *sql.Tx) error {
		nodes, err := st.loadNodes(ctx, tx)
		if err != nil {
			return err
		}
		byID := outline.Index(nodes)
		node, ok := byID[id]
		if !ok {
			return notFound("outline node", id)
		}

		var subtree []string
		for _, n := range nodes {
			if outline.IsAncestor(id, n.ID, byID) {
				subtree = append(subtree, n.ID)
			}
		}
		args := append([]any{st.scope.userID}, stringArgs(subtree)...)
		res, err := tx.ExecContext(ctx,
			`DELETE FROM outline_nodes WHERE user_id = ? AND node_id IN (`+placeholders(len(subtree))+`)`,
			args...,
		)
		if err != nil {
			return fmt.Errorf("deleting outline subtree: %w", err)
		}
		n, _ := res.RowsAffected()
		removed = int(n)

		var rest []string
		for _, s := range outline.Siblings(node.ParentID, nodes) {
			if s.ID != id {
				rest = append(rest, s.ID)
			}
		}
		return st.renumber(ctx, tx, rest, byID)
	})
	if err != nil {
		return 0, err
	}

	st.scope.backend.log.Debug().Str("user", st.scope.userID).Str("id", id).Int("removed", removed).Msg("outline subtree deleted")
	return removed, nil
}

// renumber writes order_index = position for each ID whose stored index
// (per byID) differs. IDs missing from byID are always written.
func (st *outlineStore) renumber(ctx context.Context, tx *sql.Tx, order []string, byID map[string]types.OutlineNode) error {
	for i, id := range order {
		if n, ok := byID[id]; ok && n.OrderIndex == i {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE outline_nodes SET order_index = ? WHERE node_id = ? AND user_id = ?`,
			i, id, st.scope.userID,
		); err != nil {
			return fmt.Errorf("renumbering outline node %s: %w", id, err)
		}
	}
	return nil
}

// updateColumn applies one SET clause to the caller's node and returns the
// updated row.
func (st *outlineStore) updateColumn(ctx context.Context, id, set string, args ...any) (*types.OutlineNode, error) {
	var node *types.OutlineNode
	err := st.scope.backend.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE outline_nodes SET `+set+` WHERE node_id = ? AND user_id = ?`,
			append(args, id, st.scope.userID)...,
		)
		if err != nil {
			return fmt.Errorf("updating outline node: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notFound("outline node", id)
		}
		node, err = st.selectOne(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	st.scope.backend.log.Debug().Str("user", st.scope.userID).Str("id", id).Msg("outline node updated")
	return node, nil
}

func (st *outlineStore) requireIntersection(ctx context.Context, q queryer, id string) error {
	var found string
	err := q.QueryRowContext(ctx,
		`SELECT intersection_id FROM intersections WHERE intersection_id = ? AND user_id = ?`,
		id, st.scope.userID,
	).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("intersection", id)
	}
	if err != nil {
		return fmt.Errorf("checking intersection: %w", err)
	}
	return nil
}

func (st *outlineStore) selectOne(ctx context.Context, q queryer, id string) (*types.OutlineNode, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+outlineNodeColumns+` FROM outline_nodes WHERE node_id = ? AND user_id = ?`,
		id, st.scope.userID,
	)
	node, err := scanOutlineNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("outline node", id)
	}
	return node, err
}

// loadNodes returns all of the caller's rows, unordered.
func (st *outlineStore) loadNodes(ctx context.Context, q queryer) ([]types.OutlineNode, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+outlineNodeColumns+` FROM outline_nodes WHERE user_id = ?`,
		st.scope.userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying outline nodes: %w", err)
	}
	defer rows.Close()

	var nodes []types.OutlineNode
	for rows.Next() {
		n, err := scanOutlineNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *n)
	}
	return nodes, rows.Err()
}

func scanOutlineNode(row rowScanner) (*types.OutlineNode, error) {
	var (
		n                    types.OutlineNode
		parentID, interID    sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&n.ID, &n.UserID, &parentID, &n.Content, &n.OrderIndex, &n.IsExpanded, &interID, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning outline node: %w", err)
	}
	n.ParentID = stringPtr(parentID)
	n.IntersectionID = stringPtr(interID)
	if n.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if n.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

func indexOf(nodes []types.OutlineNode, id string) int {
	for i, n := range nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}
