package types

import (
	"strings"
	"time"
)

// OutlineNode is one entry of a user's editable outline. Nodes form a tree
// through ParentID (nil for roots); OrderIndex positions a node among the
// siblings that share its parent. A node may reference the intersection it
// was written against.
type OutlineNode struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	ParentID       *string   `json:"parent_id"`
	Content        string    `json:"content"`
	OrderIndex     int       `json:"order_index"`
	IsExpanded     bool      `json:"is_expanded"`
	IntersectionID *string   `json:"intersection_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// OutlineTreeNode is the derived nested view of an OutlineNode.
// Depth is the number of ancestors (0 for roots).
type OutlineTreeNode struct {
	OutlineNode
	Children []*OutlineTreeNode `json:"children"`
	Depth    int                `json:"depth"`
}

// PathEntry is one step of a root-to-node path.
type PathEntry struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// CreateOutlineNodeInput is the argument to OutlineStore.CreateNode.
// A nil OrderIndex appends the node after its existing siblings.
type CreateOutlineNodeInput struct {
	ParentID       *string `json:"parent_id" validate:"omitempty,uuid"`
	Content        string  `json:"content" validate:"min=1,max=5000"`
	OrderIndex     *int    `json:"order_index,omitempty" validate:"omitempty,min=0"`
	IntersectionID *string `json:"intersection_id,omitempty" validate:"omitempty,uuid"`
}

// Normalize trims the content and validates the input.
func (in *CreateOutlineNodeInput) Normalize() error {
	in.Content = strings.TrimSpace(in.Content)
	return Validate(in)
}

// UpdateNodeContentInput is the argument to OutlineStore.UpdateNodeContent.
type UpdateNodeContentInput struct {
	ID      string `json:"id" validate:"uuid"`
	Content string `json:"content" validate:"min=1,max=5000"`
}

// Normalize trims the content and validates the input.
func (in *UpdateNodeContentInput) Normalize() error {
	in.Content = strings.TrimSpace(in.Content)
	return Validate(in)
}

// MoveNodeInput is the argument to OutlineStore.MoveNode. A nil NewParentID
// moves the node to the root level. NewOrderIndex is the position within the
// new sibling group; values past the end append.
type MoveNodeInput struct {
	ID            string  `json:"id" validate:"uuid"`
	NewParentID   *string `json:"new_parent_id" validate:"omitempty,uuid"`
	NewOrderIndex int     `json:"new_order_index" validate:"min=0"`
}

// Normalize validates the input.
func (in *MoveNodeInput) Normalize() error {
	return Validate(in)
}

// ReorderNodesInput is the argument to OutlineStore.ReorderNodes. NodeIDs
// may list the whole sibling group or a prefix of the desired order.
type ReorderNodesInput struct {
	ParentID *string  `json:"parent_id" validate:"omitempty,uuid"`
	NodeIDs  []string `json:"node_ids" validate:"min=1,unique,dive,uuid"`
}

// Normalize validates the input.
func (in *ReorderNodesInput) Normalize() error {
	return Validate(in)
}
