package types

import "context"

// Workspace defines the interface for backend-agnostic storage access.
// Callers attach to a backend, obtain a per-user Scope, and detach when done.
type Workspace interface {
	// Attach connects the Workspace to the backend described by config.
	// Creates the DataDir if it does not exist. Returns ErrAlreadyAttached if
	// called while already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent: multiple calls succeed.
	// After Detach, store operations return ErrDetached.
	Detach() error

	// Scope returns the stores bound to one authenticated user. The identity
	// is trusted as given; the core never authenticates.
	Scope(ctx context.Context, userID string) (Scope, error)
}

// Scope groups the stores of a single user.
type Scope interface {
	UserID() string
	AtomicSets() AtomicSetStore
	Intersections() IntersectionStore
	Outline() OutlineStore
}

// AtomicSetStore owns vertex identity.
type AtomicSetStore interface {
	// FindOrCreate returns the atomic set with the trimmed name, inserting it
	// when missing. Safe under concurrent calls with the same name.
	FindOrCreate(ctx context.Context, in FindOrCreateAtomicSetInput) (*FindOrCreateResult, error)

	// GetAll returns the user's atomic sets sorted by name (ordinal compare).
	GetAll(ctx context.Context) ([]AtomicSet, error)

	GetByID(ctx context.Context, id string) (*AtomicSet, error)
	GetByName(ctx context.Context, name string) (*AtomicSet, error)

	// UpdateMetadata replaces the metadata map. A nil map clears it.
	UpdateMetadata(ctx context.Context, id string, metadata map[string]any) (*AtomicSet, error)
}

// IntersectionStore owns hyperedges and their inverted index.
type IntersectionStore interface {
	// Create persists the intersection and one index entry per atomic set,
	// all or nothing.
	Create(ctx context.Context, in CreateIntersectionInput) (*Intersection, error)

	// GetByID returns the intersection with its atomic sets, including
	// soft-deleted intersections.
	GetByID(ctx context.Context, id string) (*IntersectionWithAtomicSets, error)

	// FindByAtomicSets returns active intersections whose membership is a
	// superset of (or, with ExactMatch, equal to) the requested sets.
	FindByAtomicSets(ctx context.Context, in FindByAtomicSetsInput) ([]Intersection, error)

	// ListByAtomicSet returns active intersections containing one set.
	ListByAtomicSet(ctx context.Context, atomicSetID string) ([]Intersection, error)

	// List returns the user's intersections, newest first.
	List(ctx context.Context, includeDeleted bool) ([]Intersection, error)

	UpdateContent(ctx context.Context, in UpdateIntersectionContentInput) (*Intersection, error)
	SoftDelete(ctx context.Context, id string) (*Intersection, error)
	Restore(ctx context.Context, id string) (*Intersection, error)
	Statistics(ctx context.Context) (*IntersectionStatistics, error)
}

// OutlineStore owns the parent-pointer tree of outline nodes.
type OutlineStore interface {
	// GetUserOutline returns the user's outline as root nodes with nested,
	// ordered children.
	GetUserOutline(ctx context.Context) ([]*OutlineTreeNode, error)

	// GetFlatOutline returns the user's outline rows without nesting.
	GetFlatOutline(ctx context.Context) ([]OutlineNode, error)

	GetNodeByID(ctx context.Context, id string) (*OutlineNode, error)
	GetNodePath(ctx context.Context, id string) ([]PathEntry, error)

	CreateNode(ctx context.Context, in CreateOutlineNodeInput) (*OutlineNode, error)
	UpdateNodeContent(ctx context.Context, in UpdateNodeContentInput) (*OutlineNode, error)

	// MoveNode reparents a node. Returns ErrCycle, without mutating anything,
	// when the new parent is the node itself or one of its descendants.
	MoveNode(ctx context.Context, in MoveNodeInput) (*OutlineNode, error)

	// IndentNode makes the node the last child of its previous sibling.
	IndentNode(ctx context.Context, id string) (*OutlineNode, error)

	// OutdentNode places the node right after its parent.
	OutdentNode(ctx context.Context, id string) (*OutlineNode, error)

	// ReorderNodes assigns contiguous order indexes to one sibling group.
	ReorderNodes(ctx context.Context, in ReorderNodesInput) ([]OutlineNode, error)

	ToggleExpanded(ctx context.Context, id string) (*OutlineNode, error)

	// SetIntersection links the node to an intersection, or unlinks it when
	// intersectionID is nil.
	SetIntersection(ctx context.Context, id string, intersectionID *string) (*OutlineNode, error)

	// DeleteNode removes the node together with its whole subtree and
	// renormalizes the remaining siblings. It returns the number of nodes
	// removed.
	DeleteNode(ctx context.Context, id string) (int, error)
}
