package sqlite

// Schema DDL for all tables. Statements are idempotent so Attach can run them
// against an existing database file.
const (
	createUsers = `CREATE TABLE IF NOT EXISTS users (
    user_id TEXT PRIMARY KEY,
    created_at TEXT NOT NULL
);`

	createAtomicSets = `CREATE TABLE IF NOT EXISTS atomic_sets (
    atomic_set_id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    name TEXT NOT NULL CHECK (length(name) BETWEEN 1 AND 200),
    metadata TEXT,
    created_at TEXT NOT NULL,
    FOREIGN KEY (user_id) REFERENCES users(user_id) ON DELETE CASCADE
);`

	createIntersections = `CREATE TABLE IF NOT EXISTS intersections (
    intersection_id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    created_via_path TEXT NOT NULL,
    content TEXT CHECK (content IS NULL OR length(content) <= 5000),
    is_deleted INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    FOREIGN KEY (user_id) REFERENCES users(user_id) ON DELETE CASCADE
);`

	createIntersectionElements = `CREATE TABLE IF NOT EXISTS intersection_elements (
    intersection_id TEXT NOT NULL,
    atomic_set_id TEXT NOT NULL,
    PRIMARY KEY (intersection_id, atomic_set_id),
    FOREIGN KEY (intersection_id) REFERENCES intersections(intersection_id) ON DELETE CASCADE,
    FOREIGN KEY (atomic_set_id) REFERENCES atomic_sets(atomic_set_id) ON DELETE CASCADE
);`

	createOutlineNodes = `CREATE TABLE IF NOT EXISTS outline_nodes (
    node_id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    parent_id TEXT,
    content TEXT NOT NULL CHECK (length(content) BETWEEN 1 AND 5000),
    order_index INTEGER NOT NULL CHECK (order_index >= 0),
    is_expanded INTEGER NOT NULL DEFAULT 1,
    intersection_id TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    FOREIGN KEY (user_id) REFERENCES users(user_id) ON DELETE CASCADE,
    FOREIGN KEY (parent_id) REFERENCES outline_nodes(node_id) ON DELETE CASCADE,
    FOREIGN KEY (intersection_id) REFERENCES intersections(intersection_id)
);`
)

// Index DDL. idx_atomic_sets_user_name is the per-user name uniqueness
// constraint; find-or-create relies on it.
const (
	idxAtomicSetsUserName       = `CREATE UNIQUE INDEX IF NOT EXISTS idx_atomic_sets_user_name ON atomic_sets(user_id, name);`
	idxIntersectionsUser        = `CREATE INDEX IF NOT EXISTS idx_intersections_user ON intersections(user_id, is_deleted);`
	idxIntersectionElementsSet  = `CREATE INDEX IF NOT EXISTS idx_intersection_elements_set ON intersection_elements(atomic_set_id);`
	idxOutlineNodesUser         = `CREATE INDEX IF NOT EXISTS idx_outline_nodes_user ON outline_nodes(user_id);`
	idxOutlineNodesParentOrder  = `CREATE INDEX IF NOT EXISTS idx_outline_nodes_parent_order ON outline_nodes(user_id, parent_id, order_index);`
	idxOutlineNodesIntersection = `CREATE INDEX IF NOT EXISTS idx_outline_nodes_intersection ON outline_nodes(intersection_id);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createUsers,
	createAtomicSets,
	createIntersections,
	createIntersectionElements,
	createOutlineNodes,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxAtomicSetsUserName,
	idxIntersectionsUser,
	idxIntersectionElementsSet,
	idxOutlineNodesUser,
	idxOutlineNodesParentOrder,
	idxOutlineNodesIntersection,
}
