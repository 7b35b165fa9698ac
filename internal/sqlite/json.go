package sqlite

// jsonlTable describes one exported relation: its file, its columns in
// insert order, and which TEXT columns hold encoded JSON. JSON columns are
// written as nested values, not strings, so the files stay readable.
type jsonlTable struct {
	file        string
	table       string
	columns     []string
	jsonColumns map[string]bool
}

// jsonlTables lists the exported relations. The order matters: tables with
// foreign keys come after the tables they reference.
var jsonlTables = []jsonlTable{
	{
		file:    "users.jsonl",
		table:   "users",
		columns: []string{"user_id", "created_at"},
	},
	{
		file:        "atomic_sets.jsonl",
		table:       "atomic_sets",
		columns:     []string{"atomic_set_id", "user_id", "name", "metadata", "created_at"},
		jsonColumns: map[string]bool{"metadata": true},
	},
	{
		file:        "intersections.jsonl",
		table:       "intersections",
		columns:     []string{"intersection_id", "user_id", "created_via_path", "content", "is_deleted", "created_at", "updated_at"},
		jsonColumns: map[string]bool{"created_via_path": true},
	},
	{
		file:    "intersection_elements.jsonl",
		table:   "intersection_elements",
		columns: []string{"intersection_id", "atomic_set_id"},
	},
	{
		file:    "outline_nodes.jsonl",
		table:   "outline_nodes",
		columns: []string{"node_id", "user_id", "parent_id", "content", "order_index", "is_expanded", "intersection_id", "created_at", "updated_at"},
	},
}
