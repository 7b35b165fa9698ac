package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mesh-intelligence/interfold/pkg/types"
)

// ImportReport counts, per file, the rows loaded and the rows skipped.
// Skipped rows are malformed lines and rows that violate a constraint, such
// as an ID that already exists.
type ImportReport struct {
	Loaded  map[string]int `json:"loaded"`
	Skipped map[string]int `json:"skipped"`
}

// Import loads the JSONL files written by Export from dir. Loading is
// transactional: foreign keys and cross-user edges are checked once every
// file is loaded, and a violation anywhere rolls the whole import back. Missing files load
// as empty and unknown fields are ignored.
func (b *Backend) Import(ctx context.Context, dir string) (*ImportReport, error) {
	report := &ImportReport{
		Loaded:  make(map[string]int, len(jsonlTables)),
		Skipped: make(map[string]int, len(jsonlTables)),
	}

	err := b.write(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "PRAGMA defer_foreign_keys = ON"); err != nil {
			return fmt.Errorf("deferring foreign keys for import: %w", err)
		}
		for _, t := range jsonlTables {
			records, malformed, err := readJSONL(filepath.Join(dir, t.file))
			if err != nil {
				return fmt.Errorf("reading %s: %w", t.file, err)
			}
			loaded, rejected, err := insertRecords(ctx, tx, t, records)
			if err != nil {
				return fmt.Errorf("loading %s into %s: %w", t.file, t.table, err)
			}
			report.Loaded[t.file] = loaded
			report.Skipped[t.file] = malformed + rejected
		}
		if err := checkForeignKeys(ctx, tx); err != nil {
			return err
		}
		return checkOwnership(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	b.log.Info().
		Str("dir", dir).
		Interface("loaded", report.Loaded).
		Interface("skipped", report.Skipped).
		Msg("workspace imported")
	return report, nil
}

// checkForeignKeys fails when any row references a missing parent. A failed
// COMMIT would leave the transaction open, so violations are caught first.
func checkForeignKeys(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return fmt.Errorf("checking foreign keys: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		var (
			table, parent string
			rowid         sql.NullInt64
			fkid          int
		)
		if err := rows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return fmt.Errorf("scanning foreign key violation: %w", err)
		}
		return fmt.Errorf("%w: %s row %d references a missing %s row",
			types.ErrConstraintViolation, table, rowid.Int64, parent)
	}
	return rows.Err()
}

// ownershipChecks each select the first row that breaks per-user
// consistency. Foreign keys only prove the referenced row exists; these also
// require it to belong to the same user.
var ownershipChecks = []struct {
	what  string
	query string
}{
	{
		"outline node whose parent belongs to another user",
		`SELECT c.node_id FROM outline_nodes c
		   JOIN outline_nodes p ON p.node_id = c.parent_id
		  WHERE c.user_id <> p.user_id LIMIT 1`,
	},
	{
		"outline node linked to another user's intersection",
		`SELECT n.node_id FROM outline_nodes n
		   JOIN intersections i ON i.intersection_id = n.intersection_id
		  WHERE n.user_id <> i.user_id LIMIT 1`,
	},
	{
		"intersection indexed under another user's atomic set",
		`SELECT e.intersection_id FROM intersection_elements e
		   JOIN intersections i ON i.intersection_id = e.intersection_id
		   JOIN atomic_sets a ON a.atomic_set_id = e.atomic_set_id
		  WHERE i.user_id <> a.user_id LIMIT 1`,
	},
	{
		"intersection whose creation path is not a JSON array",
		`SELECT intersection_id FROM intersections
		  WHERE (CASE WHEN json_valid(created_via_path) THEN json_type(created_via_path) END) IS NOT 'array'
		  LIMIT 1`,
	},
	{
		"intersection whose creation path leaves its atomic sets",
		`SELECT i.intersection_id FROM intersections i
		   JOIN json_each(CASE WHEN json_valid(i.created_via_path) THEN i.created_via_path ELSE '[]' END) p
		  WHERE NOT EXISTS (
		        SELECT 1 FROM intersection_elements e
		         WHERE e.intersection_id = i.intersection_id AND e.atomic_set_id = p.value)
		  LIMIT 1`,
	},
}

// checkOwnership fails with ErrConstraintViolation on the first edge that
// joins two users' rows or a path that is not a subset of its intersection's
// atomic sets. A cascading delete across such an edge would remove another
// user's data.
func checkOwnership(ctx context.Context, tx *sql.Tx) error {
	for _, c := range ownershipChecks {
		var id string
		err := tx.QueryRowContext(ctx, c.query).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return fmt.Errorf("checking %s: %w", c.what, err)
		}
		return fmt.Errorf("%w: %s: %s", types.ErrConstraintViolation, c.what, id)
	}
	return nil
}

// insertRecords inserts parsed JSONL records into t.table. Only the columns
// listed in t are read; extra fields are ignored. Rows rejected by a
// constraint are counted and skipped; any other failure aborts.
func insertRecords(ctx context.Context, tx *sql.Tx, t jsonlTable, records []json.RawMessage) (loaded, skipped int, err error) {
	if len(records) == 0 {
		return 0, 0, nil
	}
	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		t.table,
		strings.Join(t.columns, ", "),
		placeholders(len(t.columns)),
	)

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return 0, 0, fmt.Errorf("preparing insert for %s: %w", t.table, err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var obj map[string]any
		if err := json.Unmarshal(rec, &obj); err != nil {
			// Valid JSON that is not an object.
			skipped++
			continue
		}

		args := make([]any, len(t.columns))
		for i, col := range t.columns {
			switch v := obj[col].(type) {
			case map[string]any, []any:
				encoded, err := json.Marshal(v)
				if err != nil {
					return loaded, skipped, fmt.Errorf("re-encoding %s.%s: %w", t.table, col, err)
				}
				args[i] = string(encoded)
			default:
				args[i] = v
			}
		}

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			if isConstraintViolation(err) {
				skipped++
				continue
			}
			return loaded, skipped, fmt.Errorf("inserting into %s: %w", t.table, err)
		}
		loaded++
	}
	return loaded, skipped, nil
}
