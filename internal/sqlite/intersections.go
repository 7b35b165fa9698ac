package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/interfold/pkg/types"
)

const intersectionColumns = `intersection_id, user_id, created_via_path, content, is_deleted, created_at, updated_at`

type intersectionStore struct {
	scope *scope
}

// Create stores the intersection and its index entries in one transaction.
// Every atomic set must belong to the caller.
func (st *intersectionStore) Create(ctx context.Context, in types.CreateIntersectionInput) (*types.Intersection, error) {
	if err := in.Normalize(); err != nil {
		return nil, err
	}

	ts := now()
	inter := types.Intersection{
		ID:             newUUID(),
		UserID:         st.scope.userID,
		CreatedViaPath: append([]string(nil), in.CreatedViaPath...),
		Content:        in.Content,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
	path, err := encodeJSON(inter.CreatedViaPath)
	if err != nil {
		return nil, err
	}

	err = st.scope.backend.write(ctx, func(tx *sql.Tx) error {
		if err := st.requireOwnedSets(ctx, tx, in.AtomicSetIDs); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO intersections (`+intersectionColumns+`) VALUES (?, ?, ?, ?, 0, ?, ?)`,
			inter.ID, inter.UserID, path, nullString(inter.Content), formatTime(ts), formatTime(ts),
		)
		if err != nil {
			return fmt.Errorf("inserting intersection: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO intersection_elements (intersection_id, atomic_set_id) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing index insert: %w", err)
		}
		defer stmt.Close()
		for _, setID := range in.AtomicSetIDs {
			if _, err := stmt.ExecContext(ctx, inter.ID, setID); err != nil {
				return fmt.Errorf("inserting index entry for %s: %w", setID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	st.scope.backend.log.Debug().
		Str("user", st.scope.userID).
		Str("id", inter.ID).
		Int("atomic_sets", len(in.AtomicSetIDs)).
		Msg("intersection created")
	return &inter, nil
}

// requireOwnedSets fails with ErrNotFound naming the first ID that is not one
// of the caller's atomic sets.
func (st *intersectionStore) requireOwnedSets(ctx context.Context, q queryer, ids []string) error {
	args := append([]any{st.scope.userID}, stringArgs(ids)...)
	rows, err := q.QueryContext(ctx,
		`SELECT atomic_set_id FROM atomic_sets WHERE user_id = ? AND atomic_set_id IN (`+placeholders(len(ids))+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("checking atomic sets: %w", err)
	}
	defer rows.Close()

	owned := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scanning atomic set id: %w", err)
		}
		owned[id] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, id := range ids {
		if !owned[id] {
			return notFound("atomic set", id)
		}
	}
	return nil
}

// GetByID returns the intersection, deleted or not, with its atomic sets
// ordered by name.
func (st *intersectionStore) GetByID(ctx context.Context, id string) (*types.IntersectionWithAtomicSets, error) {
	if err := types.ValidateID("id", id); err != nil {
		return nil, err
	}
	var result *types.IntersectionWithAtomicSets
	err := st.scope.backend.read(func(q queryer) error {
		inter, err := st.selectOne(ctx, q, id)
		if err != nil {
			return err
		}
		rows, err := q.QueryContext(ctx,
			`SELECT a.atomic_set_id, a.name
			   FROM intersection_elements e
			   JOIN atomic_sets a ON a.atomic_set_id = e.atomic_set_id
			  WHERE e.intersection_id = ?
			  ORDER BY a.name, a.atomic_set_id`,
			id,
		)
		if err != nil {
			return fmt.Errorf("querying intersection members: %w", err)
		}
		defer rows.Close()

		refs := []types.AtomicSetRef{}
		for rows.Next() {
			var ref types.AtomicSetRef
			if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
				return fmt.Errorf("scanning intersection member: %w", err)
			}
			refs = append(refs, ref)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		result = &types.IntersectionWithAtomicSets{Intersection: *inter, AtomicSets: refs}
		return nil
	})
	return result, err
}

// FindByAtomicSets gathers the active intersections that contain at least
// one requested set, then keeps those whose membership covers all of them
// (and, for an exact match, nothing else). Results are oldest first.
func (st *intersectionStore) FindByAtomicSets(ctx context.Context, in types.FindByAtomicSetsInput) ([]types.Intersection, error) {
	if err := in.Normalize(); err != nil {
		return nil, err
	}

	var found []types.Intersection
	err := st.scope.backend.read(func(q queryer) error {
		candidates, err := st.candidates(ctx, q, in.AtomicSetIDs)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			found = []types.Intersection{}
			return nil
		}

		ids := make([]string, len(candidates))
		for i, c := range candidates {
			ids[i] = c.ID
		}
		members, err := st.memberships(ctx, q, ids)
		if err != nil {
			return err
		}

		found = make([]types.Intersection, 0, len(candidates))
		for _, c := range candidates {
			if matches(members[c.ID], in.AtomicSetIDs, in.ExactMatch) {
				found = append(found, c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func matches(members map[string]bool, required []string, exact bool) bool {
	for _, id := range required {
		if !members[id] {
			return false
		}
	}
	return !exact || len(members) == len(required)
}

// candidates returns the caller's active intersections indexed under any of
// setIDs.
func (st *intersectionStore) candidates(ctx context.Context, q queryer, setIDs []string) ([]types.Intersection, error) {
	args := append([]any{st.scope.userID}, stringArgs(setIDs)...)
	return st.query(ctx, q,
		`SELECT `+intersectionColumns+` FROM intersections
		  WHERE user_id = ? AND is_deleted = 0
		    AND intersection_id IN (
		        SELECT DISTINCT intersection_id FROM intersection_elements
		         WHERE atomic_set_id IN (`+placeholders(len(setIDs))+`))
		  ORDER BY created_at, intersection_id`,
		args...,
	)
}

// memberships loads the index entries of the given intersections.
func (st *intersectionStore) memberships(ctx context.Context, q queryer, ids []string) (map[string]map[string]bool, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT intersection_id, atomic_set_id FROM intersection_elements
		  WHERE intersection_id IN (`+placeholders(len(ids))+`)`,
		stringArgs(ids)...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying intersection index: %w", err)
	}
	defer rows.Close()

	members := make(map[string]map[string]bool, len(ids))
	for rows.Next() {
		var interID, setID string
		if err := rows.Scan(&interID, &setID); err != nil {
			return nil, fmt.Errorf("scanning index entry: %w", err)
		}
		if members[interID] == nil {
			members[interID] = make(map[string]bool)
		}
		members[interID][setID] = true
	}
	return members, rows.Err()
}

// ListByAtomicSet returns the active intersections containing one set,
// oldest first. The set must be one of the caller's.
func (st *intersectionStore) ListByAtomicSet(ctx context.Context, atomicSetID string) ([]types.Intersection, error) {
	if err := types.ValidateID("atomic_set_id", atomicSetID); err != nil {
		return nil, err
	}
	var list []types.Intersection
	err := st.scope.backend.read(func(q queryer) error {
		setIDs := []string{atomicSetID}
		if err := st.requireOwnedSets(ctx, q, setIDs); err != nil {
			return err
		}
		var err error
		list, err = st.candidates(ctx, q, setIDs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (st *intersectionStore) List(ctx context.Context, includeDeleted bool) ([]types.Intersection, error) {
	query := `SELECT ` + intersectionColumns + ` FROM intersections WHERE user_id = ?`
	if !includeDeleted {
		query += ` AND is_deleted = 0`
	}
	query += ` ORDER BY created_at DESC, intersection_id DESC`

	var list []types.Intersection
	err := st.scope.backend.read(func(q queryer) error {
		var err error
		list, err = st.query(ctx, q, query, st.scope.userID)
		return err
	})
	return list, err
}

// UpdateContent replaces the intersection's content with the trimmed value.
func (st *intersectionStore) UpdateContent(ctx context.Context, in types.UpdateIntersectionContentInput) (*types.Intersection, error) {
	if err := in.Normalize(); err != nil {
		return nil, err
	}
	inter, err := st.update(ctx, in.ID,
		`UPDATE intersections SET content = ?, updated_at = ? WHERE intersection_id = ? AND user_id = ?`,
		in.Content,
	)
	if err != nil {
		return nil, err
	}
	st.scope.backend.log.Debug().Str("user", st.scope.userID).Str("id", in.ID).Msg("intersection content updated")
	return inter, nil
}

// SoftDelete marks the intersection deleted. Only the flag changes: content,
// path, index entries and UpdatedAt stay as they were.
func (st *intersectionStore) SoftDelete(ctx context.Context, id string) (*types.Intersection, error) {
	return st.setDeleted(ctx, id, true)
}

// Restore clears the deletion flag, again leaving UpdatedAt alone.
func (st *intersectionStore) Restore(ctx context.Context, id string) (*types.Intersection, error) {
	return st.setDeleted(ctx, id, false)
}

func (st *intersectionStore) setDeleted(ctx context.Context, id string, deleted bool) (*types.Intersection, error) {
	if err := types.ValidateID("id", id); err != nil {
		return nil, err
	}
	var inter *types.Intersection
	err := st.scope.backend.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE intersections SET is_deleted = ? WHERE intersection_id = ? AND user_id = ?`,
			deleted, id, st.scope.userID,
		)
		if err != nil {
			return fmt.Errorf("setting intersection deletion flag: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notFound("intersection", id)
		}
		inter, err = st.selectOne(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	st.scope.backend.log.Debug().Str("user", st.scope.userID).Str("id", id).Bool("deleted", deleted).Msg("intersection deletion flag set")
	return inter, nil
}

// update runs stmt with (value, now, id, user) and returns the updated row.
func (st *intersectionStore) update(ctx context.Context, id, stmt string, value any) (*types.Intersection, error) {
	var inter *types.Intersection
	err := st.scope.backend.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, stmt, value, formatTime(now()), id, st.scope.userID)
		if err != nil {
			return fmt.Errorf("updating intersection: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notFound("intersection", id)
		}
		inter, err = st.selectOne(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inter, nil
}

// Statistics summarizes the caller's intersections, deleted ones included.
func (st *intersectionStore) Statistics(ctx context.Context) (*types.IntersectionStatistics, error) {
	all, err := st.List(ctx, true)
	if err != nil {
		return nil, err
	}
	stats := &types.IntersectionStatistics{Total: len(all)}
	if len(all) == 0 {
		return stats, nil
	}

	for _, inter := range all {
		if inter.IsDeleted {
			stats.Deleted++
		} else {
			stats.Active++
		}
		if len(inter.CreatedViaPath) > stats.MaxDepth {
			stats.MaxDepth = len(inter.CreatedViaPath)
		}
	}

	var elements int
	err = st.scope.backend.read(func(q queryer) error {
		return q.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM intersection_elements e
			   JOIN intersections i ON i.intersection_id = e.intersection_id
			  WHERE i.user_id = ?`,
			st.scope.userID,
		).Scan(&elements)
	})
	if err != nil {
		return nil, fmt.Errorf("counting index entries: %w", err)
	}
	stats.AvgAtomicSetsPerIntersection = float64(elements) / float64(stats.Total)
	return stats, nil
}

func (st *intersectionStore) selectOne(ctx context.Context, q queryer, id string) (*types.Intersection, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+intersectionColumns+` FROM intersections WHERE intersection_id = ? AND user_id = ?`,
		id, st.scope.userID,
	)
	inter, err := scanIntersection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("intersection", id)
	}
	return inter, err
}

func (st *intersectionStore) query(ctx context.Context, q queryer, query string, args ...any) ([]types.Intersection, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying intersections: %w", err)
	}
	defer rows.Close()

	list := []types.Intersection{}
	for rows.Next() {
		inter, err := scanIntersection(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *inter)
	}
	return list, rows.Err()
}

func scanIntersection(row rowScanner) (*types.Intersection, error) {
	var (
		inter                types.Intersection
		path                 string
		content              sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&inter.ID, &inter.UserID, &path, &content, &inter.IsDeleted, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning intersection: %w", err)
	}
	if err := json.Unmarshal([]byte(path), &inter.CreatedViaPath); err != nil {
		return nil, fmt.Errorf("decoding path of intersection %s: %w", inter.ID, err)
	}
	inter.Content = stringPtr(content)
	if inter.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if inter.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &inter, nil
}
