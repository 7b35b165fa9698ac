package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/interfold/pkg/types"
)

const atomicSetColumns = `atomic_set_id, user_id, name, metadata, created_at`

type atomicSetStore struct {
	scope *scope
}

// beforeAtomicSetInsert, when set, runs between the name lookup and the
// insert in FindOrCreate. Tests use it to land a competing row first.
var beforeAtomicSetInsert func(ctx context.Context, tx *sql.Tx, userID, name string) error

// FindOrCreate returns the user's atomic set with the trimmed name, inserting
// it when absent. If another writer inserted the name first, the unique index
// rejects our row and the winner's row is returned with WasCreated false.
func (st *atomicSetStore) FindOrCreate(ctx context.Context, in types.FindOrCreateAtomicSetInput) (*types.FindOrCreateResult, error) {
	if err := in.Normalize(); err != nil {
		return nil, err
	}
	b := st.scope.backend

	var result *types.FindOrCreateResult
	err := b.write(ctx, func(tx *sql.Tx) error {
		existing, err := st.selectByName(ctx, tx, in.Name)
		if err == nil {
			result = &types.FindOrCreateResult{AtomicSet: *existing}
			return nil
		}
		if !errors.Is(err, types.ErrNotFound) {
			return err
		}

		set := types.AtomicSet{
			ID:        newUUID(),
			UserID:    st.scope.userID,
			Name:      in.Name,
			Metadata:  in.Metadata,
			CreatedAt: now(),
		}
		var metadata sql.NullString
		if set.Metadata != nil {
			encoded, err := encodeJSON(set.Metadata)
			if err != nil {
				return err
			}
			metadata = sql.NullString{String: encoded, Valid: true}
		}
		if beforeAtomicSetInsert != nil {
			if err := beforeAtomicSetInsert(ctx, tx, st.scope.userID, in.Name); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO atomic_sets (`+atomicSetColumns+`) VALUES (?, ?, ?, ?, ?)`,
			set.ID, set.UserID, set.Name, metadata, formatTime(set.CreatedAt),
		)
		if isUniqueViolation(err) {
			// SQLite aborts only the failed statement, so the winner is
			// readable in the same transaction.
			b.log.Warn().Str("user", st.scope.userID).Str("name", in.Name).Msg("atomic set created concurrently, re-reading")
			winner, getErr := st.selectByName(ctx, tx, in.Name)
			if getErr != nil {
				return fmt.Errorf("reconciling atomic set %q: %w", in.Name, getErr)
			}
			result = &types.FindOrCreateResult{AtomicSet: *winner}
			return nil
		}
		if err != nil {
			return fmt.Errorf("inserting atomic set: %w", err)
		}
		result = &types.FindOrCreateResult{AtomicSet: set, WasCreated: true}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.WasCreated {
		b.log.Debug().Str("user", st.scope.userID).Str("id", result.ID).Str("name", result.Name).Msg("atomic set created")
	}
	return result, nil
}

// GetAll returns the user's atomic sets ordered by name.
func (st *atomicSetStore) GetAll(ctx context.Context) ([]types.AtomicSet, error) {
	var sets []types.AtomicSet
	err := st.scope.backend.read(func(q queryer) error {
		rows, err := q.QueryContext(ctx,
			`SELECT `+atomicSetColumns+` FROM atomic_sets WHERE user_id = ? ORDER BY name, atomic_set_id`,
			st.scope.userID,
		)
		if err != nil {
			return fmt.Errorf("querying atomic sets: %w", err)
		}
		defer rows.Close()

		sets = []types.AtomicSet{}
		for rows.Next() {
			set, err := scanAtomicSet(rows)
			if err != nil {
				return err
			}
			sets = append(sets, *set)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return sets, nil
}

func (st *atomicSetStore) GetByID(ctx context.Context, id string) (*types.AtomicSet, error) {
	if err := types.ValidateID("id", id); err != nil {
		return nil, err
	}
	var set *types.AtomicSet
	err := st.scope.backend.read(func(q queryer) error {
		row := q.QueryRowContext(ctx,
			`SELECT `+atomicSetColumns+` FROM atomic_sets WHERE atomic_set_id = ? AND user_id = ?`,
			id, st.scope.userID,
		)
		var err error
		set, err = scanAtomicSet(row)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("atomic set", id)
		}
		return err
	})
	return set, err
}

// GetByName looks a set up by its trimmed name.
func (st *atomicSetStore) GetByName(ctx context.Context, name string) (*types.AtomicSet, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name must not be empty", types.ErrValidation)
	}
	var set *types.AtomicSet
	err := st.scope.backend.read(func(q queryer) error {
		var err error
		set, err = st.selectByName(ctx, q, name)
		return err
	})
	return set, err
}

// UpdateMetadata replaces the set's metadata.
func (st *atomicSetStore) UpdateMetadata(ctx context.Context, id string, metadata map[string]any) (*types.AtomicSet, error) {
	if err := types.ValidateID("id", id); err != nil {
		return nil, err
	}
	var encoded sql.NullString
	if metadata != nil {
		s, err := encodeJSON(metadata)
		if err != nil {
			return nil, err
		}
		encoded = sql.NullString{String: s, Valid: true}
	}

	var set *types.AtomicSet
	err := st.scope.backend.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE atomic_sets SET metadata = ? WHERE atomic_set_id = ? AND user_id = ?`,
			encoded, id, st.scope.userID,
		)
		if err != nil {
			return fmt.Errorf("updating atomic set metadata: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notFound("atomic set", id)
		}
		row := tx.QueryRowContext(ctx,
			`SELECT `+atomicSetColumns+` FROM atomic_sets WHERE atomic_set_id = ?`, id)
		set, err = scanAtomicSet(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	st.scope.backend.log.Debug().Str("user", st.scope.userID).Str("id", id).Msg("atomic set metadata updated")
	return set, nil
}

func (st *atomicSetStore) selectByName(ctx context.Context, q queryer, name string) (*types.AtomicSet, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+atomicSetColumns+` FROM atomic_sets WHERE user_id = ? AND name = ?`,
		st.scope.userID, name,
	)
	set, err := scanAtomicSet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("atomic set", name)
	}
	return set, err
}

func scanAtomicSet(row rowScanner) (*types.AtomicSet, error) {
	var (
		set       types.AtomicSet
		metadata  sql.NullString
		createdAt string
	)
	if err := row.Scan(&set.ID, &set.UserID, &set.Name, &metadata, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning atomic set: %w", err)
	}
	if metadata.Valid {
		if err := json.Unmarshal([]byte(metadata.String), &set.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata of atomic set %s: %w", set.ID, err)
		}
	}
	var err error
	if set.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &set, nil
}
