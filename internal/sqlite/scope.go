package sqlite

import (
	"fmt"

	"github.com/mesh-intelligence/interfold/pkg/types"
)

// scope binds the stores to one user. Every query filters on userID, so rows
// owned by other users behave as if they did not exist.
type scope struct {
	backend *Backend
	userID  string
}

func (s *scope) UserID() string { return s.userID }

func (s *scope) AtomicSets() types.AtomicSetStore {
	return &atomicSetStore{scope: s}
}

func (s *scope) Intersections() types.IntersectionStore {
	return &intersectionStore{scope: s}
}

func (s *scope) Outline() types.OutlineStore {
	return &outlineStore{scope: s}
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, types.ErrNotFound)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
