package types

import (
	"strings"
	"time"
)

// MaxAtomicSetNameLength bounds atomic set names, counted in characters
// after trimming.
const MaxAtomicSetNameLength = 200

// AtomicSet is a named concept belonging to one user: a vertex of the
// hypergraph. Names are unique per user after trimming.
type AtomicSet struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Name      string         `json:"name"`
	Metadata  map[string]any `json:"metadata"` // nil when the set carries no metadata
	CreatedAt time.Time      `json:"created_at"`
}

// FindOrCreateAtomicSetInput is the argument to AtomicSetStore.FindOrCreate.
type FindOrCreateAtomicSetInput struct {
	Name     string         `json:"name" validate:"min=1,max=200"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Normalize trims the name and validates the input.
func (in *FindOrCreateAtomicSetInput) Normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	return Validate(in)
}

// FindOrCreateResult is the atomic set returned by FindOrCreate together with
// whether this call inserted it.
type FindOrCreateResult struct {
	AtomicSet
	WasCreated bool `json:"was_created"`
}
