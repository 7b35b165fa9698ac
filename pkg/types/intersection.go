package types

import (
	"fmt"
	"strings"
	"time"
)

// Intersection bounds.
const (
	MinIntersectionAtomicSets = 1
	MaxIntersectionAtomicSets = 20
	MaxContentLength          = 5000
)

// Intersection is a user-created combination of atomic sets: a hyperedge.
// Membership lives in the inverted index (IntersectionElement rows);
// CreatedViaPath records the order in which the user arrived at the
// combination. Deletion is logical only.
type Intersection struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	CreatedViaPath []string  `json:"created_via_path"`
	Content        *string   `json:"content"`
	IsDeleted      bool      `json:"is_deleted"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IntersectionElement is one inverted index entry: the intersection contains
// the atomic set.
type IntersectionElement struct {
	IntersectionID string `json:"intersection_id"`
	AtomicSetID    string `json:"atomic_set_id"`
}

// AtomicSetRef is the short form of an atomic set attached to an intersection.
type AtomicSetRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IntersectionWithAtomicSets is an intersection joined with its members.
type IntersectionWithAtomicSets struct {
	Intersection
	AtomicSets []AtomicSetRef `json:"atomic_sets"`
}

// IntersectionStatistics summarizes a user's intersections.
type IntersectionStatistics struct {
	Total                        int     `json:"total"`
	Active                       int     `json:"active"`
	Deleted                      int     `json:"deleted"`
	AvgAtomicSetsPerIntersection float64 `json:"avg_atomic_sets_per_intersection"`
	MaxDepth                     int     `json:"max_depth"` // longest CreatedViaPath
}

// CreateIntersectionInput is the argument to IntersectionStore.Create.
// AtomicSetIDs is an unordered set; CreatedViaPath orders some subset of it.
type CreateIntersectionInput struct {
	AtomicSetIDs   []string `json:"atomic_set_ids" validate:"min=1,max=20,unique,dive,uuid"`
	CreatedViaPath []string `json:"created_via_path" validate:"min=1,unique,dive,uuid"`
	Content        *string  `json:"content,omitempty" validate:"omitempty,max=5000"`
}

// Normalize validates the input. Every path element must be one of the
// intersection's atomic sets.
func (in *CreateIntersectionInput) Normalize() error {
	if err := Validate(in); err != nil {
		return err
	}
	members := make(map[string]bool, len(in.AtomicSetIDs))
	for _, id := range in.AtomicSetIDs {
		members[id] = true
	}
	for _, id := range in.CreatedViaPath {
		if !members[id] {
			return fmt.Errorf("%w: path element %s is not one of the atomic sets", ErrValidation, id)
		}
	}
	return nil
}

// FindByAtomicSetsInput is the argument to IntersectionStore.FindByAtomicSets.
// With ExactMatch false, results contain at least the requested sets; with
// ExactMatch true, exactly them.
type FindByAtomicSetsInput struct {
	AtomicSetIDs []string `json:"atomic_set_ids" validate:"min=1,dive,uuid"`
	ExactMatch   bool     `json:"exact_match"`
}

// Normalize drops repeated IDs, keeping first occurrences, and validates.
func (in *FindByAtomicSetsInput) Normalize() error {
	seen := make(map[string]bool, len(in.AtomicSetIDs))
	ids := make([]string, 0, len(in.AtomicSetIDs))
	for _, id := range in.AtomicSetIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	in.AtomicSetIDs = ids
	return Validate(in)
}

// UpdateIntersectionContentInput is the argument to
// IntersectionStore.UpdateContent.
type UpdateIntersectionContentInput struct {
	ID      string `json:"id" validate:"uuid"`
	Content string `json:"content" validate:"min=1,max=5000"`
}

// Normalize trims the content and validates the input.
func (in *UpdateIntersectionContentInput) Normalize() error {
	in.Content = strings.TrimSpace(in.Content)
	return Validate(in)
}
