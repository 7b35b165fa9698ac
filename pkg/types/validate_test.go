package types

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func TestFindOrCreateAtomicSetInputNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantName string
		wantErr  bool
	}{
		{name: "plain name", input: "React", wantName: "React"},
		{name: "trims surrounding whitespace", input: "  Hooks \t", wantName: "Hooks"},
		{name: "empty rejected", input: "", wantErr: true},
		{name: "whitespace only rejected", input: "   ", wantErr: true},
		{name: "200 characters accepted", input: strings.Repeat("a", 200), wantName: strings.Repeat("a", 200)},
		{name: "201 characters rejected", input: strings.Repeat("a", 201), wantErr: true},
		{name: "length counts characters not bytes", input: strings.Repeat("é", 200), wantName: strings.Repeat("é", 200)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := FindOrCreateAtomicSetInput{Name: tt.input}
			err := in.Normalize()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, in.Name)
		})
	}
}

func TestCreateIntersectionInputNormalize(t *testing.T) {
	a, b, c := newID(), newID(), newID()
	many := make([]string, 21)
	for i := range many {
		many[i] = newID()
	}

	tests := []struct {
		name    string
		input   CreateIntersectionInput
		wantErr bool
	}{
		{
			name:  "path in discovery order",
			input: CreateIntersectionInput{AtomicSetIDs: []string{a, b}, CreatedViaPath: []string{b, a}},
		},
		{
			name:  "path may cover a subset",
			input: CreateIntersectionInput{AtomicSetIDs: []string{a, b, c}, CreatedViaPath: []string{c}},
		},
		{
			name:    "no atomic sets",
			input:   CreateIntersectionInput{CreatedViaPath: []string{a}},
			wantErr: true,
		},
		{
			name:    "more than twenty atomic sets",
			input:   CreateIntersectionInput{AtomicSetIDs: many, CreatedViaPath: many[:1]},
			wantErr: true,
		},
		{
			name:    "empty path",
			input:   CreateIntersectionInput{AtomicSetIDs: []string{a}},
			wantErr: true,
		},
		{
			name:    "path element outside the set",
			input:   CreateIntersectionInput{AtomicSetIDs: []string{a}, CreatedViaPath: []string{b}},
			wantErr: true,
		},
		{
			name:    "duplicate atomic set",
			input:   CreateIntersectionInput{AtomicSetIDs: []string{a, a}, CreatedViaPath: []string{a}},
			wantErr: true,
		},
		{
			name:    "malformed id",
			input:   CreateIntersectionInput{AtomicSetIDs: []string{"not-a-uuid"}, CreatedViaPath: []string{"not-a-uuid"}},
			wantErr: true,
		},
		{
			name: "content over 5000 characters",
			input: CreateIntersectionInput{
				AtomicSetIDs:   []string{a},
				CreatedViaPath: []string{a},
				Content:        strPtr(strings.Repeat("x", 5001)),
			},
			wantErr: true,
		},
		{
			name: "content of 5000 characters",
			input: CreateIntersectionInput{
				AtomicSetIDs:   []string{a},
				CreatedViaPath: []string{a},
				Content:        strPtr(strings.Repeat("x", 5000)),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Normalize()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFindByAtomicSetsInputNormalizeDropsRepeats(t *testing.T) {
	a, b := newID(), newID()
	in := FindByAtomicSetsInput{AtomicSetIDs: []string{a, b, a}}
	require.NoError(t, in.Normalize())
	assert.Equal(t, []string{a, b}, in.AtomicSetIDs)

	empty := FindByAtomicSetsInput{}
	assert.ErrorIs(t, empty.Normalize(), ErrValidation)
}

func TestCreateOutlineNodeInputNormalize(t *testing.T) {
	tests := []struct {
		name        string
		input       CreateOutlineNodeInput
		wantContent string
		wantErr     bool
	}{
		{name: "root node", input: CreateOutlineNodeInput{Content: "My First Note"}, wantContent: "My First Note"},
		{name: "trims content", input: CreateOutlineNodeInput{Content: "  Trimmed Content  "}, wantContent: "Trimmed Content"},
		{name: "explicit zero order index", input: CreateOutlineNodeInput{Content: "x", OrderIndex: intPtr(0)}, wantContent: "x"},
		{name: "empty content", input: CreateOutlineNodeInput{Content: " \n "}, wantErr: true},
		{name: "content too long", input: CreateOutlineNodeInput{Content: strings.Repeat("x", 5001)}, wantErr: true},
		{name: "negative order index", input: CreateOutlineNodeInput{Content: "x", OrderIndex: intPtr(-1)}, wantErr: true},
		{name: "malformed parent", input: CreateOutlineNodeInput{Content: "x", ParentID: strPtr("invalid-uuid")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Normalize()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantContent, tt.input.Content)
		})
	}
}

func TestMoveAndReorderInputs(t *testing.T) {
	id := newID()

	move := MoveNodeInput{ID: id, NewOrderIndex: -1}
	assert.ErrorIs(t, move.Normalize(), ErrValidation)

	move = MoveNodeInput{ID: id, NewParentID: strPtr(newID())}
	assert.NoError(t, move.Normalize())

	reorder := ReorderNodesInput{NodeIDs: []string{id, id}}
	assert.ErrorIs(t, reorder.Normalize(), ErrValidation)

	reorder = ReorderNodesInput{NodeIDs: []string{id}}
	assert.NoError(t, reorder.Normalize())
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID("id", newID()))
	assert.ErrorIs(t, ValidateID("id", ""), ErrValidation)
	assert.ErrorIs(t, ValidateID("id", "node-1"), ErrValidation)
}
