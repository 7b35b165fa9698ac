package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/interfold/pkg/types"
)

const (
	alice = "user-alice"
	bob   = "user-bob"
)

// setupBackend creates a backend attached to an isolated temp directory and
// detaches it when the test ends.
func setupBackend(t *testing.T) (*Backend, string) {
	t.Helper()
	dir := t.TempDir()
	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}))
	t.Cleanup(func() { b.Detach() })
	return b, dir
}

// setupScope returns a fresh backend and the scope of one user.
func setupScope(t *testing.T, userID string) (*Backend, types.Scope) {
	t.Helper()
	b, _ := setupBackend(t)
	return b, mustScope(t, b, userID)
}

func mustScope(t *testing.T, b *Backend, userID string) types.Scope {
	t.Helper()
	sc, err := b.Scope(context.Background(), userID)
	require.NoError(t, err)
	return sc
}

// mustSet finds or creates an atomic set and returns its ID.
func mustSet(t *testing.T, sc types.Scope, name string) string {
	t.Helper()
	res, err := sc.AtomicSets().FindOrCreate(context.Background(), types.FindOrCreateAtomicSetInput{Name: name})
	require.NoError(t, err)
	return res.ID
}

// mustIntersection creates an intersection whose path lists the sets in the
// given order.
func mustIntersection(t *testing.T, sc types.Scope, setIDs ...string) string {
	t.Helper()
	inter, err := sc.Intersections().Create(context.Background(), types.CreateIntersectionInput{
		AtomicSetIDs:   setIDs,
		CreatedViaPath: setIDs,
	})
	require.NoError(t, err)
	return inter.ID
}

// mustNode appends an outline node under parentID (nil for a root).
func mustNode(t *testing.T, sc types.Scope, parentID *string, content string) string {
	t.Helper()
	n, err := sc.Outline().CreateNode(context.Background(), types.CreateOutlineNodeInput{
		ParentID: parentID,
		Content:  content,
	})
	require.NoError(t, err)
	return n.ID
}

// mustFlat returns the caller's outline rows keyed by ID.
func mustFlat(t *testing.T, sc types.Scope) map[string]types.OutlineNode {
	t.Helper()
	nodes, err := sc.Outline().GetFlatOutline(context.Background())
	require.NoError(t, err)
	byID := make(map[string]types.OutlineNode, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	return byID
}

// childContents returns the content of each tree node, in order.
func childContents(nodes []*types.OutlineTreeNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Content
	}
	return out
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
