package sqlite

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/interfold/pkg/types"
)

// seedWorkspace fills a scope with a little of everything.
func seedWorkspace(t *testing.T, sc types.Scope) {
	t.Helper()
	ctx := context.Background()

	react := mustSet(t, sc, "React")
	hooks := mustSet(t, sc, "Hooks")
	_, err := sc.AtomicSets().UpdateMetadata(ctx, react, map[string]any{"color": "blue"})
	require.NoError(t, err)

	content := "closures"
	inter, err := sc.Intersections().Create(ctx, types.CreateIntersectionInput{
		AtomicSetIDs:   []string{react, hooks},
		CreatedViaPath: []string{hooks, react},
		Content:        &content,
	})
	require.NoError(t, err)
	gone := mustIntersection(t, sc, hooks)
	_, err = sc.Intersections().SoftDelete(ctx, gone)
	require.NoError(t, err)

	root := mustNode(t, sc, nil, "root")
	child := mustNode(t, sc, &root, "child")
	mustNode(t, sc, &child, "grandchild")
	mustNode(t, sc, nil, "second root")
	_, err = sc.Outline().SetIntersection(ctx, child, &inter.ID)
	require.NoError(t, err)
	_, err = sc.Outline().ToggleExpanded(ctx, root)
	require.NoError(t, err)
}

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		out = append(out, rec)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestExport_WritesJSONL(t *testing.T) {
	b, sc := setupScope(t, alice)
	seedWorkspace(t, sc)
	dir := t.TempDir()

	counts, err := b.Export(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		"users.jsonl":                 1,
		"atomic_sets.jsonl":           2,
		"intersections.jsonl":         2,
		"intersection_elements.jsonl": 3,
		"outline_nodes.jsonl":         4,
	}, counts)

	sets := readLines(t, filepath.Join(dir, "atomic_sets.jsonl"))
	require.Len(t, sets, 2)
	var sawMetadata bool
	for _, s := range sets {
		if s["name"] == "React" {
			assert.Equal(t, map[string]any{"color": "blue"}, s["metadata"], "JSON columns are nested, not strings")
			sawMetadata = true
		}
	}
	assert.True(t, sawMetadata)

	inters := readLines(t, filepath.Join(dir, "intersections.jsonl"))
	for _, i := range inters {
		assert.IsType(t, []any{}, i["created_via_path"])
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp", "no temp files left behind")
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	src, scSrc := setupScope(t, alice)
	seedWorkspace(t, scSrc)
	dir := t.TempDir()
	ctx := context.Background()

	_, err := src.Export(ctx, dir)
	require.NoError(t, err)

	dst, _ := setupBackend(t)
	report, err := dst.Import(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Loaded["outline_nodes.jsonl"])
	assert.Equal(t, 3, report.Loaded["intersection_elements.jsonl"])
	for file, n := range report.Skipped {
		assert.Zero(t, n, "skipped rows in %s", file)
	}

	scDst := mustScope(t, dst, alice)

	wantSets, err := scSrc.AtomicSets().GetAll(ctx)
	require.NoError(t, err)
	gotSets, err := scDst.AtomicSets().GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, wantSets, gotSets)

	wantInters, err := scSrc.Intersections().List(ctx, true)
	require.NoError(t, err)
	gotInters, err := scDst.Intersections().List(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, wantInters, gotInters)

	wantTree, err := scSrc.Outline().GetUserOutline(ctx)
	require.NoError(t, err)
	gotTree, err := scDst.Outline().GetUserOutline(ctx)
	require.NoError(t, err)
	assert.Equal(t, wantTree, gotTree)

	found, err := scDst.Intersections().FindByAtomicSets(ctx, types.FindByAtomicSetsInput{AtomicSetIDs: []string{wantSets[0].ID, wantSets[1].ID}, ExactMatch: true})
	require.NoError(t, err)
	assert.Len(t, found, 1, "the inverted index survives the round trip")
}

func TestImport_SkipsDuplicatesAndMalformedLines(t *testing.T) {
	b, sc := setupScope(t, alice)
	seedWorkspace(t, sc)
	dir := t.TempDir()
	ctx := context.Background()

	_, err := b.Export(ctx, dir)
	require.NoError(t, err)

	f, err := os.OpenFile(filepath.Join(dir, "atomic_sets.jsonl"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n[1,2]\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	report, err := b.Import(ctx, dir)
	require.NoError(t, err)
	assert.Zero(t, report.Loaded["atomic_sets.jsonl"])
	assert.Equal(t, 4, report.Skipped["atomic_sets.jsonl"], "two duplicates, one malformed line, one non-object")
	assert.Equal(t, 4, report.Skipped["outline_nodes.jsonl"])

	all, err := sc.AtomicSets().GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestImport_MissingFilesLoadEmpty(t *testing.T) {
	b, _ := setupBackend(t)
	report, err := b.Import(context.Background(), t.TempDir())
	require.NoError(t, err)
	for _, t2 := range jsonlTables {
		assert.Zero(t, report.Loaded[t2.file])
	}
}

func TestImport_DanglingReferenceRollsBack(t *testing.T) {
	b, _ := setupBackend(t)
	dir := t.TempDir()
	ts := formatTime(now())

	users := `{"user_id":"u1","created_at":"` + ts + `"}` + "\n"
	nodes := `{"node_id":"` + newUUID() + `","user_id":"u1","parent_id":"` + newUUID() + `","content":"orphan","order_index":0,"is_expanded":1,"created_at":"` + ts + `","updated_at":"` + ts + `"}` + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.jsonl"), []byte(users), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "outline_nodes.jsonl"), []byte(nodes), 0o644))

	_, err := b.Import(context.Background(), dir)
	require.ErrorIs(t, err, types.ErrConstraintViolation)
	assert.Zero(t, countRows(t, b, "users"), "nothing is committed")
}

func writeJSONLFixture(t *testing.T, dir, file string, records ...map[string]any) {
	t.Helper()
	var data []byte
	for _, rec := range records {
		line, err := json.Marshal(rec)
		require.NoError(t, err)
		data = append(append(data, line...), '\n')
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), data, 0o644))
}

func TestImport_RejectsCrossUserEdges(t *testing.T) {
	ts := formatTime(now())
	setA, setB := newUUID(), newUUID()
	interA := newUUID()
	rootA := newUUID()

	node := func(user string, parent, inter any) map[string]any {
		return map[string]any{
			"node_id": newUUID(), "user_id": user, "parent_id": parent, "content": "n",
			"order_index": 0, "is_expanded": 1, "intersection_id": inter,
			"created_at": ts, "updated_at": ts,
		}
	}
	intersection := func(id, user string, path any) map[string]any {
		return map[string]any{
			"intersection_id": id, "user_id": user, "created_via_path": path,
			"is_deleted": 0, "created_at": ts, "updated_at": ts,
		}
	}
	element := func(inter, set string) map[string]any {
		return map[string]any{"intersection_id": inter, "atomic_set_id": set}
	}

	interB := newUUID()
	tests := []struct {
		name     string
		inters   []map[string]any
		elements []map[string]any
		nodes    []map[string]any
		wantErr  error
	}{
		{
			name: "consistent",
		},
		{
			name:    "parent owned by another user",
			nodes:   []map[string]any{node(bob, rootA, nil)},
			wantErr: types.ErrConstraintViolation,
		},
		{
			name:    "node linked to another user's intersection",
			nodes:   []map[string]any{node(bob, nil, interA)},
			wantErr: types.ErrConstraintViolation,
		},
		{
			name:     "intersection indexed under another user's set",
			elements: []map[string]any{element(interA, setB)},
			wantErr:  types.ErrConstraintViolation,
		},
		{
			name:    "path outside the atomic sets",
			inters:  []map[string]any{intersection(interB, bob, []any{setB})},
			wantErr: types.ErrConstraintViolation,
		},
		{
			name:     "path is not an array",
			inters:   []map[string]any{intersection(interB, bob, "oops")},
			elements: []map[string]any{element(interB, setB)},
			wantErr:  types.ErrConstraintViolation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := setupBackend(t)
			dir := t.TempDir()

			writeJSONLFixture(t, dir, "users.jsonl",
				map[string]any{"user_id": alice, "created_at": ts},
				map[string]any{"user_id": bob, "created_at": ts},
			)
			writeJSONLFixture(t, dir, "atomic_sets.jsonl",
				map[string]any{"atomic_set_id": setA, "user_id": alice, "name": "A", "created_at": ts},
				map[string]any{"atomic_set_id": setB, "user_id": bob, "name": "B", "created_at": ts},
			)
			writeJSONLFixture(t, dir, "intersections.jsonl",
				append([]map[string]any{intersection(interA, alice, []any{setA})}, tt.inters...)...)
			writeJSONLFixture(t, dir, "intersection_elements.jsonl",
				append([]map[string]any{element(interA, setA)}, tt.elements...)...)
			root := node(alice, nil, nil)
			root["node_id"] = rootA
			writeJSONLFixture(t, dir, "outline_nodes.jsonl", append([]map[string]any{root}, tt.nodes...)...)

			report, err := b.Import(context.Background(), dir)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Zero(t, countRows(t, b, "users"), "nothing is committed")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, report.Loaded["outline_nodes.jsonl"])
			for file, n := range report.Skipped {
				assert.Zero(t, n, "skipped rows in %s", file)
			}
		})
	}
}

func TestImport_RejectedEdgeCannotCascadeAcrossUsers(t *testing.T) {
	b, scA := setupScope(t, alice)
	ctx := context.Background()
	root := mustNode(t, scA, nil, "alice root")
	ts := formatTime(now())

	dir := t.TempDir()
	writeJSONLFixture(t, dir, "users.jsonl", map[string]any{"user_id": bob, "created_at": ts})
	writeJSONLFixture(t, dir, "outline_nodes.jsonl", map[string]any{
		"node_id": newUUID(), "user_id": bob, "parent_id": root, "content": "bob's",
		"order_index": 0, "is_expanded": 1, "created_at": ts, "updated_at": ts,
	})

	_, err := b.Import(ctx, dir)
	require.ErrorIs(t, err, types.ErrConstraintViolation)
	assert.Equal(t, 1, countRows(t, b, "outline_nodes"))

	removed, err := scA.Outline().DeleteNode(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}
