package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/interfold/internal/paths"
	"github.com/mesh-intelligence/interfold/pkg/types"
)

// env is an isolated config and data directory pair.
type env struct {
	configDir string
	dataDir   string
}

func newEnv(t *testing.T) env {
	t.Helper()
	t.Setenv("INTERFOLD_USER", "")
	t.Setenv("INTERFOLD_LOG_LEVEL", "")
	t.Setenv(paths.EnvConfigDir, "")
	t.Setenv(paths.EnvDataDir, "")
	root := t.TempDir()
	return env{
		configDir: filepath.Join(root, "config"),
		dataDir:   filepath.Join(root, "data"),
	}
}

// run executes the CLI with the env's directories and returns stdout,
// stderr and the exit code.
func (e env) run(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"--config-dir", e.configDir, "--data-dir", e.dataDir}, args...)
	code := Run(context.Background(), full, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

// ok runs as alice and requires success.
func (e env) ok(t *testing.T, args ...string) string {
	t.Helper()
	stdout, stderr, code := e.run(t, append([]string{"--user", "alice"}, args...)...)
	require.Equal(t, exitSuccess, code, "stderr: %s", stderr)
	return stdout
}

// okJSON runs as alice with --json and decodes stdout into v.
func (e env) okJSON(t *testing.T, v any, args ...string) {
	t.Helper()
	out := e.ok(t, append([]string{"--json"}, args...)...)
	require.NoError(t, json.Unmarshal([]byte(out), v), "stdout: %s", out)
}

func TestVersion(t *testing.T) {
	e := newEnv(t)
	stdout, _, code := e.run(t, "version")
	require.Equal(t, exitSuccess, code)
	assert.Contains(t, stdout, "interfold v"+Version)
	assert.Contains(t, stdout, modulePath)
}

func TestInit(t *testing.T) {
	e := newEnv(t)

	stdout := e.ok(t, "init")
	assert.Contains(t, stdout, "Interfold initialized")
	assert.FileExists(t, filepath.Join(e.dataDir, "interfold.db"))

	data, err := os.ReadFile(paths.ConfigFile(e.configDir))
	require.NoError(t, err)
	var cfg configFile
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, types.BackendSQLite, cfg.Backend)
	assert.Equal(t, e.dataDir, cfg.DataDir)
	assert.Equal(t, "alice", cfg.User)

	t.Run("second init keeps config", func(t *testing.T) {
		stdout := e.ok(t, "init")
		assert.NotContains(t, stdout, "Wrote")
		after, err := os.ReadFile(paths.ConfigFile(e.configDir))
		require.NoError(t, err)
		assert.Equal(t, data, after)
	})
}

func TestUserResolution(t *testing.T) {
	t.Run("missing user is a user error", func(t *testing.T) {
		e := newEnv(t)
		_, stderr, code := e.run(t, "set", "list")
		assert.Equal(t, exitUserError, code)
		assert.Contains(t, stderr, types.ErrUserRequired.Error())
	})

	t.Run("env supplies the user", func(t *testing.T) {
		e := newEnv(t)
		t.Setenv("INTERFOLD_USER", "carol")
		_, stderr, code := e.run(t, "set", "add", "Go")
		require.Equal(t, exitSuccess, code, stderr)
	})

	t.Run("config file supplies the user", func(t *testing.T) {
		e := newEnv(t)
		_, err := writeConfigIfMissing(e.configDir, configFile{Backend: types.BackendSQLite, User: "dave"})
		require.NoError(t, err)

		var res types.FindOrCreateResult
		stdout, stderr, code := e.run(t, "--json", "set", "add", "Go")
		require.Equal(t, exitSuccess, code, stderr)
		require.NoError(t, json.Unmarshal([]byte(stdout), &res))
		assert.Equal(t, "dave", res.UserID)
	})

	t.Run("flag wins over env", func(t *testing.T) {
		e := newEnv(t)
		t.Setenv("INTERFOLD_USER", "carol")
		var res types.FindOrCreateResult
		e.okJSON(t, &res, "set", "add", "Go")
		assert.Equal(t, "alice", res.UserID)
	})
}

func TestSetCommands(t *testing.T) {
	e := newEnv(t)

	var created types.FindOrCreateResult
	e.okJSON(t, &created, "set", "add", "  React ", "--metadata", `{"color":"blue"}`)
	assert.True(t, created.WasCreated)
	assert.Equal(t, "React", created.Name)
	assert.Equal(t, "blue", created.Metadata["color"])

	var again types.FindOrCreateResult
	e.okJSON(t, &again, "set", "find-or-create", "React")
	assert.False(t, again.WasCreated)
	assert.Equal(t, created.ID, again.ID)

	e.ok(t, "set", "add", "Hooks")

	var sets []types.AtomicSet
	e.okJSON(t, &sets, "set", "list")
	require.Len(t, sets, 2)
	assert.Equal(t, "Hooks", sets[0].Name)
	assert.Equal(t, "React", sets[1].Name)

	out := e.ok(t, "set", "get", "React")
	assert.Contains(t, out, created.ID)
	assert.Contains(t, out, `"color":"blue"`)

	var cleared types.AtomicSet
	e.okJSON(t, &cleared, "set", "metadata", "React")
	assert.Nil(t, cleared.Metadata)

	t.Run("bad metadata is a usage error", func(t *testing.T) {
		_, _, code := e.run(t, "--user", "alice", "set", "add", "X", "--metadata", "[1,2]")
		assert.Equal(t, exitUserError, code)
	})

	t.Run("unknown name is not found", func(t *testing.T) {
		_, stderr, code := e.run(t, "--user", "alice", "set", "get", "Vue")
		assert.Equal(t, exitUserError, code)
		assert.Contains(t, stderr, "Vue")
	})
}

func TestIntersectionCommands(t *testing.T) {
	e := newEnv(t)
	for _, name := range []string{"React", "Hooks", "State"} {
		e.ok(t, "set", "add", name)
	}

	var pair types.Intersection
	e.okJSON(t, &pair, "intersection", "create", "React", "Hooks", "--content", "useEffect notes")
	require.Len(t, pair.CreatedViaPath, 2)

	var triple types.Intersection
	e.okJSON(t, &triple, "ix", "create", "React", "Hooks", "--also", "State")
	assert.Len(t, triple.CreatedViaPath, 2)

	var superset []types.Intersection
	e.okJSON(t, &superset, "intersection", "find", "Hooks", "React")
	assert.Len(t, superset, 2)

	var exact []types.Intersection
	e.okJSON(t, &exact, "intersection", "find", "React", "Hooks", "--exact")
	require.Len(t, exact, 1)
	assert.Equal(t, pair.ID, exact[0].ID)

	var got types.IntersectionWithAtomicSets
	e.okJSON(t, &got, "intersection", "get", triple.ID)
	assert.Len(t, got.AtomicSets, 3)

	e.ok(t, "intersection", "content", triple.ID, "state with hooks")
	human := e.ok(t, "intersection", "get", triple.ID)
	assert.Contains(t, human, "Hooks ∩ React ∩ State")
	assert.Contains(t, human, "state with hooks")

	e.ok(t, "intersection", "delete", pair.ID)
	var active, all, bySet []types.Intersection
	e.okJSON(t, &active, "intersection", "list")
	e.okJSON(t, &all, "intersection", "list", "--all")
	e.okJSON(t, &bySet, "intersection", "list", "--set", "State")
	assert.Len(t, active, 1)
	assert.Len(t, all, 2)
	assert.Len(t, bySet, 1)

	restored := e.ok(t, "intersection", "restore", pair.ID)
	assert.Contains(t, restored, "is active")

	var stats types.IntersectionStatistics
	e.okJSON(t, &stats, "intersection", "stats")
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.Active)
	assert.InDelta(t, 2.5, stats.AvgAtomicSetsPerIntersection, 1e-9)
	assert.Equal(t, 2, stats.MaxDepth)

	t.Run("repeated set is a validation error", func(t *testing.T) {
		_, _, code := e.run(t, "--user", "alice", "intersection", "create", "React", "React")
		assert.Equal(t, exitUserError, code)
	})

	t.Run("other users cannot see it", func(t *testing.T) {
		_, _, code := e.run(t, "--user", "bob", "intersection", "get", pair.ID)
		assert.Equal(t, exitUserError, code)
	})
}

func TestOutlineCommands(t *testing.T) {
	e := newEnv(t)

	add := func(content string, extra ...string) types.OutlineNode {
		t.Helper()
		var n types.OutlineNode
		e.okJSON(t, &n, append([]string{"outline", "add", content}, extra...)...)
		return n
	}
	a := add("A")
	b := add("B")
	c := add("C", "--parent", a.ID)
	assert.Equal(t, 1, b.OrderIndex)
	assert.Equal(t, a.ID, *c.ParentID)

	tree := e.ok(t, "outline", "show")
	assert.Equal(t,
		fmt.Sprintf("▾ A  [%s]\n  - C  [%s]\n- B  [%s]\n", a.ID, c.ID, b.ID),
		tree)

	e.ok(t, "outline", "toggle", a.ID)
	collapsed := e.ok(t, "outline", "show")
	assert.NotContains(t, collapsed, "C  [")
	assert.Contains(t, collapsed, "▸ A")
	assert.Contains(t, e.ok(t, "outline", "show", "--all"), "C  [")

	var indented types.OutlineNode
	e.okJSON(t, &indented, "outline", "indent", b.ID)
	assert.Equal(t, a.ID, *indented.ParentID)
	assert.Equal(t, 1, indented.OrderIndex)

	var reordered []types.OutlineNode
	e.okJSON(t, &reordered, "outline", "reorder", "--parent", a.ID, b.ID, c.ID)
	require.Len(t, reordered, 2)
	assert.Equal(t, b.ID, reordered[0].ID)

	var path []types.PathEntry
	e.okJSON(t, &path, "outline", "path", c.ID)
	require.Len(t, path, 2)
	assert.Equal(t, "A", path[0].Content)

	var moved types.OutlineNode
	e.okJSON(t, &moved, "outline", "move", c.ID)
	assert.Nil(t, moved.ParentID)

	t.Run("moving under itself is rejected", func(t *testing.T) {
		_, stderr, code := e.run(t, "--user", "alice", "outline", "move", a.ID, "--parent", b.ID)
		assert.Equal(t, exitUserError, code)
		assert.Contains(t, stderr, types.ErrCycle.Error())
	})

	e.ok(t, "outline", "edit", c.ID, "C prime")
	var ix types.Intersection
	e.ok(t, "set", "add", "Go")
	e.okJSON(t, &ix, "intersection", "create", "Go")
	var linked types.OutlineNode
	e.okJSON(t, &linked, "outline", "link", c.ID, ix.ID)
	require.NotNil(t, linked.IntersectionID)
	e.okJSON(t, &linked, "outline", "link", c.ID)
	assert.Nil(t, linked.IntersectionID)

	var deleted struct {
		Removed int `json:"removed"`
	}
	e.okJSON(t, &deleted, "outline", "delete", a.ID)
	assert.Equal(t, 2, deleted.Removed)

	var flat []types.OutlineNode
	e.okJSON(t, &flat, "outline", "show", "--flat")
	require.Len(t, flat, 1)
	assert.Equal(t, "C prime", flat[0].Content)
	assert.Equal(t, 0, flat[0].OrderIndex)
}

func TestExportImport(t *testing.T) {
	src := newEnv(t)
	src.ok(t, "set", "add", "Go")
	src.ok(t, "intersection", "create", "Go", "--content", "goroutines")
	src.ok(t, "outline", "add", "root note")

	dump := filepath.Join(t.TempDir(), "dump")
	var counts map[string]int
	src.okJSON(t, &counts, "export", dump)
	assert.Equal(t, 1, counts["atomic_sets.jsonl"])
	assert.Equal(t, 1, counts["outline_nodes.jsonl"])

	dst := env{configDir: src.configDir, dataDir: filepath.Join(t.TempDir(), "copy")}
	out := dst.ok(t, "import", dump)
	assert.Contains(t, out, "intersections.jsonl")

	var sets []types.AtomicSet
	dst.okJSON(t, &sets, "set", "list")
	require.Len(t, sets, 1)
	assert.Equal(t, "Go", sets[0].Name)

	t.Run("importing twice skips every row", func(t *testing.T) {
		var report struct {
			Loaded  map[string]int `json:"loaded"`
			Skipped map[string]int `json:"skipped"`
		}
		dst.okJSON(t, &report, "import", dump)
		assert.Equal(t, 0, report.Loaded["atomic_sets.jsonl"])
		assert.Equal(t, 1, report.Skipped["atomic_sets.jsonl"])
	})
}

func TestUsageErrors(t *testing.T) {
	e := newEnv(t)
	tests := []struct {
		name string
		args []string
	}{
		{"missing argument", []string{"set", "add"}},
		{"too many arguments", []string{"outline", "get", "a", "b"}},
		{"unknown flag", []string{"set", "list", "--bogus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, code := e.run(t, append([]string{"--user", "alice"}, tt.args...)...)
			assert.Equal(t, exitUserError, code)
			assert.True(t, strings.HasPrefix(stderr, "Error:"), stderr)
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", types.ErrNotFound), exitUserError},
		{types.ErrValidation, exitUserError},
		{types.ErrInvalidMove, exitUserError},
		{fmt.Errorf("%w: bad", errUsage), exitUserError},
		{errors.New("disk on fire"), exitSysError},
		{types.ErrDetached, exitSysError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exitCode(tt.err), tt.err.Error())
	}
}
