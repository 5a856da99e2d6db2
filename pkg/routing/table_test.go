package routing

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultTable_PathsAreValidAndUnique(t *testing.T) {
	table := DefaultTable()
	routes := table.Routes()
	require.Len(t, routes, 4)

	seen := map[string]struct{}{}
	for _, r := range routes {
		require.NotEmpty(t, r.Path)
		require.True(t, strings.HasPrefix(r.Path, "/"), r.Path)
		_, dup := seen[r.Path]
		require.False(t, dup, "duplicate path %q", r.Path)
		seen[r.Path] = struct{}{}
	}
}

func TestDefaultTable_Lookup(t *testing.T) {
	table := DefaultTable()

	cases := []struct {
		path      string
		component string
		ok        bool
	}{
		{path: "/", component: "@/views/Hom.vue", ok: true},
		{path: "/users", component: "@/views/Users.vue", ok: true},
		{path: "/users/", component: "@/views/Users.vue", ok: true},
		{path: "/products?page=2", component: "@/views/Products.vue", ok: true},
		{path: "/transactions#top", component: "@/views/Transactions.vue", ok: true},
		{path: "/users/42", ok: false},
		{path: "/orders", ok: false},
		{path: "", ok: false},
	}
	for _, tc := range cases {
		got, ok := table.Lookup(tc.path)
		require.Equal(t, tc.ok, ok, tc.path)
		if tc.ok {
			require.Equal(t, tc.component, got.Component, tc.path)
		}
	}
}

func TestNewTable_RejectsInvalidRoutes(t *testing.T) {
	_, err := NewTable([]Route{{Path: "", Component: "@/views/A.vue"}})
	require.ErrorIs(t, err, ErrInvalidRoute)

	_, err = NewTable([]Route{{Path: "users", Component: "@/views/A.vue"}})
	require.ErrorIs(t, err, ErrInvalidRoute)

	_, err = NewTable([]Route{{Path: "/users", Component: " "}})
	require.ErrorIs(t, err, ErrInvalidRoute)

	_, err = NewTable([]Route{
		{Path: "/users", Component: "@/views/Users.vue"},
		{Path: "/users/", Component: "@/views/Other.vue"},
	})
	require.ErrorIs(t, err, ErrDuplicateRoute)
}

func TestTable_RoutesReturnsCopy(t *testing.T) {
	table := DefaultTable()
	routes := table.Routes()
	routes[0].Component = "mutated"

	got, ok := table.Lookup("/")
	require.True(t, ok)
	require.Equal(t, "@/views/Hom.vue", got.Component)
}

func TestLoadTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`version: 1
routes:
  - path: /
    component: "@/views/Hom.vue"
    name: Home
  - path: /users
    component: "@/views/Users.vue"
`), 0o644))

	table, err := LoadTable(path)
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())

	r, ok := table.Lookup("/")
	require.True(t, ok)
	require.Equal(t, "Home", r.Name)
}

func TestLoadTable_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadTable(filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, ErrTableNotFound)

	v2 := filepath.Join(dir, "v2.yaml")
	require.NoError(t, os.WriteFile(v2, []byte("version: 2\nroutes: []\n"), 0o644))
	_, err = LoadTable(v2)
	require.ErrorIs(t, err, ErrInvalidRoute)
	require.ErrorContains(t, err, "unsupported route table version")

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("version: [1\nroutes:\n"), 0o644))
	_, err = LoadTable(broken)
	require.ErrorIs(t, err, ErrInvalidRoute)
}

func TestNilTable(t *testing.T) {
	var table *Table
	_, ok := table.Lookup("/")
	require.False(t, ok)
	require.Nil(t, table.Routes())
	require.Zero(t, table.Len())
}
