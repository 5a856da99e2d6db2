package routing

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrTableNotFound  = errors.New("route table not found")
	ErrInvalidRoute   = errors.New("invalid route")
	ErrDuplicateRoute = errors.New("duplicate route path")
)

// Route maps a client path to an external page component.
type Route struct {
	Path      string `yaml:"path" json:"path"`
	Component string `yaml:"component" json:"component"`
	Name      string `yaml:"name,omitempty" json:"name,omitempty"`
}

// Table is an immutable, validated list of routes.
type Table struct {
	routes []Route
	byPath map[string]int
}

type tableFile struct {
	Version int     `yaml:"version"`
	Routes  []Route `yaml:"routes"`
}

// DefaultTable is the front end's route table.
func DefaultTable() *Table {
	t, err := NewTable([]Route{
		{Path: "/", Component: "@/views/Hom.vue", Name: "Home"},
		{Path: "/users", Component: "@/views/Users.vue", Name: "Users"},
		{Path: "/products", Component: "@/views/Products.vue", Name: "Products"},
		{Path: "/transactions", Component: "@/views/Transactions.vue", Name: "Transactions"},
	})
	if err != nil {
		panic(err)
	}
	return t
}

func NewTable(routes []Route) (*Table, error) {
	t := &Table{
		routes: make([]Route, 0, len(routes)),
		byPath: make(map[string]int, len(routes)),
	}
	for i, r := range routes {
		r.Path = strings.TrimSpace(r.Path)
		r.Component = strings.TrimSpace(r.Component)
		if r.Path == "" {
			return nil, fmt.Errorf("%w: route[%d]: empty path", ErrInvalidRoute, i)
		}
		if !strings.HasPrefix(r.Path, "/") {
			return nil, fmt.Errorf("%w: route[%d]: path must start with '/': %q", ErrInvalidRoute, i, r.Path)
		}
		if r.Component == "" {
			return nil, fmt.Errorf("%w: route[%d]: empty component for %q", ErrInvalidRoute, i, r.Path)
		}
		key := normalizePath(r.Path)
		if prev, ok := t.byPath[key]; ok {
			return nil, fmt.Errorf("%w: %q declared by route[%d] and route[%d]", ErrDuplicateRoute, r.Path, prev, i)
		}
		t.byPath[key] = len(t.routes)
		t.routes = append(t.routes, r)
	}
	return t, nil
}

// LoadTable reads a version 1 YAML route table.
func LoadTable(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrTableNotFound, path)
		}
		return nil, err
	}

	var file tableFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRoute, path, err)
	}
	if file.Version != 1 {
		return nil, fmt.Errorf("%w: %s: unsupported route table version: %d", ErrInvalidRoute, path, file.Version)
	}
	return NewTable(file.Routes)
}

// Lookup finds the route declared for path. Query strings, fragments and a
// trailing slash are ignored.
func (t *Table) Lookup(path string) (Route, bool) {
	if t == nil {
		return Route{}, false
	}
	idx, ok := t.byPath[normalizePath(path)]
	if !ok {
		return Route{}, false
	}
	return t.routes[idx], true
}

// Routes returns a copy in declaration order.
func (t *Table) Routes() []Route {
	if t == nil {
		return nil
	}
	return append([]Route(nil), t.routes...)
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.routes)
}

func normalizePath(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimSpace(path)
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}
