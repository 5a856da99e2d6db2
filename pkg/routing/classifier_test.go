package routing

import "testing"

func TestClassifier_LongestPrefixWins(t *testing.T) {
	c := NewClassifier([]PrefixRule{
		{Prefix: "/api", Class: RouteClassAPI},
		{Prefix: "/assets", Class: RouteClassStatic},
		{Prefix: "/debug/prometheus", Class: RouteClassOps},
		{Prefix: "/debug", Class: RouteClassAPI},
		{Prefix: " ", Class: RouteClassOps},
	})

	cases := map[string]RouteClass{
		"/api/users":        RouteClassAPI,
		"/apiary":           RouteClassUI,
		"/assets/app.js":    RouteClassStatic,
		"/debug/prometheus": RouteClassOps,
		"/debug/pprof":      RouteClassAPI,
		"/users":            RouteClassUI,
		"/":                 RouteClassUI,
	}
	for path, want := range cases {
		if got := c.ClassifyPath(path); got != want {
			t.Fatalf("%s: want %s got %s", path, want, got)
		}
	}
}

func TestHasPathPrefixOnBoundary(t *testing.T) {
	cases := []struct {
		path, prefix string
		want         bool
	}{
		{"/users", "/users", true},
		{"/users/1", "/users", true},
		{"/usersx", "/users", false},
		{"/anything", "/", true},
		{"/assets/x", "/assets/", true},
		{"/x", "", false},
	}
	for _, tc := range cases {
		if got := HasPathPrefixOnBoundary(tc.path, tc.prefix); got != tc.want {
			t.Fatalf("HasPathPrefixOnBoundary(%q, %q)=%v want %v", tc.path, tc.prefix, got, tc.want)
		}
	}
}
