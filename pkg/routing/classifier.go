package routing

import (
	"sort"
	"strings"
)

type RouteClass string

const (
	RouteClassUI     RouteClass = "ui"
	RouteClassAPI    RouteClass = "api"
	RouteClassOps    RouteClass = "ops"
	RouteClassStatic RouteClass = "static"
)

type PrefixRule struct {
	Prefix string
	Class  RouteClass
}

// Classifier assigns a RouteClass by longest matching prefix; anything else is UI.
type Classifier struct {
	rules []PrefixRule
}

func NewClassifier(rules []PrefixRule) *Classifier {
	copied := make([]PrefixRule, 0, len(rules))
	for _, rule := range rules {
		rule.Prefix = strings.TrimSpace(rule.Prefix)
		if rule.Prefix == "" {
			continue
		}
		copied = append(copied, rule)
	}

	sort.SliceStable(copied, func(i, j int) bool {
		return len(copied[i].Prefix) > len(copied[j].Prefix)
	})

	return &Classifier{
		rules: copied,
	}
}

func (c *Classifier) ClassifyPath(path string) RouteClass {
	for _, rule := range c.rules {
		if HasPathPrefixOnBoundary(path, rule.Prefix) {
			return rule.Class
		}
	}
	return RouteClassUI
}

func HasPathPrefixOnBoundary(path, prefix string) bool {
	if prefix == "" {
		return false
	}

	if prefix == "/" {
		return strings.HasPrefix(path, "/")
	}

	if !strings.HasPrefix(path, prefix) {
		return false
	}

	if len(path) == len(prefix) {
		return true
	}

	if strings.HasSuffix(prefix, "/") {
		return true
	}

	return path[len(prefix)] == '/'
}
