package server

import (
	"bytes"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/benbjohnson/hashfs"
	"github.com/gorilla/mux"

	"github.com/qa-api/qaload/pkg/httpapi"
	"github.com/qa-api/qaload/pkg/routing"
)

const (
	AssetsPrefix = "/assets"
	RoutesPath   = "/_routes"
	APIPrefix    = "/api"
)

// DefaultClassifier keeps API, asset and ops paths out of the SPA fallback.
func DefaultClassifier(metricsPath string) *routing.Classifier {
	rules := []routing.PrefixRule{
		{Prefix: APIPrefix, Class: routing.RouteClassAPI},
		{Prefix: AssetsPrefix, Class: routing.RouteClassStatic},
		{Prefix: RoutesPath, Class: routing.RouteClassOps},
		{Prefix: "/debug", Class: routing.RouteClassOps},
	}
	if metricsPath != "" {
		rules = append(rules, routing.PrefixRule{Prefix: metricsPath, Class: routing.RouteClassOps})
	}
	return routing.NewClassifier(rules)
}

// SPAController serves a built single-page app: hashed assets, the route
// table, and index.html for every path the table knows.
type SPAController struct {
	assets     *hashfs.FS
	index      []byte
	modTime    time.Time
	table      *routing.Table
	classifier *routing.Classifier
}

func NewSPAController(dist fs.FS, table *routing.Table, classifier *routing.Classifier) (*SPAController, error) {
	index, err := fs.ReadFile(dist, "index.html")
	if err != nil {
		return nil, fmt.Errorf("read index.html: %w", err)
	}
	if table == nil {
		table = routing.DefaultTable()
	}
	if classifier == nil {
		classifier = DefaultClassifier("")
	}
	return &SPAController{
		assets:     hashfs.NewFS(dist),
		index:      index,
		modTime:    time.Now(),
		table:      table,
		classifier: classifier,
	}, nil
}

func (c *SPAController) Key() string {
	return "/"
}

func (c *SPAController) Register(r *mux.Router) {
	r.HandleFunc(RoutesPath, c.routes).Methods(http.MethodGet)
	r.PathPrefix(AssetsPrefix+"/").Handler(hashfs.FileServer(c.assets)).Methods(http.MethodGet, http.MethodHead)
	r.MatcherFunc(c.matchRoute).Methods(http.MethodGet, http.MethodHead).HandlerFunc(c.serveIndex)
}

func (c *SPAController) matchRoute(r *http.Request, _ *mux.RouteMatch) bool {
	if c.classifier.ClassifyPath(r.URL.Path) != routing.RouteClassUI {
		return false
	}
	_, ok := c.table.Lookup(r.URL.Path)
	return ok
}

func (c *SPAController) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, "index.html", c.modTime, bytes.NewReader(c.index))
}

func (c *SPAController) routes(w http.ResponseWriter, _ *http.Request) {
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"routes": c.table.Routes(),
	})
}

// NotFoundHandler answers API paths with the JSON envelope and everything else with plain 404.
func NotFoundHandler(classifier *routing.Classifier) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if classifier != nil && classifier.ClassifyPath(r.URL.Path) == routing.RouteClassAPI {
			_ = httpapi.WriteError(w, http.StatusNotFound, httpapi.CodeNotFound, "not found", map[string]string{
				"path": r.URL.Path,
			})
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("<!doctype html><title>404 Not Found</title><h1>404 Not Found</h1>\n"))
	})
}

func MethodNotAllowedHandler(classifier *routing.Classifier) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if classifier != nil && classifier.ClassifyPath(r.URL.Path) == routing.RouteClassAPI {
			_ = httpapi.WriteError(w, http.StatusMethodNotAllowed, httpapi.CodeMethodNotAllowed, "method not allowed", nil)
			return
		}
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})
}
