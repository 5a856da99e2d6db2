package metrics

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qa-api/qaload/pkg/server"
)

const DefaultPath = "/debug/prometheus"

type PrometheusController struct {
	path string
}

func NewPrometheusController(path string) server.Controller {
	if path == "" {
		path = DefaultPath
	}
	return &PrometheusController{path: path}
}

func (c *PrometheusController) Key() string {
	return c.path
}

func (c *PrometheusController) Register(r *mux.Router) {
	r.Handle(c.path, promhttp.Handler()).Methods(http.MethodGet)
}

// Handler serves the default registry on path; used by `qaload run --metrics-addr`.
func Handler(path string) http.Handler {
	r := mux.NewRouter()
	NewPrometheusController(path).Register(r)
	return r
}
