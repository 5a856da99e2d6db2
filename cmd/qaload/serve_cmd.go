package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/qa-api/qaload/pkg/metrics"
	"github.com/qa-api/qaload/pkg/middleware"
	"github.com/qa-api/qaload/pkg/routing"
	"github.com/qa-api/qaload/pkg/server"
)

type serveOptions struct {
	Dist   string
	Addr   string
	Routes string
}

func newServeCmd(a *app) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve --dist <dir> [--addr :3000] [--routes <file>]",
		Short: "Serve a built front end; route-table paths return index.html",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.Dist == "" {
				return withCode(exitValidation, errors.New("--dist is required"))
			}
			if opts.Addr == "" {
				opts.Addr = a.conf.SocketAddress()
			}
			if opts.Routes == "" {
				opts.Routes = a.conf.RoutesPath
			}

			table := routing.DefaultTable()
			if opts.Routes != "" {
				t, err := routing.LoadTable(opts.Routes)
				if err != nil {
					return withCode(exitValidation, err)
				}
				table = t
			}

			srv, err := buildServer(a, os.DirFS(opts.Dist), table)
			if err != nil {
				return withCode(exitValidation, err)
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			a.log.WithFields(logrus.Fields{
				"addr":   opts.Addr,
				"dist":   opts.Dist,
				"routes": table.Len(),
			}).Info("serving front end")
			return srv.Start(ctx, opts.Addr)
		},
	}

	cmd.Flags().StringVar(&opts.Dist, "dist", "", "directory with index.html and assets/")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default :PORT)")
	cmd.Flags().StringVar(&opts.Routes, "routes", "", "route table YAML (default ROUTES_PATH, else the built-in table)")
	return cmd
}

func buildServer(a *app, dist fs.FS, table *routing.Table) (*server.HTTPServer, error) {
	metricsPath := ""
	if a.conf.Prometheus.Enabled {
		metricsPath = a.conf.Prometheus.Path
	}
	classifier := server.DefaultClassifier(metricsPath)

	spa, err := server.NewSPAController(dist, table, classifier)
	if err != nil {
		return nil, err
	}
	controllers := []server.Controller{spa}
	if a.conf.Prometheus.Enabled {
		controllers = append(controllers, metrics.NewPrometheusController(metricsPath))
	}

	logOpts := middleware.DefaultLoggerOptions()
	logOpts.Classifier = classifier
	return server.NewHTTPServer(
		controllers,
		[]mux.MiddlewareFunc{middleware.WithLogger(a.conf.Logger(), logOpts)},
		server.NotFoundHandler(classifier),
		server.MethodNotAllowedHandler(classifier),
	), nil
}
