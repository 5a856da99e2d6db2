package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/qa-api/qaload/pkg/routing"
)

func newRoutesCmd(a *app) *cobra.Command {
	var file string

	load := func() (*routing.Table, error) {
		if file == "" {
			file = a.conf.RoutesPath
		}
		if file == "" {
			return routing.DefaultTable(), nil
		}
		t, err := routing.LoadTable(file)
		if err != nil {
			return nil, withCode(exitValidation, err)
		}
		return t, nil
	}

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Print the client route table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := load()
			if err != nil {
				return err
			}
			return printRoutes(cmd.OutOrStdout(), t.Routes())
		},
	}
	cmd.PersistentFlags().StringVar(&file, "file", "", "route table YAML (default ROUTES_PATH, else the built-in table)")

	cmd.AddCommand(&cobra.Command{
		Use:   "lookup <path>",
		Short: "Resolve a path against the route table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := load()
			if err != nil {
				return err
			}
			r, ok := t.Lookup(args[0])
			if !ok {
				return withCode(exitRuntime, fmt.Errorf("no route for %q", args[0]))
			}
			return printRoutes(cmd.OutOrStdout(), []routing.Route{r})
		},
	})
	return cmd
}

func printRoutes(out io.Writer, routes []routing.Route) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PATH\tNAME\tCOMPONENT")
	for _, r := range routes {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Path, r.Name, r.Component)
	}
	return tw.Flush()
}
