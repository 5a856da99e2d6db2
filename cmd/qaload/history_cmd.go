package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/qa-api/qaload/pkg/loadtest"
	"github.com/qa-api/qaload/pkg/resultstore"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	open := func(ctx context.Context) (*resultstore.Store, error) {
		if a.conf.DatabaseURL == "" {
			return nil, withCode(exitValidation, errors.New("QALOAD_DATABASE_URL is not set"))
		}
		store, err := resultstore.Open(ctx, a.conf.DatabaseURL, a.log)
		if err != nil {
			return nil, withCode(exitRuntime, err)
		}
		return store, nil
	}

	cmd := &cobra.Command{
		Use:   "history [--limit N]",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			store, err := open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runs, err := store.List(ctx, limit)
			if err != nil {
				return withCode(exitRuntime, err)
			}
			return printRuns(cmd.OutOrStdout(), runs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", resultstore.DefaultListLimit, "maximum number of runs")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the summary of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			store, err := open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			r, err := store.Report(ctx, args[0])
			if err != nil {
				return withCode(exitRuntime, err)
			}
			return loadtest.WriteSummary(cmd.OutOrStdout(), r)
		},
	})
	return cmd
}

func printRuns(out io.Writer, runs []resultstore.Run) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RUN ID\tPROFILE\tSTARTED\tREQS\tFAILED\tP95 MS\tRESULT")
	for _, r := range runs {
		result := "pass"
		if !r.Passed {
			result = "fail"
		}
		if r.Interrupted {
			result += " (interrupted)"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.2f%%\t%.1f\t%s\n",
			r.RunID, r.Profile, r.StartedAt.UTC().Format(time.RFC3339), r.HTTPReqs, r.FailedRate*100, r.P95MS, result)
	}
	return tw.Flush()
}
