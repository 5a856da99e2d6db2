package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qa-api/qaload/pkg/loadtest"
)

func newReportCmd(_ *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect, compare and export qaload_report.v1 files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <report.json>",
		Short: "Print the end-of-test summary of a saved report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := readReportArg(args[0])
			if err != nil {
				return err
			}
			return loadtest.WriteSummary(cmd.OutOrStdout(), r)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "diff <a.json> <b.json>",
		Short: "Print the RFC 6902 patch from report a to report b",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := readReportArg(args[0])
			if err != nil {
				return err
			}
			b, err := readReportArg(args[1])
			if err != nil {
				return err
			}
			patch, err := loadtest.DiffReports(a, b)
			if err != nil {
				return err
			}
			if len(patch) == 0 {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "[]")
				return err
			}
			data, err := json.MarshalIndent(patch, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "export <report.json> <out.xlsx>",
		Short: "Export a report as an XLSX workbook",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := readReportArg(args[0])
			if err != nil {
				return err
			}
			if err := loadtest.ExportXLSX(r, args[1]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[1])
			return err
		},
	})
	return cmd
}

func readReportArg(path string) (*loadtest.Report, error) {
	r, err := loadtest.ReadReport(path)
	if err != nil {
		return nil, withCode(exitValidation, err)
	}
	return r, nil
}
