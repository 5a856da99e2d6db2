package loadtest

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	SheetSummary    = "Summary"
	SheetEndpoints  = "Endpoints"
	SheetThresholds = "Thresholds"
	SheetChecks     = "Checks"
)

// ExportXLSX writes the report as a workbook with one sheet per section.
func ExportXLSX(r *Report, path string) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return err
	}
	for _, name := range []string{SheetEndpoints, SheetThresholds, SheetChecks} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}

	m := r.Metrics
	if m == nil {
		m = &Summary{}
	}
	summary := [][]any{
		{"run_id", r.RunID},
		{"profile", r.Profile.Name},
		{"scenario", r.Profile.Scenario},
		{"target", r.Target.Method + " " + r.Target.URL},
		{"started_at", r.StartedAt},
		{"finished_at", r.FinishedAt},
		{"interrupted", r.Interrupted},
		{"max_vus", r.Profile.MaxVUs},
		{"duration_seconds", r.Profile.DurationSeconds},
		{"http_reqs", m.HTTPReqs.Count},
		{"http_reqs_rate", m.HTTPReqs.Rate},
		{"http_req_failed_rate", m.HTTPReqFailed.Rate},
		{"http_req_duration_avg_ms", m.HTTPReqDuration.Avg},
		{"http_req_duration_p95_ms", m.HTTPReqDuration.P95},
		{"http_req_duration_p99_ms", m.HTTPReqDuration.P99},
		{"iterations", m.Iterations.Count},
		{"checks_rate", m.Checks.Rate},
		{"passed", r.Passed},
	}
	if err := writeRows(f, SheetSummary, summary); err != nil {
		return err
	}

	endpoints := [][]any{{"endpoint", "count", "errors", "p50_ms", "p95_ms", "p99_ms"}}
	for _, e := range r.Results {
		endpoints = append(endpoints, []any{e.Endpoint, e.Count, e.Errors, e.P50MS, e.P95MS, e.P99MS})
	}
	if err := writeRows(f, SheetEndpoints, endpoints); err != nil {
		return err
	}

	thresholds := [][]any{{"metric", "expression", "actual", "ok"}}
	for _, t := range r.Thresholds {
		thresholds = append(thresholds, []any{t.Metric, t.Expression, t.Actual, t.OK})
	}
	if err := writeRows(f, SheetThresholds, thresholds); err != nil {
		return err
	}

	checks := [][]any{{"check", "passes", "fails"}}
	for _, c := range r.Checks {
		checks = append(checks, []any{c.Name, c.Passes, c.Fails})
	}
	if err := writeRows(f, SheetChecks, checks); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
