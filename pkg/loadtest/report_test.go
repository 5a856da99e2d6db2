package loadtest

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleReport(t *testing.T) *Report {
	t.Helper()
	c := NewCollector()
	for i := 1; i <= 20; i++ {
		c.Record(IterationResult{
			Sample: sample("GET /users", 200, i),
			Checks: []CheckResult{{Name: "status is 200", OK: true}, {Name: "response body", OK: i%5 != 0}},
		})
	}
	s := c.Summary(2 * second)
	p, err := BuiltinProfile("load-get")
	require.NoError(t, err)
	ths, err := p.ParsedThresholds()
	require.NoError(t, err)
	results, passed := EvaluateThresholds(ths, s)

	return &Report{
		SchemaVersion: ReportSchemaVersion,
		RunID:         "11111111-1111-1111-1111-111111111111",
		StartedAt:     "2026-01-02T03:04:05Z",
		FinishedAt:    "2026-01-02T03:05:05Z",
		Target:        ReportTarget{BaseURL: DefaultBaseURL, Method: "GET", URL: DefaultBaseURL + "/users"},
		Profile:       reportProfile(&p),
		Results:       s.Endpoints,
		Metrics:       s,
		Checks:        s.CheckDetails,
		Thresholds:    results,
		Passed:        passed,
	}
}

func TestReport_JSONRoundTrip(t *testing.T) {
	r := sampleReport(t)
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, r.WriteJSON(path))

	got, err := ReadReport(path)
	require.NoError(t, err)
	require.Equal(t, r.RunID, got.RunID)
	require.Equal(t, r.Profile, got.Profile)
	require.Equal(t, r.Results, got.Results)
	require.Equal(t, r.Thresholds, got.Thresholds)
	require.Equal(t, r.StartedAt, got.StartedAt)
}

func TestReadReport_RejectsUnknownSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"schema_version":7}`), 0o644))
	_, err := ReadReport(path)
	require.ErrorContains(t, err, "unsupported schema_version 7")
}

func TestWriteSummary(t *testing.T) {
	r := sampleReport(t)
	r.Interrupted = true

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, r))
	out := buf.String()

	require.Contains(t, out, "load-get (list-users)")
	require.Contains(t, out, "INTERRUPTED")
	require.Contains(t, out, "✓ status is 200")
	require.Contains(t, out, "✗ response body")
	require.Contains(t, out, "http_req_duration")
	require.Contains(t, out, "http_reqs")
	require.Contains(t, out, "status codes: 200=20")
	require.Contains(t, out, "p(95)<2000")
}

func TestExportXLSX(t *testing.T) {
	r := sampleReport(t)
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, ExportXLSX(r, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	require.Equal(t, []string{SheetSummary, SheetEndpoints, SheetThresholds, SheetChecks}, f.GetSheetList())

	rows, err := f.GetRows(SheetEndpoints)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "GET /users", rows[1][0])
	require.Equal(t, "20", rows[1][1])

	rows, err = f.GetRows(SheetSummary)
	require.NoError(t, err)
	require.Equal(t, []string{"run_id", r.RunID}, rows[0])

	rows, err = f.GetRows(SheetChecks)
	require.NoError(t, err)
	require.Len(t, rows, 3)
}

func TestDiffReports(t *testing.T) {
	a := sampleReport(t)
	b := sampleReport(t)
	b.RunID = "22222222-2222-2222-2222-222222222222"
	b.StartedAt = "2026-02-02T03:04:05Z"

	patch, err := DiffReports(a, b)
	require.NoError(t, err)
	require.Empty(t, patch)

	b.Passed = !a.Passed
	b.Profile.Name = "other"
	patch, err = DiffReports(a, b)
	require.NoError(t, err)

	paths := make([]string, 0, len(patch))
	for _, op := range patch {
		paths = append(paths, op.Path)
	}
	require.ElementsMatch(t, []string{"/passed", "/profile/name"}, paths)
}
