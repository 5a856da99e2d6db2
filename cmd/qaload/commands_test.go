package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/qa-api/qaload/pkg/loadtest"
	"github.com/qa-api/qaload/pkg/routing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeContext(t, context.Background(), args...)
}

func executeContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("QALOAD_DATABASE_URL", "")
	t.Setenv("QALOAD_REDIS_URL", "")
	t.Setenv("OTEL_ENABLED", "false")

	a := &app{}
	t.Cleanup(a.close)
	cmd := newRootCmd(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", "qaload-test-missing.env"}, args...))
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func writeProfile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "unit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const shortProfile = `
scenario: create-user
vus: 1
duration: 100ms
graceful_stop: 1s
thresholds:
  http_req_failed: ["rate<0.01"]
`

func TestRunCmd_Passes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			return
		}
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "report.json")
	stdout, err := execute(t, "run", "--profile", writeProfile(t, shortProfile), "--base-url", srv.URL, "--out", out)
	require.NoError(t, err)
	require.Contains(t, stdout, "http_req_failed")

	report, err := loadtest.ReadReport(out)
	require.NoError(t, err)
	require.True(t, report.Passed)
	require.Equal(t, "unit", report.Profile.Name)
	require.Equal(t, srv.URL+"/user", report.Target.URL)
}

func TestRunCmd_ThresholdFailureExits99(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := execute(t, "run", "-q", "--profile", writeProfile(t, shortProfile), "--base-url", srv.URL)
	require.Error(t, err)
	require.Equal(t, exitThresholds, exitCode(err))
	require.Contains(t, err.Error(), "http_req_failed rate<0.01")
}

func TestRunCmd_InterruptedExits105(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			cancel()
			w.WriteHeader(http.StatusCreated)
			return
		}
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	profile := writeProfile(t, "scenario: create-user\nvus: 1\nduration: 30s\ngraceful_stop: 1s\n")
	out := filepath.Join(t.TempDir(), "report.json")
	_, err := executeContext(t, ctx, "run", "-q", "--profile", profile, "--base-url", srv.URL, "--out", out)
	require.Equal(t, exitInterrupted, exitCode(err))
	require.Contains(t, err.Error(), "interrupted")

	report, err := loadtest.ReadReport(out)
	require.NoError(t, err)
	require.True(t, report.Interrupted)
	require.True(t, report.Passed)
}

func TestRunOutcome(t *testing.T) {
	require.NoError(t, runOutcome(&loadtest.Report{Passed: true}))

	failing := &loadtest.Report{Thresholds: []loadtest.ThresholdResult{
		{Metric: loadtest.MetricHTTPReqFailed, Expression: "rate<0.01", Actual: 0.5},
	}}
	err := runOutcome(failing)
	require.Equal(t, exitThresholds, exitCode(err))

	failing.Interrupted = true
	err = runOutcome(failing)
	require.Equal(t, exitInterrupted, exitCode(err))
	require.Contains(t, err.Error(), "http_req_failed rate<0.01")

	require.Equal(t, exitInterrupted, exitCode(runOutcome(&loadtest.Report{Passed: true, Interrupted: true})))
}

func TestRunCmd_SmokeFailureExits1(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := execute(t, "run", "-q", "--profile", writeProfile(t, shortProfile), "--base-url", srv.URL)
	require.Equal(t, exitRuntime, exitCode(err))
	require.Contains(t, err.Error(), "smoke check")
}

func TestRunCmd_ValidationExits2(t *testing.T) {
	_, err := execute(t, "run")
	require.Equal(t, exitValidation, exitCode(err))

	_, err = execute(t, "run", "--profile", "spike-pst")
	require.Equal(t, exitValidation, exitCode(err))
	require.Contains(t, err.Error(), "did you mean")

	_, err = execute(t, "run", "--profile", writeProfile(t, "scenario: list-users\nvus: 0\nduration: 1s\n"))
	require.Equal(t, exitValidation, exitCode(err))
}

func TestApplyOverrides(t *testing.T) {
	p, err := loadtest.BuiltinProfile("stress-post")
	require.NoError(t, err)

	applyOverrides(&p, runOptions{Duration: 5 * 1e9})
	require.False(t, p.Ramping())
	require.Equal(t, 800, p.VUs)
	require.Equal(t, "5s", p.Duration.String())
	require.NoError(t, p.Validate())

	q, err := loadtest.BuiltinProfile("load-get")
	require.NoError(t, err)
	applyOverrides(&q, runOptions{VUs: 3, RPS: 10})
	require.Equal(t, 3, q.VUs)
	require.Equal(t, "1m0s", q.Duration.String())
	require.Equal(t, 10, q.RPS)
}

func TestSmokeCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			return
		}
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	out, err := execute(t, "smoke", "--base-url", srv.URL)
	require.NoError(t, err)
	require.Contains(t, out, "GET /users")
	require.Contains(t, out, "POST /user")
	require.Contains(t, out, "-> 201")
}

func TestProfilesCmd(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "local.yaml"), []byte("scenario: get-user\nvus: 2\nduration: 10s\n"), 0o644))

	out, err := execute(t, "profiles", "--profile-dir", dir)
	require.NoError(t, err)
	for _, name := range loadtest.BuiltinProfileNames() {
		require.Contains(t, out, name)
	}
	require.Contains(t, out, "local")

	out, err = execute(t, "profiles", "show", "spike-get")
	require.NoError(t, err)
	require.Contains(t, out, "vus: 5000")
	require.Contains(t, out, "scenario: list-users")

	_, err = execute(t, "profiles", "show", "nope-nope")
	require.Equal(t, exitValidation, exitCode(err))
}

func TestRoutesCmd(t *testing.T) {
	out, err := execute(t, "routes")
	require.NoError(t, err)
	require.Contains(t, out, "@/views/Hom.vue")
	require.Contains(t, out, "/transactions")

	out, err = execute(t, "routes", "lookup", "/users/")
	require.NoError(t, err)
	require.Contains(t, out, "@/views/Users.vue")

	_, err = execute(t, "routes", "lookup", "/settings")
	require.Equal(t, exitRuntime, exitCode(err))

	file := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(file, []byte("version: 1\nroutes:\n  - {path: /a, component: A.vue}\n  - {path: /a/, component: B.vue}\n"), 0o644))
	_, err = execute(t, "routes", "--file", file)
	require.Equal(t, exitValidation, exitCode(err))
}

func TestReportCmd(t *testing.T) {
	dir := t.TempDir()
	r := &loadtest.Report{
		SchemaVersion: loadtest.ReportSchemaVersion,
		RunID:         "a",
		StartedAt:     "2026-01-01T00:00:00Z",
		FinishedAt:    "2026-01-01T00:01:00Z",
		Profile:       loadtest.ReportProfile{Name: "load-get", Scenario: loadtest.ScenarioListUsers},
		Metrics:       &loadtest.Summary{},
		Passed:        true,
	}
	a := filepath.Join(dir, "a.json")
	require.NoError(t, r.WriteJSON(a))
	r.RunID = "b"
	r.Passed = false
	b := filepath.Join(dir, "b.json")
	require.NoError(t, r.WriteJSON(b))

	out, err := execute(t, "report", "diff", a, a)
	require.NoError(t, err)
	require.Equal(t, "[]", strings.TrimSpace(out))

	out, err = execute(t, "report", "diff", a, b)
	require.NoError(t, err)
	require.Contains(t, out, `"/passed"`)
	require.NotContains(t, out, "/run_id")

	xlsx := filepath.Join(dir, "a.xlsx")
	_, err = execute(t, "report", "export", a, xlsx)
	require.NoError(t, err)
	require.FileExists(t, xlsx)

	out, err = execute(t, "report", "show", b)
	require.NoError(t, err)
	require.Contains(t, out, "load-get")

	_, err = execute(t, "report", "show", filepath.Join(dir, "missing.json"))
	require.Equal(t, exitValidation, exitCode(err))
}

func TestHistoryCmd_RequiresDatabase(t *testing.T) {
	_, err := execute(t, "history")
	require.Equal(t, exitValidation, exitCode(err))
	require.Contains(t, err.Error(), "QALOAD_DATABASE_URL")
}

func TestBuildServer(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("PROMETHEUS_METRICS_ENABLED", "true")
	t.Setenv("OTEL_ENABLED", "false")
	a := &app{envFiles: []string{"qaload-test-missing.env"}}
	require.NoError(t, a.setup(newRootCmd(a)))
	t.Cleanup(a.close)

	dist := fstest.MapFS{"index.html": {Data: []byte("<div id=app></div>")}}
	srv, err := buildServer(a, dist, routing.DefaultTable())
	require.NoError(t, err)
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "id=app")
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/prometheus", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}
