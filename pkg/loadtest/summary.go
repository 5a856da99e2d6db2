package loadtest

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

const summaryLabelWidth = 32

// WriteSummary prints the end-of-test summary in k6's layout.
func WriteSummary(w io.Writer, r *Report) error {
	sw := &summaryWriter{w: w}

	sw.printf("\n  run_id: %s\n", r.RunID)
	sw.printf("  profile: %s (%s)  max_vus: %d  duration: %gs\n", r.Profile.Name, r.Profile.Scenario, r.Profile.MaxVUs, r.Profile.DurationSeconds)
	sw.printf("  target: %s %s\n", r.Target.Method, r.Target.URL)
	if r.Interrupted {
		sw.printf("  INTERRUPTED\n")
	}
	sw.printf("\n")

	for _, c := range r.Checks {
		mark := "✓"
		if c.Fails > 0 {
			mark = "✗"
		}
		sw.printf("     %s %s\n", mark, c.Name)
		if c.Fails > 0 {
			total := c.Passes + c.Fails
			sw.printf("      ↳  %d%% - ✓ %d / ✗ %d\n", c.Passes*100/total, c.Passes, c.Fails)
		}
	}
	if len(r.Checks) > 0 {
		sw.printf("\n")
	}

	m := r.Metrics
	if m == nil {
		m = &Summary{}
	}
	failed := thresholdMarks(r.Thresholds)
	if len(r.Checks) > 0 {
		sw.metric(failed, MetricChecks, fmt.Sprintf("%.2f%% ✓ %d ✗ %d", m.Checks.Rate*100, m.Checks.Passes, m.Checks.Fails))
	}
	sw.metric(failed, "data_received", fmt.Sprintf("%s %s/s", formatBytes(m.DataReceived), formatBytes(perSec(m.DataReceived, m.ElapsedSeconds))))
	sw.metric(failed, "data_sent", fmt.Sprintf("%s %s/s", formatBytes(m.DataSent), formatBytes(perSec(m.DataSent, m.ElapsedSeconds))))
	d := m.HTTPReqDuration
	sw.metric(failed, MetricHTTPReqDuration, fmt.Sprintf("avg=%s min=%s med=%s max=%s p(90)=%s p(95)=%s",
		formatMS(d.Avg), formatMS(d.Min), formatMS(d.Med), formatMS(d.Max), formatMS(d.P90), formatMS(d.P95)))
	sw.metric(failed, MetricHTTPReqFailed, fmt.Sprintf("%.2f%% ✓ %d ✗ %d", m.HTTPReqFailed.Rate*100, m.HTTPReqFailed.Passes, m.HTTPReqFailed.Fails))
	sw.metric(failed, MetricHTTPReqs, fmt.Sprintf("%d %.6f/s", m.HTTPReqs.Count, m.HTTPReqs.Rate))
	sw.metric(failed, MetricIterations, fmt.Sprintf("%d %.6f/s", m.Iterations.Count, m.Iterations.Rate))
	sw.metric(failed, "vus_max", fmt.Sprintf("%d", r.Profile.MaxVUs))

	if len(m.StatusCodes) > 0 {
		codes := make([]string, 0, len(m.StatusCodes))
		for code := range m.StatusCodes {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		parts := make([]string, 0, len(codes))
		for _, code := range codes {
			parts = append(parts, fmt.Sprintf("%s=%d", code, m.StatusCodes[code]))
		}
		sw.printf("\n  status codes: %s\n", strings.Join(parts, " "))
	}

	if len(r.Thresholds) > 0 {
		sw.printf("\n  thresholds:\n")
		for _, t := range r.Thresholds {
			mark := "✓"
			if !t.OK {
				mark = "✗"
			}
			sw.printf("     %s %s %s (actual %.4g)\n", mark, t.Metric, t.Expression, t.Actual)
		}
	}
	sw.printf("\n")
	return sw.err
}

type summaryWriter struct {
	w   io.Writer
	err error
}

func (s *summaryWriter) printf(format string, args ...any) {
	if s.err != nil {
		return
	}
	_, s.err = fmt.Fprintf(s.w, format, args...)
}

func (s *summaryWriter) metric(failed map[string]bool, name, value string) {
	mark := " "
	if ok, has := failed[name]; has {
		mark = "✓"
		if ok {
			mark = "✗"
		}
	}
	label := name + strings.Repeat(".", max(summaryLabelWidth-len(name), 1))
	s.printf("   %s %s: %s\n", mark, label, value)
}

// thresholdMarks maps a metric to true when any of its thresholds failed.
func thresholdMarks(results []ThresholdResult) map[string]bool {
	out := map[string]bool{}
	for _, t := range results {
		out[t.Metric] = out[t.Metric] || !t.OK
	}
	return out
}

func perSec(n int64, secs float64) int64 {
	if secs <= 0 {
		return 0
	}
	return int64(float64(n) / secs)
}

func formatBytes(n int64) string {
	switch {
	case n >= 1_000_000_000:
		return fmt.Sprintf("%.1f GB", float64(n)/1e9)
	case n >= 1_000_000:
		return fmt.Sprintf("%.1f MB", float64(n)/1e6)
	case n >= 1_000:
		return fmt.Sprintf("%.1f kB", float64(n)/1e3)
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func formatMS(ms float64) string {
	if ms >= 1000 {
		return fmt.Sprintf("%.2fs", ms/1000)
	}
	if ms < 1 {
		return fmt.Sprintf("%.2fµs", ms*1000)
	}
	return fmt.Sprintf("%.2fms", ms)
}
