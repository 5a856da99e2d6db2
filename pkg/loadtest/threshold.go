package loadtest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	MetricHTTPReqFailed   = "http_req_failed"
	MetricHTTPReqDuration = "http_req_duration"
	MetricHTTPReqs        = "http_reqs"
	MetricChecks          = "checks"
	MetricIterations      = "iterations"
)

// aggregations each metric supports; "p" stands for any p(N).
var metricAggregations = map[string][]string{
	MetricHTTPReqFailed:   {"rate"},
	MetricChecks:          {"rate"},
	MetricHTTPReqDuration: {"avg", "min", "max", "med", "p"},
	MetricHTTPReqs:        {"count", "rate"},
	MetricIterations:      {"count", "rate"},
}

var thresholdPattern = regexp.MustCompile(`^\s*(rate|count|avg|min|max|med|p\(\s*(\d+(?:\.\d+)?)\s*\))\s*(<=|>=|==|!=|<|>)\s*(-?\d+(?:\.\d+)?)\s*$`)

// Threshold is one parsed pass/fail condition, e.g. http_req_duration "p(95)<2000".
type Threshold struct {
	Metric     string
	Expression string
	Agg        string
	Percentile float64
	Op         string
	Value      float64
}

type ThresholdResult struct {
	Metric     string  `json:"metric"`
	Expression string  `json:"expression"`
	Actual     float64 `json:"actual"`
	OK         bool    `json:"ok"`
}

func ParseThreshold(metric, expr string) (Threshold, error) {
	allowed, ok := metricAggregations[metric]
	if !ok {
		return Threshold{}, invalidThreshold("unknown metric %q", metric)
	}
	m := thresholdPattern.FindStringSubmatch(expr)
	if m == nil {
		return Threshold{}, invalidThreshold("%s: cannot parse %q", metric, expr)
	}

	th := Threshold{
		Metric:     metric,
		Expression: strings.TrimSpace(expr),
		Agg:        m[1],
		Op:         m[3],
	}
	if m[2] != "" {
		pct, err := strconv.ParseFloat(m[2], 64)
		if err != nil || pct < 0 || pct > 100 {
			return Threshold{}, invalidThreshold("%s: percentile out of range in %q", metric, expr)
		}
		th.Agg = "p"
		th.Percentile = pct
	}
	value, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return Threshold{}, invalidThreshold("%s: bad value in %q", metric, expr)
	}
	th.Value = value

	supported := false
	for _, a := range allowed {
		if a == th.Agg {
			supported = true
			break
		}
	}
	if !supported {
		return Threshold{}, invalidThreshold("%s does not support %q", metric, m[1])
	}
	return th, nil
}

// Actual extracts the aggregated value the threshold compares against.
func (t Threshold) Actual(s *Summary) float64 {
	switch t.Metric {
	case MetricHTTPReqFailed:
		return s.HTTPReqFailed.Rate
	case MetricChecks:
		return s.Checks.Rate
	case MetricHTTPReqs:
		if t.Agg == "count" {
			return float64(s.HTTPReqs.Count)
		}
		return s.HTTPReqs.Rate
	case MetricIterations:
		if t.Agg == "count" {
			return float64(s.Iterations.Count)
		}
		return s.Iterations.Rate
	case MetricHTTPReqDuration:
		switch t.Agg {
		case "avg":
			return s.HTTPReqDuration.Avg
		case "min":
			return s.HTTPReqDuration.Min
		case "max":
			return s.HTTPReqDuration.Max
		case "med":
			return s.HTTPReqDuration.Med
		case "p":
			return s.DurationPercentile(t.Percentile / 100)
		}
	}
	return 0
}

func (t Threshold) Evaluate(s *Summary) ThresholdResult {
	actual := t.Actual(s)
	return ThresholdResult{
		Metric:     t.Metric,
		Expression: t.Expression,
		Actual:     actual,
		OK:         compare(actual, t.Op, t.Value),
	}
}

func (t Threshold) String() string {
	return fmt.Sprintf("%s %s", t.Metric, t.Expression)
}

// EvaluateThresholds reports every threshold and whether all of them passed.
func EvaluateThresholds(thresholds []Threshold, s *Summary) ([]ThresholdResult, bool) {
	out := make([]ThresholdResult, 0, len(thresholds))
	passed := true
	for _, th := range thresholds {
		res := th.Evaluate(s)
		passed = passed && res.OK
		out = append(out, res)
	}
	return out, passed
}

func compare(actual float64, op string, value float64) bool {
	switch op {
	case "<":
		return actual < value
	case "<=":
		return actual <= value
	case ">":
		return actual > value
	case ">=":
		return actual >= value
	case "==":
		return actual == value
	case "!=":
		return actual != value
	}
	return false
}
