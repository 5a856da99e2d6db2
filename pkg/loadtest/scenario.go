package loadtest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	ScenarioCreateUser = "create-user"
	ScenarioListUsers  = "list-users"
	ScenarioGetUser    = "get-user"

	DefaultBaseURL = "http://localhost:8080"
)

var tracer = otel.Tracer("github.com/qa-api/qaload/pkg/loadtest")

// BodyFunc builds a fresh request body for one iteration.
type BodyFunc func() ([]byte, error)

// Scenario is the default iteration: one request against a fixed path.
type Scenario struct {
	Name    string
	Method  string
	Path    string
	Headers map[string]string
	Body    BodyFunc
	Checks  []Check
}

// Endpoint labels samples, e.g. "POST /user".
func (s *Scenario) Endpoint() string {
	return s.Method + " " + s.Path
}

func (s *Scenario) URL(baseURL string) string {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return strings.TrimRight(baseURL, "/") + s.Path
}

// Sample is one issued request as seen by the metrics collector.
type Sample struct {
	Scenario  string
	Endpoint  string
	Status    int
	Duration  time.Duration
	BytesIn   int64
	BytesOut  int64
	Err       error
	Timestamp time.Time
}

// Failed mirrors k6's http_req_failed: transport errors and statuses outside 200-399.
func (s Sample) Failed() bool {
	return s.Err != nil || s.Status < 200 || s.Status >= 400
}

type IterationResult struct {
	Sample Sample
	Checks []CheckResult
}

// Iterate issues exactly one request. Transport failures and failed checks are
// reported in the result, never returned.
func (s *Scenario) Iterate(ctx context.Context, client *http.Client, baseURL string) IterationResult {
	ctx, span := tracer.Start(ctx, "iteration "+s.Name, trace.WithAttributes(
		attribute.String("qaload.scenario", s.Name),
		attribute.String("http.method", s.Method),
	))
	defer span.End()

	sample := Sample{
		Scenario:  s.Name,
		Endpoint:  s.Endpoint(),
		Timestamp: time.Now(),
	}

	var body []byte
	if s.Body != nil {
		b, err := s.Body()
		if err != nil {
			sample.Err = fmt.Errorf("build body: %w", err)
			return s.finish(span, sample, Response{})
		}
		body = b
	}

	req, err := http.NewRequestWithContext(ctx, s.Method, s.URL(baseURL), bytes.NewReader(body))
	if err != nil {
		sample.Err = err
		return s.finish(span, sample, Response{})
	}
	for k, v := range s.Headers {
		req.Header.Set(k, v)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-Id", uuid.NewString())
	sample.BytesOut = int64(len(body))

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		sample.Duration = time.Since(start)
		sample.Err = err
		return s.finish(span, sample, Response{})
	}
	respBody, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	sample.Duration = time.Since(start)
	sample.Status = resp.StatusCode
	sample.BytesIn = int64(len(respBody))
	if readErr != nil {
		sample.Err = fmt.Errorf("read body: %w", readErr)
	}
	return s.finish(span, sample, Response{Status: resp.StatusCode, Body: respBody})
}

func (s *Scenario) finish(span trace.Span, sample Sample, resp Response) IterationResult {
	span.SetAttributes(
		attribute.Int("http.status_code", sample.Status),
		attribute.Int64("http.request_duration_ms", sample.Duration.Milliseconds()),
	)
	if sample.Failed() {
		msg := fmt.Sprintf("status %d", sample.Status)
		if sample.Err != nil {
			span.RecordError(sample.Err)
			msg = sample.Err.Error()
		}
		span.SetStatus(codes.Error, msg)
	}
	return IterationResult{
		Sample: sample,
		Checks: runChecks(s.Checks, resp),
	}
}

// NewScenario builds a named scenario. gen feeds the create-user body.
func NewScenario(name string, gen *PayloadGenerator, checks []Check) (*Scenario, error) {
	if gen == nil {
		gen = NewPayloadGenerator(nil)
	}
	switch name {
	case ScenarioCreateUser:
		return &Scenario{
			Name:    name,
			Method:  http.MethodPost,
			Path:    "/user",
			Headers: map[string]string{"Content-Type": "application/json"},
			Body:    gen.JSON,
			Checks:  checks,
		}, nil
	case ScenarioListUsers:
		return &Scenario{Name: name, Method: http.MethodGet, Path: "/users", Checks: checks}, nil
	case ScenarioGetUser:
		return &Scenario{Name: name, Method: http.MethodGet, Path: "/user", Checks: checks}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
	}
}

func ScenarioNames() []string {
	names := []string{ScenarioCreateUser, ScenarioListUsers, ScenarioGetUser}
	sort.Strings(names)
	return names
}
