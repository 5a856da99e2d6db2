package loadtest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
)

const DefaultTickInterval = 100 * time.Millisecond

type RunnerOptions struct {
	Client  *http.Client
	BaseURL string
	Logger  *logrus.Entry

	// LimiterStore backs the RPS cap; nil means an in-memory store.
	LimiterStore limiter.Store
	Generator    *PayloadGenerator
	TickInterval time.Duration
}

type Runner struct {
	opts    RunnerOptions
	metrics *promMetrics
}

func NewRunner(opts RunnerOptions) *Runner {
	if opts.Client == nil {
		opts.Client = NewHTTPClient(DefaultHTTPTimeout, 0)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	return &Runner{opts: opts, metrics: getMetrics()}
}

// Run executes the profile and always returns a report unless the profile is
// invalid. Cancelling ctx ends the run early and marks the report interrupted.
func (r *Runner) Run(ctx context.Context, p Profile) (*Report, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	thresholds, err := p.ParsedThresholds()
	if err != nil {
		return nil, err
	}
	checks, err := p.BuildChecks()
	if err != nil {
		return nil, err
	}
	scenario, err := NewScenario(p.Scenario, r.opts.Generator, checks)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := r.opts.Logger.WithFields(logrus.Fields{
		"run_id":   runID,
		"profile":  p.Name,
		"scenario": p.Scenario,
	})

	var rl *RateLimiter
	if p.RPS > 0 {
		rl = NewRateLimiter(p.RPS, r.opts.LimiterStore, p.Name)
	}

	collector := NewCollector()
	vusGauge := r.metrics.vus.WithLabelValues(p.Name)

	// runCtx outlives the schedule so ramped-down VUs can finish their
	// iteration; cancelling it is the hard stop. scheduleCtx ends with the
	// schedule and releases VUs still waiting for a rate-limit token.
	runCtx, hardStop := context.WithCancel(ctx)
	defer hardStop()
	scheduleCtx, endSchedule := context.WithCancel(runCtx)
	defer endSchedule()

	iterate := func(ctx context.Context) {
		if rl != nil {
			if err := rl.Wait(scheduleCtx); err != nil {
				if scheduleCtx.Err() == nil {
					log.WithError(err).Warn("rate limiter unavailable")
					sleepCtx(scheduleCtx, r.opts.TickInterval)
				}
				return
			}
		}
		res := scenario.Iterate(ctx, r.opts.Client, r.opts.BaseURL)
		if ctx.Err() != nil && errors.Is(res.Sample.Err, context.Canceled) {
			// cut off by a hard stop, not a target failure
			return
		}
		collector.Record(res)
		r.metrics.observe(res)
	}

	schedule := ScheduleFor(&p)
	pool := newVUPool(runCtx, iterate, func(n int) { vusGauge.Set(float64(n)) })

	startedAt := time.Now()
	log.WithFields(logrus.Fields{
		"max_vus":  p.MaxVUs(),
		"duration": schedule.Total().String(),
		"rps":      p.RPS,
	}).Info("run started")

	pool.scaleTo(schedule.VUsAt(0))

	deadline := time.NewTimer(schedule.Total())
	defer deadline.Stop()
	ticker := time.NewTicker(r.opts.TickInterval)
	defer ticker.Stop()

	interrupted := false
loop:
	for {
		select {
		case <-ctx.Done():
			interrupted = true
			break loop
		case <-deadline.C:
			break loop
		case <-ticker.C:
			pool.scaleTo(schedule.VUsAt(time.Since(startedAt)))
		}
	}

	endSchedule()
	if pool.drain(p.gracefulStop(), hardStop) {
		log.WithField("graceful_stop", p.gracefulStop().String()).Warn("graceful stop elapsed, in-flight iterations cancelled")
	}
	finishedAt := time.Now()
	vusGauge.Set(0)

	summary := collector.Summary(finishedAt.Sub(startedAt))
	results, passed := EvaluateThresholds(thresholds, summary)

	report := &Report{
		SchemaVersion: ReportSchemaVersion,
		RunID:         runID,
		StartedAt:     startedAt.UTC().Format(time.RFC3339),
		FinishedAt:    finishedAt.UTC().Format(time.RFC3339),
		Interrupted:   interrupted,
		Target: ReportTarget{
			BaseURL: r.opts.BaseURL,
			Method:  scenario.Method,
			URL:     scenario.URL(r.opts.BaseURL),
		},
		Profile:    reportProfile(&p),
		Results:    summary.Endpoints,
		Metrics:    summary,
		Checks:     summary.CheckDetails,
		Thresholds: results,
		Passed:     passed,
	}
	if interrupted {
		report.Notes = "run interrupted before the schedule completed"
	}

	entry := log.WithFields(logrus.Fields{
		"requests":    summary.HTTPReqs.Count,
		"failed_rate": summary.HTTPReqFailed.Rate,
		"p95_ms":      summary.HTTPReqDuration.P95,
		"passed":      passed,
		"interrupted": interrupted,
	})
	if passed {
		entry.Info("run finished")
	} else {
		entry.Warn("run finished with failed thresholds")
	}
	return report, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
