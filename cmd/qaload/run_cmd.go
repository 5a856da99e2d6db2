package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/ulule/limiter/v3"

	"github.com/qa-api/qaload/pkg/loadtest"
	"github.com/qa-api/qaload/pkg/metrics"
	"github.com/qa-api/qaload/pkg/resultstore"
)

type runOptions struct {
	Profile     string
	ProfileDir  string
	BaseURL     string
	VUs         int
	Duration    time.Duration
	RPS         int
	OutPath     string
	XLSXPath    string
	MetricsAddr string
	PushGateway string
	NoSmoke     bool
	Quiet       bool
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run --profile <name|file> [--base-url <url>] [--out <path>]",
		Short: "Run a load profile and write qaload_report.v1 JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(opts.Profile) == "" {
				return withCode(exitValidation, errors.New("--profile is required"))
			}
			if opts.BaseURL == "" {
				opts.BaseURL = a.conf.Target.BaseURL
			}
			if opts.ProfileDir == "" {
				opts.ProfileDir = a.conf.ProfileDir
			}
			if opts.PushGateway == "" {
				opts.PushGateway = a.conf.Prometheus.PushGatewayURL
			}

			p, err := loadtest.ResolveProfile(opts.Profile, opts.ProfileDir)
			if err != nil {
				return withCode(exitValidation, err)
			}
			applyOverrides(&p, opts)
			if err := p.Validate(); err != nil {
				return withCode(exitValidation, err)
			}
			return runProfile(cmd, a, p, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Profile, "profile", "", "built-in profile name or profile file (yaml|toml)")
	cmd.Flags().StringVar(&opts.ProfileDir, "profile-dir", "", "directory searched for profile files (default QALOAD_PROFILE_DIR)")
	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "", "target base URL (default QALOAD_BASE_URL)")
	cmd.Flags().IntVar(&opts.VUs, "vus", 0, "override VUs; turns a staged profile into a constant one")
	cmd.Flags().DurationVar(&opts.Duration, "duration", 0, "override duration; turns a staged profile into a constant one")
	cmd.Flags().IntVar(&opts.RPS, "rps", 0, "cap iterations per second across all VUs")
	cmd.Flags().StringVar(&opts.OutPath, "out", "", "write the JSON report to this path")
	cmd.Flags().StringVar(&opts.XLSXPath, "xlsx", "", "also export the report as XLSX")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
	cmd.Flags().StringVar(&opts.PushGateway, "push-gateway", "", "push metrics to this Pushgateway when the run ends")
	cmd.Flags().BoolVar(&opts.NoSmoke, "no-smoke", false, "skip the pre-run smoke request")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "do not print the end-of-test summary")

	return cmd
}

// applyOverrides follows k6: --vus/--duration replace the profile's schedule.
func applyOverrides(p *loadtest.Profile, opts runOptions) {
	if opts.VUs > 0 || opts.Duration > 0 {
		if p.Ramping() {
			if opts.VUs <= 0 {
				opts.VUs = p.MaxVUs()
			}
			if opts.Duration <= 0 {
				opts.Duration = p.TotalDuration()
			}
			p.Stages = nil
			p.StartVUs = 0
		}
		if opts.VUs > 0 {
			p.VUs = opts.VUs
		}
		if opts.Duration > 0 {
			p.Duration = opts.Duration
		}
	}
	if opts.RPS > 0 {
		p.RPS = opts.RPS
	}
}

func runProfile(cmd *cobra.Command, a *app, p loadtest.Profile, opts runOptions) error {
	log := a.log.WithField("profile", p.Name)
	client := loadtest.NewHTTPClient(a.conf.Target.HTTPTimeout, a.conf.Target.MaxIdleConns)

	if !opts.NoSmoke {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		err := smokeCheck(ctx, client, opts.BaseURL)
		cancel()
		if err != nil {
			return withCode(exitRuntime, fmt.Errorf("smoke check: %w", err))
		}
	}

	var store limiter.Store
	if p.RPS > 0 && a.conf.RedisURL != "" {
		s, err := loadtest.NewRedisStore(a.conf.RedisURL)
		if err != nil {
			return withCode(exitRuntime, fmt.Errorf("rate limiter store: %w", err))
		}
		store = s
	}

	if opts.MetricsAddr != "" {
		stop, err := serveMetrics(opts.MetricsAddr, a.conf.Prometheus.Path, log)
		if err != nil {
			return withCode(exitRuntime, err)
		}
		defer stop()
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	runner := loadtest.NewRunner(loadtest.RunnerOptions{
		Client:       client,
		BaseURL:      opts.BaseURL,
		Logger:       log,
		LimiterStore: store,
	})
	report, err := runner.Run(ctx, p)
	if err != nil {
		return withCode(exitValidation, err)
	}

	if !opts.Quiet {
		if err := loadtest.WriteSummary(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	}
	if opts.OutPath != "" {
		if err := report.WriteJSON(opts.OutPath); err != nil {
			return withCode(exitRuntime, fmt.Errorf("write report: %w", err))
		}
	}
	if opts.XLSXPath != "" {
		if err := loadtest.ExportXLSX(report, opts.XLSXPath); err != nil {
			return withCode(exitRuntime, fmt.Errorf("export xlsx: %w", err))
		}
	}
	if opts.PushGateway != "" {
		if err := loadtest.PushMetrics(opts.PushGateway, report.RunID); err != nil {
			log.WithError(err).Warn("push to gateway failed")
		}
	}
	if a.conf.DatabaseURL != "" {
		saveReport(cmd.Context(), a, report, log)
	}

	return runOutcome(report)
}

// runOutcome maps a finished report to the exit code. An interrupted run wins
// over threshold results, as in k6.
func runOutcome(report *loadtest.Report) error {
	failed := make([]string, 0, len(report.Thresholds))
	for _, t := range report.FailedThresholds() {
		failed = append(failed, fmt.Sprintf("%s %s (actual %.4g)", t.Metric, t.Expression, t.Actual))
	}
	if report.Interrupted {
		err := errors.New("run interrupted before the schedule completed")
		if len(failed) > 0 {
			err = fmt.Errorf("%w; thresholds failed: %s", err, strings.Join(failed, "; "))
		}
		return withCode(exitInterrupted, err)
	}
	if !report.Passed {
		return withCode(exitThresholds, fmt.Errorf("thresholds failed: %s", strings.Join(failed, "; ")))
	}
	return nil
}

func saveReport(ctx context.Context, a *app, report *loadtest.Report, log *logrus.Entry) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	store, err := resultstore.Open(ctx, a.conf.DatabaseURL, a.log)
	if err != nil {
		log.WithError(err).Warn("result store unavailable, run not saved")
		return
	}
	defer func() { _ = store.Close() }()
	if err := store.Save(ctx, report); err != nil {
		log.WithError(err).Warn("saving run failed")
	}
}

func serveMetrics(addr, path string, log *logrus.Entry) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	srv := &http.Server{Handler: metrics.Handler(path), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Warn("metrics server stopped")
		}
	}()
	log.WithField("addr", ln.Addr().String()).Info("serving metrics")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
