package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/qa-api/qaload/pkg/loadtest"
)

type smokeOptions struct {
	BaseURL string
}

func newSmokeCmd(a *app) *cobra.Command {
	var opts smokeOptions

	cmd := &cobra.Command{
		Use:   "smoke [--base-url <url>]",
		Short: "Issue one GET /users and one POST /user and print the results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.BaseURL == "" {
				opts.BaseURL = a.conf.Target.BaseURL
			}
			client := loadtest.NewHTTPClient(a.conf.Target.HTTPTimeout, 2)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			failed := 0
			for _, name := range []string{loadtest.ScenarioListUsers, loadtest.ScenarioCreateUser} {
				if !smokeOne(ctx, cmd.OutOrStdout(), client, opts.BaseURL, name) {
					failed++
				}
			}
			if failed > 0 {
				return withCode(exitRuntime, fmt.Errorf("smoke failed: %d of 2 requests", failed))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "", "target base URL (default QALOAD_BASE_URL)")
	return cmd
}

func smokeOne(ctx context.Context, out io.Writer, client *http.Client, baseURL, scenario string) bool {
	s, err := loadtest.NewScenario(scenario, nil, nil)
	if err != nil {
		_, _ = fmt.Fprintf(out, "%s: %v\n", scenario, err)
		return false
	}
	res := s.Iterate(ctx, client, baseURL)
	if res.Sample.Err != nil {
		_, _ = fmt.Fprintf(out, "%-10s %s -> error: %v\n", s.Endpoint(), s.URL(baseURL), res.Sample.Err)
		return false
	}
	_, _ = fmt.Fprintf(out, "%-10s %s -> %d (%s)\n", s.Endpoint(), s.URL(baseURL), res.Sample.Status, res.Sample.Duration.Round(time.Millisecond))
	return !res.Sample.Failed()
}

// smokeCheck requires the target to answer GET /users before a run starts.
func smokeCheck(ctx context.Context, client *http.Client, baseURL string) error {
	s, err := loadtest.NewScenario(loadtest.ScenarioListUsers, nil, nil)
	if err != nil {
		return err
	}
	res := s.Iterate(ctx, client, baseURL)
	if res.Sample.Err != nil {
		return res.Sample.Err
	}
	if res.Sample.Status >= 500 {
		return fmt.Errorf("%s: status=%d", s.Endpoint(), res.Sample.Status)
	}
	return nil
}
