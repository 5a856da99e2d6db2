package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/qa-api/qaload/pkg/configuration"
	"github.com/qa-api/qaload/pkg/logging"
)

// app carries what every subcommand needs once the configuration is loaded.
type app struct {
	envFiles []string
	logLevel string

	conf    *configuration.Configuration
	log     *logrus.Entry
	closers []func()
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.logLevel != "" {
		if err := os.Setenv("LOG_LEVEL", a.logLevel); err != nil {
			return err
		}
	}
	conf, err := configuration.Load(a.envFiles)
	if err != nil {
		return withCode(exitValidation, fmt.Errorf("configuration: %w", err))
	}
	a.conf = conf
	a.closers = append(a.closers, conf.Unload)
	a.log = conf.Logger().WithField("component", "qaload")

	if conf.OpenTelemetry.Enabled {
		shutdown := logging.SetupTracing(cmd.Context(), conf.OpenTelemetry.ServiceName, conf.OpenTelemetry.TempoURL)
		a.closers = append(a.closers, shutdown)
	}
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "qaload",
		Short:         "Load generator and route table tooling for the QA API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	cmd.PersistentFlags().StringSliceVar(&a.envFiles, "env-file", []string{".env", ".env.local"}, "env files to load before reading the environment")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override LOG_LEVEL (silent|error|warn|info|debug)")

	cmd.AddCommand(newRunCmd(a))
	cmd.AddCommand(newSmokeCmd(a))
	cmd.AddCommand(newProfilesCmd(a))
	cmd.AddCommand(newRoutesCmd(a))
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newReportCmd(a))
	cmd.AddCommand(newHistoryCmd(a))
	return cmd
}

// signalContext ends on Ctrl-C or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func Execute() {
	a := &app{}
	err := newRootCmd(a).Execute()
	a.close()
	if err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}
