package main

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/qa-api/qaload/pkg/loadtest"
)

func newProfilesCmd(a *app) *cobra.Command {
	var dir string

	list := func(cmd *cobra.Command, _ []string) error {
		if dir == "" {
			dir = a.conf.ProfileDir
		}
		return listProfiles(cmd.OutOrStdout(), dir)
	}

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List or show load profiles",
		RunE:  list,
	}
	cmd.PersistentFlags().StringVar(&dir, "profile-dir", "", "directory with profile files (default QALOAD_PROFILE_DIR)")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List built-in profiles and profile files",
		Args:  cobra.NoArgs,
		RunE:  list,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <name|file>",
		Short: "Print a profile in file format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = a.conf.ProfileDir
			}
			p, err := loadtest.ResolveProfile(args[0], dir)
			if err != nil {
				return withCode(exitValidation, err)
			}
			raw, err := loadtest.MarshalProfileYAML(p)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(raw)
			return err
		},
	})
	return cmd
}

func listProfiles(out io.Writer, dir string) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tSCENARIO\tMAX VUS\tDURATION\tSOURCE")
	for _, p := range loadtest.BuiltinProfiles() {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", p.Name, p.Scenario, p.MaxVUs(), p.TotalDuration(), "built-in")
	}

	files, err := loadtest.ProfileFiles(dir)
	if err != nil {
		return err
	}
	for _, path := range files {
		p, err := loadtest.LoadProfileFile(path)
		if err != nil {
			_, _ = fmt.Fprintf(tw, "%s\t-\t-\t-\tinvalid: %v\n", filepath.Base(path), err)
			continue
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", p.Name, p.Scenario, p.MaxVUs(), p.TotalDuration(), path)
	}
	return tw.Flush()
}
