package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCmd(opts *appOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check credentials, tools, and artifact directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts)
		},
		SilenceUsage: true,
	}
}

func runCheck(cmd *cobra.Command, opts *appOptions) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}

	report := a.checker.Check()
	out := cmd.OutOrStdout()
	for _, entry := range report.Entries {
		mark := "ok"
		if !entry.Satisfied {
			mark = "MISSING"
		}
		fmt.Fprintf(out, "[%-7s] %-25s %s\n", mark, entry.Name, entry.Detail)
		if !entry.Satisfied && entry.Remedy != "" {
			fmt.Fprintf(out, "          remedy: %s\n", entry.Remedy)
		}
	}

	if failures := report.Failures(); len(failures) > 0 {
		return fmt.Errorf("%d of %d checks failed", len(failures), len(report.Entries))
	}
	fmt.Fprintln(out, "environment is ready")
	return nil
}
