package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"doc-translator/internal/types"
)

func newResultCmd(opts *appOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "result [job-id]",
		Short: "List jobs or show one job's outcome",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runResultShow(cmd, opts, args[0])
			}
			return runResultList(cmd, opts)
		},
		SilenceUsage: true,
	}
}

func runResultList(cmd *cobra.Command, opts *appOptions) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}

	all, err := a.registry.List()
	if err != nil {
		return err
	}
	if len(all) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no jobs recorded")
		return nil
	}

	out := cmd.OutOrStdout()
	for _, job := range all {
		fmt.Fprintf(out, "%s  %-24s %-10s %s\n",
			job.ID, job.Kind, job.Status, job.SourceReference)
	}
	return nil
}

func runResultShow(cmd *cobra.Command, opts *appOptions, id string) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}

	job, err := a.registry.Get(id)
	if err != nil {
		return err
	}
	printJob(cmd, job)
	return nil
}

func printJob(cmd *cobra.Command, job *types.TranslationJob) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "id:      %s\n", job.ID)
	fmt.Fprintf(out, "kind:    %s\n", job.Kind)
	fmt.Fprintf(out, "status:  %s\n", job.Status)
	fmt.Fprintf(out, "source:  %s\n", job.SourceReference)
	fmt.Fprintf(out, "created: %s\n", job.CreatedAt.Format("2006-01-02 15:04:05"))
	if !job.CompletedAt.IsZero() {
		fmt.Fprintf(out, "ended:   %s\n", job.CompletedAt.Format("2006-01-02 15:04:05"))
	}

	if job.Error != nil {
		fmt.Fprintf(out, "error:   %s: %s\n", job.Error.Category, job.Error.Message)
	}
	printResultPaths(cmd, job.Result, "")
	if job.Result != nil {
		for _, region := range job.Result.Regions {
			fmt.Fprintf(out, "region %d: %s -> %s\n",
				region.BlockIndex, region.SourceText, region.TranslatedText)
		}
	}
}

func newRetryCmd(opts *appOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Re-run a finished job, keeping its identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRetry(cmd, opts, args[0])
		},
		SilenceUsage: true,
	}
}

func runRetry(cmd *cobra.Command, opts *appOptions, id string) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}

	job, err := a.registry.Get(id)
	if err != nil {
		return err
	}

	if err := registerWorkflowFor(cmd, a, job.Kind); err != nil {
		return err
	}

	retried, err := a.orch.Retry(cmd.Context(), id)
	if err != nil {
		return err
	}
	printJob(cmd, retried)
	return nil
}

// registerWorkflowFor rebuilds the default workflow for a job's kind so a
// recorded job can be retried without repeating the original command flags.
func registerWorkflowFor(cmd *cobra.Command, a *app, kind types.JobKind) error {
	switch kind {
	case types.KindPosterToDocument:
		return registerDefaultPoster(cmd, a)
	case types.KindImageRegionTranslate:
		registerDefaultImage(a)
		return nil
	case types.KindURLSnapshotTranslate:
		registerDefaultSnapshot(a)
		return nil
	case types.KindURLTextTranslate:
		registerDefaultText(a)
		return nil
	default:
		return fmt.Errorf("unknown job kind %q", kind)
	}
}
