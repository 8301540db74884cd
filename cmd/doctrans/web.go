package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"doc-translator/internal/pipeline"
	"doc-translator/internal/snapshot"
	"doc-translator/internal/translator"
	"doc-translator/internal/types"
)

type webOptions struct {
	mode       string
	sourceLang string
	from       string
	to         string
}

func newWebCmd(opts *appOptions) *cobra.Command {
	webOpts := webOptions{}
	cmd := &cobra.Command{
		Use:   "web <url> [url...]",
		Short: "Translate web pages and export them as PDFs",
		Long: `Translate web pages and export them as PDFs.

Two modes are available:

  proxy  render the page through the Google Translate proxy and print
         the translated rendering (fast, layout preserved)
  gpt    capture the page HTML, translate the text with a language
         model, and print the translated document`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWeb(cmd, args, opts, &webOpts)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&webOpts.mode, "mode", "proxy", "Translation mode (proxy or gpt)")
	cmd.Flags().StringVar(&webOpts.sourceLang, "source-lang", "zh-CN", "Source language for proxy mode")
	cmd.Flags().StringVar(&webOpts.from, "from", "zh", "Source language for gpt mode")
	cmd.Flags().StringVar(&webOpts.to, "to", "en", "Target language for gpt mode")
	return cmd
}

func runWeb(cmd *cobra.Command, args []string, opts *appOptions, webOpts *webOptions) error {
	mode := strings.ToLower(webOpts.mode)
	if mode != "proxy" && mode != "gpt" {
		return fmt.Errorf("invalid mode %q. Must be 'proxy' or 'gpt'", webOpts.mode)
	}

	a, err := newApp(opts)
	if err != nil {
		return err
	}

	urls := make([]string, len(args))
	for i, pageURL := range args {
		urls[i] = snapshot.NormalizeURL(pageURL)
		if urls[i] == "" {
			return fmt.Errorf("invalid URL: %q", pageURL)
		}
	}

	exporter := snapshot.New(a.chrome)

	var kind types.JobKind
	if mode == "proxy" {
		kind = types.KindURLSnapshotTranslate
		a.orch.Register(kind,
			pipeline.NewSnapshotWorkflow(exporter, a.artifacts, webOpts.sourceLang))
	} else {
		kind = types.KindURLTextTranslate
		engine := translator.NewEngineWithConfig(
			a.config.GetOpenAIAPIKey(),
			a.config.GetTextModel(),
			a.config.GetBaseURL(),
			translator.DefaultTimeout)
		a.orch.Register(kind,
			pipeline.NewTextWorkflow(exporter, engine, a.artifacts, webOpts.from, webOpts.to))
	}

	result, err := a.orch.RunBatch(cmd.Context(), kind, urls)
	if err != nil {
		return err
	}
	return printBatch(cmd, result)
}
