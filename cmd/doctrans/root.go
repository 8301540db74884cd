package main

import (
	"os"

	"github.com/spf13/cobra"

	"doc-translator/internal/logger"
)

func execute() {
	cmd := newRootCmd()
	err := cmd.Execute()
	logger.Close()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &appOptions{}

	cmd := &cobra.Command{
		Use:   "doctrans",
		Short: "Document translation backend",
		Long: `doctrans translates documents between languages:

  poster  reconstruct a poster image as a compiled LaTeX PDF
  image   translate the text regions inside an image
  web     translate a web page and export it as a PDF`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.workDir, "workdir", "", "Artifact directory root (default from config, else current directory)")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&opts.openAIKey, "openai-key", "", "OpenAI API key (overrides config and environment)")
	cmd.PersistentFlags().StringVar(&opts.baiduKey, "baidu-key", "", "Baidu translation API key (overrides config and environment)")
	cmd.PersistentFlags().StringVar(&opts.baiduSecret, "baidu-secret", "", "Baidu translation secret key (overrides config and environment)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(
		newCheckCmd(opts),
		newPosterCmd(opts),
		newImageCmd(opts),
		newWebCmd(opts),
		newResultCmd(opts),
		newRetryCmd(opts),
	)

	return cmd
}
