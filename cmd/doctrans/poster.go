package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"doc-translator/internal/compiler"
	"doc-translator/internal/pipeline"
	"doc-translator/internal/types"
	"doc-translator/internal/vision"
)

type posterOptions struct {
	model             string
	noInstallPackages bool
	keepAux           bool
}

func newPosterCmd(opts *appOptions) *cobra.Command {
	posterOpts := posterOptions{}
	cmd := &cobra.Command{
		Use:   "poster <image> [image...]",
		Short: "Reconstruct poster images as compiled LaTeX PDFs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPoster(cmd, args, opts, &posterOpts)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&posterOpts.model, "model", "", "Vision model name (default from config)")
	cmd.Flags().BoolVar(&posterOpts.noInstallPackages, "no-install-packages", false, "Do not install missing LaTeX packages automatically")
	cmd.Flags().BoolVar(&posterOpts.keepAux, "keep-aux", false, "Keep auxiliary files after a successful compile")
	return cmd
}

func runPoster(cmd *cobra.Command, args []string, opts *appOptions, posterOpts *posterOptions) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}

	for _, image := range args {
		if !a.artifacts.Exists(image) {
			return fmt.Errorf("image not found: %s", image)
		}
	}

	model := posterOpts.model
	if model == "" {
		model = a.config.GetVisionModel()
	}

	transcriber, err := vision.NewTranscriber(cmd.Context(), &vision.Config{
		APIKey:  a.config.GetOpenAIAPIKey(),
		BaseURL: a.config.GetBaseURL(),
		Model:   model,
		Reader:  a.artifacts,
	})
	if err != nil {
		return err
	}

	comp := compiler.NewCompiler(a.pdflatex)
	comp.SetInstallPackages(!posterOpts.noInstallPackages)
	comp.SetCleanupAux(!posterOpts.keepAux)

	a.orch.Register(types.KindPosterToDocument,
		pipeline.NewPosterWorkflow(transcriber, comp, a.artifacts))

	result, err := a.orch.RunBatch(cmd.Context(), types.KindPosterToDocument, args)
	if err != nil {
		return err
	}
	return printBatch(cmd, result)
}
