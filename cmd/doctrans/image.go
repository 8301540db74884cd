package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"doc-translator/internal/imagetrans"
	"doc-translator/internal/pipeline"
	"doc-translator/internal/types"
)

type imageOptions struct {
	from    string
	to      string
	noPaste bool
}

func newImageCmd(opts *appOptions) *cobra.Command {
	imageOpts := imageOptions{}
	cmd := &cobra.Command{
		Use:   "image <image> [image...]",
		Short: "Translate the text regions inside images",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImage(cmd, args, opts, &imageOpts)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&imageOpts.from, "from", "auto", "Source language code")
	cmd.Flags().StringVar(&imageOpts.to, "to", "", "Target language code (default from config)")
	cmd.Flags().BoolVar(&imageOpts.noPaste, "no-paste", false, "Skip the rendered image with translations pasted in")
	return cmd
}

func runImage(cmd *cobra.Command, args []string, opts *appOptions, imageOpts *imageOptions) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}

	for _, image := range args {
		if !a.artifacts.Exists(image) {
			return fmt.Errorf("image not found: %s", image)
		}
	}

	to := imageOpts.to
	if to == "" {
		to = a.config.GetTargetLanguage()
	}

	apiKey := a.config.GetBaiduAPIKey()
	secretKey := a.config.GetBaiduSecretKey()
	newClient := func() (pipeline.ImageTranslator, error) {
		return imagetrans.NewClient(apiKey, secretKey)
	}

	a.orch.Register(types.KindImageRegionTranslate,
		pipeline.NewImageWorkflow(newClient, a.artifacts, imageOpts.from, to, !imageOpts.noPaste))

	result, err := a.orch.RunBatch(cmd.Context(), types.KindImageRegionTranslate, args)
	if err != nil {
		return err
	}
	return printBatch(cmd, result)
}
