package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"doc-translator/internal/compiler"
	"doc-translator/internal/config"
	"doc-translator/internal/envcheck"
	"doc-translator/internal/imagetrans"
	"doc-translator/internal/jobs"
	"doc-translator/internal/logger"
	"doc-translator/internal/pipeline"
	"doc-translator/internal/snapshot"
	"doc-translator/internal/store"
	"doc-translator/internal/translator"
	"doc-translator/internal/types"
	"doc-translator/internal/vision"
)

type appOptions struct {
	workDir     string
	configPath  string
	openAIKey   string
	baiduKey    string
	baiduSecret string
	debug       bool
}

// app wires the shared backend components for one command invocation.
type app struct {
	config    *config.ConfigManager
	artifacts *store.Store
	registry  *jobs.Registry
	checker   *envcheck.Checker
	orch      *pipeline.Orchestrator
	pdflatex  string
	chrome    string
}

func newApp(opts *appOptions) (*app, error) {
	cm, err := config.NewConfigManager(opts.configPath)
	if err != nil {
		return nil, err
	}
	if err := cm.Load(); err != nil {
		return nil, err
	}

	// Command-line credentials take precedence over config file and environment
	settings := cm.GetSettings()
	if opts.openAIKey != "" {
		settings.OpenAIAPIKey = opts.openAIKey
	}
	if opts.baiduKey != "" {
		settings.BaiduAPIKey = opts.baiduKey
	}
	if opts.baiduSecret != "" {
		settings.BaiduSecretKey = opts.baiduSecret
	}

	workDir := opts.workDir
	if workDir == "" {
		workDir = cm.GetWorkDirectory()
	}
	if workDir == "" {
		workDir = "."
	}

	level := logger.LevelInfo
	if opts.debug {
		level = logger.LevelDebug
	}
	logErr := logger.Init(&logger.Config{
		LogFilePath:   filepath.Join(workDir, "logs", "doc-translator.log"),
		MaxSizeMB:     10,
		MaxBackups:    3,
		Level:         level,
		EnableConsole: opts.debug,
	})
	if logErr != nil {
		fmt.Println("warning: file logging unavailable:", logErr)
	}

	artifacts, err := store.Open(workDir)
	if err != nil {
		return nil, err
	}

	registry, err := jobs.NewRegistry(artifacts.Dir(store.KindJobs))
	if err != nil {
		return nil, err
	}

	pdflatex, _ := envcheck.ResolvePdflatex(cm.GetPdflatexPath())

	checker := envcheck.NewChecker(envcheck.Credentials{
		OpenAIAPIKey:   cm.GetOpenAIAPIKey(),
		BaiduAPIKey:    cm.GetBaiduAPIKey(),
		BaiduSecretKey: cm.GetBaiduSecretKey(),
	}, cm.GetPdflatexPath(), cm.GetChromePath(), artifacts)

	return &app{
		config:    cm,
		artifacts: artifacts,
		registry:  registry,
		checker:   checker,
		orch:      pipeline.NewOrchestrator(registry, checker),
		pdflatex:  pdflatex,
		chrome:    cm.GetChromePath(),
	}, nil
}

// registerDefaultPoster wires the poster workflow with config defaults.
func registerDefaultPoster(cmd *cobra.Command, a *app) error {
	transcriber, err := vision.NewTranscriber(cmd.Context(), &vision.Config{
		APIKey:  a.config.GetOpenAIAPIKey(),
		BaseURL: a.config.GetBaseURL(),
		Model:   a.config.GetVisionModel(),
		Reader:  a.artifacts,
	})
	if err != nil {
		return err
	}
	comp := compiler.NewCompiler(a.pdflatex)
	comp.SetCleanupAux(true)
	a.orch.Register(types.KindPosterToDocument,
		pipeline.NewPosterWorkflow(transcriber, comp, a.artifacts))
	return nil
}

// registerDefaultImage wires the image workflow with config defaults.
func registerDefaultImage(a *app) {
	apiKey := a.config.GetBaiduAPIKey()
	secretKey := a.config.GetBaiduSecretKey()
	newClient := func() (pipeline.ImageTranslator, error) {
		return imagetrans.NewClient(apiKey, secretKey)
	}
	a.orch.Register(types.KindImageRegionTranslate,
		pipeline.NewImageWorkflow(newClient, a.artifacts, "auto", a.config.GetTargetLanguage(), true))
}

// registerDefaultSnapshot wires the proxy snapshot workflow with config defaults.
func registerDefaultSnapshot(a *app) {
	a.orch.Register(types.KindURLSnapshotTranslate,
		pipeline.NewSnapshotWorkflow(snapshot.New(a.chrome), a.artifacts, "zh-CN"))
}

// registerDefaultText wires the GPT page translation workflow with config defaults.
func registerDefaultText(a *app) {
	engine := translator.NewEngineWithConfig(
		a.config.GetOpenAIAPIKey(),
		a.config.GetTextModel(),
		a.config.GetBaseURL(),
		translator.DefaultTimeout)
	a.orch.Register(types.KindURLTextTranslate,
		pipeline.NewTextWorkflow(snapshot.New(a.chrome), engine, a.artifacts, "zh", "en"))
}

// printBatch reports each job outcome and returns an error when any item failed,
// so the command exits nonzero.
func printBatch(cmd *cobra.Command, result *pipeline.BatchResult) error {
	out := cmd.OutOrStdout()
	for _, job := range result.Jobs {
		switch job.Status {
		case types.StatusCompleted:
			fmt.Fprintf(out, "[done] %s  %s\n", job.ID, job.SourceReference)
			printResultPaths(cmd, job.Result, "       ")
		case types.StatusFailed:
			fmt.Fprintf(out, "[fail] %s  %s\n", job.ID, job.SourceReference)
			if job.Error != nil {
				fmt.Fprintf(out, "       %s: %s\n", job.Error.Category, job.Error.Message)
			}
		default:
			fmt.Fprintf(out, "[%s] %s  %s\n", job.Status, job.ID, job.SourceReference)
		}
	}

	fmt.Fprintf(out, "%d succeeded, %d failed\n", result.Succeeded, result.Failed)
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d items failed", result.Failed, len(result.Jobs))
	}
	return nil
}

func printResultPaths(cmd *cobra.Command, res *types.JobResult, indent string) {
	if res == nil {
		return
	}
	out := cmd.OutOrStdout()
	if res.DocumentPath != "" {
		fmt.Fprintf(out, "%spdf:   %s\n", indent, res.DocumentPath)
	}
	if res.MarkupPath != "" {
		fmt.Fprintf(out, "%stex:   %s\n", indent, res.MarkupPath)
	}
	if res.ImagePath != "" {
		fmt.Fprintf(out, "%simage: %s\n", indent, res.ImagePath)
	}
	if res.HTMLPath != "" {
		fmt.Fprintf(out, "%shtml:  %s\n", indent, res.HTMLPath)
	}
	if res.Summary != nil && res.Summary.TargetText != "" {
		fmt.Fprintf(out, "%stext:  %s\n", indent, res.Summary.TargetText)
	}
}
