package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bcos/internal/config"
	"bcos/internal/engine"
	"bcos/internal/llm"
	"bcos/internal/progress"
	"bcos/internal/providers"
	"bcos/internal/report"
	"bcos/internal/session"
	"bcos/internal/skills"
	"bcos/internal/truth"
)

var (
	flagCompany     string
	flagWebsite     string
	flagIndustry    string
	flagMode        string
	flagFrameworks  []string
	flagCompetitors []string
	flagMaxSteps    int
)

// defaultFrameworks applies when no framework is selected for a run
// that includes Phase 2.
var defaultFrameworks = []config.Framework{
	config.FrameworkSWOT,
	config.FrameworkPortersFiveForces,
	config.FrameworkPESTEL,
	config.FrameworkBCGMatrix,
}

// runCmd starts a fresh analysis
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a new business analysis",
	Long: `Runs a full analysis for a company and writes the results into a new
session directory.

Examples:
  bcos run --company "Acme Robotics" --website https://acme.example
  bcos run -c config.yaml
  bcos run --company "Acme" --mode business_overview`,
	RunE: runAnalysis,
}

func init() {
	runCmd.Flags().StringVar(&flagCompany, "company", "", "company name to analyze")
	runCmd.Flags().StringVar(&flagWebsite, "website", "", "company website")
	runCmd.Flags().StringVar(&flagIndustry, "industry", "", "company industry")
	runCmd.Flags().StringVar(&flagMode, "mode", "", "analysis mode: business_overview, frameworks, full")
	runCmd.Flags().StringSliceVar(&flagFrameworks, "framework", nil, "framework to apply (repeatable)")
	runCmd.Flags().StringSliceVar(&flagCompetitors, "competitor", nil, "known competitor (repeatable, max 5)")
	runCmd.Flags().IntVar(&flagMaxSteps, "max-steps", 0, "override the global step budget")
}

// loadRunConfig assembles the run configuration from the config file
// and command-line overrides.
func loadRunConfig() (config.Config, error) {
	cfg := config.Defaults()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	} else {
		cfg.ApplyEnv()
	}

	if flagCompany != "" {
		cfg.Company.Name = flagCompany
	}
	if flagWebsite != "" {
		cfg.Company.Website = flagWebsite
	}
	if flagIndustry != "" {
		cfg.Company.Industry = flagIndustry
	}
	if flagMode != "" {
		cfg.Mode = config.RunMode(flagMode)
	}
	for _, name := range flagFrameworks {
		cfg.Frameworks = append(cfg.Frameworks, config.Framework(name))
	}
	if len(flagCompetitors) > 0 {
		cfg.Competitors = flagCompetitors
	}
	if flagMaxSteps > 0 {
		cfg.Advanced.MaxSteps = flagMaxSteps
	}
	if len(cfg.Frameworks) == 0 && cfg.Mode != config.ModeBusinessOverview {
		cfg.Frameworks = defaultFrameworks
	}
	return cfg, nil
}

// buildEngineOptions wires the LLM client, data sources, truth engine,
// and skill registry from the configuration and environment.
func buildEngineOptions(ctx context.Context, cfg config.Config) (engine.Options, error) {
	var client llm.Client
	switch {
	case os.Getenv("GEMINI_API_KEY") != "":
		gemini, err := llm.NewGeminiClient(ctx, os.Getenv("GEMINI_API_KEY"), os.Getenv("GEMINI_MODEL"))
		if err != nil {
			return engine.Options{}, fmt.Errorf("init gemini client: %w", err)
		}
		client = gemini
	case os.Getenv("OPENAI_API_KEY") != "":
		client = llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
			Model:   os.Getenv("OPENAI_MODEL"),
		})
	default:
		logger.Warn("no LLM API key configured; planning and analysis degrade to deterministic fallbacks")
	}

	verifier := truth.NewEngine(truth.Config{
		Mode:          truth.Mode(cfg.Truth.Mode),
		MinConfidence: cfg.Truth.MinConfidence,
	}, logger)

	registry := engine.NewRegistry()
	skills.Register(registry, skills.Deps{
		LLM:        client,
		Firecrawl:  providers.NewFirecrawlClient(cfg.DataSources.Firecrawl.APIKey, logger),
		Exa:        providers.NewExaClient(cfg.DataSources.Exa.APIKey, logger),
		Perplexity: providers.NewPerplexityClient(cfg.DataSources.Perplexity.APIKey, logger),
		Truth:      verifier,
		Logger:     logger,
	})

	return engine.Options{
		LLM:      client,
		Registry: registry,
		Observer: consoleObserver(),
		Logger:   logger,
	}, nil
}

// consoleObserver prints progress lines as the run advances.
func consoleObserver() progress.Observer {
	var last string
	return func(s progress.Snapshot) {
		if s.CurrentAction == nil {
			return
		}
		line := fmt.Sprintf("[%3.0f%%] %s", s.ProgressPercent, s.CurrentAction.Action)
		if line == last {
			return
		}
		last = line
		fmt.Println(line)
	}
}

func runAnalysis(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}

	store, err := session.Open(sessionRoot, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	opts, err := buildEngineOptions(ctx, cfg)
	if err != nil {
		return err
	}

	sess, err := store.Create(ctx, cfg.Company.Name, string(cfg.Mode))
	if err != nil {
		return err
	}
	opts.StatePath = sess.StatePath()

	orch, err := engine.NewOrchestrator(cfg, opts)
	if err != nil {
		return err
	}

	fmt.Printf("Analyzing %s (%s)\n", cfg.Company.Name, cfg.Mode)
	env, runErr := orch.Run(ctx)

	return finishRun(ctx, store, sess, orch, env, runErr)
}

// finishRun persists every artifact of a run and records its outcome,
// regardless of how the run ended.
func finishRun(ctx context.Context, store *session.Store, sess *session.Session, orch *engine.Orchestrator, env engine.Envelope, runErr error) error {
	if err := orch.SaveState(sess.StatePath()); err != nil {
		logger.Error("failed to save state", zap.Error(err))
	}
	if err := report.WriteJSON(sess.ResultsPath(), env); err != nil {
		logger.Error("failed to write results", zap.Error(err))
	}
	if err := report.WriteMarkdown(sess.ReportPath(), env); err != nil {
		logger.Error("failed to write report", zap.Error(err))
	}

	status := session.StatusCompleted
	switch {
	case runErr == nil:
	case context.Cause(ctx) != nil:
		status = session.StatusCancelled
	default:
		status = session.StatusFailed
	}
	// Record the outcome even when the run context is gone.
	if err := store.UpdateStatus(context.Background(), sess.ID, status); err != nil {
		logger.Error("failed to update session status", zap.Error(err))
	}

	fmt.Printf("\nTasks: %d completed, %d failed, %d pending\n",
		env.Summary.Tasks.Completed, env.Summary.Tasks.Failed, env.Summary.Tasks.Pending)
	fmt.Printf("Report:  %s\n", sess.ReportPath())
	fmt.Printf("Results: %s\n", sess.ResultsPath())
	return runErr
}
