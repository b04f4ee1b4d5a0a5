package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bcos/internal/config"
	"bcos/internal/engine"
	"bcos/internal/session"
)

var resumeFrameworksOnly bool

// resumeCmd continues an interrupted analysis
var resumeCmd = &cobra.Command{
	Use:   "resume <company>",
	Short: "Resume the latest session for a company",
	Long: `Loads the saved state of the most recent session for a company and
continues where it stopped: completed tasks keep their results and
pending work is re-planned and executed.

With --frameworks the saved Phase 1 context is reused as-is and only
the strategic frameworks run.`,
	Args: cobra.ExactArgs(1),
	RunE: resumeAnalysis,
}

func init() {
	resumeCmd.Flags().BoolVar(&resumeFrameworksOnly, "frameworks", false, "run only Phase 2 over the saved context")
	resumeCmd.Flags().StringSliceVar(&flagFrameworks, "framework", nil, "framework to apply (repeatable)")
}

func resumeAnalysis(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := session.Open(sessionRoot, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	prior, err := store.Latest(ctx, args[0])
	if err != nil {
		return err
	}
	if prior == nil {
		return fmt.Errorf("no session found for %q", args[0])
	}

	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}
	cfg.Company.Name = prior.Company
	if resumeFrameworksOnly {
		cfg.Mode = config.ModeFrameworksOnly
	} else if prior.Mode != "" {
		cfg.Mode = config.RunMode(prior.Mode)
	}
	if len(cfg.Frameworks) == 0 && cfg.Mode != config.ModeBusinessOverview {
		cfg.Frameworks = defaultFrameworks
	}

	opts, err := buildEngineOptions(ctx, cfg)
	if err != nil {
		return err
	}

	// The resumed work gets a fresh session dir; the prior one stays
	// untouched as a record.
	sess, err := store.Create(ctx, cfg.Company.Name, string(cfg.Mode))
	if err != nil {
		return err
	}
	opts.StatePath = sess.StatePath()

	orch, err := engine.NewOrchestrator(cfg, opts)
	if err != nil {
		return err
	}
	if err := orch.LoadState(prior.StatePath()); err != nil {
		return fmt.Errorf("load prior session state: %w", err)
	}

	fmt.Printf("Resuming %s from session %s (%s)\n", cfg.Company.Name, prior.ID[:8], cfg.Mode)
	env, runErr := orch.Run(ctx)

	return finishRun(ctx, store, sess, orch, env, runErr)
}
