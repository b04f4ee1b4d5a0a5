// Package main implements the bcos CLI: autonomous business research
// runs, session management, and resuming interrupted analyses.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose     bool
	configPath  string
	sessionRoot string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "bcos",
	Short: "bcos - autonomous business research engine",
	Long: `bcos runs autonomous business analyses: it plans research tasks for a
target company, executes them against live data sources, verifies
findings across sources, and renders the results as a report.

Phase 1 builds foundation intelligence (company profile, business
model, value chain, market, competitors); Phase 2 applies strategic
frameworks (SWOT, Porter's Five Forces, PESTEL, ...) over it.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// API keys may live in a local .env; absence is fine.
		_ = godotenv.Load()

		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml")
	rootCmd.PersistentFlags().StringVar(&sessionRoot, "sessions", "sessions", "session root directory")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
