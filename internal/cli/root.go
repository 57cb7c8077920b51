package cli

import (
	"github.com/spf13/cobra"
)

var (
	configPath string
	dbPath     string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "joti",
	Short: "Joti - GenAI guardrails for threat intelligence workflows",
	Long: `Joti wraps every GenAI call made by the threat intelligence platform in
configurable guardrails: prompts are screened for injection and jailbreak
attempts before the model runs, outputs are checked for leaks and fabricated
indicators, and fixable violations are repaired and re-validated within a
bounded retry budget. Incoming articles are screened for duplicates before
ingestion.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (default: ~/.joti/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the SQLite database (default: ~/.joti/joti.db)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

func Execute() error {
	return rootCmd.Execute()
}
