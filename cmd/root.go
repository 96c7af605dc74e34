package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/abhisek/codequiz/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "codequiz",
	Short: "Generate quiz questions from source code",
	Long: "codequiz turns source code into quiz questions using LLM-backed question\n" +
		"generators and an LLM quality gate.",
	SilenceUsage: true,
}

// Execute runs the root command with ctx, which is cancelled on interrupt.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides CODEQUIZ_DB env var)")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (default ./codequiz.yaml or ~/.config/codequiz/codequiz.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then the store.path config value, then CODEQUIZ_DB, then the default XDG
// path.
func resolveDBPath(cmd *cobra.Command, configured string) (string, error) {
	p, _ := cmd.Flags().GetString("db")
	if p == "" {
		p = configured
	}
	if p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}

// openStore opens the database selected by flags and config.
func openStore(cmd *cobra.Command, configured string) (*store.Store, error) {
	path, err := resolveDBPath(cmd, configured)
	if err != nil {
		return nil, err
	}
	return store.Open(path)
}
