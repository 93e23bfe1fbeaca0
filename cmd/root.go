package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/traverse/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "traverse",
	Short: "Adaptive learning paths",
	Long: "traverse builds a prerequisite graph of lessons from a learning goal, grades your answers\n" +
		"and splices remedial lessons in front of the ones you get stuck on.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides TRAVERSE_DB env var)")
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file (default $XDG_CONFIG_HOME/traverse/config.yaml)")
	rootCmd.PersistentFlags().StringP("user", "u", defaultUser(), "Learner ID (overrides TRAVERSE_USER env var)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(pathCmd)
	rootCmd.AddCommand(challengeCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(remediateCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then the configured path, then TRAVERSE_DB and the default XDG path.
func resolveDBPath(cmd *cobra.Command, configured string) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if configured != "" {
		return configured, store.EnsureDir(configured)
	}
	return store.DefaultDBPath()
}

func defaultUser() string {
	for _, name := range []string{"TRAVERSE_USER", "USER", "USERNAME"} {
		if u := os.Getenv(name); u != "" {
			return u
		}
	}
	return "local"
}

func userFlag(cmd *cobra.Command) string {
	u, _ := cmd.Flags().GetString("user")
	return u
}
