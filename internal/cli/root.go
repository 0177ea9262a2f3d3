package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	flagConfig string
	flagAs     string
)

var rootCmd = &cobra.Command{
	Use:          "taskpool",
	Short:        "Shared task pool for teams",
	Long:         "taskpool: a shared pool of work items that staff claim, hand off, complete and route,\nplus a review queue for machine-suggested tasks.",
	SilenceUsage: true,
}

// Execute runs the root command. ctx is cancelled on interrupt.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default .taskpool/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagAs, "as", "", "Acting user (default $"+EnvUser+")")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(stepCmd)
	rootCmd.AddCommand(suggestionCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(uiCmd)
}
