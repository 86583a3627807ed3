package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/spf13/cobra"
)

const flagRedis = "redis"

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Maintenance jobs for the ledger backend",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.ConnectDatabaseWithRetry()
		if config.GetDB() == nil {
			return fmt.Errorf("database not initialized; set DB_* env vars")
		}
		if withRedis, _ := cmd.Flags().GetBool(flagRedis); withRedis {
			config.ConnectRedisWithRetry()
		}
		return nil
	},
	SilenceUsage: true,
}

// Execute runs the root command. Called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool(flagRedis, true, "connect to redis so caches are invalidated")
	rootCmd.AddCommand(migrateCmd, seedCmd, reconcileCmd, overdueCmd, outboxReplayCmd)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
