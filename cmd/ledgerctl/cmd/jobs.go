package cmd

import (
	"fmt"
	"time"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/mmdatafocus/ledger_backend/workflow"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run AutoMigrate for every ledger table",
	RunE: func(cmd *cobra.Command, args []string) error {
		models.MigrateTable()
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the demo tenant, users, company and chart of accounts",
	Long:  "Seeding is idempotent: rows that already exist are left untouched.",
	RunE: func(cmd *cobra.Command, args []string) error {
		models.MigrateTable()
		result, err := models.SeedDemoData(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	},
}

var reconcileCmd = &cobra.Command{
	Use:     "reconcile",
	Short:   "Recompute balances and check the trial balance and document postings",
	Example: "ledgerctl reconcile --company <company-id>",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := config.GetLogger()
		companyId, _ := cmd.Flags().GetString("company")
		if companyId != "" {
			result, err := workflow.ReconcileCompany(cmd.Context(), logger, companyId)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		}
		results, err := workflow.ReconcileAllCompanies(cmd.Context(), logger)
		if err != nil {
			return err
		}
		return printJSON(cmd, results)
	},
}

var overdueCmd = &cobra.Command{
	Use:     "overdue",
	Short:   "Mark sent invoices and open bills past their due date as OVERDUE",
	Example: "ledgerctl overdue --as-of 2025-01-31",
	RunE: func(cmd *cobra.Command, args []string) error {
		asOf := time.Now().UTC()
		if v, _ := cmd.Flags().GetString("as-of"); v != "" {
			t, err := time.ParseInLocation(time.DateOnly, v, time.UTC)
			if err != nil {
				return fmt.Errorf("--as-of: %w", err)
			}
			asOf = utils.EndOfDay(t)
		}
		results, err := workflow.SweepOverdue(cmd.Context(), config.GetLogger(), asOf)
		if err != nil {
			return err
		}
		return printJSON(cmd, results)
	},
}

var outboxReplayCmd = &cobra.Command{
	Use:     "outbox-replay",
	Short:   "Requeue DEAD and FAILED outbox records",
	Example: "ledgerctl outbox-replay --company <company-id> --id 12 --id 13",
	RunE: func(cmd *cobra.Command, args []string) error {
		companyId, _ := cmd.Flags().GetString("company")
		ids, _ := cmd.Flags().GetIntSlice("id")
		count, err := models.ReplayOutbox(cmd.Context(), companyId, ids)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d outbox records requeued\n", count)
		return nil
	},
}

func init() {
	reconcileCmd.Flags().String("company", "", "company id (all active companies when empty)")
	overdueCmd.Flags().String("as-of", "", "sweep date as YYYY-MM-DD (default today)")
	outboxReplayCmd.Flags().String("company", "", "company id (all companies when empty)")
	outboxReplayCmd.Flags().IntSlice("id", nil, "outbox record id; repeatable")
}
