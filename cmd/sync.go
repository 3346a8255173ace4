package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/market-match/internal/model"
)

var (
	syncListing string
	syncStatus  string
	syncReason  string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Keep match availability in step with listing status",
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Propagate one listing's status to its matches",
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncListing == "" {
			return eris.New("--listing is required")
		}
		status, err := model.ParseListingStatus(syncStatus)
		if err != nil {
			return err
		}

		env, err := initEnv(cmd.Context(), "sync")
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Synchronizer.SyncListingStatus(cmd.Context(), syncListing, status, syncReason)
		if err != nil {
			return err
		}
		zap.L().Info("listing status synced",
			zap.String("listing_id", syncListing),
			zap.String("status", string(status)),
			zap.Int("matches_updated", n),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "%d matches updated\n", n)
		return nil
	},
}

var syncSweepCmd = &cobra.Command{
	Use:   "sweep-expired",
	Short: "Expire listings past their expiry time and update their matches",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "sync")
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := env.Synchronizer.SweepExpired(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), report)
	},
}

var syncReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Correct match availability that drifted from listing status",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "sync")
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := env.Synchronizer.Reconcile(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), report)
	},
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode output")
}

func init() {
	syncStatusCmd.Flags().StringVar(&syncListing, "listing", "", "listing id")
	syncStatusCmd.Flags().StringVar(&syncStatus, "status", "", "new listing status (active, sold, expired, removed)")
	syncStatusCmd.Flags().StringVar(&syncReason, "reason", "", "reason recorded in the log")

	syncCmd.AddCommand(syncStatusCmd, syncSweepCmd, syncReconcileCmd)
	rootCmd.AddCommand(syncCmd)
}
