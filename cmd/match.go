package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/market-match/internal/matching"
)

var matchListings []string

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Run matching for one or more listings and print the reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := splitIDs(matchListings)
		if len(ids) == 0 {
			return eris.New("at least one --listing is required")
		}

		ctx := cmd.Context()
		env, err := initEnv(ctx, "match")
		if err != nil {
			return err
		}
		defer env.Close()

		reports, failed := runMatches(ctx, env.Orchestrator, ids, cfg.Matching.BatchConcurrency)

		if err := printJSON(cmd.OutOrStdout(), reports); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d listings failed", failed, len(ids))
		}
		return nil
	},
}

// runMatches processes ids with bounded concurrency. Reports keep the input
// order; a listing that fails has a nil report.
func runMatches(ctx context.Context, proc matching.Processor, ids []string, concurrency int) ([]*matching.Report, int) {
	if concurrency <= 0 {
		concurrency = 1
	}
	reports := make([]*matching.Report, len(ids))
	var (
		mu     sync.Mutex
		failed int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, id := range ids {
		g.Go(func() error {
			r, err := proc.ProcessListingID(gctx, id)
			if err != nil {
				zap.L().Error("match failed", zap.String("listing_id", id), zap.Error(err))
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			reports[i] = r
			return nil
		})
	}
	_ = g.Wait()
	return reports, failed
}

func init() {
	matchCmd.Flags().StringSliceVar(&matchListings, "listing", nil, "listing id(s) to match, comma-separated or repeated")
	rootCmd.AddCommand(matchCmd)
}
