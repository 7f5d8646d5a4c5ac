package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/inthetow/backend/internal/application/services"
	"github.com/inthetow/backend/internal/bootstrap"
	"github.com/inthetow/backend/internal/domain/entities"
)

func newReplayCmd() *cobra.Command {
	var (
		facilityID string
		batchSize  int
	)

	cmd := &cobra.Command{
		Use:   "replay-aggregates",
		Short: "Rebuild facility aggregates by replaying stored reviews in creation order",
		Long: "Resets each facility's aggregates and folds its reviews back in, oldest first,\n" +
			"through the same updater the API uses. Run it while the API is stopped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			storage, err := bootstrap.OpenStorage(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer storage.Close(context.Background())

			aggregates := services.NewAggregateService(storage.Facilities, storage.Reviews, bootstrap.OpenSearch(ctx, cfg), nil, services.AggregateConfig{
				MaxAttempts:   cfg.Scoring.MaxUpdateAttempts,
				RecentRatings: cfg.Scoring.RecentRatings,
			})

			if facilityID != "" {
				facility, err := aggregates.Rebuild(ctx, facilityID)
				if err != nil {
					return err
				}
				printFacilityScore(cmd.OutOrStdout(), facility)
				return nil
			}

			n, err := aggregates.RebuildAll(ctx, batchSize)
			fmt.Fprintf(cmd.OutOrStdout(), "rebuilt %d facilities\n", n)
			return err
		},
	}

	cmd.Flags().StringVar(&facilityID, "facility", "", "rebuild only this facility")
	cmd.Flags().IntVar(&batchSize, "batch-size", 100, "facilities read per page")
	return cmd
}

func printFacilityScore(w io.Writer, f *entities.Facility) {
	fmt.Fprintf(w, "%s\t%s\treviews=%d\tavg=%.2f\tscore=%.1f\n", f.ID, f.Name, f.NumRatings, f.AvgRating, f.InTheTowScore)
}
