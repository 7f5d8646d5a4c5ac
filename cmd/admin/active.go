package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/inthetow/backend/internal/adapters/cache"
	"github.com/inthetow/backend/internal/application/services"
	"github.com/inthetow/backend/internal/bootstrap"
	"github.com/inthetow/backend/internal/domain/entities"
)

func newActiveCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "active",
		Short: "Print the most active facilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			redisClient := bootstrap.OpenRedis(ctx, cfg)
			if redisClient == nil {
				return fmt.Errorf("redis is required for the activity leaderboard")
			}
			defer redisClient.Close()

			storage, err := bootstrap.OpenStorage(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer storage.Close(context.Background())

			facilities := services.NewFacilityService(storage.Facilities, nil, storage.Reviews, cache.NewRedisActivityTracker(redisClient), nil)
			active, err := facilities.Active(ctx, limit)
			if err != nil {
				return err
			}
			return printActive(cmd.OutOrStdout(), active)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", services.DefaultActiveFacilities, "number of facilities to show")
	return cmd
}

func printActive(w io.Writer, active []*entities.ActiveFacility) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tACTIVITY\tSCORE\tNAME\tCITY")
	for i, a := range active {
		f := a.Facility
		fmt.Fprintf(tw, "%d\t%.0f\t%.1f\t%s\t%s, %s\n", i+1, a.Activity, f.InTheTowScore, f.Name, f.Address.City, f.Address.State)
	}
	return tw.Flush()
}
