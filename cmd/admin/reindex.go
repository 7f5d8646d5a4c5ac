package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/inthetow/backend/internal/application/services"
	"github.com/inthetow/backend/internal/bootstrap"
)

func newReindexCmd() *cobra.Command {
	var (
		batchSize int
		interval  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Push every facility into the search index",
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval < 0 {
				return fmt.Errorf("interval must not be negative")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Typesense.Enabled {
				return fmt.Errorf("TYPESENSE_ENABLED must be true to reindex")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			storage, err := bootstrap.OpenStorage(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer storage.Close(context.Background())

			searchRepo := bootstrap.OpenSearch(ctx, cfg)
			if searchRepo == nil {
				return fmt.Errorf("search index unavailable")
			}
			facilities := services.NewFacilityService(storage.Facilities, searchRepo, storage.Reviews, nil, nil)

			for {
				n, err := facilities.Reindex(ctx, batchSize)
				if err != nil {
					log.Error().Err(err).Int("indexed", n).Msg("Reindex failed")
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "indexed %d facilities\n", n)
				}

				if interval == 0 {
					return err
				}
				log.Info().Dur("next_run_in", interval).Msg("Reindex complete")
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(interval):
				}
			}
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 100, "facilities read per page")
	cmd.Flags().DurationVar(&interval, "interval", 0, "repeat interval (e.g. 6h); 0 runs once")
	return cmd
}
