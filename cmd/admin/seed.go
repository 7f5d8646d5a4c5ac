package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/inthetow/backend/internal/application/services"
	"github.com/inthetow/backend/internal/bootstrap"
)

// sampleFacilities is loaded when no seed file is given
var sampleFacilities = []services.CreateFacilityInput{
	{Name: "Sierra Cold Storage", Street: "1400 Lockheed Way", City: "Reno", State: "NV", ZipCode: "89502"},
	{Name: "Great Basin Distribution", Street: "2100 Glendale Ave", City: "Sparks", State: "NV", ZipCode: "89431"},
	{Name: "Valley Produce Terminal", Street: "455 Airport Rd", City: "Fresno", State: "CA", ZipCode: "93727"},
	{Name: "Inland Empire DC 4", Street: "13500 Slover Ave", City: "Fontana", State: "CA", ZipCode: "92337"},
	{Name: "Gateway Grocery Warehouse", Street: "800 Riverfront Dr", City: "Salt Lake City", State: "UT", ZipCode: "84104"},
}

func newSeedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create facilities from a JSON file, or a small sample set",
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs := sampleFacilities
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				if inputs, err = readSeedFile(f); err != nil {
					return err
				}
			}

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

			facilities := services.NewFacilityService(storage.Facilities, bootstrap.OpenSearch(ctx, cfg), storage.Reviews, nil, nil)

			created := 0
			for _, in := range inputs {
				facility, err := facilities.Create(ctx, in)
				if err != nil {
					log.Error().Err(err).Str("name", in.Name).Msg("Failed to create facility")
					continue
				}
				created++
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", facility.ID, facility.Name)
			}
			if created < len(inputs) {
				return fmt.Errorf("created %d of %d facilities", created, len(inputs))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "JSON array of facilities to create")
	return cmd
}

func readSeedFile(r io.Reader) ([]services.CreateFacilityInput, error) {
	var inputs []services.CreateFacilityInput
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&inputs); err != nil {
		return nil, fmt.Errorf("invalid seed file: %w", err)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("seed file has no facilities")
	}
	return inputs, nil
}
