// Command admin runs maintenance tasks against the InTheTow stores.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/inthetow/backend/internal/bootstrap"
	"github.com/inthetow/backend/internal/infrastructure/observability"
	"github.com/inthetow/backend/pkg/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Maintenance tasks for the InTheTow backend",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(newReindexCmd())
	root.AddCommand(newReplayCmd())
	root.AddCommand(newActiveCmd())
	root.AddCommand(newSeedCmd())
	return root
}

// loadConfig loads configuration and sets up console logging for a command run
func loadConfig() (*config.Config, error) {
	cfg, _, err := bootstrap.LoadConfig(context.Background())
	if err != nil {
		return nil, err
	}
	observability.InitLogger("inthetow-admin", cfg.Env, observability.LoggerOptions{File: cfg.Log.File})
	return cfg, nil
}
