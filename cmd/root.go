package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/windsite/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "windsite",
	Short: "Wind turbine siting: exclusion zones and layout validation",
	Long:  "Builds per-class setback exclusion zones from geographic constraint features around a site and validates turbine layouts against those zones and a minimum spacing.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
