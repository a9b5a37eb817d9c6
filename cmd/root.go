package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/NREL/COMPASS/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "compassdb",
	Short: "Ordinance database builder for COMPASS scraper runs",
	Long:  "Validates the artifacts of a COMPASS scraper run, cross-checks the archived source documents against the run manifest, and commits every derived record to the ordinance database under a single provenance entry.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := c.Validate(); err != nil {
			return err
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
