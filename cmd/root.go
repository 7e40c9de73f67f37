package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SyedAaraiz0050/territory-intel/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "territory-intel",
	Short: "Territory business intelligence pipeline",
	Long:  "Discovers local businesses in a territory, enriches them with website content and AI classification, and produces a ranked call list.",
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
