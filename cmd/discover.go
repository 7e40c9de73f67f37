package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SyedAaraiz0050/territory-intel/internal/discovery"
	"github.com/SyedAaraiz0050/territory-intel/pkg/places"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Sweep the territory search matrix and upsert discovered businesses",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		terr, err := loadTerritory()
		if err != nil {
			return err
		}

		runID, err := st.StartRun(ctx, "discover")
		if err != nil {
			return err
		}

		pc := places.NewClient(cfg.Places.Key,
			places.WithBaseURL(cfg.Places.BaseURL),
			places.WithPageDelay(time.Duration(cfg.Places.PageDelaySecs)*time.Second),
		)
		runner := discovery.NewRunner(st, pc, terr, discovery.Options{
			MaxPages:   cfg.Places.MaxPages,
			RatePerSec: cfg.Places.RatePerSec,
			Retry:      retryPolicy(),
		})

		sum, err := runner.Run(ctx)
		if ferr := st.FinishRun(ctx, runID, sum); ferr != nil {
			zap.L().Warn("finish run", zap.String("run_id", runID), zap.Error(ferr))
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}
