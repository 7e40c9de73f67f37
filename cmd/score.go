package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SyedAaraiz0050/territory-intel/internal/scoring"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Recompute and persist scores for all enriched records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		records, err := st.AllEnriched(ctx)
		if err != nil {
			return err
		}

		engine := scoring.New(cfg.Scoring)
		ranked := engine.Rank(records)
		for _, rec := range ranked {
			if err := st.UpdateScore(ctx, rec.ID, *rec.TotalScore); err != nil {
				return err
			}
		}

		zap.L().Info("scores updated", zap.Int("records", len(ranked)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)
}
