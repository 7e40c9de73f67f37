package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SyedAaraiz0050/territory-intel/internal/classify"
	"github.com/SyedAaraiz0050/territory-intel/internal/discovery"
	"github.com/SyedAaraiz0050/territory-intel/internal/enrich"
	"github.com/SyedAaraiz0050/territory-intel/internal/export"
	"github.com/SyedAaraiz0050/territory-intel/internal/homepage"
	"github.com/SyedAaraiz0050/territory-intel/internal/scoring"
	"github.com/SyedAaraiz0050/territory-intel/pkg/anthropic"
	"github.com/SyedAaraiz0050/territory-intel/pkg/places"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Full pipeline: discover, enrich, score, export",
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

		runID, err := st.StartRun(ctx, "run")
		if err != nil {
			return err
		}

		pc := places.NewClient(cfg.Places.Key,
			places.WithBaseURL(cfg.Places.BaseURL),
			places.WithPageDelay(time.Duration(cfg.Places.PageDelaySecs)*time.Second),
		)
		discoverer := discovery.NewRunner(st, pc, terr, discovery.Options{
			MaxPages:   cfg.Places.MaxPages,
			RatePerSec: cfg.Places.RatePerSec,
			Retry:      retryPolicy(),
		})
		discoverSum, err := discoverer.Run(ctx)
		if err != nil {
			return err
		}

		plan, err := enrich.PlanWork(ctx, st, cfg.Enrich.Budget, cfg.Enrich.ExtractCap)
		if err != nil {
			return err
		}
		fetcher := homepage.NewFetcher(fetchTimeout(), cfg.Enrich.MaxContentChars)
		classifier := classify.NewAnthropic(
			anthropic.NewClient(cfg.Anthropic.Key),
			cfg.Anthropic.Model,
			cfg.Anthropic.MaxTokens,
		)
		enricher := enrich.NewRunner(st, fetcher, classifier, enrich.Options{
			Budget:          cfg.Enrich.Budget,
			ExtractWorkers:  cfg.Enrich.ExtractWorkers,
			ClassifyWorkers: cfg.Enrich.ClassifyWorkers,
			Retry:           retryPolicy(),
			Model:           cfg.Anthropic.Model,
		})
		enrichSum, err := enricher.Run(ctx, plan)
		if err != nil {
			return err
		}

		records, err := st.AllEnriched(ctx)
		if err != nil {
			return err
		}
		ranked := scoring.New(cfg.Scoring).Rank(records)
		for _, rec := range ranked {
			if err := st.UpdateScore(ctx, rec.ID, *rec.TotalScore); err != nil {
				return err
			}
		}

		rows := export.Rows(ranked)
		if err := export.WriteFile(cfg.Export.Path, cfg.Export.Format, rows); err != nil {
			return err
		}

		summary := map[string]any{
			"discovery":  discoverSum,
			"enrichment": enrichSum,
			"scored":     len(ranked),
			"exported":   len(rows),
		}
		if err := st.FinishRun(ctx, runID, summary); err != nil {
			zap.L().Warn("finish run", zap.String("run_id", runID), zap.Error(err))
		}

		zap.L().Info("pipeline run complete",
			zap.String("run_id", runID),
			zap.Int("scored", len(ranked)),
			zap.Int("exported", len(rows)),
			zap.String("export_path", cfg.Export.Path),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
