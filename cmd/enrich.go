package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SyedAaraiz0050/territory-intel/internal/classify"
	"github.com/SyedAaraiz0050/territory-intel/internal/enrich"
	"github.com/SyedAaraiz0050/territory-intel/internal/homepage"
	"github.com/SyedAaraiz0050/territory-intel/pkg/anthropic"
)

var enrichBudget int

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Extract homepage content and classify pending records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		budget := cfg.Enrich.Budget
		if cmd.Flags().Changed("budget") {
			budget = enrichBudget
		}

		runID, err := st.StartRun(ctx, "enrich")
		if err != nil {
			return err
		}

		plan, err := enrich.PlanWork(ctx, st, budget, cfg.Enrich.ExtractCap)
		if err != nil {
			return err
		}

		fetcher := homepage.NewFetcher(fetchTimeout(), cfg.Enrich.MaxContentChars)
		classifier := classify.NewAnthropic(
			anthropic.NewClient(cfg.Anthropic.Key),
			cfg.Anthropic.Model,
			cfg.Anthropic.MaxTokens,
		)
		runner := enrich.NewRunner(st, fetcher, classifier, enrich.Options{
			Budget:          budget,
			ExtractWorkers:  cfg.Enrich.ExtractWorkers,
			ClassifyWorkers: cfg.Enrich.ClassifyWorkers,
			Retry:           retryPolicy(),
			Model:           cfg.Anthropic.Model,
		})

		sum, err := runner.Run(ctx, plan)
		if ferr := st.FinishRun(ctx, runID, sum); ferr != nil {
			zap.L().Warn("finish run", zap.String("run_id", runID), zap.Error(ferr))
		}
		return err
	},
}

func init() {
	enrichCmd.Flags().IntVar(&enrichBudget, "budget", 0, "max paid classifier calls (default from config)")
	rootCmd.AddCommand(enrichCmd)
}
