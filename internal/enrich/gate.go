// Package enrich runs the budget-capped enrichment pipeline: homepage
// extraction, then classification through the content-addressed cache.
package enrich

import (
	"context"

	"go.uber.org/zap"

	"github.com/SyedAaraiz0050/territory-intel/internal/store"
)

// WorkPlan is what one enrichment run intends to touch. Both lists inherit
// the store's first_seen-ascending order; the plan only truncates. The
// budget additionally caps paid classifier calls at dispatch time, enforced
// atomically by the runner.
type WorkPlan struct {
	ToExtract  []string
	ToClassify []string
}

// PlanWork asks the store for pending work: ToExtract capped at extractCap,
// ToClassify capped at budget. The gate adds no ordering of its own.
func PlanWork(ctx context.Context, st store.Store, budget, extractCap int) (*WorkPlan, error) {
	toExtract, err := st.QueryReadyForExtraction(ctx, extractCap)
	if err != nil {
		return nil, err
	}
	toClassify, err := st.QueryReadyForClassification(ctx, budget)
	if err != nil {
		return nil, err
	}

	plan := &WorkPlan{ToExtract: toExtract, ToClassify: toClassify}
	zap.L().Info("enrichment work planned",
		zap.Int("to_extract", len(plan.ToExtract)),
		zap.Int("to_classify", len(plan.ToClassify)),
		zap.Int("budget", budget),
		zap.Int("extract_cap", extractCap),
	)
	return plan, nil
}
