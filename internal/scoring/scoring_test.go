package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SyedAaraiz0050/territory-intel/internal/config"
	"github.com/SyedAaraiz0050/territory-intel/internal/model"
)

func testWeights() config.ScoringConfig {
	return config.ScoringConfig{
		WeightMobility: 11,
		WeightSecurity: 4,
		WeightVoIP:     3,
		WeightFleet:    2,
		WeightRating:   5,
		WeightReviews:  5,
		WeightWebsite:  5,
		WeightHours:    5,
		ReviewCap:      500,
	}
}

func strPtr(s string) *string { return &s }
func fPtr(f float64) *float64 { return &f }
func iPtr(i int) *int         { return &i }

func enrichedRecord(id string, reviews int) model.BusinessRecord {
	return model.BusinessRecord{
		ID: id,
		Identity: model.Identity{
			Name:    strPtr("Test Co"),
			Website: strPtr("https://test.example"),
		},
		Signals: model.OperationalSignals{
			Rating:      fPtr(4.5),
			ReviewCount: iPtr(reviews),
			Hours:       strPtr(`{"openNow":true}`),
		},
		Classification: &model.Classification{
			IndustryBucket: "Trades",
			MobilityFit:    4,
			SecurityFit:    2,
			VoIPFit:        3,
			FleetAttach:    true,
			Rationale:      "Field crews.",
		},
	}
}

func TestScore_UnclassifiedExcluded(t *testing.T) {
	engine := New(testWeights())

	rec := enrichedRecord("place-1", 50)
	rec.Classification = nil

	_, ok := engine.Score(&rec)
	assert.False(t, ok)
}

func TestScore_Deterministic(t *testing.T) {
	engine := New(testWeights())
	rec := enrichedRecord("place-1", 50)

	a, ok := engine.Score(&rec)
	require.True(t, ok)
	b, ok := engine.Score(&rec)
	require.True(t, ok)
	assert.Equal(t, a, b)
}

func TestScore_MonotonicInReviewCount(t *testing.T) {
	engine := New(testWeights())

	prev := -1.0
	for _, reviews := range []int{0, 1, 10, 100, 500, 5000} {
		rec := enrichedRecord("place-1", reviews)
		score, ok := engine.Score(&rec)
		require.True(t, ok)
		assert.GreaterOrEqual(t, score, prev, "reviews=%d", reviews)
		prev = score
	}
}

func TestScore_ReviewTermSaturates(t *testing.T) {
	engine := New(testWeights())

	atCap := enrichedRecord("place-1", 500)
	wayOver := enrichedRecord("place-1", 1_000_000)

	a, _ := engine.Score(&atCap)
	b, _ := engine.Score(&wayOver)
	assert.Equal(t, a, b)
}

func TestScore_MissingSignalsContributeNothing(t *testing.T) {
	engine := New(testWeights())

	full := enrichedRecord("place-1", 50)
	bare := full
	bare.Signals = model.OperationalSignals{}
	bare.Identity.Website = nil

	fullScore, _ := engine.Score(&full)
	bareScore, _ := engine.Score(&bare)
	assert.Less(t, bareScore, fullScore)
}

func TestRank_TieBrokenByReviewCount(t *testing.T) {
	engine := New(testWeights())

	// A and B identical except review count inside the saturated range, so
	// their scores tie; C scores lower outright.
	a := enrichedRecord("place-a", 1000)
	b := enrichedRecord("place-b", 600)
	c := enrichedRecord("place-c", 600)
	c.Classification.MobilityFit = 0

	ranked := engine.Rank([]model.BusinessRecord{c, b, a})

	require.Len(t, ranked, 3)
	assert.Equal(t, "place-a", ranked[0].ID)
	assert.Equal(t, "place-b", ranked[1].ID)
	assert.Equal(t, "place-c", ranked[2].ID)
	assert.Greater(t, *ranked[0].TotalScore, *ranked[2].TotalScore)
	assert.Equal(t, *ranked[0].TotalScore, *ranked[1].TotalScore)
}

func TestRank_EqualRecordsOrderedByID(t *testing.T) {
	engine := New(testWeights())

	a := enrichedRecord("place-b", 50)
	b := enrichedRecord("place-a", 50)

	ranked := engine.Rank([]model.BusinessRecord{a, b})
	require.Len(t, ranked, 2)
	assert.Equal(t, "place-a", ranked[0].ID)
	assert.Equal(t, "place-b", ranked[1].ID)
}

func TestRank_DropsUnclassified(t *testing.T) {
	engine := New(testWeights())

	classified := enrichedRecord("place-a", 50)
	pending := enrichedRecord("place-b", 50)
	pending.Classification = nil

	ranked := engine.Rank([]model.BusinessRecord{classified, pending})
	require.Len(t, ranked, 1)
	assert.Equal(t, "place-a", ranked[0].ID)
}
