package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 200, cfg.Enrich.Budget)
	assert.Equal(t, 500, cfg.Enrich.ExtractCap)
	assert.Equal(t, 500, cfg.Scoring.ReviewCap)
	assert.Equal(t, "csv", cfg.Export.Format)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestValidate_WeightOrdering(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	// Default weights respect mobility > security > voip > fleet.
	require.NoError(t, cfg.Validate())

	// Breaking the strict ordering is a configuration error.
	cfg.Scoring.WeightFleet = cfg.Scoring.WeightMobility + 1
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsBadEnums(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Store.Driver = "oracle"
	assert.Error(t, cfg.Validate())

	cfg.Store.Driver = "sqlite"
	cfg.Export.Format = "pdf"
	assert.Error(t, cfg.Validate())
}

func TestValidate_ReviewCap(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Scoring.ReviewCap = 0
	assert.Error(t, cfg.Validate())
}
