package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftpit/auctioneer/go/internal/models"
)

func TestGameDefaults_FromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
auction:
  bid_seconds: 30
  team_cap: 8
  overseas_cap: 2
  initial_budget: 50
sweep:
  interval_ms: 250
  num_workers: 4
`), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	settings := cfg.gameDefaults()
	assert.Equal(t, 30, settings.BidSeconds)
	assert.Equal(t, 8, settings.TeamCap)
	assert.Equal(t, 2, settings.OverseasCap)
	assert.True(t, settings.InitialBudget.Equal(decimal.NewFromInt(50)))
	assert.True(t, settings.PerSlotReserve.Equal(decimal.NewFromFloat(0.5)))

	assert.Equal(t, 250, cfg.Sweep.IntervalMS)
	assert.Equal(t, 4, cfg.Sweep.NumWorkers)
}

func TestGameDefaults_UnsetFallsBack(t *testing.T) {
	var nilCfg *Config
	assert.Equal(t, models.DefaultGameSettings(), nilCfg.gameDefaults())

	partial := &Config{}
	partial.Auction.TeamCap = 10
	settings := partial.gameDefaults()
	assert.Equal(t, 10, settings.TeamCap)
	assert.Equal(t, 60, settings.BidSeconds)
}
