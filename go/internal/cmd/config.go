package main

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/draftpit/auctioneer/go/internal/models"
)

// Config is the optional YAML config for engine and sweep tuning. Connection
// settings stay in the environment; this file only carries knobs that are
// safe to commit.
type Config struct {
	Auction struct {
		BidSeconds    int     `yaml:"bid_seconds"`
		TeamCap       int     `yaml:"team_cap"`
		OverseasCap   int     `yaml:"overseas_cap"`
		InitialBudget float64 `yaml:"initial_budget"`
	} `yaml:"auction"`
	Sweep struct {
		IntervalMS int `yaml:"interval_ms"`
		NumWorkers int `yaml:"num_workers"`
	} `yaml:"sweep"`
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// gameDefaults maps the auction block onto the settings used for games
// created without explicit settings. Unset fields keep the standard ruleset.
func (c *Config) gameDefaults() models.GameSettings {
	settings := models.DefaultGameSettings()
	if c == nil {
		return settings
	}
	if c.Auction.BidSeconds > 0 {
		settings.BidSeconds = c.Auction.BidSeconds
	}
	if c.Auction.TeamCap > 0 {
		settings.TeamCap = c.Auction.TeamCap
	}
	if c.Auction.OverseasCap > 0 {
		settings.OverseasCap = c.Auction.OverseasCap
	}
	if c.Auction.InitialBudget > 0 {
		settings.InitialBudget = decimal.NewFromFloat(c.Auction.InitialBudget)
	}
	return settings
}

func (c *Config) sweepInterval() time.Duration {
	if c == nil || c.Sweep.IntervalMS <= 0 {
		return 0
	}
	return time.Duration(c.Sweep.IntervalMS) * time.Millisecond
}

func (c *Config) sweepWorkers() int {
	if c == nil {
		return 0
	}
	return c.Sweep.NumWorkers
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
