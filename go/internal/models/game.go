package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GameSettings holds JSONB configuration for a game's auction rules.
// Defaults match the standard ruleset; operators can tune per game.
type GameSettings struct {
	BidSeconds     int             `json:"bid_seconds"`      // countdown per lot
	TeamCap        int             `json:"team_cap"`         // max roster size
	OverseasCap    int             `json:"overseas_cap"`     // max overseas players per roster
	PerSlotReserve decimal.Decimal `json:"per_slot_reserve"` // credits held back per unfilled slot
	InitialBudget  decimal.Decimal `json:"initial_budget"`   // credits per participant
}

// DefaultGameSettings returns the standard auction ruleset.
func DefaultGameSettings() GameSettings {
	return GameSettings{
		BidSeconds:     60,
		TeamCap:        12,
		OverseasCap:    4,
		PerSlotReserve: decimal.NewFromFloat(0.5),
		InitialBudget:  decimal.NewFromInt(100),
	}
}

// Game represents one auction game: a group of participants bidding over
// a shared pool of lots.
type Game struct {
	ID        uuid.UUID    `json:"id"`
	Name      string       `json:"name"`
	Settings  GameSettings `json:"settings"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
