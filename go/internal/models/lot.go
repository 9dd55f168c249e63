package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LotStatus defines the status of a lot.
type LotStatus string

const (
	LotStatusPending LotStatus = "PENDING"
	LotStatusSold    LotStatus = "SOLD"
	LotStatusSkipped LotStatus = "SKIPPED"
)

// Lot is a single draftable player up for auction in one game. Created at
// roster-upload time, mutated exactly once at resolution, then immutable
// apart from re-ordering while still pending.
type Lot struct {
	ID           uuid.UUID        `json:"id"`
	GameID       uuid.UUID        `json:"game_id"`
	PlayerName   string           `json:"player_name"`
	Role         string           `json:"role"`     // batter, bowler, all-rounder, keeper
	TeamTag      string           `json:"team_tag"` // real-world team abbreviation
	Overseas     bool             `json:"overseas"`
	AuctionOrder int              `json:"auction_order"`
	Status       LotStatus        `json:"status"`
	WinnerID     *uuid.UUID       `json:"winner_id,omitempty"`
	PricePaid    *decimal.Decimal `json:"price_paid,omitempty"`
	AssignedOrder *int            `json:"assigned_order,omitempty"` // sequence among sold lots
}

// Terminal reports whether the lot has been resolved.
func (l *Lot) Terminal() bool {
	return l.Status == LotStatusSold || l.Status == LotStatusSkipped
}
