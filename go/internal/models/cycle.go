package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CycleStatus defines the status of a game's auction cycle.
type CycleStatus string

const (
	CycleStatusIdle      CycleStatus = "IDLE"
	CycleStatusOpen      CycleStatus = "OPEN"
	CycleStatusPaused    CycleStatus = "PAUSED"
	CycleStatusResolving CycleStatus = "RESOLVING"
)

// AuctionCycle is the live auction state for a game's currently (or most
// recently) opened lot. One row per game, created with the game and never
// deleted while the game exists.
//
// Invariants maintained by the engine:
//   - CurrentLotID is set iff Status is OPEN or PAUSED
//   - HighBidderID set implies HighBid > 0
//   - Deadline is set iff Status is OPEN
type AuctionCycle struct {
	GameID             uuid.UUID       `json:"game_id"`
	Status             CycleStatus     `json:"status"`
	CurrentLotID       *uuid.UUID      `json:"current_lot_id,omitempty"`
	Deadline           *time.Time      `json:"deadline,omitempty"`
	PausedRemaining    *time.Duration  `json:"paused_remaining,omitempty"`
	HighBid            decimal.Decimal `json:"high_bid"`
	HighBidderID       *uuid.UUID      `json:"high_bidder_id,omitempty"`
	BiddingLog         []Bid           `json:"bidding_log"`
	LastOutcomeMessage string          `json:"last_outcome_message,omitempty"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// ClearLot resets every lot-scoped field, returning the cycle to idle.
// Called only at resolution.
func (c *AuctionCycle) ClearLot() {
	c.Status = CycleStatusIdle
	c.CurrentLotID = nil
	c.Deadline = nil
	c.PausedRemaining = nil
	c.HighBid = decimal.Zero
	c.HighBidderID = nil
	c.BiddingLog = nil
}
