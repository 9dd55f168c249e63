package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ParticipantSummary is the per-bidder view carried in snapshots and events.
type ParticipantSummary struct {
	ID              uuid.UUID       `json:"id"`
	TeamName        string          `json:"team_name"`
	BudgetRemaining decimal.Decimal `json:"budget_remaining"`
	RosterSize      int             `json:"roster_size"`
	OverseasCount   int             `json:"overseas_count"`
}

// CycleSnapshot is the full, self-contained view of one game's auction
// state. It is what every mutation broadcasts and what a reconnecting
// client fetches to catch up.
type CycleSnapshot struct {
	GameID             uuid.UUID            `json:"game_id"`
	Status             CycleStatus          `json:"status"`
	CurrentLot         *Lot                 `json:"current_lot,omitempty"`
	Deadline           *time.Time           `json:"deadline,omitempty"`
	RemainingSeconds   *int                 `json:"remaining_seconds,omitempty"`
	PausedRemainingSec *int                 `json:"paused_remaining_sec,omitempty"`
	HighBid            decimal.Decimal      `json:"high_bid"`
	HighBidder         *ParticipantSummary  `json:"high_bidder,omitempty"`
	BiddingLog         []Bid                `json:"bidding_log"`
	LastOutcomeMessage string               `json:"last_outcome_message,omitempty"`
	Participants       []ParticipantSummary `json:"participants"`
}
