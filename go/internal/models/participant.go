package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Participant is a bidder registered within one game. UserID is the opaque
// external identity the caller supplied at seeding; it is never parsed.
// BudgetRemaining is decremented only at resolution, never by bid intake.
type Participant struct {
	ID              uuid.UUID       `json:"id"`
	GameID          uuid.UUID       `json:"game_id"`
	UserID          string          `json:"user_id"`
	TeamName        string          `json:"team_name"`
	BudgetRemaining decimal.Decimal `json:"budget_remaining"`
}
