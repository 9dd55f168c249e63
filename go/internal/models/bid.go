package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bid is one accepted bid, append-only. Amounts are strictly increasing
// per lot; the admission rules enforce the minimum step.
type Bid struct {
	LotID         uuid.UUID       `json:"lot_id"`
	ParticipantID uuid.UUID       `json:"participant_id"`
	Amount        decimal.Decimal `json:"amount"`
	At            time.Time       `json:"at"`
}
