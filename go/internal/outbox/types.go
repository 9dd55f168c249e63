package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is one outbox row: a broadcast envelope waiting to be relayed to
// the bus. Payload is the full event envelope so consumers can forward it
// to room subscribers unchanged.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	GameID    uuid.UUID       `json:"game_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
}
