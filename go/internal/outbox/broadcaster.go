package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/draftpit/auctioneer/go/internal/auction"
	"github.com/draftpit/auctioneer/go/internal/auction/events"
)

// Broadcaster writes each engine event to the outbox table so the listener
// relays it to the bus. Insert failures are logged and dropped; the engine
// never blocks or retries on delivery (clients recover via snapshot).
type Broadcaster struct {
	repo    *Repository
	timeout time.Duration
}

func NewBroadcaster(repo *Repository) *Broadcaster {
	return &Broadcaster{repo: repo, timeout: 5 * time.Second}
}

var _ auction.Broadcaster = (*Broadcaster)(nil)

func (b *Broadcaster) Broadcast(gameID uuid.UUID, event *events.Event) {
	id, err := uuid.Parse(event.ID)
	if err != nil {
		log.Error().Err(err).Str("event_id", event.ID).Msg("invalid event ID, dropping")
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event_id", event.ID).Msg("failed to marshal event, dropping")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	row := Event{
		ID:        id,
		GameID:    gameID,
		EventType: string(event.Type),
		Payload:   payload,
	}
	if err := b.repo.InsertEvent(ctx, row); err != nil {
		log.Error().
			Err(err).
			Str("game_id", gameID.String()).
			Str("event_type", string(event.Type)).
			Msg("failed to insert outbox event, dropping")
	}
}
