package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/draftpit/auctioneer/go/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType tags an outbound auction event. The set is closed: every event
// on the wire is one of these variants with a fully-typed payload.
type EventType string

const (
	EventTypeAuctionUpdate     EventType = "auction-update"
	EventTypeBidPlaced         EventType = "bid-placed"
	EventTypePlayerPicked      EventType = "player-picked"
	EventTypePlayerSkipped     EventType = "player-skipped"
	EventTypeParticipantJoined EventType = "participant-joined"
	EventTypeParticipantLeft   EventType = "participant-left"
)

// Event is the envelope broadcast to a game's room and relayed over the bus.
type Event struct {
	ID        string          `json:"id"`
	GameID    string          `json:"game_id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// AuctionUpdatePayload accompanies every cycle mutation.
type AuctionUpdatePayload struct {
	Cycle *models.CycleSnapshot `json:"cycle"`
}

// BidPlacedPayload carries the accepted bid plus the new cycle state.
type BidPlacedPayload struct {
	Cycle *models.CycleSnapshot `json:"cycle"`
	Bid   models.Bid            `json:"bid"`
}

// PlayerPickedPayload announces a sold lot with full winner detail.
type PlayerPickedPayload struct {
	Lot             models.Lot                `json:"lot"`
	Winner          models.ParticipantSummary `json:"winner"`
	Price           decimal.Decimal           `json:"price"`
	AssignedOrder   int                       `json:"assigned_order"`
	BudgetRemaining decimal.Decimal           `json:"budget_remaining"`
}

// PlayerSkippedPayload announces a lot that closed without bids.
type PlayerSkippedPayload struct {
	Lot     models.Lot `json:"lot"`
	Message string     `json:"message"`
}

// ParticipantJoinedPayload is room presence on connect.
type ParticipantJoinedPayload struct {
	UserID   string    `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// ParticipantLeftPayload is room presence on disconnect.
type ParticipantLeftPayload struct {
	UserID string    `json:"user_id"`
	LeftAt time.Time `json:"left_at"`
}

// New wraps a payload in an event envelope.
func New(gameID uuid.UUID, typ EventType, ts time.Time, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", typ, err)
	}
	return &Event{
		ID:        uuid.New().String(),
		GameID:    gameID.String(),
		Type:      typ,
		Timestamp: ts,
		Data:      data,
	}, nil
}

// ParsePayload decodes an event's data into its typed payload.
func ParsePayload(event *Event) (any, error) {
	switch event.Type {
	case EventTypeAuctionUpdate:
		var payload AuctionUpdatePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeBidPlaced:
		var payload BidPlacedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypePlayerPicked:
		var payload PlayerPickedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypePlayerSkipped:
		var payload PlayerSkippedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeParticipantJoined:
		var payload ParticipantJoinedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeParticipantLeft:
		var payload ParticipantLeftPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, fmt.Errorf("unknown event type %q", event.Type)
	}
}
