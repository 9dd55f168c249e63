package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/draftpit/auctioneer/go/internal/auction"
)

// ClientMessage is an inbound frame from a room client. Only bid frames are
// acted on; anything else is logged and dropped.
type ClientMessage struct {
	Type   string          `json:"type"`
	LotID  uuid.UUID       `json:"lot_id"`
	Amount decimal.Decimal `json:"amount"`
}

// ErrorMessage is sent back to the offending connection only, never to the
// room. A rejected bid is a private matter.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	clientMessageTypeBid = "bid"
	errorMessageType     = "error"

	bidTimeout = 5 * time.Second
)

// handleClientMessage processes messages received from the client.
func (c *Connection) handleClientMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.sendError("BAD_MESSAGE", "message is not valid JSON")
		return
	}

	switch msg.Type {
	case clientMessageTypeBid:
		c.handleBid(msg)
	default:
		log.Debug().
			Str("connection_id", c.ID).
			Str("user_id", c.UserID).
			Str("message_type", msg.Type).
			Msg("ignoring unknown client message")
	}
}

func (c *Connection) handleBid(msg ClientMessage) {
	if c.Manager.bidder == nil {
		c.sendError("BIDS_NOT_ACCEPTED", "this gateway does not accept bids")
		return
	}
	if c.ParticipantID == uuid.Nil {
		c.sendError("NOT_A_PARTICIPANT", "spectators cannot bid")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), bidTimeout)
	defer cancel()

	_, err := c.Manager.bidder.PlaceBid(ctx, c.GameID, c.ParticipantID, msg.LotID, msg.Amount)
	if err != nil {
		var aerr *auction.Error
		if errors.As(err, &aerr) {
			c.sendError(string(aerr.Code), aerr.Message)
			return
		}
		log.Error().
			Err(err).
			Str("connection_id", c.ID).
			Str("game_id", c.GameID.String()).
			Msg("bid failed")
		c.sendError("INTERNAL", "bid could not be processed")
		return
	}
	// Acceptance reaches the client through the room broadcast.
}

func (c *Connection) sendError(code, message string) {
	data, err := json.Marshal(ErrorMessage{Type: errorMessageType, Code: code, Message: message})
	if err != nil {
		return
	}
	select {
	case c.Send <- data:
	default:
		log.Warn().Str("connection_id", c.ID).Msg("send buffer full, dropping error reply")
	}
}
