package gateway

import (
	"github.com/google/uuid"

	"github.com/draftpit/auctioneer/go/internal/auction"
	"github.com/draftpit/auctioneer/go/internal/auction/events"
)

// LocalBroadcaster delivers engine events straight to this process's rooms.
// Single-node deployments use it alone; multi-node deployments pair it with
// the outbox broadcaster so other gateways hear about the event too.
type LocalBroadcaster struct {
	cm *ConnectionManager
}

func NewLocalBroadcaster(cm *ConnectionManager) *LocalBroadcaster {
	return &LocalBroadcaster{cm: cm}
}

var _ auction.Broadcaster = (*LocalBroadcaster)(nil)

func (b *LocalBroadcaster) Broadcast(gameID uuid.UUID, event *events.Event) {
	b.cm.BroadcastToGame(gameID, event)
}
