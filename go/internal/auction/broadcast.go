package auction

import (
	"github.com/draftpit/auctioneer/go/internal/auction/events"
	"github.com/google/uuid"
)

// Broadcaster fans an event out to every subscriber of a game's room.
// Delivery is fire-and-forget: the engine never retries a resolution to
// compensate for a lost broadcast; clients catch up via Snapshot.
type Broadcaster interface {
	Broadcast(gameID uuid.UUID, event *events.Event)
}

// Fanout broadcasts to several sinks, e.g. the local websocket rooms plus
// the bus-backed outbox.
type Fanout []Broadcaster

func (f Fanout) Broadcast(gameID uuid.UUID, event *events.Event) {
	for _, b := range f {
		b.Broadcast(gameID, event)
	}
}

// NopBroadcaster discards events.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(uuid.UUID, *events.Event) {}
