package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftpit/auctioneer/go/internal/models"
)

func TestNewAndParsePayload(t *testing.T) {
	gameID := uuid.New()
	winnerID := uuid.New()
	ts := time.Now().UTC()

	ev, err := New(gameID, EventTypePlayerPicked, ts, PlayerPickedPayload{
		Lot: models.Lot{ID: uuid.New(), GameID: gameID, PlayerName: "V Sharma", Status: models.LotStatusSold},
		Winner: models.ParticipantSummary{
			ID:       winnerID,
			TeamName: "Thunder",
		},
		Price:         decimal.NewFromFloat(12.5),
		AssignedOrder: 3,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, gameID.String(), ev.GameID)
	assert.Equal(t, ts, ev.Timestamp)

	payload, err := ParsePayload(ev)
	require.NoError(t, err)

	picked, ok := payload.(PlayerPickedPayload)
	require.True(t, ok)
	assert.Equal(t, "V Sharma", picked.Lot.PlayerName)
	assert.Equal(t, winnerID, picked.Winner.ID)
	assert.True(t, picked.Price.Equal(decimal.NewFromFloat(12.5)))
	assert.Equal(t, 3, picked.AssignedOrder)
}

func TestParsePayload_UnknownType(t *testing.T) {
	ev, err := New(uuid.New(), EventType("mystery"), time.Now(), map[string]string{})
	require.NoError(t, err)

	_, err = ParsePayload(ev)
	assert.Error(t, err)
}
