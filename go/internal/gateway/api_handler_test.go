package gateway_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftpit/auctioneer/go/internal/auction"
	"github.com/draftpit/auctioneer/go/internal/auction/store/memory"
	"github.com/draftpit/auctioneer/go/internal/gateway"
	"github.com/draftpit/auctioneer/go/internal/models"
)

func newTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	return newTestServerWithDefaults(t, models.DefaultGameSettings())
}

func newTestServerWithDefaults(t *testing.T, defaults models.GameSettings) (*httptest.Server, *memory.Store) {
	t.Helper()

	store := memory.New()
	engine := auction.New(store, auction.NopBroadcaster{})

	mux := http.NewServeMux()
	gateway.NewAPIHandler(engine, store, defaults).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, store
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

type createdGame struct {
	Game         models.Game          `json:"game"`
	Participants []models.Participant `json:"participants"`
	Lots         []models.Lot         `json:"lots"`
}

func createGame(t *testing.T, srv *httptest.Server) createdGame {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/games", map[string]any{
		"name": "friday night",
		"participants": []map[string]string{
			{"user_id": "ana", "team_name": "Thunder"},
			{"user_id": "bo", "team_name": "Strikers"},
		},
		"lots": []map[string]any{
			{"player_name": "V Sharma", "role": "batter", "team_tag": "MUM"},
			{"player_name": "T de Kock", "role": "keeper", "team_tag": "CHE", "overseas": true},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[createdGame](t, resp)
}

func TestAPI_CreateAndRunLot(t *testing.T) {
	srv, _ := newTestServer(t)
	game := createGame(t, srv)
	require.Len(t, game.Lots, 2)

	// User IDs are opaque strings from the caller and come back verbatim.
	require.Len(t, game.Participants, 2)
	assert.Equal(t, "ana", game.Participants[0].UserID)
	assert.Equal(t, "bo", game.Participants[1].UserID)

	base := fmt.Sprintf("%s/api/games/%s", srv.URL, game.Game.ID)

	// State starts idle.
	resp, err := http.Get(base + "/state")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state := decode[models.CycleSnapshot](t, resp)
	assert.Equal(t, models.CycleStatusIdle, state.Status)

	// Put the first lot on the block.
	resp = postJSON(t, fmt.Sprintf("%s/lots/%s/open", base, game.Lots[0].ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state = decode[models.CycleSnapshot](t, resp)
	assert.Equal(t, models.CycleStatusOpen, state.Status)
	require.NotNil(t, state.RemainingSeconds)
	assert.InDelta(t, 60, *state.RemainingSeconds, 1)

	// Bid, then close.
	resp = postJSON(t, base+"/bids", map[string]any{
		"participant_id": game.Participants[0].ID,
		"lot_id":         game.Lots[0].ID,
		"amount":         "2.5",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state = decode[models.CycleSnapshot](t, resp)
	assert.Equal(t, "2.5", state.HighBid.String())

	resp = postJSON(t, base+"/close", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(base + "/state")
	require.NoError(t, err)
	state = decode[models.CycleSnapshot](t, resp)
	assert.Equal(t, models.CycleStatusIdle, state.Status)
	assert.Contains(t, state.LastOutcomeMessage, "V Sharma")
}

func TestAPI_RefusalsMapToStatusCodes(t *testing.T) {
	srv, _ := newTestServer(t)
	game := createGame(t, srv)
	base := fmt.Sprintf("%s/api/games/%s", srv.URL, game.Game.ID)

	// Bidding with no open lot is a conflict, not a server error.
	resp := postJSON(t, base+"/bids", map[string]any{
		"participant_id": game.Participants[0].ID,
		"lot_id":         game.Lots[0].ID,
		"amount":         "1",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, string(auction.CodeNoActiveLot), body["code"])

	// Opening an unknown lot is a 404.
	resp = postJSON(t, fmt.Sprintf("%s/lots/%s/open", base, uuid.New()), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Undercutting the high bid reports the admission code.
	resp = postJSON(t, fmt.Sprintf("%s/lots/%s/open", base, game.Lots[0].ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, base+"/bids", map[string]any{
		"participant_id": game.Participants[0].ID,
		"lot_id":         game.Lots[0].ID,
		"amount":         "0.4",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body = decode[map[string]string](t, resp)
	assert.Equal(t, string(auction.CodeBelowMinIncrement), body["code"])

	// Unknown game id on state.
	resp, err := http.Get(fmt.Sprintf("%s/api/games/%s/state", srv.URL, uuid.New()))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_Reorder(t *testing.T) {
	srv, store := newTestServer(t)
	game := createGame(t, srv)
	base := fmt.Sprintf("%s/api/games/%s", srv.URL, game.Game.ID)

	data, err := json.Marshal(map[string]any{
		"lot_ids": []uuid.UUID{game.Lots[1].ID, game.Lots[0].ID},
	})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPut, base+"/lots/order", bytes.NewReader(data))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	lots, err := store.LotsByGame(req.Context(), game.Game.ID)
	require.NoError(t, err)
	assert.Equal(t, "T de Kock", lots[0].PlayerName)
}

func TestAPI_CreateGameUsesConfiguredDefaults(t *testing.T) {
	defaults := models.GameSettings{
		BidSeconds:     30,
		TeamCap:        8,
		OverseasCap:    2,
		PerSlotReserve: decimal.NewFromFloat(0.5),
		InitialBudget:  decimal.NewFromInt(50),
	}
	srv, _ := newTestServerWithDefaults(t, defaults)
	game := createGame(t, srv)

	assert.Equal(t, 30, game.Game.Settings.BidSeconds)
	assert.Equal(t, 8, game.Game.Settings.TeamCap)
	for _, p := range game.Participants {
		assert.True(t, p.BudgetRemaining.Equal(decimal.NewFromInt(50)),
			"budget %s", p.BudgetRemaining)
	}

	// Explicit settings on the request still win over the configured ones.
	resp := postJSON(t, srv.URL+"/api/games", map[string]any{
		"name":     "custom",
		"settings": models.DefaultGameSettings(),
		"participants": []map[string]string{
			{"user_id": "cy", "team_name": "Royals"},
		},
		"lots": []map[string]any{
			{"player_name": "K Rahane", "role": "batter"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	custom := decode[createdGame](t, resp)
	assert.Equal(t, 60, custom.Game.Settings.BidSeconds)
	assert.True(t, custom.Participants[0].BudgetRemaining.Equal(decimal.NewFromInt(100)))
}

func TestAPI_CreateGameValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/games", map[string]any{"name": "empty"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}
