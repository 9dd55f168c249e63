package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/draftpit/auctioneer/go/internal/auction"
	"github.com/draftpit/auctioneer/go/internal/models"
)

// Engine is what the HTTP API needs from the auction engine.
type Engine interface {
	OpenLot(ctx context.Context, gameID, lotID uuid.UUID) (*models.CycleSnapshot, error)
	PlaceBid(ctx context.Context, gameID, participantID, lotID uuid.UUID, amount decimal.Decimal) (*models.CycleSnapshot, error)
	Pause(ctx context.Context, gameID uuid.UUID) (*models.CycleSnapshot, error)
	Resume(ctx context.Context, gameID uuid.UUID) (*models.CycleSnapshot, error)
	Extend(ctx context.Context, gameID uuid.UUID, d time.Duration) (*models.CycleSnapshot, error)
	SkipNow(ctx context.Context, gameID uuid.UUID) (*models.CycleSnapshot, error)
	CloseNow(ctx context.Context, gameID uuid.UUID) (*auction.Outcome, error)
	Snapshot(ctx context.Context, gameID uuid.UUID) (*models.CycleSnapshot, error)
	ReorderPending(ctx context.Context, gameID uuid.UUID, ordered []uuid.UUID) error
}

// GameSeeder is what the API needs from the store to create games.
type GameSeeder interface {
	CreateGame(ctx context.Context, game *models.Game, participants []models.Participant, lots []models.Lot) error
}

// APIHandler exposes the auction control surface over JSON HTTP. Bids also
// arrive here for clients that prefer REST over the WebSocket frame.
type APIHandler struct {
	engine   Engine
	seeder   GameSeeder
	defaults models.GameSettings
}

// NewAPIHandler builds the handler. defaults are the game settings applied
// when a create request carries none; callers usually pass the operator's
// configured ruleset.
func NewAPIHandler(engine Engine, seeder GameSeeder, defaults models.GameSettings) *APIHandler {
	return &APIHandler{engine: engine, seeder: seeder, defaults: defaults}
}

type bidRequest struct {
	ParticipantID uuid.UUID       `json:"participant_id"`
	LotID         uuid.UUID       `json:"lot_id"`
	Amount        decimal.Decimal `json:"amount"`
}

type extendRequest struct {
	Seconds int `json:"seconds"`
}

type reorderRequest struct {
	LotIDs []uuid.UUID `json:"lot_ids"`
}

type createGameRequest struct {
	Name         string                `json:"name"`
	Settings     *models.GameSettings  `json:"settings,omitempty"`
	Participants []participantSeed     `json:"participants"`
	Lots         []lotSeed             `json:"lots"`
}

type participantSeed struct {
	UserID   string `json:"user_id"`
	TeamName string `json:"team_name"`
}

type lotSeed struct {
	PlayerName string `json:"player_name"`
	Role       string `json:"role"`
	TeamTag    string `json:"team_tag"`
	Overseas   bool   `json:"overseas"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RegisterRoutes wires the control surface onto a mux.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/games", h.handleCreateGame)
	mux.HandleFunc("GET /api/games/{id}/state", h.handleState)
	mux.HandleFunc("POST /api/games/{id}/lots/{lotID}/open", h.handleOpenLot)
	mux.HandleFunc("POST /api/games/{id}/bids", h.handleBid)
	mux.HandleFunc("POST /api/games/{id}/pause", h.handlePause)
	mux.HandleFunc("POST /api/games/{id}/resume", h.handleResume)
	mux.HandleFunc("POST /api/games/{id}/extend", h.handleExtend)
	mux.HandleFunc("POST /api/games/{id}/skip", h.handleSkip)
	mux.HandleFunc("POST /api/games/{id}/close", h.handleClose)
	mux.HandleFunc("PUT /api/games/{id}/lots/order", h.handleReorder)
}

func (h *APIHandler) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if len(req.Participants) == 0 || len(req.Lots) == 0 {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "participants and lots are required")
		return
	}

	settings := h.defaults
	if req.Settings != nil {
		settings = *req.Settings
	}

	game := &models.Game{
		ID:        uuid.New(),
		Name:      req.Name,
		Settings:  settings,
		CreatedAt: time.Now().UTC(),
	}

	participants := make([]models.Participant, len(req.Participants))
	for i, p := range req.Participants {
		participants[i] = models.Participant{
			ID:              uuid.New(),
			GameID:          game.ID,
			UserID:          p.UserID,
			TeamName:        p.TeamName,
			BudgetRemaining: settings.InitialBudget,
		}
	}

	lots := make([]models.Lot, len(req.Lots))
	for i, l := range req.Lots {
		lots[i] = models.Lot{
			ID:           uuid.New(),
			GameID:       game.ID,
			PlayerName:   l.PlayerName,
			Role:         l.Role,
			TeamTag:      l.TeamTag,
			Overseas:     l.Overseas,
			AuctionOrder: i + 1,
			Status:       models.LotStatusPending,
		}
	}

	if err := h.seeder.CreateGame(r.Context(), game, participants, lots); err != nil {
		log.Error().Err(err).Msg("failed to create game")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to create game")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"game":         game,
		"participants": participants,
		"lots":         lots,
	})
}

func (h *APIHandler) handleState(w http.ResponseWriter, r *http.Request) {
	gameID, ok := pathGameID(w, r)
	if !ok {
		return
	}
	snap, err := h.engine.Snapshot(r.Context(), gameID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, snap)
}

func (h *APIHandler) handleOpenLot(w http.ResponseWriter, r *http.Request) {
	gameID, ok := pathGameID(w, r)
	if !ok {
		return
	}
	lotID, err := uuid.Parse(r.PathValue("lotID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid lot id")
		return
	}
	snap, err := h.engine.OpenLot(r.Context(), gameID, lotID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, snap)
}

func (h *APIHandler) handleBid(w http.ResponseWriter, r *http.Request) {
	gameID, ok := pathGameID(w, r)
	if !ok {
		return
	}
	var req bidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	snap, err := h.engine.PlaceBid(r.Context(), gameID, req.ParticipantID, req.LotID, req.Amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, snap)
}

func (h *APIHandler) handlePause(w http.ResponseWriter, r *http.Request) {
	h.cycleOp(w, r, h.engine.Pause)
}

func (h *APIHandler) handleResume(w http.ResponseWriter, r *http.Request) {
	h.cycleOp(w, r, h.engine.Resume)
}

func (h *APIHandler) handleSkip(w http.ResponseWriter, r *http.Request) {
	h.cycleOp(w, r, h.engine.SkipNow)
}

func (h *APIHandler) cycleOp(w http.ResponseWriter, r *http.Request, op func(context.Context, uuid.UUID) (*models.CycleSnapshot, error)) {
	gameID, ok := pathGameID(w, r)
	if !ok {
		return
	}
	snap, err := op(r.Context(), gameID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, snap)
}

func (h *APIHandler) handleExtend(w http.ResponseWriter, r *http.Request) {
	gameID, ok := pathGameID(w, r)
	if !ok {
		return
	}
	var req extendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if req.Seconds <= 0 {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "seconds must be positive")
		return
	}
	snap, err := h.engine.Extend(r.Context(), gameID, time.Duration(req.Seconds)*time.Second)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, snap)
}

func (h *APIHandler) handleClose(w http.ResponseWriter, r *http.Request) {
	gameID, ok := pathGameID(w, r)
	if !ok {
		return
	}
	outcome, err := h.engine.CloseNow(r.Context(), gameID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, outcome)
}

func (h *APIHandler) handleReorder(w http.ResponseWriter, r *http.Request) {
	gameID, ok := pathGameID(w, r)
	if !ok {
		return
	}
	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if err := h.engine.ReorderPending(r.Context(), gameID, req.LotIDs); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathGameID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	gameID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid game id")
		return uuid.Nil, false
	}
	return gameID, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Code: code, Message: message})
}

// writeEngineError maps engine refusals to 409, bad references to 404 and
// everything else to 500. Admission refusals are expected traffic, not
// server failures.
func writeEngineError(w http.ResponseWriter, err error) {
	var aerr *auction.Error
	if errors.As(err, &aerr) {
		status := http.StatusConflict
		if aerr.Code == auction.CodeLotNotFound {
			status = http.StatusNotFound
		}
		writeError(w, status, string(aerr.Code), aerr.Message)
		return
	}
	if errors.Is(err, auction.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "game not found")
		return
	}
	log.Error().Err(err).Msg("engine operation failed")
	writeError(w, http.StatusInternalServerError, "INTERNAL", "operation failed")
}
