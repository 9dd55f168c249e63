package auction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/draftpit/auctioneer/go/internal/auction/events"
	"github.com/draftpit/auctioneer/go/internal/models"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Engine runs the auction cycle state machine for every game. All
// mutations to one game's cycle are serialized through a per-game lock;
// the timer sweep, bid intake and the control actions all go through it.
type Engine struct {
	store       Store
	broadcaster Broadcaster
	clock       clockwork.Clock
	locks       *gameLocks
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock swaps the engine's clock. Tests use a clockwork fake clock.
func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// New creates an auction engine on top of a store and a broadcaster.
func New(store Store, broadcaster Broadcaster, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		broadcaster: broadcaster,
		clock:       clockwork.NewRealClock(),
		locks:       newGameLocks(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OutcomeKind classifies the result of a resolution.
type OutcomeKind string

const (
	OutcomeNoOp    OutcomeKind = "NO_OP"
	OutcomeSold    OutcomeKind = "SOLD"
	OutcomeSkipped OutcomeKind = "SKIPPED"
)

// Outcome describes how a lot's auction ended.
type Outcome struct {
	Kind    OutcomeKind
	Lot     *models.Lot
	Winner  *models.Participant
	Price   decimal.Decimal
	Message string
}

// OpenLot puts a pending lot on the block: countdown starts immediately and
// every bid field is reset.
func (e *Engine) OpenLot(ctx context.Context, gameID, lotID uuid.UUID) (*models.CycleSnapshot, error) {
	unlock := e.locks.lock(gameID)
	defer unlock()

	cycle, err := e.store.Cycle(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cycle: %w", err)
	}
	if cycle.Status != models.CycleStatusIdle {
		return nil, NewError(CodeLotInProgress, "another lot is already on the block")
	}

	lot, err := e.store.Lot(ctx, lotID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NewError(CodeLotNotFound, "lot does not exist")
		}
		return nil, fmt.Errorf("failed to load lot: %w", err)
	}
	if lot.GameID != gameID {
		return nil, NewError(CodeLotNotFound, "lot does not belong to this game")
	}
	if lot.Terminal() {
		return nil, NewError(CodeLotAlreadySold, "lot has already been resolved")
	}

	game, err := e.store.Game(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load game: %w", err)
	}

	now := e.clock.Now()
	deadline := now.Add(time.Duration(game.Settings.BidSeconds) * time.Second)

	cycle.Status = models.CycleStatusOpen
	cycle.CurrentLotID = &lotID
	cycle.Deadline = &deadline
	cycle.PausedRemaining = nil
	cycle.HighBid = decimal.Zero
	cycle.HighBidderID = nil
	cycle.BiddingLog = nil
	cycle.LastOutcomeMessage = ""
	cycle.UpdatedAt = now

	if err := e.store.SaveCycle(ctx, cycle); err != nil {
		return nil, fmt.Errorf("failed to save cycle: %w", err)
	}

	log.Info().
		Str("game_id", gameID.String()).
		Str("lot_id", lotID.String()).
		Str("player", lot.PlayerName).
		Time("deadline", deadline).
		Msg("lot opened")

	snap, err := e.buildSnapshot(ctx, cycle)
	if err != nil {
		return nil, err
	}
	e.emit(gameID, events.EventTypeAuctionUpdate, events.AuctionUpdatePayload{Cycle: snap})
	return snap, nil
}

// PlaceBid validates and applies one bid as a single atomic unit against
// the cycle. Only the ephemeral cycle fields change here; budget and lot
// ownership move at resolution. The countdown is deliberately not extended
// on a bid: a bid right before expiry does not reset the timer.
func (e *Engine) PlaceBid(ctx context.Context, gameID, participantID, lotID uuid.UUID, amount decimal.Decimal) (*models.CycleSnapshot, error) {
	unlock := e.locks.lock(gameID)
	defer unlock()

	cycle, err := e.store.Cycle(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cycle: %w", err)
	}
	if cycle.Status != models.CycleStatusOpen || cycle.CurrentLotID == nil {
		return nil, NewError(CodeNoActiveLot, "no lot is currently open for bidding")
	}
	if *cycle.CurrentLotID != lotID {
		return nil, NewError(CodeStaleLot, "lot is no longer on the block")
	}

	lot, err := e.store.Lot(ctx, lotID)
	if err != nil {
		return nil, fmt.Errorf("failed to load lot: %w", err)
	}
	participant, err := e.store.Participant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load participant: %w", err)
	}
	roster, err := e.store.Roster(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	game, err := e.store.Game(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load game: %w", err)
	}

	if vErr := ValidateBid(game.Settings, cycle, lot, participant, roster, amount); vErr != nil {
		log.Debug().
			Str("game_id", gameID.String()).
			Str("participant_id", participantID.String()).
			Str("amount", amount.String()).
			Str("reason", string(vErr.Code)).
			Msg("bid rejected")
		return nil, vErr
	}

	now := e.clock.Now()
	bid := models.Bid{
		LotID:         lotID,
		ParticipantID: participantID,
		Amount:        amount,
		At:            now,
	}
	cycle.HighBid = amount
	cycle.HighBidderID = &participantID
	cycle.BiddingLog = append(cycle.BiddingLog, bid)
	cycle.UpdatedAt = now

	if err := e.store.RecordBid(ctx, cycle, bid); err != nil {
		return nil, fmt.Errorf("failed to record bid: %w", err)
	}

	log.Info().
		Str("game_id", gameID.String()).
		Str("participant_id", participantID.String()).
		Str("player", lot.PlayerName).
		Str("amount", amount.String()).
		Msg("bid placed")

	snap, err := e.buildSnapshot(ctx, cycle)
	if err != nil {
		return nil, err
	}
	e.emit(gameID, events.EventTypeBidPlaced, events.BidPlacedPayload{Cycle: snap, Bid: bid})
	e.emit(gameID, events.EventTypeAuctionUpdate, events.AuctionUpdatePayload{Cycle: snap})
	return snap, nil
}

// Pause freezes the countdown, recording how much of it is left.
func (e *Engine) Pause(ctx context.Context, gameID uuid.UUID) (*models.CycleSnapshot, error) {
	unlock := e.locks.lock(gameID)
	defer unlock()

	cycle, err := e.store.Cycle(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cycle: %w", err)
	}
	if cycle.Status != models.CycleStatusOpen {
		return nil, NewError(CodeNotOpen, "no open lot to pause")
	}
	if cycle.Deadline == nil {
		log.Error().Str("game_id", gameID.String()).Msg("open cycle has no deadline")
		return nil, fmt.Errorf("%w: open cycle without deadline", ErrInvariant)
	}

	now := e.clock.Now()
	remaining := cycle.Deadline.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	cycle.Status = models.CycleStatusPaused
	cycle.PausedRemaining = &remaining
	cycle.Deadline = nil
	cycle.UpdatedAt = now

	if err := e.store.SaveCycle(ctx, cycle); err != nil {
		return nil, fmt.Errorf("failed to save cycle: %w", err)
	}

	log.Info().
		Str("game_id", gameID.String()).
		Dur("remaining", remaining).
		Msg("auction paused")

	snap, err := e.buildSnapshot(ctx, cycle)
	if err != nil {
		return nil, err
	}
	e.emit(gameID, events.EventTypeAuctionUpdate, events.AuctionUpdatePayload{Cycle: snap})
	return snap, nil
}

// Resume restarts the countdown from the recorded remaining time, not from
// the original absolute deadline.
func (e *Engine) Resume(ctx context.Context, gameID uuid.UUID) (*models.CycleSnapshot, error) {
	unlock := e.locks.lock(gameID)
	defer unlock()

	cycle, err := e.store.Cycle(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cycle: %w", err)
	}
	if cycle.Status != models.CycleStatusPaused {
		return nil, NewError(CodeNotPaused, "auction is not paused")
	}
	if cycle.PausedRemaining == nil {
		log.Error().Str("game_id", gameID.String()).Msg("paused cycle has no remaining time recorded")
		return nil, fmt.Errorf("%w: paused cycle without remaining time", ErrInvariant)
	}

	now := e.clock.Now()
	deadline := now.Add(*cycle.PausedRemaining)
	cycle.Status = models.CycleStatusOpen
	cycle.Deadline = &deadline
	cycle.PausedRemaining = nil
	cycle.UpdatedAt = now

	if err := e.store.SaveCycle(ctx, cycle); err != nil {
		return nil, fmt.Errorf("failed to save cycle: %w", err)
	}

	log.Info().
		Str("game_id", gameID.String()).
		Time("deadline", deadline).
		Msg("auction resumed")

	snap, err := e.buildSnapshot(ctx, cycle)
	if err != nil {
		return nil, err
	}
	e.emit(gameID, events.EventTypeAuctionUpdate, events.AuctionUpdatePayload{Cycle: snap})
	return snap, nil
}

// Extend pushes the running countdown forward by an operator-chosen amount.
func (e *Engine) Extend(ctx context.Context, gameID uuid.UUID, d time.Duration) (*models.CycleSnapshot, error) {
	unlock := e.locks.lock(gameID)
	defer unlock()

	cycle, err := e.store.Cycle(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cycle: %w", err)
	}
	if cycle.Status != models.CycleStatusOpen || cycle.Deadline == nil {
		return nil, NewError(CodeNoActiveTimer, "no running countdown to extend")
	}

	deadline := cycle.Deadline.Add(d)
	cycle.Deadline = &deadline
	cycle.UpdatedAt = e.clock.Now()

	if err := e.store.SaveCycle(ctx, cycle); err != nil {
		return nil, fmt.Errorf("failed to save cycle: %w", err)
	}

	log.Info().
		Str("game_id", gameID.String()).
		Dur("extension", d).
		Time("deadline", deadline).
		Msg("countdown extended")

	snap, err := e.buildSnapshot(ctx, cycle)
	if err != nil {
		return nil, err
	}
	e.emit(gameID, events.EventTypeAuctionUpdate, events.AuctionUpdatePayload{Cycle: snap})
	return snap, nil
}

// SkipNow forces a no-bid resolution of the current lot, discarding any
// high bid. Works from open or paused.
func (e *Engine) SkipNow(ctx context.Context, gameID uuid.UUID) (*models.CycleSnapshot, error) {
	unlock := e.locks.lock(gameID)
	defer unlock()

	cycle, err := e.store.Cycle(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cycle: %w", err)
	}
	if cycle.CurrentLotID == nil {
		return nil, NewError(CodeNoActiveLot, "no lot is currently on the block")
	}

	lot, err := e.store.Lot(ctx, *cycle.CurrentLotID)
	if err != nil {
		return nil, fmt.Errorf("failed to load lot: %w", err)
	}

	cycle.Status = models.CycleStatusResolving
	if _, err := e.resolveSkip(ctx, cycle, lot); err != nil {
		return nil, err
	}
	return e.buildSnapshot(ctx, cycle)
}

// CloseNow resolves the current lot immediately instead of waiting for the
// countdown. Racing the sweep is safe: whichever trigger loses sees a
// no-op, reported here as NO_ACTIVE_LOT.
func (e *Engine) CloseNow(ctx context.Context, gameID uuid.UUID) (*Outcome, error) {
	outcome, err := e.Resolve(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if outcome.Kind == OutcomeNoOp {
		return nil, NewError(CodeNoActiveLot, "no open lot to close")
	}
	return outcome, nil
}

// Resolve closes the current lot: sold to the high bidder, or skipped when
// no bid was placed. Idempotent: if the cycle is no longer open once the
// per-game critical section is held, nothing is mutated and NoOp is
// returned, so the sweep and a manual close can race freely.
func (e *Engine) Resolve(ctx context.Context, gameID uuid.UUID) (*Outcome, error) {
	unlock := e.locks.lock(gameID)
	defer unlock()

	cycle, err := e.store.Cycle(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cycle: %w", err)
	}
	if cycle.Status != models.CycleStatusOpen {
		return &Outcome{Kind: OutcomeNoOp}, nil
	}
	if cycle.CurrentLotID == nil {
		log.Error().Str("game_id", gameID.String()).Msg("open cycle has no current lot")
		return nil, fmt.Errorf("%w: open cycle without current lot", ErrInvariant)
	}

	lot, err := e.store.Lot(ctx, *cycle.CurrentLotID)
	if err != nil {
		return nil, fmt.Errorf("failed to load lot: %w", err)
	}

	cycle.Status = models.CycleStatusResolving
	if cycle.HighBidderID == nil || !cycle.HighBid.IsPositive() {
		return e.resolveSkip(ctx, cycle, lot)
	}
	return e.resolveSale(ctx, cycle, lot)
}

// resolveSkip marks the lot skipped and returns the cycle to idle. Caller
// holds the game lock.
func (e *Engine) resolveSkip(ctx context.Context, cycle *models.AuctionCycle, lot *models.Lot) (*Outcome, error) {
	now := e.clock.Now()
	msg := fmt.Sprintf("%s went unsold", lot.PlayerName)

	lot.Status = models.LotStatusSkipped
	cycle.ClearLot()
	cycle.LastOutcomeMessage = msg
	cycle.UpdatedAt = now

	if err := e.store.ApplyResolution(ctx, Resolution{Cycle: cycle, Lot: lot}); err != nil {
		return nil, fmt.Errorf("failed to apply skip resolution: %w", err)
	}

	log.Info().
		Str("game_id", cycle.GameID.String()).
		Str("lot_id", lot.ID.String()).
		Str("player", lot.PlayerName).
		Msg("lot skipped")

	e.emit(cycle.GameID, events.EventTypePlayerSkipped, events.PlayerSkippedPayload{Lot: *lot, Message: msg})
	if snap, err := e.buildSnapshot(ctx, cycle); err == nil {
		e.emit(cycle.GameID, events.EventTypeAuctionUpdate, events.AuctionUpdatePayload{Cycle: snap})
	}

	return &Outcome{Kind: OutcomeSkipped, Lot: lot, Message: msg}, nil
}

// resolveSale assigns the lot to the high bidder and decrements their
// budget. The lot, budget and cycle updates commit as one transaction;
// this is the only place roster membership and budget change. Caller holds
// the game lock.
func (e *Engine) resolveSale(ctx context.Context, cycle *models.AuctionCycle, lot *models.Lot) (*Outcome, error) {
	winner, err := e.store.Participant(ctx, *cycle.HighBidderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load winning participant: %w", err)
	}
	order, err := e.store.NextAssignedOrder(ctx, cycle.GameID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute assigned order: %w", err)
	}

	now := e.clock.Now()
	price := cycle.HighBid
	msg := fmt.Sprintf("%s → %s", lot.PlayerName, winner.TeamName)

	lot.Status = models.LotStatusSold
	lot.WinnerID = &winner.ID
	lot.PricePaid = &price
	lot.AssignedOrder = &order
	winner.BudgetRemaining = winner.BudgetRemaining.Sub(price)

	cycle.ClearLot()
	cycle.LastOutcomeMessage = msg
	cycle.UpdatedAt = now

	if err := e.store.ApplyResolution(ctx, Resolution{Cycle: cycle, Lot: lot, Winner: winner}); err != nil {
		return nil, fmt.Errorf("failed to apply sale resolution: %w", err)
	}

	log.Info().
		Str("game_id", cycle.GameID.String()).
		Str("lot_id", lot.ID.String()).
		Str("player", lot.PlayerName).
		Str("winner_id", winner.ID.String()).
		Str("price", price.String()).
		Int("assigned_order", order).
		Msg("lot sold")

	summary, err := e.participantSummary(ctx, winner)
	if err != nil {
		return nil, err
	}
	e.emit(cycle.GameID, events.EventTypePlayerPicked, events.PlayerPickedPayload{
		Lot:             *lot,
		Winner:          *summary,
		Price:           price,
		AssignedOrder:   order,
		BudgetRemaining: winner.BudgetRemaining,
	})
	if snap, err := e.buildSnapshot(ctx, cycle); err == nil {
		e.emit(cycle.GameID, events.EventTypeAuctionUpdate, events.AuctionUpdatePayload{Cycle: snap})
	}

	return &Outcome{Kind: OutcomeSold, Lot: lot, Winner: winner, Price: price, Message: msg}, nil
}

// Snapshot returns the current cycle view, including the last resolved
// outcome. Reconnecting clients call this to catch up instead of relying
// on replayed broadcasts.
func (e *Engine) Snapshot(ctx context.Context, gameID uuid.UUID) (*models.CycleSnapshot, error) {
	unlock := e.locks.lock(gameID)
	defer unlock()

	cycle, err := e.store.Cycle(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cycle: %w", err)
	}
	return e.buildSnapshot(ctx, cycle)
}

// ReorderPending rewrites the auction order of the game's still-pending
// lots.
func (e *Engine) ReorderPending(ctx context.Context, gameID uuid.UUID, ordered []uuid.UUID) error {
	unlock := e.locks.lock(gameID)
	defer unlock()

	if err := e.store.ReorderPendingLots(ctx, gameID, ordered); err != nil {
		return fmt.Errorf("failed to reorder pending lots: %w", err)
	}
	log.Info().
		Str("game_id", gameID.String()).
		Int("lots", len(ordered)).
		Msg("pending lots reordered")
	return nil
}

func (e *Engine) buildSnapshot(ctx context.Context, cycle *models.AuctionCycle) (*models.CycleSnapshot, error) {
	lots, err := e.store.LotsByGame(ctx, cycle.GameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load lots: %w", err)
	}
	participants, err := e.store.ParticipantsByGame(ctx, cycle.GameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}

	summaries := make([]models.ParticipantSummary, 0, len(participants))
	for _, p := range participants {
		s := models.ParticipantSummary{
			ID:              p.ID,
			TeamName:        p.TeamName,
			BudgetRemaining: p.BudgetRemaining,
		}
		for _, lot := range lots {
			if lot.WinnerID != nil && *lot.WinnerID == p.ID {
				s.RosterSize++
				if lot.Overseas {
					s.OverseasCount++
				}
			}
		}
		summaries = append(summaries, s)
	}

	snap := &models.CycleSnapshot{
		GameID:             cycle.GameID,
		Status:             cycle.Status,
		HighBid:            cycle.HighBid,
		BiddingLog:         cycle.BiddingLog,
		LastOutcomeMessage: cycle.LastOutcomeMessage,
		Participants:       summaries,
	}

	if cycle.CurrentLotID != nil {
		for i := range lots {
			if lots[i].ID == *cycle.CurrentLotID {
				snap.CurrentLot = &lots[i]
				break
			}
		}
	}
	if cycle.Deadline != nil {
		deadline := *cycle.Deadline
		snap.Deadline = &deadline
		remaining := int(deadline.Sub(e.clock.Now()).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		snap.RemainingSeconds = &remaining
	}
	if cycle.PausedRemaining != nil {
		sec := int(cycle.PausedRemaining.Seconds())
		snap.PausedRemainingSec = &sec
	}
	if cycle.HighBidderID != nil {
		for i := range summaries {
			if summaries[i].ID == *cycle.HighBidderID {
				snap.HighBidder = &summaries[i]
				break
			}
		}
	}

	return snap, nil
}

func (e *Engine) participantSummary(ctx context.Context, p *models.Participant) (*models.ParticipantSummary, error) {
	roster, err := e.store.Roster(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	s := &models.ParticipantSummary{
		ID:              p.ID,
		TeamName:        p.TeamName,
		BudgetRemaining: p.BudgetRemaining,
		RosterSize:      len(roster),
	}
	for _, lot := range roster {
		if lot.Overseas {
			s.OverseasCount++
		}
	}
	return s, nil
}

func (e *Engine) emit(gameID uuid.UUID, typ events.EventType, payload any) {
	ev, err := events.New(gameID, typ, e.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("game_id", gameID.String()).Msg("failed to build event")
		return
	}
	e.broadcaster.Broadcast(gameID, ev)
}
