// Package memory is an in-process implementation of the auction store,
// used by tests and single-node development runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/draftpit/auctioneer/go/internal/auction"
	"github.com/draftpit/auctioneer/go/internal/models"
)

// Store keeps all auction state in maps guarded by one RWMutex. Values are
// copied on the way in and out so callers never alias internal state.
type Store struct {
	mu           sync.RWMutex
	games        map[uuid.UUID]*models.Game
	cycles       map[uuid.UUID]*models.AuctionCycle
	lots         map[uuid.UUID]*models.Lot
	participants map[uuid.UUID]*models.Participant
	bids         []models.Bid
}

var _ auction.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		games:        make(map[uuid.UUID]*models.Game),
		cycles:       make(map[uuid.UUID]*models.AuctionCycle),
		lots:         make(map[uuid.UUID]*models.Lot),
		participants: make(map[uuid.UUID]*models.Participant),
	}
}

func (s *Store) CreateGame(ctx context.Context, game *models.Game, participants []models.Participant, lots []models.Lot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.games[game.ID]; exists {
		return fmt.Errorf("game %s already exists", game.ID)
	}

	g := *game
	s.games[game.ID] = &g
	s.cycles[game.ID] = &models.AuctionCycle{
		GameID: game.ID,
		Status: models.CycleStatusIdle,
	}
	for i := range participants {
		p := participants[i]
		s.participants[p.ID] = &p
	}
	for i := range lots {
		l := lots[i]
		s.lots[l.ID] = &l
	}
	return nil
}

func (s *Store) Game(ctx context.Context, gameID uuid.UUID) (*models.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.games[gameID]
	if !ok {
		return nil, fmt.Errorf("game %s: %w", gameID, auction.ErrNotFound)
	}
	game := *g
	return &game, nil
}

func (s *Store) Cycle(ctx context.Context, gameID uuid.UUID) (*models.AuctionCycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cycles[gameID]
	if !ok {
		return nil, fmt.Errorf("cycle for game %s: %w", gameID, auction.ErrNotFound)
	}
	return copyCycle(c), nil
}

func (s *Store) SaveCycle(ctx context.Context, cycle *models.AuctionCycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cycles[cycle.GameID]; !ok {
		return fmt.Errorf("cycle for game %s: %w", cycle.GameID, auction.ErrNotFound)
	}
	s.cycles[cycle.GameID] = copyCycle(cycle)
	return nil
}

func (s *Store) Lot(ctx context.Context, lotID uuid.UUID) (*models.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.lots[lotID]
	if !ok {
		return nil, fmt.Errorf("lot %s: %w", lotID, auction.ErrNotFound)
	}
	return copyLot(l), nil
}

func (s *Store) LotsByGame(ctx context.Context, gameID uuid.UUID) ([]models.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Lot
	for _, l := range s.lots {
		if l.GameID == gameID {
			out = append(out, *copyLot(l))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AuctionOrder < out[j].AuctionOrder
	})
	return out, nil
}

func (s *Store) ReorderPendingLots(ctx context.Context, gameID uuid.UUID, ordered []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[uuid.UUID]bool, len(ordered))
	for _, id := range ordered {
		if seen[id] {
			return fmt.Errorf("lot %s listed twice", id)
		}
		seen[id] = true

		l, ok := s.lots[id]
		if !ok || l.GameID != gameID {
			return fmt.Errorf("lot %s: %w", id, auction.ErrNotFound)
		}
		if l.Status != models.LotStatusPending {
			return fmt.Errorf("lot %s is not pending", id)
		}
	}
	for i, id := range ordered {
		s.lots[id].AuctionOrder = i + 1
	}
	return nil
}

func (s *Store) Participant(ctx context.Context, participantID uuid.UUID) (*models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.participants[participantID]
	if !ok {
		return nil, fmt.Errorf("participant %s: %w", participantID, auction.ErrNotFound)
	}
	participant := *p
	return &participant, nil
}

func (s *Store) ParticipantsByGame(ctx context.Context, gameID uuid.UUID) ([]models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Participant
	for _, p := range s.participants {
		if p.GameID == gameID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TeamName < out[j].TeamName
	})
	return out, nil
}

func (s *Store) Roster(ctx context.Context, participantID uuid.UUID) ([]models.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Lot
	for _, l := range s.lots {
		if l.WinnerID != nil && *l.WinnerID == participantID {
			out = append(out, *copyLot(l))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		oi, oj := 0, 0
		if out[i].AssignedOrder != nil {
			oi = *out[i].AssignedOrder
		}
		if out[j].AssignedOrder != nil {
			oj = *out[j].AssignedOrder
		}
		return oi < oj
	})
	return out, nil
}

func (s *Store) RecordBid(ctx context.Context, cycle *models.AuctionCycle, bid models.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cycles[cycle.GameID]; !ok {
		return fmt.Errorf("cycle for game %s: %w", cycle.GameID, auction.ErrNotFound)
	}
	s.cycles[cycle.GameID] = copyCycle(cycle)
	s.bids = append(s.bids, bid)
	return nil
}

func (s *Store) NextAssignedOrder(ctx context.Context, gameID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	max := 0
	for _, l := range s.lots {
		if l.GameID == gameID && l.Status == models.LotStatusSold && l.AssignedOrder != nil && *l.AssignedOrder > max {
			max = *l.AssignedOrder
		}
	}
	return max + 1, nil
}

func (s *Store) ApplyResolution(ctx context.Context, res auction.Resolution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cycles[res.Cycle.GameID]; !ok {
		return fmt.Errorf("cycle for game %s: %w", res.Cycle.GameID, auction.ErrNotFound)
	}
	if _, ok := s.lots[res.Lot.ID]; !ok {
		return fmt.Errorf("lot %s: %w", res.Lot.ID, auction.ErrNotFound)
	}
	if res.Winner != nil {
		if _, ok := s.participants[res.Winner.ID]; !ok {
			return fmt.Errorf("participant %s: %w", res.Winner.ID, auction.ErrNotFound)
		}
	}

	s.cycles[res.Cycle.GameID] = copyCycle(res.Cycle)
	s.lots[res.Lot.ID] = copyLot(res.Lot)
	if res.Winner != nil {
		winner := *res.Winner
		s.participants[winner.ID] = &winner
	}
	return nil
}

func (s *Store) DueGames(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []uuid.UUID
	for gameID, c := range s.cycles {
		if c.Status == models.CycleStatusOpen && c.Deadline != nil && !c.Deadline.After(now) {
			due = append(due, gameID)
		}
	}
	return due, nil
}

func copyCycle(c *models.AuctionCycle) *models.AuctionCycle {
	out := *c
	if c.CurrentLotID != nil {
		id := *c.CurrentLotID
		out.CurrentLotID = &id
	}
	if c.Deadline != nil {
		t := *c.Deadline
		out.Deadline = &t
	}
	if c.PausedRemaining != nil {
		d := *c.PausedRemaining
		out.PausedRemaining = &d
	}
	if c.HighBidderID != nil {
		id := *c.HighBidderID
		out.HighBidderID = &id
	}
	if c.BiddingLog != nil {
		out.BiddingLog = make([]models.Bid, len(c.BiddingLog))
		copy(out.BiddingLog, c.BiddingLog)
	}
	return &out
}

func copyLot(l *models.Lot) *models.Lot {
	out := *l
	if l.WinnerID != nil {
		id := *l.WinnerID
		out.WinnerID = &id
	}
	if l.PricePaid != nil {
		p := *l.PricePaid
		out.PricePaid = &p
	}
	if l.AssignedOrder != nil {
		o := *l.AssignedOrder
		out.AssignedOrder = &o
	}
	return &out
}
