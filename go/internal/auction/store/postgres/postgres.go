// Package postgres is the production auction store backed by pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/draftpit/auctioneer/go/internal/auction"
	"github.com/draftpit/auctioneer/go/internal/models"
	"github.com/draftpit/auctioneer/go/internal/sqlutil"
)

// Queryable is the subset of pgx shared by a pool and a transaction.
type Queryable interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements the auction store on Postgres.
type Store struct {
	pool *pgxpool.Pool
}

var _ auction.Store = (*Store)(nil)

// New creates a Postgres-backed store on an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateGame(ctx context.Context, game *models.Game, participants []models.Participant, lots []models.Lot) error {
	return sqlutil.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		settings, err := json.Marshal(game.Settings)
		if err != nil {
			return fmt.Errorf("failed to marshal game settings: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO games (id, name, settings)
			VALUES ($1, $2, $3)`,
			game.ID, game.Name, settings,
		)
		if err != nil {
			return fmt.Errorf("failed to create game: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO auction_cycles (game_id, status, high_bid, bidding_log)
			VALUES ($1, $2, 0, '[]')`,
			game.ID, models.CycleStatusIdle,
		)
		if err != nil {
			return fmt.Errorf("failed to create cycle: %w", err)
		}

		for _, p := range participants {
			_, err = tx.Exec(ctx, `
				INSERT INTO participants (id, game_id, user_id, team_name, budget_remaining)
				VALUES ($1, $2, $3, $4, $5)`,
				p.ID, p.GameID, p.UserID, p.TeamName, p.BudgetRemaining,
			)
			if err != nil {
				return fmt.Errorf("failed to create participant: %w", err)
			}
		}

		for _, l := range lots {
			_, err = tx.Exec(ctx, `
				INSERT INTO lots (id, game_id, player_name, role, team_tag, overseas, auction_order, status)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				l.ID, l.GameID, l.PlayerName, l.Role, l.TeamTag, l.Overseas, l.AuctionOrder, l.Status,
			)
			if err != nil {
				return fmt.Errorf("failed to create lot: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) Game(ctx context.Context, gameID uuid.UUID) (*models.Game, error) {
	query := `
		SELECT id, name, settings, created_at, updated_at
		FROM games
		WHERE id = $1`

	var game models.Game
	var settings []byte
	err := s.pool.QueryRow(ctx, query, gameID).Scan(
		&game.ID,
		&game.Name,
		&settings,
		&game.CreatedAt,
		&game.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("game %s: %w", gameID, auction.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	if err := json.Unmarshal(settings, &game.Settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game settings: %w", err)
	}
	return &game, nil
}

func (s *Store) Cycle(ctx context.Context, gameID uuid.UUID) (*models.AuctionCycle, error) {
	query := `
		SELECT game_id, status, current_lot_id, deadline, paused_remaining_ms,
		       high_bid, high_bidder_id, bidding_log, last_outcome_message, updated_at
		FROM auction_cycles
		WHERE game_id = $1`

	var c models.AuctionCycle
	var pausedMs *int64
	var biddingLog []byte
	err := s.pool.QueryRow(ctx, query, gameID).Scan(
		&c.GameID,
		&c.Status,
		&c.CurrentLotID,
		&c.Deadline,
		&pausedMs,
		&c.HighBid,
		&c.HighBidderID,
		&biddingLog,
		&c.LastOutcomeMessage,
		&c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("cycle for game %s: %w", gameID, auction.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cycle: %w", err)
	}

	if pausedMs != nil {
		d := time.Duration(*pausedMs) * time.Millisecond
		c.PausedRemaining = &d
	}
	if len(biddingLog) > 0 {
		if err := json.Unmarshal(biddingLog, &c.BiddingLog); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bidding log: %w", err)
		}
	}
	return &c, nil
}

func (s *Store) SaveCycle(ctx context.Context, cycle *models.AuctionCycle) error {
	return s.saveCycle(ctx, s.pool, cycle)
}

func (s *Store) saveCycle(ctx context.Context, q Queryable, cycle *models.AuctionCycle) error {
	biddingLog, err := json.Marshal(cycle.BiddingLog)
	if err != nil {
		return fmt.Errorf("failed to marshal bidding log: %w", err)
	}
	if cycle.BiddingLog == nil {
		biddingLog = []byte("[]")
	}

	var pausedMs *int64
	if cycle.PausedRemaining != nil {
		ms := cycle.PausedRemaining.Milliseconds()
		pausedMs = &ms
	}

	tag, err := q.Exec(ctx, `
		UPDATE auction_cycles
		SET status = $2,
		    current_lot_id = $3,
		    deadline = $4,
		    paused_remaining_ms = $5,
		    high_bid = $6,
		    high_bidder_id = $7,
		    bidding_log = $8,
		    last_outcome_message = $9,
		    updated_at = $10
		WHERE game_id = $1`,
		cycle.GameID,
		cycle.Status,
		cycle.CurrentLotID,
		cycle.Deadline,
		pausedMs,
		cycle.HighBid,
		cycle.HighBidderID,
		biddingLog,
		cycle.LastOutcomeMessage,
		cycle.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save cycle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cycle for game %s: %w", cycle.GameID, auction.ErrNotFound)
	}
	return nil
}

const lotColumns = `id, game_id, player_name, role, team_tag, overseas, auction_order,
	status, winner_id, price_paid, assigned_order`

func scanLot(row pgx.Row) (*models.Lot, error) {
	var l models.Lot
	err := row.Scan(
		&l.ID,
		&l.GameID,
		&l.PlayerName,
		&l.Role,
		&l.TeamTag,
		&l.Overseas,
		&l.AuctionOrder,
		&l.Status,
		&l.WinnerID,
		&l.PricePaid,
		&l.AssignedOrder,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *Store) Lot(ctx context.Context, lotID uuid.UUID) (*models.Lot, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+lotColumns+` FROM lots WHERE id = $1`, lotID)
	lot, err := scanLot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("lot %s: %w", lotID, auction.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lot: %w", err)
	}
	return lot, nil
}

func (s *Store) LotsByGame(ctx context.Context, gameID uuid.UUID) ([]models.Lot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+lotColumns+`
		FROM lots
		WHERE game_id = $1
		ORDER BY auction_order`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots: %w", err)
	}
	defer rows.Close()

	return collectLots(rows)
}

func (s *Store) ReorderPendingLots(ctx context.Context, gameID uuid.UUID, ordered []uuid.UUID) error {
	return sqlutil.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		seen := make(map[uuid.UUID]bool, len(ordered))
		for i, id := range ordered {
			if seen[id] {
				return fmt.Errorf("lot %s listed twice", id)
			}
			seen[id] = true

			tag, err := tx.Exec(ctx, `
				UPDATE lots
				SET auction_order = $3
				WHERE id = $1 AND game_id = $2 AND status = $4`,
				id, gameID, i+1, models.LotStatusPending,
			)
			if err != nil {
				return fmt.Errorf("failed to reorder lot: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("lot %s is not a pending lot of this game", id)
			}
		}
		return nil
	})
}

func (s *Store) Participant(ctx context.Context, participantID uuid.UUID) (*models.Participant, error) {
	query := `
		SELECT id, game_id, user_id, team_name, budget_remaining
		FROM participants
		WHERE id = $1`

	var p models.Participant
	err := s.pool.QueryRow(ctx, query, participantID).Scan(
		&p.ID,
		&p.GameID,
		&p.UserID,
		&p.TeamName,
		&p.BudgetRemaining,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("participant %s: %w", participantID, auction.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return &p, nil
}

func (s *Store) ParticipantsByGame(ctx context.Context, gameID uuid.UUID) ([]models.Participant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, game_id, user_id, team_name, budget_remaining
		FROM participants
		WHERE game_id = $1
		ORDER BY team_name`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	var out []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.GameID, &p.UserID, &p.TeamName, &p.BudgetRemaining); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) Roster(ctx context.Context, participantID uuid.UUID) ([]models.Lot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+lotColumns+`
		FROM lots
		WHERE winner_id = $1
		ORDER BY assigned_order`, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query roster: %w", err)
	}
	defer rows.Close()

	return collectLots(rows)
}

func (s *Store) RecordBid(ctx context.Context, cycle *models.AuctionCycle, bid models.Bid) error {
	return sqlutil.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := s.saveCycle(ctx, tx, cycle); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO bids (lot_id, participant_id, amount, placed_at)
			VALUES ($1, $2, $3, $4)`,
			bid.LotID, bid.ParticipantID, bid.Amount, bid.At,
		)
		if err != nil {
			return fmt.Errorf("failed to insert bid: %w", err)
		}
		return nil
	})
}

func (s *Store) NextAssignedOrder(ctx context.Context, gameID uuid.UUID) (int, error) {
	var next int
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(assigned_order), 0) + 1
		FROM lots
		WHERE game_id = $1 AND status = $2`,
		gameID, models.LotStatusSold,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to compute next assigned order: %w", err)
	}
	return next, nil
}

func (s *Store) ApplyResolution(ctx context.Context, res auction.Resolution) error {
	return sqlutil.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE lots
			SET status = $2, winner_id = $3, price_paid = $4, assigned_order = $5
			WHERE id = $1`,
			res.Lot.ID, res.Lot.Status, res.Lot.WinnerID, res.Lot.PricePaid, res.Lot.AssignedOrder,
		)
		if err != nil {
			return fmt.Errorf("failed to update lot: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("lot %s: %w", res.Lot.ID, auction.ErrNotFound)
		}

		if res.Winner != nil {
			tag, err = tx.Exec(ctx, `
				UPDATE participants
				SET budget_remaining = $2
				WHERE id = $1`,
				res.Winner.ID, res.Winner.BudgetRemaining,
			)
			if err != nil {
				return fmt.Errorf("failed to update winner budget: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("participant %s: %w", res.Winner.ID, auction.ErrNotFound)
			}
		}

		return s.saveCycle(ctx, tx, res.Cycle)
	})
}

func (s *Store) DueGames(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT game_id
		FROM auction_cycles
		WHERE status = $1 AND deadline IS NOT NULL AND deadline <= $2`,
		models.CycleStatusOpen, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query due games: %w", err)
	}
	defer rows.Close()

	var due []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan due game: %w", err)
		}
		due = append(due, id)
	}
	return due, rows.Err()
}

func collectLots(rows pgx.Rows) ([]models.Lot, error) {
	var out []models.Lot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}
		out = append(out, *lot)
	}
	return out, rows.Err()
}
