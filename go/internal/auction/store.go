package auction

import (
	"context"
	"time"

	"github.com/draftpit/auctioneer/go/internal/models"
	"github.com/google/uuid"
)

// Store defines what the engine needs from persistence. Implementations
// live in store/memory and store/postgres. The engine serializes access per
// game, so individual reads and writes need no cross-call coordination;
// only RecordBid and ApplyResolution must commit their writes together.
type Store interface {
	// CreateGame seeds a game with its participants, lots and an idle
	// cycle, in one commit. Used at roster-upload time.
	CreateGame(ctx context.Context, game *models.Game, participants []models.Participant, lots []models.Lot) error

	Game(ctx context.Context, gameID uuid.UUID) (*models.Game, error)

	Cycle(ctx context.Context, gameID uuid.UUID) (*models.AuctionCycle, error)
	SaveCycle(ctx context.Context, cycle *models.AuctionCycle) error

	Lot(ctx context.Context, lotID uuid.UUID) (*models.Lot, error)
	LotsByGame(ctx context.Context, gameID uuid.UUID) ([]models.Lot, error)
	// ReorderPendingLots rewrites the auction order of a game's pending
	// lots. Sold and skipped lots are immutable and must be rejected.
	ReorderPendingLots(ctx context.Context, gameID uuid.UUID, ordered []uuid.UUID) error

	Participant(ctx context.Context, participantID uuid.UUID) (*models.Participant, error)
	ParticipantsByGame(ctx context.Context, gameID uuid.UUID) ([]models.Participant, error)
	// Roster returns the lots won by one participant.
	Roster(ctx context.Context, participantID uuid.UUID) ([]models.Lot, error)

	// RecordBid appends the bid and saves the updated cycle atomically.
	RecordBid(ctx context.Context, cycle *models.AuctionCycle, bid models.Bid) error

	// NextAssignedOrder returns max(assigned_order) over the game's sold
	// lots, plus one.
	NextAssignedOrder(ctx context.Context, gameID uuid.UUID) (int, error)

	// ApplyResolution commits lot, winner budget and cycle together. On
	// error nothing may be applied: the cycle stays open so a later sweep
	// tick retries.
	ApplyResolution(ctx context.Context, res Resolution) error

	// DueGames lists games whose cycle is open with deadline at or before
	// now. Paused cycles never appear.
	DueGames(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// Resolution is the final state a resolved cycle commits: the cleared
// cycle, the terminal lot, and the winner with decremented budget (nil when
// the lot was skipped).
type Resolution struct {
	Cycle  *models.AuctionCycle
	Lot    *models.Lot
	Winner *models.Participant
}
