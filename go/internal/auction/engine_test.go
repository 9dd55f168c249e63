package auction_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftpit/auctioneer/go/internal/auction"
	"github.com/draftpit/auctioneer/go/internal/auction/events"
	"github.com/draftpit/auctioneer/go/internal/auction/store/memory"
	"github.com/draftpit/auctioneer/go/internal/models"
)

type captureBroadcaster struct {
	mu     sync.Mutex
	events []*events.Event
}

func (c *captureBroadcaster) Broadcast(gameID uuid.UUID, ev *events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureBroadcaster) byType(typ events.EventType) []*events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*events.Event
	for _, ev := range c.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	engine    *auction.Engine
	store     *memory.Store
	broadcast *captureBroadcaster
	clock     *clockwork.FakeClock

	game     *models.Game
	thunder  models.Participant
	strikers models.Participant
	lots     []models.Lot
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	settings := models.DefaultGameSettings()
	game := &models.Game{
		ID:        uuid.New(),
		Name:      "marquee night",
		Settings:  settings,
		CreatedAt: time.Now().UTC(),
	}
	thunder := models.Participant{
		ID:              uuid.New(),
		GameID:          game.ID,
		UserID:          "ana",
		TeamName:        "Thunder",
		BudgetRemaining: settings.InitialBudget,
	}
	strikers := models.Participant{
		ID:              uuid.New(),
		GameID:          game.ID,
		UserID:          "bo",
		TeamName:        "Strikers",
		BudgetRemaining: settings.InitialBudget,
	}
	lots := []models.Lot{
		{ID: uuid.New(), GameID: game.ID, PlayerName: "V Sharma", Role: "batter", TeamTag: "MUM", AuctionOrder: 1, Status: models.LotStatusPending},
		{ID: uuid.New(), GameID: game.ID, PlayerName: "T de Kock", Role: "keeper", TeamTag: "CHE", Overseas: true, AuctionOrder: 2, Status: models.LotStatusPending},
		{ID: uuid.New(), GameID: game.ID, PlayerName: "R Patel", Role: "bowler", TeamTag: "DEL", AuctionOrder: 3, Status: models.LotStatusPending},
	}

	store := memory.New()
	require.NoError(t, store.CreateGame(context.Background(), game, []models.Participant{thunder, strikers}, lots))

	broadcast := &captureBroadcaster{}
	clock := clockwork.NewFakeClock()
	engine := auction.New(store, broadcast, auction.WithClock(clock))

	return &fixture{
		engine:    engine,
		store:     store,
		broadcast: broadcast,
		clock:     clock,
		game:      game,
		thunder:   thunder,
		strikers:  strikers,
		lots:      lots,
	}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestOpenLot_StartsCountdown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	snap, err := f.engine.OpenLot(ctx, f.game.ID, f.lots[0].ID)
	require.NoError(t, err)

	assert.Equal(t, models.CycleStatusOpen, snap.Status)
	require.NotNil(t, snap.CurrentLot)
	assert.Equal(t, f.lots[0].ID, snap.CurrentLot.ID)
	require.NotNil(t, snap.Deadline)
	assert.Equal(t, f.clock.Now().Add(60*time.Second), *snap.Deadline)
	require.NotNil(t, snap.RemainingSeconds)
	assert.Equal(t, 60, *snap.RemainingSeconds)
	assert.True(t, snap.HighBid.IsZero())

	assert.Len(t, f.broadcast.byType(events.EventTypeAuctionUpdate), 1)
}

func TestOpenLot_Refusals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Unknown lot.
	_, err := f.engine.OpenLot(ctx, f.game.ID, uuid.New())
	assert.True(t, auction.IsCode(err, auction.CodeLotNotFound))

	_, err = f.engine.OpenLot(ctx, f.game.ID, f.lots[0].ID)
	require.NoError(t, err)

	// A second lot cannot go on the block while one is open.
	_, err = f.engine.OpenLot(ctx, f.game.ID, f.lots[1].ID)
	assert.True(t, auction.IsCode(err, auction.CodeLotInProgress))
}

func TestOpenLot_ResolvedLotStaysClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.OpenLot(ctx, f.game.ID, f.lots[0].ID)
	require.NoError(t, err)
	_, err = f.engine.SkipNow(ctx, f.game.ID)
	require.NoError(t, err)

	_, err = f.engine.OpenLot(ctx, f.game.ID, f.lots[0].ID)
	assert.True(t, auction.IsCode(err, auction.CodeLotAlreadySold))
}

func TestPlaceBid_BiddingWar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	open, err := f.engine.OpenLot(ctx, f.game.ID, f.lots[0].ID)
	require.NoError(t, err)
	deadline := *open.Deadline

	_, err = f.engine.PlaceBid(ctx, f.game.ID, f.thunder.ID, f.lots[0].ID, dec("0.5"))
	require.NoError(t, err)

	snap, err := f.engine.PlaceBid(ctx, f.game.ID, f.strikers.ID, f.lots[0].ID, dec("1"))
	require.NoError(t, err)

	assert.True(t, snap.HighBid.Equal(dec("1")))
	require.NotNil(t, snap.HighBidder)
	assert.Equal(t, f.strikers.ID, snap.HighBidder.ID)
	assert.Len(t, snap.BiddingLog, 2)

	// No anti-snipe: the countdown is untouched by bids.
	require.NotNil(t, snap.Deadline)
	assert.Equal(t, deadline, *snap.Deadline)

	assert.Len(t, f.broadcast.byType(events.EventTypeBidPlaced), 2)
}

func TestPlaceBid_Undercut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.OpenLot(ctx, f.game.ID, f.lots[0].ID)
	require.NoError(t, err)
	_, err = f.engine.PlaceBid(ctx, f.game.ID, f.thunder.ID, f.lots[0].ID, dec("2"))
	require.NoError(t, err)

	_, err = f.engine.PlaceBid(ctx, f.game.ID, f.strikers.ID, f.lots[0].ID, dec("2"))
	assert.True(t, auction.IsCode(err, auction.CodeBelowMinIncrement))

	_, err = f.engine.PlaceBid(ctx, f.game.ID, f.strikers.ID, f.lots[0].ID, dec("1.5"))
	assert.True(t, auction.IsCode(err, auction.CodeBelowMinIncrement))
}

func TestPlaceBid_NoActiveLot(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.PlaceBid(context.Background(), f.game.ID, f.thunder.ID, f.lots[0].ID, dec("0.5"))
	assert.True(t, auction.IsCode(err, auction.CodeNoActiveLot))
}

func TestPlaceBid_StaleLot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.OpenLot(ctx, f.game.ID, f.lots[0].ID)
	require.NoError(t, err)
	_, err = f.engine.PlaceBid(ctx, f.game.ID, f.thunder.ID, f.lots[0].ID, dec("3"))
	require.NoError(t, err)

	f.clock.Advance(61 * time.Second)
	outcome, err := f.engine.Resolve(ctx, f.game.ID)
	require.NoError(t, err)
	require.Equal(t, auction.OutcomeSold, outcome.Kind)

	_, err = f.engine.OpenLot(ctx, f.game.ID, f.lots[1].ID)
	require.NoError(t, err)

	// A bid aimed at the previous lot is refused, not applied to the new one.
	_, err = f.engine.PlaceBid(ctx, f.game.ID, f.strikers.ID, f.lots[0].ID, dec("0.5"))
	assert.True(t, auction.IsCode(err, auction.CodeStaleLot))
}

func TestResolve_Sold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.OpenLot(ctx, f.game.ID, f.lots[0].ID)
	require.NoError(t, err)
	_, err = f.engine.PlaceBid(ctx, f.game.ID, f.thunder.ID, f.lots[0].ID, dec("0.5"))
	require.NoError(t, err)
	_, err = f.engine.PlaceBid(ctx, f.game.ID, f.strikers.ID, f.lots[0].ID, dec("1"))
	require.NoError(t, err)

	f.clock.Advance(61 * time.Second)
	outcome, err := f.engine.Resolve(ctx, f.game.ID)
	require.NoError(t, err)

	require.Equal(t, auction.OutcomeSold, outcome.Kind)
	assert.Equal(t, "V Sharma → Strikers", outcome.Message)
	require.NotNil(t, outcome.Winner)
	assert.Equal(t, f.strikers.ID, outcome.Winner.ID)
	assert.True(t, outcome.Price.Equal(dec("1")))

	lot, err := f.store.Lot(ctx, f.lots[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.LotStatusSold, lot.Status)
	require.NotNil(t, lot.WinnerID)
	assert.Equal(t, f.strikers.ID, *lot.WinnerID)
	require.NotNil(t, lot.PricePaid)
	assert.True(t, lot.PricePaid.Equal(dec("1")))
	require.NotNil(t, lot.AssignedOrder)
	assert.Equal(t, 1, *lot.AssignedOrder)

	winner, err := f.store.Participant(ctx, f.strikers.ID)
	require.NoError(t, err)
	assert.True(t, winner.BudgetRemaining.Equal(dec("99")))

	// The losing bidder keeps a full budget.
	loser, err := f.store.Participant(ctx, f.thunder.ID)
	require.NoError(t, err)
	assert.True(t, loser.BudgetRemaining.Equal(dec("100")))

	cycle, err := f.store.Cycle(ctx, f.game.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CycleStatusIdle, cycle.Status)
	assert.Nil(t, cycle.CurrentLotID)
	assert.Nil(t, cycle.HighBidderID)

	assert.Len(t, f.broadcast.byType(events.EventTypePlayerPicked), 1)
}

func TestResolve_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.OpenLot(ctx, f.game.ID, f.lots[0].ID)
	require.NoError(t, err)
	_, err = f.engine.PlaceBid(ctx, f.game.ID, f.thunder.ID, f.lots[0].ID, dec("2"))
	require.NoError(t, err)

	f.clock.Advance(61 * time.Second)

	first, err := f.engine.Resolve(ctx, f.game.ID)
	require.NoError(t, err)
	assert.Equal(t, auction.OutcomeSold, first.Kind)

	second, err := f.engine.Resolve(ctx, f.game.ID)
	require.NoError(t, err)
	assert.Equal(t, auction.OutcomeNoOp, second.Kind)

	winner, err := f.store.Participant(ctx, f.thunder.ID)
	require.NoError(t, err)
	assert.True(t, winner.BudgetRemaining.Equal(dec("98")))

	assert.Len(t, f.broadcast.byType(events.EventTypePlayerPicked), 1)
}

func TestResolve_ConcurrentExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.OpenLot(ctx, f.game.ID, f.lots[0].ID)
	require.NoError(t, err)
	_, err = f.engine.PlaceBid(ctx, f.game.ID, f.thunder.ID, f.lots[0].ID, dec("4"))
	require.NoError(t, err)

	f.clock.Advance(61 * time.Second)

	const resolvers = 8
	outcomes := make([]auction.OutcomeKind, resolvers)
	var wg sync.WaitGroup
	for i := 0; i < resolvers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome, err := f.engine.Resolve(ctx, f.game.ID)
			if err == nil {
				outcomes[i] = outcome.Kind
			}
		}(i)
	}
	wg.Wait()

	sold := 0
	for _, kind := range outcomes {
		switch kind {
		case auction.OutcomeSold:
			sold++
		case auction.OutcomeNoOp:
		default:
			t.Fatalf("unexpected outcome %q", kind)
		}
	}
	assert.Equal(t, 1, sold)

	winner, err := f.store.Participant(ctx, f.thunder.ID)
	require.NoError(t, err)
	assert.True(t, winner.BudgetRemaining.Equal(dec("96")), "budget deducted exactly once, got %s", winner.BudgetRemaining)
	assert.Len(t, f.broadcast.byType(events.EventTypePlayerPicked), 1)
}

func TestResolve_NoBidsSkips(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.OpenLot(ctx, f.game.ID, f.lots[0].ID)
	require.NoError(t, err)

	f.clock.Advance(61 * time.Second)
	outcome, err := f.engine.Resolve(ctx, f.game.ID)
	require.NoError(t, err)

	assert.Equal(t, auction.OutcomeSkipped, outcome.Kind)
	assert.Equal(t, "V Sharma went unsold", outcome.Message)

	lot, err := f.store.Lot(ctx, f.lots[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.LotStatusSkipped, lot.Status)
	assert.Nil(t, lot.WinnerID)

	assert.Len(t, f.broadcast.byType(events.EventTypePlayerSkipped), 1)

	snap, err := f.engine.Snapshot(ctx, f.game.ID)
	require.NoError(t, err)
	assert.Equal(t, "V Sharma went unsold", snap.LastOutcomeMessage)
}

func TestCloseNow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.CloseNow(ctx, f.game.ID)
	assert.True(t, auction.IsCode(err, auction.CodeNoActiveLot))

	_, err = f.engine.OpenLot(ctx, f.game.ID, f.lots[0].ID)
	require.NoError(t, err)
	_, err = f.engine.PlaceBid(ctx, f.game.ID, f.thunder.ID, f.lots[0].ID, dec("1.5"))
	require.NoError(t, err)

	// Closes well before the deadline.
	outcome, err := f.engine.CloseNow(ctx, f.game.ID)
	require.NoError(t, err)
	assert.Equal(t, auction.OutcomeSold, outcome.Kind)
}

func TestSkipNow_DiscardsHighBid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.OpenLot(ctx, f.game.ID, f.lots[0].ID)
	require.NoError(t, err)
	_, err = f.engine.PlaceBid(ctx, f.game.ID, f.thunder.ID, f.lots[0].ID, dec("7"))
	require.NoError(t, err)

	snap, err := f.engine.SkipNow(ctx, f.game.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CycleStatusIdle, snap.Status)

	lot, err := f.store.Lot(ctx, f.lots[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.LotStatusSkipped, lot.Status)

	bidder, err := f.store.Participant(ctx, f.thunder.ID)
	require.NoError(t, err)
	assert.True(t, bidder.BudgetRemaining.Equal(dec("100")))
}

func TestPauseResume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Pause(ctx, f.game.ID)
	assert.True(t, auction.IsCode(err, auction.CodeNotOpen))

	_, err = f.engine.OpenLot(ctx, f.game.ID, f.lots[0].ID)
	require.NoError(t, err)

	f.clock.Advance(20 * time.Second)
	snap, err := f.engine.Pause(ctx, f.game.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CycleStatusPaused, snap.Status)
	require.NotNil(t, snap.PausedRemainingSec)
	assert.Equal(t, 40, *snap.PausedRemainingSec)
	assert.Nil(t, snap.Deadline)

	// The frozen clock does not tick down while paused.
	f.clock.Advance(5 * time.Minute)

	_, err = f.engine.Resume(ctx, f.game.ID)
	require.NoError(t, err)

	snap, err = f.engine.Snapshot(ctx, f.game.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CycleStatusOpen, snap.Status)
	require.NotNil(t, snap.Deadline)
	assert.Equal(t, f.clock.Now().Add(40*time.Second), *snap.Deadline)

	_, err = f.engine.Resume(ctx, f.game.ID)
	assert.True(t, auction.IsCode(err, auction.CodeNotPaused))
}

func TestExtend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Extend(ctx, f.game.ID, 30*time.Second)
	assert.True(t, auction.IsCode(err, auction.CodeNoActiveTimer))

	open, err := f.engine.OpenLot(ctx, f.game.ID, f.lots[0].ID)
	require.NoError(t, err)

	snap, err := f.engine.Extend(ctx, f.game.ID, 30*time.Second)
	require.NoError(t, err)
	require.NotNil(t, snap.Deadline)
	assert.Equal(t, open.Deadline.Add(30*time.Second), *snap.Deadline)
}

func TestBudgetConservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	prices := []string{"3", "12.5"}
	bidders := []uuid.UUID{f.thunder.ID, f.strikers.ID}
	for i, lot := range f.lots[:2] {
		_, err := f.engine.OpenLot(ctx, f.game.ID, lot.ID)
		require.NoError(t, err)
		_, err = f.engine.PlaceBid(ctx, f.game.ID, bidders[i], lot.ID, dec(prices[i]))
		require.NoError(t, err)
		f.clock.Advance(61 * time.Second)
		_, err = f.engine.Resolve(ctx, f.game.ID)
		require.NoError(t, err)
	}

	participants, err := f.store.ParticipantsByGame(ctx, f.game.ID)
	require.NoError(t, err)
	lots, err := f.store.LotsByGame(ctx, f.game.ID)
	require.NoError(t, err)

	total := decimal.Zero
	for _, p := range participants {
		total = total.Add(p.BudgetRemaining)
	}
	for _, l := range lots {
		if l.PricePaid != nil {
			total = total.Add(*l.PricePaid)
		}
	}
	assert.True(t, total.Equal(dec("200")), "budgets plus prices must equal the initial pool, got %s", total)
}

func TestReorderPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.engine.ReorderPending(ctx, f.game.ID, []uuid.UUID{f.lots[2].ID, f.lots[0].ID, f.lots[1].ID})
	require.NoError(t, err)

	lots, err := f.store.LotsByGame(ctx, f.game.ID)
	require.NoError(t, err)
	assert.Equal(t, "R Patel", lots[0].PlayerName)
	assert.Equal(t, "V Sharma", lots[1].PlayerName)
	assert.Equal(t, "T de Kock", lots[2].PlayerName)
}
