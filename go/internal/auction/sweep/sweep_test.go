package sweep

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftpit/auctioneer/go/internal/auction"
)

type stubSource struct {
	mu  sync.Mutex
	due []uuid.UUID
}

func (s *stubSource) DueGames(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uuid.UUID, len(s.due))
	copy(out, s.due)
	return out, nil
}

func (s *stubSource) setDue(ids ...uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.due = ids
}

type stubResolver struct {
	called  chan uuid.UUID
	release chan struct{} // nil means resolve immediately
}

func (r *stubResolver) Resolve(ctx context.Context, gameID uuid.UUID) (*auction.Outcome, error) {
	r.called <- gameID
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
		}
	}
	return &auction.Outcome{Kind: auction.OutcomeSkipped}, nil
}

func waitForCall(t *testing.T, ch chan uuid.UUID) uuid.UUID {
	t.Helper()
	select {
	case id := <-ch:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("resolver was not called")
		return uuid.Nil
	}
}

func assertNoCall(t *testing.T, ch chan uuid.UUID) {
	t.Helper()
	select {
	case id := <-ch:
		t.Fatalf("unexpected resolver call for %s", id)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSweep_DispatchesDueGames(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gameID := uuid.New()
	source := &stubSource{}
	source.setDue(gameID)
	resolver := &stubResolver{called: make(chan uuid.UUID, 8)}
	fc := clockwork.NewFakeClock()

	s := New(source, resolver, Config{Interval: 500 * time.Millisecond, NumWorkers: 2}, WithClock(fc))
	go s.Run(ctx)

	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(500 * time.Millisecond)

	assert.Equal(t, gameID, waitForCall(t, resolver.called))
}

func TestSweep_NoDueGames(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := &stubSource{}
	resolver := &stubResolver{called: make(chan uuid.UUID, 8)}
	fc := clockwork.NewFakeClock()

	s := New(source, resolver, Config{Interval: 500 * time.Millisecond, NumWorkers: 1}, WithClock(fc))
	go s.Run(ctx)

	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(500 * time.Millisecond)

	assertNoCall(t, resolver.called)
}

func TestSweep_InFlightDedup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gameID := uuid.New()
	source := &stubSource{}
	source.setDue(gameID)
	resolver := &stubResolver{
		called:  make(chan uuid.UUID, 8),
		release: make(chan struct{}),
	}
	fc := clockwork.NewFakeClock()

	s := New(source, resolver, Config{Interval: 500 * time.Millisecond, NumWorkers: 2}, WithClock(fc))
	go s.Run(ctx)

	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(500 * time.Millisecond)
	waitForCall(t, resolver.called)

	// Still resolving: more ticks must not queue the same game again.
	fc.Advance(500 * time.Millisecond)
	fc.Advance(500 * time.Millisecond)
	assertNoCall(t, resolver.called)

	// Once the slow resolution finishes the game is eligible again. The
	// in-flight entry clears asynchronously, so keep ticking until the
	// next dispatch lands.
	close(resolver.release)
	for i := 0; i < 20; i++ {
		fc.Advance(500 * time.Millisecond)
		select {
		case id := <-resolver.called:
			assert.Equal(t, gameID, id)
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
	t.Fatal("game was never redispatched after resolution finished")
}
