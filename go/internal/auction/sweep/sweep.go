// Package sweep drives timer-based lot resolution. A single periodic pass
// lists every game whose countdown has elapsed and hands each one to a
// worker; resolution itself is idempotent, so a sweep tick racing a manual
// close is harmless.
//
// Polling trades millisecond-precision closure for simplicity: worst-case
// resolution latency is one sweep interval plus store latency.
package sweep

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/draftpit/auctioneer/go/internal/auction"
)

// Resolver defines what the sweep needs from the auction engine.
type Resolver interface {
	Resolve(ctx context.Context, gameID uuid.UUID) (*auction.Outcome, error)
}

// DeadlineSource defines what the sweep needs from the store.
type DeadlineSource interface {
	DueGames(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// Config holds sweep tunables.
type Config struct {
	Interval   time.Duration // time between scans
	NumWorkers int
}

// DefaultConfig returns the standard sweep configuration.
func DefaultConfig() Config {
	return Config{
		Interval:   500 * time.Millisecond,
		NumWorkers: 4,
	}
}

// Sweep periodically scans for expired countdowns and resolves them.
type Sweep struct {
	source   DeadlineSource
	resolver Resolver
	clock    clockwork.Clock
	cfg      Config

	instanceID string
	workCh     chan uuid.UUID

	// Track in-flight work so one slow resolution is not queued twice.
	inFlight   map[uuid.UUID]bool
	inFlightMu sync.Mutex
}

// Option configures a Sweep.
type Option func(*Sweep)

// WithClock swaps the sweep's clock for a fake one in tests.
func WithClock(c clockwork.Clock) Option {
	return func(s *Sweep) {
		s.clock = c
	}
}

// New creates a sweep over a deadline source and a resolver.
func New(source DeadlineSource, resolver Resolver, cfg Config, opts ...Option) *Sweep {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = DefaultConfig().NumWorkers
	}
	s := &Sweep{
		source:     source,
		resolver:   resolver,
		clock:      clockwork.NewRealClock(),
		cfg:        cfg,
		instanceID: uuid.New().String()[:8],
		workCh:     make(chan uuid.UUID, cfg.NumWorkers*2),
		inFlight:   make(map[uuid.UUID]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run loops until the context is cancelled, scanning every interval and
// dispatching due games to the worker pool.
func (s *Sweep) Run(ctx context.Context) error {
	log.Info().
		Str("instance", s.instanceID).
		Dur("interval", s.cfg.Interval).
		Int("workers", s.cfg.NumWorkers).
		Msg("sweep started")

	var wg sync.WaitGroup
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer func() {
		cancelWorkers()
		close(s.workCh)
		wg.Wait()
		log.Info().Str("instance", s.instanceID).Msg("sweep stopped")
	}()

	for i := 0; i < s.cfg.NumWorkers; i++ {
		wg.Add(1)
		go s.worker(workerCtx, &wg, i)
	}

	ticker := s.clock.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			if err := s.tick(ctx); err != nil {
				log.Error().Err(err).Str("instance", s.instanceID).Msg("sweep tick failed")
			}
		}
	}
}

// tick performs one scan, queueing every due game not already in flight.
func (s *Sweep) tick(ctx context.Context) error {
	due, err := s.source.DueGames(ctx, s.clock.Now())
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	log.Debug().
		Int("count_due", len(due)).
		Str("instance", s.instanceID).
		Msg("dispatching due games")

	for _, gameID := range due {
		s.inFlightMu.Lock()
		if s.inFlight[gameID] {
			s.inFlightMu.Unlock()
			continue
		}
		s.inFlight[gameID] = true
		s.inFlightMu.Unlock()

		select {
		case <-ctx.Done():
			s.clearInFlight(gameID)
			return nil
		case s.workCh <- gameID:
		}
	}
	return nil
}

func (s *Sweep) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case gameID, ok := <-s.workCh:
			if !ok {
				return
			}

			outcome, err := s.resolver.Resolve(ctx, gameID)
			if err != nil {
				// The cycle stays open on failure; the next tick retries.
				log.Error().
					Err(err).
					Str("game_id", gameID.String()).
					Str("instance", s.instanceID).
					Int("worker_id", workerID).
					Msg("resolution failed")
			} else if outcome.Kind != auction.OutcomeNoOp {
				log.Info().
					Str("game_id", gameID.String()).
					Str("outcome", string(outcome.Kind)).
					Str("instance", s.instanceID).
					Int("worker_id", workerID).
					Msg("countdown resolved")
			}

			s.clearInFlight(gameID)
		}
	}
}

func (s *Sweep) clearInFlight(gameID uuid.UUID) {
	s.inFlightMu.Lock()
	delete(s.inFlight, gameID)
	s.inFlightMu.Unlock()
}
