package auction

import (
	"sync"

	"github.com/google/uuid"
)

// gameLocks serializes all mutations to one game's cycle. Different games
// proceed independently; there is no global lock around cycle state.
type gameLocks struct {
	mu sync.Mutex
	m  map[uuid.UUID]*sync.Mutex
}

func newGameLocks() *gameLocks {
	return &gameLocks{m: make(map[uuid.UUID]*sync.Mutex)}
}

// lock acquires the per-game critical section and returns its release func.
// Lock entries live for the lifetime of the process; games number in the
// thousands at most.
func (g *gameLocks) lock(gameID uuid.UUID) func() {
	g.mu.Lock()
	l, ok := g.m[gameID]
	if !ok {
		l = &sync.Mutex{}
		g.m[gameID] = l
	}
	g.mu.Unlock()

	l.Lock()
	return l.Unlock
}
