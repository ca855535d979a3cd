package gate

import (
	"errors"
	"sync"
)

// ErrSessionBusy is returned when a session already has a turn in flight.
var ErrSessionBusy = errors.New("session busy")

// Gate serializes turns per session: the orchestrator assumes consecutive
// messages of one session are processed one at a time, so the transport
// rejects overlapping requests instead of interleaving them.
type Gate struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New builds an empty gate.
func New() *Gate {
	return &Gate{inFlight: make(map[string]struct{})}
}

// Acquire claims the session for one turn. ErrSessionBusy when a previous
// turn has not released yet.
func (g *Gate) Acquire(sessionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inFlight[sessionID]; busy {
		return ErrSessionBusy
	}
	g.inFlight[sessionID] = struct{}{}
	return nil
}

// Release frees the session after the turn completes.
func (g *Gate) Release(sessionID string) {
	g.mu.Lock()
	delete(g.inFlight, sessionID)
	g.mu.Unlock()
}
