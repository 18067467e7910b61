package engine

import (
	"sync"

	"github.com/bcnelson/env-manager/internal/domain"
)

// Operation names guarded by a Guard.
const (
	OpActivate       = "activate"
	OpSaveGroup      = "save-group"
	OpDeleteGroup    = "delete-group"
	OpUpsertVariable = "upsert-variable"
	OpDeleteVariable = "delete-variable"
)

// Guard drops repeated triggers of an operation while one is outstanding.
// It does not queue and it does not serialize different operations.
type Guard struct {
	mu      sync.Mutex
	running map[string]bool
}

// NewGuard returns an idle guard.
func NewGuard() *Guard {
	return &Guard{running: make(map[string]bool)}
}

// Do runs fn unless op is already running, in which case it returns
// domain.ErrInFlight without calling fn.
func (g *Guard) Do(op string, fn func() error) error {
	if !g.acquire(op) {
		return domain.ErrInFlight
	}
	defer g.release(op)
	return fn()
}

// Running reports whether op is in flight.
func (g *Guard) Running(op string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running[op]
}

func (g *Guard) acquire(op string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running[op] {
		return false
	}
	g.running[op] = true
	return true
}

func (g *Guard) release(op string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, op)
}
