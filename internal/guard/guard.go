// Package guard debounces duplicate submissions from a single terminal: a
// repeat of the same logical action while the first is in flight, or within
// the dedupe window after it finished, must be explicitly confirmed before it
// runs again. It is a safeguard layered on top of — not a substitute for —
// the services' own idempotency (AlreadyProcessed on split payments).
package guard

import (
	"context"
	"sync"
	"time"
)

// DefaultWindow is the dedupe window applied after an action completes.
const DefaultWindow = 2 * time.Second

// Guard decides whether an action may proceed.
type Guard interface {
	// Begin returns false when the action is a duplicate that needs
	// confirmation. On true, the action is marked in flight and the caller
	// must call Finish when done.
	Begin(ctx context.Context, terminalID, actionID string) (bool, error)
	// Finish marks the action complete, starting the dedupe window.
	Finish(ctx context.Context, terminalID, actionID string)
}

type entry struct {
	inFlight   bool
	finishedAt time.Time
}

// Memory is the single-process Guard. The Redis guard is its multi-instance
// pair.
type Memory struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[string]entry
	now     func() time.Time
}

// NewMemory creates an in-process guard. A zero window falls back to
// DefaultWindow.
func NewMemory(window time.Duration) *Memory {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Memory{
		window:  window,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (g *Memory) Begin(ctx context.Context, terminalID, actionID string) (bool, error) {
	key := terminalID + "|" + actionID
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.prune(now)

	e, ok := g.entries[key]
	if ok && (e.inFlight || now.Sub(e.finishedAt) < g.window) {
		return false, nil
	}
	g.entries[key] = entry{inFlight: true}
	return true, nil
}

func (g *Memory) Finish(ctx context.Context, terminalID, actionID string) {
	key := terminalID + "|" + actionID
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries[key] = entry{finishedAt: g.now()}
}

// prune drops expired entries opportunistically; callers hold the lock.
func (g *Memory) prune(now time.Time) {
	for k, e := range g.entries {
		if !e.inFlight && now.Sub(e.finishedAt) >= g.window {
			delete(g.entries, k)
		}
	}
}
