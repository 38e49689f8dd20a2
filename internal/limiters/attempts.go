package limiters

import (
	"errors"
	"sync"
	"time"
)

// AttemptConfig holds the lockout policy of an AttemptGuard.
type AttemptConfig struct {
	MaxAttempts int
	Window      time.Duration

	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

// ErrLocked is returned by CheckAllowed while an identifier is locked out.
var ErrLocked = errors.New("too many failed login attempts")

type attemptRecord struct {
	count       int
	lastFailure time.Time
}

// AttemptGuard counts failed logins per identifier in memory and locks an
// identifier out for Window after MaxAttempts consecutive failures.
//
// A record expires once Window has elapsed since its last failure. Expired
// records are dropped lazily by CheckAllowed and RecordFailure, and in bulk
// by Prune.
type AttemptGuard struct {
	mu      sync.Mutex
	records map[string]*attemptRecord
	config  AttemptConfig
}

// NewAttemptGuard returns an empty guard.
func NewAttemptGuard(cfg AttemptConfig) *AttemptGuard {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &AttemptGuard{records: make(map[string]*attemptRecord), config: cfg}
}

func (g *AttemptGuard) stale(r *attemptRecord, now time.Time) bool {
	return now.Sub(r.lastFailure) >= g.config.Window
}

// CheckAllowed returns ErrLocked and the remaining lockout time when id has
// reached MaxAttempts within Window.
func (g *AttemptGuard) CheckAllowed(id string) (time.Duration, error) {
	now := g.config.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.records[id]
	if !ok {
		return 0, nil
	}
	if g.stale(r, now) {
		delete(g.records, id)
		return 0, nil
	}
	if r.count >= g.config.MaxAttempts {
		return r.lastFailure.Add(g.config.Window).Sub(now), ErrLocked
	}
	return 0, nil
}

// RecordFailure increments the failure count of id and returns the new count
// and whether id is now locked.
func (g *AttemptGuard) RecordFailure(id string) (int, bool) {
	now := g.config.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.records[id]
	if !ok || g.stale(r, now) {
		r = &attemptRecord{}
		g.records[id] = r
	}
	r.count++
	r.lastFailure = now
	return r.count, r.count >= g.config.MaxAttempts
}

// Clear forgets id, typically after a successful login.
func (g *AttemptGuard) Clear(id string) {
	g.mu.Lock()
	delete(g.records, id)
	g.mu.Unlock()
}

// Failures returns the live failure count of id.
func (g *AttemptGuard) Failures(id string) int {
	now := g.config.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.records[id]
	if !ok || g.stale(r, now) {
		return 0
	}
	return r.count
}

// Len returns the number of tracked identifiers, stale ones included.
func (g *AttemptGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.records)
}

// Prune drops every stale record and returns how many were removed.
func (g *AttemptGuard) Prune() int {
	now := g.config.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for id, r := range g.records {
		if g.stale(r, now) {
			delete(g.records, id)
			removed++
		}
	}
	return removed
}

// Reset forgets every identifier.
func (g *AttemptGuard) Reset() {
	g.mu.Lock()
	g.records = make(map[string]*attemptRecord)
	g.mu.Unlock()
}
