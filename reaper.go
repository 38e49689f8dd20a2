package authcore

import (
	"context"
	"sync"
	"time"

	"github.com/fusione/authcore/session"
)

// Reaper periodically evicts sessions past their expiry or idle timeout and
// prunes stale login-attempt records.
type Reaper struct {
	engine   *Engine
	interval time.Duration

	mu      sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup
	running bool
	retired bool // set by Engine.Close; Start is a no-op afterwards
}

func newReaper(e *Engine, interval time.Duration) *Reaper {
	return &Reaper{engine: e, interval: interval}
}

// StartReaper starts the Engine's background reaper. Close stops it.
func (e *Engine) StartReaper() {
	if !e.ready() {
		return
	}
	e.reaper.Start()
}

// Reaper returns the Engine's reaper.
func (e *Engine) Reaper() *Reaper {
	if e == nil {
		return nil
	}
	return e.reaper
}

// Start launches the sweep loop. Calling Start on a running Reaper, or
// after the Engine is closed, does nothing.
func (r *Reaper) Start() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running || r.retired {
		return
	}
	r.running = true
	r.stop = make(chan struct{})

	r.wg.Add(1)
	go r.loop(r.stop)
}

// Stop ends the loop and waits for an in-flight sweep to finish. The Reaper
// can be started again.
func (r *Reaper) Stop() {
	r.halt(false)
}

// retire stops the loop for good.
func (r *Reaper) retire() {
	r.halt(true)
}

func (r *Reaper) halt(retire bool) {
	if r == nil {
		return
	}
	r.mu.Lock()
	if retire {
		r.retired = true
	}
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stop)
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *Reaper) loop(stop <-chan struct{}) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep runs one eviction pass and returns the number of sessions removed.
func (r *Reaper) Sweep() int {
	if r == nil {
		return 0
	}
	e := r.engine
	timeout := e.config.Session.Timeout

	removed := e.sessions.Sweep(func(s *session.Session) bool {
		return s.Expiry(e.now(), timeout) != session.NotExpired
	})
	pruned := e.guard.Prune()

	ctx := context.Background()
	for i := range removed {
		e.emitLogout(ctx, removed[i].UserID, removed[i].ID, ReasonExpired)
	}
	if n := len(removed); n > 0 {
		e.metrics.Add(MetricSessionExpired, uint64(n))
		e.logger.Info("reaper evicted sessions", "count", n, "attempts_pruned", pruned)
	} else {
		e.logger.Debug("reaper pass", "attempts_pruned", pruned)
	}
	return len(removed)
}
