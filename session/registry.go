package session

import (
	"errors"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

var (
	// ErrNotFound is returned when a session id is not live.
	ErrNotFound = errors.New("session not found")
	// ErrExists is returned by Insert on an id collision.
	ErrExists = errors.New("session already exists")
	// ErrRefreshUnknown is returned for refresh tokens with no binding.
	ErrRefreshUnknown = errors.New("refresh token not found")
	// ErrRefreshExpired is returned for bindings past their expiry; the
	// binding is dropped.
	ErrRefreshExpired = errors.New("refresh token expired")
	// ErrEvict may be returned by an Update callback to remove the session.
	ErrEvict = errors.New("session evicted")
)

// DefaultShards is used when NewRegistry is given a non-positive count.
const DefaultShards = 32

type shard struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// Registry holds live sessions and the refresh-token index in memory.
//
// Sessions are spread over shards by xxhash of the id; each shard has its
// own mutex, so operations on one session serialize while unrelated
// sessions proceed in parallel. The refresh index has a separate mutex.
// Lock order is shard, then refresh index.
type Registry struct {
	shards []*shard

	refreshMu sync.Mutex
	refresh   map[[32]byte]Binding
}

// NewRegistry returns an empty registry with n shards.
func NewRegistry(n int) *Registry {
	if n <= 0 {
		n = DefaultShards
	}
	r := &Registry{
		shards:  make([]*shard, n),
		refresh: make(map[[32]byte]Binding),
	}
	for i := range r.shards {
		r.shards[i] = &shard{sessions: make(map[string]*Session)}
	}
	return r
}

func (r *Registry) shardFor(id string) *shard {
	return r.shards[xxhash.Sum64String(id)%uint64(len(r.shards))]
}

// Insert adds s and its refresh binding.
func (r *Registry) Insert(s Session) error {
	sh := r.shardFor(s.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.sessions[s.ID]; ok {
		return ErrExists
	}
	stored := s
	sh.sessions[s.ID] = &stored

	r.refreshMu.Lock()
	r.refresh[s.RefreshHash] = Binding{SessionID: s.ID, UserID: s.UserID, ExpiresAt: s.ExpiresAt}
	r.refreshMu.Unlock()
	return nil
}

// Get returns a copy of the session.
func (r *Registry) Get(id string) (Session, bool) {
	sh := r.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	s, ok := sh.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Update runs fn on the session under its shard lock and returns a copy of
// the result. If fn returns ErrEvict the session and its binding are removed
// and the pre-eviction copy is returned with ErrEvict. Any other error
// leaves the session untouched.
//
// fn must not block or call back into the Registry.
func (r *Registry) Update(id string, fn func(*Session) error) (Session, error) {
	sh := r.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	s, ok := sh.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	work := *s
	if err := fn(&work); err != nil {
		if errors.Is(err, ErrEvict) {
			r.removeLocked(sh, s)
			return *s, ErrEvict
		}
		return *s, err
	}
	*s = work
	return work, nil
}

// Remove deletes the session and its refresh binding.
func (r *Registry) Remove(id string) (Session, bool) {
	sh := r.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	s, ok := sh.sessions[id]
	if !ok {
		return Session{}, false
	}
	r.removeLocked(sh, s)
	return *s, true
}

func (r *Registry) removeLocked(sh *shard, s *Session) {
	delete(sh.sessions, s.ID)

	r.refreshMu.Lock()
	if b, ok := r.refresh[s.RefreshHash]; ok && b.SessionID == s.ID {
		delete(r.refresh, s.RefreshHash)
	}
	r.refreshMu.Unlock()
}

// LookupRefresh resolves a refresh fingerprint. Expired bindings are
// dropped and reported as ErrRefreshExpired.
func (r *Registry) LookupRefresh(hash [32]byte, now time.Time) (Binding, error) {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	b, ok := r.refresh[hash]
	if !ok {
		return Binding{}, ErrRefreshUnknown
	}
	if now.After(b.ExpiresAt) {
		delete(r.refresh, hash)
		return Binding{}, ErrRefreshExpired
	}
	return b, nil
}

// DropRefresh removes a binding without touching its session.
func (r *Registry) DropRefresh(hash [32]byte) {
	r.refreshMu.Lock()
	delete(r.refresh, hash)
	r.refreshMu.Unlock()
}

// UserSessions returns copies of every live session owned by userID.
func (r *Registry) UserSessions(userID string) []Session {
	var out []Session
	for _, sh := range r.shards {
		sh.mu.Lock()
		for _, s := range sh.sessions {
			if s.UserID == userID {
				out = append(out, *s)
			}
		}
		sh.mu.Unlock()
	}
	return out
}

// Sweep removes every session for which evict returns true and returns
// copies of the removed sessions. Each shard is evaluated under its own
// lock, so a session touched concurrently is judged on its latest state.
func (r *Registry) Sweep(evict func(*Session) bool) []Session {
	var removed []Session
	for _, sh := range r.shards {
		sh.mu.Lock()
		for _, s := range sh.sessions {
			if evict(s) {
				r.removeLocked(sh, s)
				removed = append(removed, *s)
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	n := 0
	for _, sh := range r.shards {
		sh.mu.Lock()
		n += len(sh.sessions)
		sh.mu.Unlock()
	}
	return n
}

// RefreshLen returns the number of refresh bindings.
func (r *Registry) RefreshLen() int {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()
	return len(r.refresh)
}

// Clear drops every session and binding.
func (r *Registry) Clear() {
	for _, sh := range r.shards {
		sh.mu.Lock()
		sh.sessions = make(map[string]*Session)
		sh.mu.Unlock()
	}
	r.refreshMu.Lock()
	r.refresh = make(map[[32]byte]Binding)
	r.refreshMu.Unlock()
}
