package directory

import (
	"context"
	"sort"
	"sync"

	"github.com/fusione/authcore"
	"github.com/samber/oops"
)

// Memory is a map-backed Directory.
type Memory struct {
	mu      sync.RWMutex
	byID    map[string]authcore.UserRecord
	byEmail map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		byID:    make(map[string]authcore.UserRecord),
		byEmail: make(map[string]string),
	}
}

func (m *Memory) FindByEmail(_ context.Context, email string) (*authcore.UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[email]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("email", email).Wrap(authcore.ErrUserNotFound)
	}
	rec := m.byID[id]
	return &rec, nil
}

func (m *Memory) FindByID(_ context.Context, id string) (*authcore.UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.byID[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(authcore.ErrUserNotFound)
	}
	return &rec, nil
}

// Save inserts or replaces user. The email must not belong to another id.
func (m *Memory) Save(_ context.Context, user authcore.UserRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if owner, ok := m.byEmail[user.Email]; ok && owner != user.ID {
		return oops.Code("USER_DUPLICATE").With("email", user.Email).Wrap(authcore.ErrDuplicateUser)
	}
	if prev, ok := m.byID[user.ID]; ok && prev.Email != user.Email {
		delete(m.byEmail, prev.Email)
	}
	m.byID[user.ID] = user
	m.byEmail[user.Email] = user.ID
	return nil
}

func (m *Memory) UpdatePasswordHash(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byID[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(authcore.ErrUserNotFound)
	}
	rec.PasswordHash = hash
	m.byID[id] = rec
	return nil
}

// SetActive flips the active flag of id.
func (m *Memory) SetActive(_ context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byID[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(authcore.ErrUserNotFound)
	}
	rec.Active = active
	m.byID[id] = rec
	return nil
}

// Delete removes id. Deleting an unknown id is not an error.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.byID[id]; ok {
		delete(m.byEmail, rec.Email)
		delete(m.byID, id)
	}
	return nil
}

// List returns every user ordered by email.
func (m *Memory) List() []authcore.UserRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]authcore.UserRecord, 0, len(m.byID))
	for _, rec := range m.byID {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}
