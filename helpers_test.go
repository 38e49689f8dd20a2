package authcore

import (
	"context"
	"sync"
	"testing"
	"time"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memDirectory is a map-backed Directory.
type memDirectory struct {
	mu      sync.Mutex
	byID    map[string]UserRecord
	byEmail map[string]string
	failAll error
}

func newMemDirectory() *memDirectory {
	return &memDirectory{
		byID:    map[string]UserRecord{},
		byEmail: map[string]string{},
	}
}

func (d *memDirectory) FindByEmail(_ context.Context, email string) (*UserRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failAll != nil {
		return nil, d.failAll
	}
	id, ok := d.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	rec := d.byID[id]
	return &rec, nil
}

func (d *memDirectory) FindByID(_ context.Context, id string) (*UserRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failAll != nil {
		return nil, d.failAll
	}
	rec, ok := d.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &rec, nil
}

func (d *memDirectory) Save(_ context.Context, user UserRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failAll != nil {
		return d.failAll
	}
	if id, ok := d.byEmail[user.Email]; ok && id != user.ID {
		return ErrDuplicateUser
	}
	d.byID[user.ID] = user
	d.byEmail[user.Email] = user.ID
	return nil
}

func (d *memDirectory) UpdatePasswordHash(_ context.Context, id, hash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	rec.PasswordHash = hash
	d.byID[id] = rec
	return nil
}

func (d *memDirectory) update(id string, fn func(*UserRecord)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec := d.byID[id]
	fn(&rec)
	d.byID[id] = rec
}

func (d *memDirectory) delete(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.byID[id]
	if !ok {
		return
	}
	delete(d.byID, id)
	delete(d.byEmail, rec.Email)
}

type publishedEvent struct {
	Name    string
	Payload map[string]any
}

// recordingBus collects published events.
type recordingBus struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (b *recordingBus) Publish(_ context.Context, name string, payload map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, publishedEvent{Name: name, Payload: payload})
	return b.err
}

func (b *recordingBus) named(name string) []publishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []publishedEvent
	for _, ev := range b.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = testSecret
	cfg.Password.BcryptCost = 4
	cfg.Password.UpgradeOnLogin = false
	return cfg
}

type testEngine struct {
	*Engine
	clock *fakeClock
	dir   *memDirectory
	bus   *recordingBus
}

func newTestEngine(t *testing.T, mutate ...func(*Config)) *testEngine {
	t.Helper()

	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	clock := newFakeClock()
	dir := newMemDirectory()
	bus := &recordingBus{}

	engine, err := New().
		WithConfig(cfg).
		WithDirectory(dir).
		WithEventBus(bus).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEngine{Engine: engine, clock: clock, dir: dir, bus: bus}
}

func (te *testEngine) mustRegister(t *testing.T, email, name string) *User {
	t.Helper()
	u, err := te.Register(context.Background(), RegisterRequest{
		Email:    email,
		Password: "Str0ng!Pass",
		Name:     name,
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return u
}

func (te *testEngine) mustLogin(t *testing.T, email string) *LoginResult {
	t.Helper()
	res, err := te.Login(context.Background(), LoginRequest{Email: email, Password: "Str0ng!Pass"})
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return res
}

// flushEvents closes the engine so every queued event has been published.
func (te *testEngine) flushEvents() {
	te.Close()
}
