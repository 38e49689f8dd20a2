package authcore

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/fusione/authcore/internal/audit"
	"github.com/fusione/authcore/internal/limiters"
	"github.com/fusione/authcore/jwt"
	"github.com/fusione/authcore/password"
	"github.com/fusione/authcore/permission"
	"github.com/fusione/authcore/session"
)

// Builder assembles an Engine. A Builder can be used once.
type Builder struct {
	config    Config
	directory Directory
	bus       EventBus
	logger    *slog.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithDirectory sets the user store. Required.
func (b *Builder) WithDirectory(d Directory) *Builder {
	b.directory = d
	return b
}

// WithEventBus sets where security events are published. Without one,
// events are discarded.
func (b *Builder) WithEventBus(bus EventBus) *Builder {
	b.bus = bus
	return b
}

func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock replaces time.Now for every time-dependent decision: token
// expiry, session expiry, idle timeouts and lockout windows.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and returns a ready Engine. The reaper
// is not started; call Engine.StartReaper.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.directory == nil {
		return nil, errors.New("directory required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "authcore")

	resolver, err := permission.NewResolver(cfg.Roles)
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewMulti(cfg.Password.Algorithm, cfg.Password.BcryptCost, cfg.Password.Argon2)
	if err != nil {
		return nil, err
	}
	pool := password.NewPool(hasher, cfg.Password.HashConcurrency)

	// Verified against when the email is unknown, so both paths cost one
	// hash comparison.
	var seed [16]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, err
	}
	dummyHash, err := hasher.Hash(hex.EncodeToString(seed[:]))
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	var sink audit.Sink = audit.NoOpSink{}
	if b.bus != nil {
		sink = busSink{bus: b.bus}
	}

	engine := &Engine{
		config:    cfg,
		directory: b.directory,
		resolver:  resolver,
		hasher:    pool,
		dummyHash: dummyHash,
		tokens:    jm,
		guard: limiters.NewAttemptGuard(limiters.AttemptConfig{
			MaxAttempts: cfg.Lockout.MaxAttempts,
			Window:      cfg.Lockout.Duration,
			Now:         now,
		}),
		sessions: session.NewRegistry(cfg.Session.Shards),
		events: audit.NewDispatcher(audit.Config{
			BufferSize:  cfg.Events.BufferSize,
			EmitTimeout: cfg.Events.PublishTimeout,
		}, sink, logger),
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger,
		now:     now,
	}
	engine.reaper = newReaper(engine, cfg.Session.ReapInterval)

	b.built = true

	return engine, nil
}
