package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/fusione/authcore"
	"github.com/fusione/authcore/directory"
	"github.com/fusione/authcore/events"
	"github.com/fusione/authcore/logging"
	"github.com/spf13/cobra"
)

const demoPassword = "Str0ng!Pass"

// demoClock lets the demo jump past the lockout window.
type demoClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *demoClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *demoClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func NewDemoCmd() *cobra.Command {
	var showEvents bool
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Walk through login, lockout and invalidation against an in-memory directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var eventsOut io.Writer = io.Discard
			if showEvents {
				eventsOut = cmd.ErrOrStderr()
			}
			return runDemo(cmd.Context(), cmd.OutOrStdout(), eventsOut)
		},
	}
	cmd.Flags().BoolVar(&showEvents, "events", false, "log published security events to stderr")
	return cmd
}

func runDemo(ctx context.Context, out, eventsOut io.Writer) error {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return err
	}

	cfg := authcore.DefaultConfig()
	cfg.JWT.PrivateKey = secret
	cfg.Password.BcryptCost = 4
	cfg.Password.UpgradeOnLogin = false

	clock := &demoClock{now: time.Now()}
	logger := logging.Setup("authcore-demo", version, logging.Options{Format: "text", Level: "warn"}, eventsOut)

	engine, err := authcore.New().
		WithConfig(cfg).
		WithDirectory(directory.NewMemory()).
		WithEventBus(events.NewLogBus(logging.Setup("authcore-demo", version, logging.Options{Format: "text"}, eventsOut), slog.LevelInfo)).
		WithLogger(logger).
		WithClock(clock.Now).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	step := func(format string, args ...any) {
		fmt.Fprintf(out, format+"\n", args...)
	}

	// Register, log in, validate, log out.
	alice, err := engine.Register(ctx, authcore.RegisterRequest{Email: "alice@example.com", Password: demoPassword, Name: "Alice"})
	if err != nil {
		return fmt.Errorf("register alice: %w", err)
	}
	step("registered %s (id %s, role %s)", alice.Email, alice.ID, alice.Role)

	s1, err := engine.Login(ctx, authcore.LoginRequest{Email: "alice@example.com", Password: demoPassword})
	if err != nil {
		return fmt.Errorf("login alice: %w", err)
	}
	step("alice logged in: session %s expires %s", s1.Session.ID, s1.Session.ExpiresAt.Format(time.RFC3339))

	res, err := engine.ValidateAccess(ctx, s1.Tokens.AccessToken)
	if err != nil {
		return fmt.Errorf("validate alice: %w", err)
	}
	step("access token valid for %s", res.User.Email)

	if err := engine.Logout(ctx, s1.Session.ID); err != nil {
		return fmt.Errorf("logout alice: %w", err)
	}
	if _, err := engine.ValidateAccess(ctx, s1.Tokens.AccessToken); !errors.Is(err, authcore.ErrInvalidAccessToken) {
		return fmt.Errorf("token still valid after logout: %v", err)
	}
	step("after logout the access token is rejected")

	// Lockout.
	if _, err := engine.Register(ctx, authcore.RegisterRequest{Email: "bob@example.com", Password: demoPassword, Name: "Bob"}); err != nil {
		return fmt.Errorf("register bob: %w", err)
	}
	for i := 1; i <= cfg.Lockout.MaxAttempts; i++ {
		_, err := engine.Login(ctx, authcore.LoginRequest{Email: "bob@example.com", Password: "wrong-password"})
		step("bob attempt %d: %v", i, err)
	}
	_, err = engine.Login(ctx, authcore.LoginRequest{Email: "bob@example.com", Password: demoPassword})
	var locked *authcore.Error
	if !errors.As(err, &locked) || locked.Kind != authcore.KindAccountLocked {
		return fmt.Errorf("expected lockout, got %v", err)
	}
	step("bob with the correct password: %v", err)

	clock.Advance(cfg.Lockout.Duration + time.Second)
	if _, err := engine.Login(ctx, authcore.LoginRequest{Email: "bob@example.com", Password: demoPassword}); err != nil {
		return fmt.Errorf("login bob after lockout: %w", err)
	}
	step("after %s bob logs in again", cfg.Lockout.Duration)

	// Invalidate all of alice's sessions.
	a1, err := engine.Login(ctx, authcore.LoginRequest{Email: "alice@example.com", Password: demoPassword})
	if err != nil {
		return err
	}
	a2, err := engine.Login(ctx, authcore.LoginRequest{Email: "alice@example.com", Password: demoPassword, RememberMe: true})
	if err != nil {
		return err
	}
	n, err := engine.InvalidateUserSessions(ctx, alice.ID, authcore.ReasonSuspicious)
	if err != nil {
		return err
	}
	for _, tok := range []string{a1.Tokens.AccessToken, a2.Tokens.AccessToken} {
		if _, err := engine.ValidateAccess(ctx, tok); err == nil {
			return errors.New("session survived invalidation")
		}
	}
	step("invalidated %d sessions for alice; both tokens are rejected", n)

	stats := engine.Stats()
	step("active sessions: %d, tracked login attempts: %d", stats.ActiveSessions, stats.LoginAttempts)
	return nil
}
