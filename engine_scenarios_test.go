package authcore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestAliceRegisterLoginValidateLogout(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	alice := te.mustRegister(t, "alice@example.com", "Alice")
	login := te.mustLogin(t, "alice@example.com")
	if login.Session.UserID != alice.ID {
		t.Fatalf("session bound to %q, want %q", login.Session.UserID, alice.ID)
	}
	if login.Tokens.AccessToken == "" || login.Tokens.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}

	v, err := te.ValidateAccess(ctx, login.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if v.User.ID != alice.ID || v.User.Email != "alice@example.com" || v.User.Name != "Alice" {
		t.Fatalf("unexpected user: %+v", v.User)
	}
	if v.Session.ID != login.Session.ID {
		t.Fatalf("validated session %q, want %q", v.Session.ID, login.Session.ID)
	}

	if err := te.Logout(ctx, login.Session.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := te.ValidateAccess(ctx, login.Tokens.AccessToken); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected ErrInvalidAccessToken after logout, got %v", err)
	}
}

func TestBobLockoutAndRecovery(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	te.mustRegister(t, "bob@example.com", "Bob")

	for i := 0; i < 5; i++ {
		_, err := te.Login(ctx, LoginRequest{Email: "bob@example.com", Password: "wrong!pass"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	_, err := te.Login(ctx, LoginRequest{Email: "bob@example.com", Password: "Str0ng!Pass"})
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
	var lockErr *Error
	if !errors.As(err, &lockErr) || lockErr.RetryAfter != 15*time.Minute {
		t.Fatalf("expected 15m retry-after, got %+v", lockErr)
	}

	te.clock.Advance(14 * time.Minute)
	if _, err := te.Login(ctx, LoginRequest{Email: "bob@example.com", Password: "Str0ng!Pass"}); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected lock to hold inside the window, got %v", err)
	}

	te.clock.Advance(time.Minute + time.Second)
	if _, err := te.Login(ctx, LoginRequest{Email: "bob@example.com", Password: "Str0ng!Pass"}); err != nil {
		t.Fatalf("expected login after the window, got %v", err)
	}
	if got := te.Stats().LoginAttempts; got != 0 {
		t.Fatalf("expected attempts cleared, got %d", got)
	}
}

func TestInvalidateUserSessionsEndsEverySession(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	alice := te.mustRegister(t, "alice@example.com", "Alice")
	first := te.mustLogin(t, "alice@example.com")
	second := te.mustLogin(t, "alice@example.com")
	if first.Session.ID == second.Session.ID {
		t.Fatal("expected distinct sessions")
	}

	n, err := te.InvalidateUserSessions(ctx, alice.ID, ReasonLogout)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 sessions removed, got %d (%v)", n, err)
	}
	for _, tok := range []string{first.Tokens.AccessToken, second.Tokens.AccessToken} {
		if _, err := te.ValidateAccess(ctx, tok); !errors.Is(err, ErrInvalidAccessToken) {
			t.Fatalf("expected ErrInvalidAccessToken, got %v", err)
		}
	}

	n, err = te.InvalidateUserSessions(ctx, alice.ID, ReasonLogout)
	if err != nil || n != 0 {
		t.Fatalf("expected idempotent second call, got %d (%v)", n, err)
	}
}

func TestSuccessfulLoginClearsFailures(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	te.mustRegister(t, "carol@example.com", "Carol")

	for i := 0; i < 4; i++ {
		_, _ = te.Login(ctx, LoginRequest{Email: "carol@example.com", Password: "nope!nope"})
	}
	te.mustLogin(t, "carol@example.com")

	// A fresh count: four more failures must not lock.
	for i := 0; i < 4; i++ {
		_, err := te.Login(ctx, LoginRequest{Email: "carol@example.com", Password: "nope!nope"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	}
	te.mustLogin(t, "carol@example.com")
}

func TestRefreshAfterLogoutNeverResurrects(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	te.mustRegister(t, "dave@example.com", "Dave")
	login := te.mustLogin(t, "dave@example.com")

	if err := te.Logout(ctx, login.Session.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := te.Refresh(ctx, login.Tokens.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
			t.Fatalf("refresh %d: expected ErrInvalidRefreshToken, got %v", i+1, err)
		}
	}
	if got := te.Stats().ActiveSessions; got != 0 {
		t.Fatalf("expected no sessions, got %d", got)
	}
}

func TestReaperEvictsIdleAndKeepsFresh(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	te.mustRegister(t, "erin@example.com", "Erin")

	login := func() *LoginResult {
		res, err := te.Login(ctx, LoginRequest{Email: "erin@example.com", Password: "Str0ng!Pass", RememberMe: true})
		if err != nil {
			t.Fatalf("login: %v", err)
		}
		return res
	}
	idle := login()
	fresh := login()

	te.clock.Advance(20 * time.Minute)
	if _, err := te.ValidateAccess(ctx, fresh.Tokens.AccessToken); err != nil {
		t.Fatalf("touch fresh session: %v", err)
	}
	te.clock.Advance(15 * time.Minute)

	if n := te.Reaper().Sweep(); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if _, err := te.ValidateAccess(ctx, idle.Tokens.AccessToken); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("idle session should be gone, got %v", err)
	}
	if _, err := te.ValidateAccess(ctx, fresh.Tokens.AccessToken); err != nil {
		t.Fatalf("fresh session should survive: %v", err)
	}
	if _, err := te.Refresh(ctx, idle.Tokens.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("evicted session refresh should fail, got %v", err)
	}

	te.flushEvents()
	var expired int
	for _, ev := range te.bus.named(EventUserLogout) {
		if ev.Payload["reason"] == ReasonExpired {
			expired++
		}
	}
	if expired != 1 {
		t.Fatalf("expected one expired logout event, got %d", expired)
	}
}

func TestRegisteredUserNeverCarriesHash(t *testing.T) {
	te := newTestEngine(t)
	u := te.mustRegister(t, "frank@example.com", "Frank")
	login := te.mustLogin(t, "frank@example.com")

	for _, v := range []User{*u, login.User} {
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if strings.Contains(string(raw), "$2") || strings.Contains(strings.ToLower(string(raw)), "hash") {
			t.Fatalf("credential material leaked: %s", raw)
		}
	}
}

func TestRejectedValidationDoesNotKeepSessionAlive(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	u := te.mustRegister(t, "finn@example.com", "Finn")
	res, err := te.Login(ctx, LoginRequest{Email: "finn@example.com", Password: "Str0ng!Pass", RememberMe: true})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	before := res.Session.LastActivity

	te.dir.update(u.ID, func(r *UserRecord) { r.Active = false })
	te.clock.Advance(20 * time.Minute)
	if _, err := te.ValidateAccess(ctx, res.Tokens.AccessToken); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected ErrInvalidAccessToken for inactive user, got %v", err)
	}
	if s, ok := te.sessions.Get(res.Session.ID); !ok || !s.LastActivity.Equal(before) {
		t.Fatalf("rejected validation touched the session: %+v", s)
	}

	te.clock.Advance(15 * time.Minute)
	if n := te.Reaper().Sweep(); n != 1 {
		t.Fatalf("expected the idle session to be evicted, got %d", n)
	}
}
