package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newHSManager(t *testing.T, now func() time.Time) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		AccessTTL:     24 * time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    testSecret,
		Issuer:        "authcore",
		Now:           now,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	m := newHSManager(t, nil)

	tok, err := m.IssueAccess(AccessSubject{UserID: "u1", Email: "alice@x.io", Role: "admin", SessionID: "s1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := m.VerifyAccess(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UID != "u1" || claims.SID != "s1" || claims.Role != "admin" || claims.Email != "alice@x.io" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if ttl != 24*time.Hour {
		t.Fatalf("expected 24h lifetime, got %s", ttl)
	}
}

func TestVerifyAccessRejectsExpiredWithInjectedClock(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	m := newHSManager(t, clock)

	tok, err := m.IssueAccess(AccessSubject{UserID: "u1", Role: "user", SessionID: "s1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	now = now.Add(24*time.Hour + time.Second)
	if _, err := m.VerifyAccess(tok); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestVerifyAccessRejectsTamperedSignature(t *testing.T) {
	m := newHSManager(t, nil)
	tok, err := m.IssueAccess(AccessSubject{UserID: "u1", Role: "user", SessionID: "s1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	parts := strings.Split(tok, ".")
	parts[2] = strings.Repeat("A", len(parts[2]))
	if _, err := m.VerifyAccess(strings.Join(parts, ".")); err == nil {
		t.Fatal("expected tampered token to fail")
	}

	other, err := NewManager(Config{AccessTTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: []byte("ffffffffffffffffffffffffffffffff"), Issuer: "authcore"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := other.VerifyAccess(tok); err == nil {
		t.Fatal("expected token signed with a different secret to fail")
	}
}

func TestVerifyAccessRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := AccessClaims{UID: "u", SID: "s1", RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims)
	token, err := tok.SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.VerifyAccess(token); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestVerifyAccessRequiresSessionClaim(t *testing.T) {
	m := newHSManager(t, nil)
	claims := AccessClaims{UID: "u", RegisteredClaims: gjwt.RegisteredClaims{
		Issuer:    "authcore",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.VerifyAccess(token); err == nil {
		t.Fatal("expected token without sid to be rejected")
	}
}

func TestVerifyAccessIssuerAndLeeway(t *testing.T) {
	_, priv := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     priv.Public().(ed25519.PublicKey),
		Issuer:        "authcore",
		Leeway:        30 * time.Second,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	access, err := m.IssueAccess(AccessSubject{UserID: "u", Role: "user", SessionID: "s1"})
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	if _, err := m.VerifyAccess(access); err != nil {
		t.Fatalf("expected valid token to parse: %v", err)
	}

	wrongIssuer := AccessClaims{UID: "u", SID: "s1", RegisteredClaims: gjwt.RegisteredClaims{
		Issuer:    "other",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
	}}
	badIssuer, _ := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, wrongIssuer).SignedString(priv)
	if _, err := m.VerifyAccess(badIssuer); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}

	expWithinLeeway := AccessClaims{UID: "u", SID: "s1", RegisteredClaims: gjwt.RegisteredClaims{
		Issuer:    "authcore",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(-15 * time.Second)),
		IssuedAt:  gjwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}
	within, _ := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, expWithinLeeway).SignedString(priv)
	if _, err := m.VerifyAccess(within); err != nil {
		t.Fatalf("expected token within leeway to pass: %v", err)
	}

	futureIAT := AccessClaims{UID: "u", SID: "s1", RegisteredClaims: gjwt.RegisteredClaims{
		Issuer:    "authcore",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(2 * time.Hour)),
		IssuedAt:  gjwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	future, _ := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, futureIAT).SignedString(priv)
	if _, err := m.VerifyAccess(future); err == nil {
		t.Fatal("expected far-future iat to fail")
	}
}

func TestVerifyAccessUnknownKidFails(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv1,
		PublicKey:     pub1,
		KeyID:         "k1",
		VerifyKeys:    map[string][]byte{"k1": pub1},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := AccessClaims{UID: "u", SID: "s1", RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = "k2"
	token, err := tok.SignedString(priv1)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.VerifyAccess(token); err == nil {
		t.Fatal("expected unknown kid failure")
	}

	good, err := m.IssueAccess(AccessSubject{UserID: "u", SessionID: "s1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.VerifyAccess(good); err != nil {
		t.Fatalf("expected known kid token to pass: %v", err)
	}
}

func TestNewManagerRejectsWeakConfig(t *testing.T) {
	cases := map[string]Config{
		"zero ttl":      {SigningMethod: MethodHS256, PrivateKey: testSecret},
		"short secret":  {AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("short")},
		"bad method":    {AccessTTL: time.Minute, SigningMethod: "rs256", PrivateKey: testSecret},
		"huge leeway":   {AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: testSecret, Leeway: time.Hour},
		"ed no pub key": {AccessTTL: time.Minute, SigningMethod: MethodEd25519},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewManager(cfg); err == nil {
				t.Fatal("expected config error")
			}
		})
	}
}
