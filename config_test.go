package authcore

import (
	"testing"
	"time"
)

func TestDefaultConfigNeedsOnlyAKey(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected missing key to fail validation")
	}
	cfg.JWT.PrivateKey = testSecret
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate: %v", err)
	}

	if cfg.Session.Timeout != 30*time.Minute || cfg.Session.RememberTTL != 7*24*time.Hour {
		t.Fatalf("unexpected session defaults: %+v", cfg.Session)
	}
	if cfg.Lockout.MaxAttempts != 5 || cfg.Lockout.Duration != 15*time.Minute {
		t.Fatalf("unexpected lockout defaults: %+v", cfg.Lockout)
	}
	if cfg.JWT.AccessTTL != 24*time.Hour || cfg.Session.ReapInterval != 5*time.Minute {
		t.Fatal("unexpected token or reaper defaults")
	}
}

func TestConfigValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"zero access ttl":       func(c *Config) { c.JWT.AccessTTL = 0 },
		"short hs256 secret":    func(c *Config) { c.JWT.PrivateKey = []byte("short") },
		"unknown method":        func(c *Config) { c.JWT.SigningMethod = "rs512" },
		"ed25519 no public":     func(c *Config) { c.JWT.SigningMethod = "ed25519" },
		"zero timeout":          func(c *Config) { c.Session.Timeout = 0 },
		"remember below":        func(c *Config) { c.Session.RememberTTL = time.Minute },
		"zero reap interval":    func(c *Config) { c.Session.ReapInterval = 0 },
		"unknown algorithm":     func(c *Config) { c.Password.Algorithm = "md5" },
		"zero min length":       func(c *Config) { c.Password.MinLength = 0 },
		"min beyond bcrypt":     func(c *Config) { c.Password.MinLength = 80 },
		"zero attempts":         func(c *Config) { c.Lockout.MaxAttempts = 0 },
		"zero lockout":          func(c *Config) { c.Lockout.Duration = 0 },
		"name bounds inverted":  func(c *Config) { c.Registration.NameMaxLength = 1 },
		"no roles":              func(c *Config) { c.Roles = nil },
		"default role missing":  func(c *Config) { c.Registration.DefaultRole = "member" },
		"zero event buffer":     func(c *Config) { c.Events.BufferSize = 0 },
		"negative concurrency":  func(c *Config) { c.Password.HashConcurrency = -1 },
		"negative publish wait": func(c *Config) { c.Events.PublishTimeout = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCloneConfigIsDeep(t *testing.T) {
	cfg := testConfig()
	clone := cloneConfig(cfg)

	clone.JWT.PrivateKey[0] = 'X'
	clone.Roles["user"][0] = "write"
	if cfg.JWT.PrivateKey[0] == 'X' {
		t.Fatal("key shared with clone")
	}
	if cfg.Roles["user"][0] != "read" {
		t.Fatal("roles shared with clone")
	}
}

func TestBuilderRequiresDirectoryAndSingleUse(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("expected missing directory error")
	}

	b := New().WithConfig(testConfig()).WithDirectory(newMemDirectory())
	e, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer e.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Lockout.MaxAttempts = 0
	if _, err := New().WithConfig(cfg).WithDirectory(newMemDirectory()).Build(); err == nil {
		t.Fatal("expected config error")
	}
}

func TestEngineConfigIsACopy(t *testing.T) {
	te := newTestEngine(t)
	cfg := te.Config()
	cfg.Roles["user"] = append(cfg.Roles["user"], "write")
	if te.Permissions("user")[0] != "read" || len(te.Config().Roles["user"]) != 1 {
		t.Fatal("engine configuration leaked")
	}
}

func TestSecurityReportReflectsConfig(t *testing.T) {
	te := newTestEngine(t, func(c *Config) { c.Lockout.MaxAttempts = 7 })
	r := te.SecurityReport()
	if r.SigningAlgorithm != "hs256" || r.MaxLoginAttempts != 7 || r.BcryptCost != 4 {
		t.Fatalf("unexpected report: %+v", r)
	}
	if r.RefreshRotationEnabled || r.SessionCapsActive {
		t.Fatal("rotation and caps are not implemented")
	}
	if len(r.Roles) != 4 {
		t.Fatalf("expected default roles, got %v", r.Roles)
	}
}
