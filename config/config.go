// Package config loads authcore settings with Viper: built-in defaults, then
// an optional YAML/JSON/.env file, then AUTHCORE_* environment variables.
//
// Environment keys are the dotted setting path upper-cased with dots
// replaced by underscores, e.g. AUTHCORE_JWT_SECRET or
// AUTHCORE_LOCKOUT_MAX_ATTEMPTS.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/fusione/authcore"
	"github.com/fusione/authcore/permission"
	"github.com/samber/oops"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "AUTHCORE"

// Directory backends understood by the authcore binary.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Settings mirrors authcore.Config in a file- and env-friendly shape, plus
// the process-level settings of the authcore binary.
type Settings struct {
	Server       ServerSettings       `mapstructure:"server"`
	Log          LogSettings          `mapstructure:"log"`
	Directory    DirectorySettings    `mapstructure:"directory"`
	JWT          JWTSettings          `mapstructure:"jwt"`
	Session      SessionSettings      `mapstructure:"session"`
	Password     PasswordSettings     `mapstructure:"password"`
	Lockout      LockoutSettings      `mapstructure:"lockout"`
	Registration RegistrationSettings `mapstructure:"registration"`
	Events       EventSettings        `mapstructure:"events"`
	Metrics      MetricsSettings      `mapstructure:"metrics"`
	Roles        map[string][]string  `mapstructure:"roles"`
}

type ServerSettings struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogSettings struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

// DirectorySettings selects the user store.
type DirectorySettings struct {
	Backend     string `mapstructure:"backend"`
	RedisAddr   string `mapstructure:"redis_addr"`
	RedisPrefix string `mapstructure:"redis_prefix"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// JWTSettings holds signing material. Secret is the hs256 key; the key
// files hold raw or PEM ed25519 keys.
type JWTSettings struct {
	AccessTTL      time.Duration `mapstructure:"access_ttl"`
	SigningMethod  string        `mapstructure:"signing_method"`
	Secret         string        `mapstructure:"secret"`
	PrivateKeyFile string        `mapstructure:"private_key_file"`
	PublicKeyFile  string        `mapstructure:"public_key_file"`
	Issuer         string        `mapstructure:"issuer"`
	Leeway         time.Duration `mapstructure:"leeway"`
}

type SessionSettings struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	RememberTTL  time.Duration `mapstructure:"remember_ttl"`
	ReapInterval time.Duration `mapstructure:"reap_interval"`
	Shards       int           `mapstructure:"shards"`
}

type PasswordSettings struct {
	Algorithm           string `mapstructure:"algorithm"`
	BcryptCost          int    `mapstructure:"bcrypt_cost"`
	Argon2Memory        uint32 `mapstructure:"argon2_memory"`
	Argon2Time          uint32 `mapstructure:"argon2_time"`
	Argon2Parallelism   uint8  `mapstructure:"argon2_parallelism"`
	MinLength           int    `mapstructure:"min_length"`
	RequireSpecialChars bool   `mapstructure:"require_special_chars"`
	UpgradeOnLogin      bool   `mapstructure:"upgrade_on_login"`
	HashConcurrency     int    `mapstructure:"hash_concurrency"`
}

type LockoutSettings struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Duration    time.Duration `mapstructure:"duration"`
}

type RegistrationSettings struct {
	DefaultRole   string `mapstructure:"default_role"`
	NameMinLength int    `mapstructure:"name_min_length"`
	NameMaxLength int    `mapstructure:"name_max_length"`
}

// EventSettings configures both the in-process dispatcher and the bus the
// binary publishes to ("log", "redis" or "none").
type EventSettings struct {
	Bus            string        `mapstructure:"bus"`
	RedisAddr      string        `mapstructure:"redis_addr"`
	ChannelPrefix  string        `mapstructure:"channel_prefix"`
	BufferSize     int           `mapstructure:"buffer_size"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

type MetricsSettings struct {
	Enabled                 bool `mapstructure:"enabled"`
	EnableLatencyHistograms bool `mapstructure:"enable_latency_histograms"`
}

func setDefaults(v *viper.Viper) {
	d := authcore.DefaultConfig()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("log.format", "json")
	v.SetDefault("log.level", "info")

	v.SetDefault("directory.backend", BackendMemory)
	v.SetDefault("directory.redis_addr", "localhost:6379")
	v.SetDefault("directory.redis_prefix", "auth:user:")
	v.SetDefault("directory.postgres_dsn", "")

	v.SetDefault("jwt.access_ttl", d.JWT.AccessTTL)
	v.SetDefault("jwt.signing_method", d.JWT.SigningMethod)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.private_key_file", "")
	v.SetDefault("jwt.public_key_file", "")
	v.SetDefault("jwt.issuer", d.JWT.Issuer)
	v.SetDefault("jwt.leeway", d.JWT.Leeway)

	v.SetDefault("session.timeout", d.Session.Timeout)
	v.SetDefault("session.remember_ttl", d.Session.RememberTTL)
	v.SetDefault("session.reap_interval", d.Session.ReapInterval)
	v.SetDefault("session.shards", d.Session.Shards)

	v.SetDefault("password.algorithm", d.Password.Algorithm)
	v.SetDefault("password.bcrypt_cost", d.Password.BcryptCost)
	v.SetDefault("password.argon2_memory", d.Password.Argon2.Memory)
	v.SetDefault("password.argon2_time", d.Password.Argon2.Time)
	v.SetDefault("password.argon2_parallelism", d.Password.Argon2.Parallelism)
	v.SetDefault("password.min_length", d.Password.MinLength)
	v.SetDefault("password.require_special_chars", d.Password.RequireSpecialChars)
	v.SetDefault("password.upgrade_on_login", d.Password.UpgradeOnLogin)
	v.SetDefault("password.hash_concurrency", d.Password.HashConcurrency)

	v.SetDefault("lockout.max_attempts", d.Lockout.MaxAttempts)
	v.SetDefault("lockout.duration", d.Lockout.Duration)

	v.SetDefault("registration.default_role", d.Registration.DefaultRole)
	v.SetDefault("registration.name_min_length", d.Registration.NameMinLength)
	v.SetDefault("registration.name_max_length", d.Registration.NameMaxLength)

	v.SetDefault("events.bus", "log")
	v.SetDefault("events.redis_addr", "")
	v.SetDefault("events.channel_prefix", "authcore.")
	v.SetDefault("events.buffer_size", d.Events.BufferSize)
	v.SetDefault("events.publish_timeout", d.Events.PublishTimeout)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.enable_latency_histograms", d.Metrics.EnableLatencyHistograms)
}

// Load reads settings. An empty path skips the file; a missing explicit
// path is an error.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("path", path).Wrapf(err, "read config file")
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrapf(err, "decode settings")
	}
	if len(s.Roles) == 0 {
		s.Roles = permission.DefaultRoles()
	}

	switch s.Directory.Backend {
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if s.Directory.PostgresDSN == "" {
			return nil, oops.Code("CONFIG_INVALID").Errorf("directory.postgres_dsn is required for the postgres backend")
		}
	default:
		return nil, oops.Code("CONFIG_INVALID").
			With("backend", s.Directory.Backend).
			Errorf("unknown directory backend")
	}
	switch s.Events.Bus {
	case "log", "redis", "none":
	default:
		return nil, oops.Code("CONFIG_INVALID").With("bus", s.Events.Bus).Errorf("unknown event bus")
	}

	return &s, nil
}

// Engine converts the settings into a validated authcore.Config, reading
// key files as needed.
func (s *Settings) Engine() (authcore.Config, error) {
	cfg := authcore.DefaultConfig()

	cfg.JWT.AccessTTL = s.JWT.AccessTTL
	cfg.JWT.SigningMethod = strings.ToLower(s.JWT.SigningMethod)
	cfg.JWT.Issuer = s.JWT.Issuer
	cfg.JWT.Leeway = s.JWT.Leeway
	if s.JWT.Secret != "" {
		cfg.JWT.PrivateKey = []byte(s.JWT.Secret)
	}
	if s.JWT.PrivateKeyFile != "" {
		key, err := os.ReadFile(s.JWT.PrivateKeyFile)
		if err != nil {
			return authcore.Config{}, oops.Code("CONFIG_INVALID").With("file", s.JWT.PrivateKeyFile).Wrapf(err, "read private key")
		}
		cfg.JWT.PrivateKey = key
	}
	if s.JWT.PublicKeyFile != "" {
		key, err := os.ReadFile(s.JWT.PublicKeyFile)
		if err != nil {
			return authcore.Config{}, oops.Code("CONFIG_INVALID").With("file", s.JWT.PublicKeyFile).Wrapf(err, "read public key")
		}
		cfg.JWT.PublicKey = key
	}

	cfg.Session.Timeout = s.Session.Timeout
	cfg.Session.RememberTTL = s.Session.RememberTTL
	cfg.Session.ReapInterval = s.Session.ReapInterval
	cfg.Session.Shards = s.Session.Shards

	cfg.Password.Algorithm = s.Password.Algorithm
	cfg.Password.BcryptCost = s.Password.BcryptCost
	cfg.Password.Argon2.Memory = s.Password.Argon2Memory
	cfg.Password.Argon2.Time = s.Password.Argon2Time
	cfg.Password.Argon2.Parallelism = s.Password.Argon2Parallelism
	cfg.Password.MinLength = s.Password.MinLength
	cfg.Password.RequireSpecialChars = s.Password.RequireSpecialChars
	cfg.Password.UpgradeOnLogin = s.Password.UpgradeOnLogin
	cfg.Password.HashConcurrency = s.Password.HashConcurrency

	cfg.Lockout.MaxAttempts = s.Lockout.MaxAttempts
	cfg.Lockout.Duration = s.Lockout.Duration

	cfg.Registration.DefaultRole = s.Registration.DefaultRole
	cfg.Registration.NameMinLength = s.Registration.NameMinLength
	cfg.Registration.NameMaxLength = s.Registration.NameMaxLength

	cfg.Events.BufferSize = s.Events.BufferSize
	cfg.Events.PublishTimeout = s.Events.PublishTimeout

	cfg.Metrics.Enabled = s.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = s.Metrics.EnableLatencyHistograms

	cfg.Roles = s.Roles

	if err := cfg.Validate(); err != nil {
		return authcore.Config{}, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return cfg, nil
}
