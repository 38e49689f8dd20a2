package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// Lower bounds enforced on configuration and on stored hashes.
const (
	MinArgon2Memory     uint32 = 8 * 1024
	MinArgon2SaltLength uint32 = 16
	MinArgon2KeyLength  uint32 = 16
)

const argon2Prefix = "$argon2id$"

// Argon2Config holds argon2id cost parameters. Memory is in KiB.
type Argon2Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Config returns the parameters used when argon2id is selected
// without explicit tuning.
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{Memory: 64 * 1024, Time: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32}
}

func (c Argon2Config) validate() error {
	errb := oops.Code("PASSWORD_CONFIG_INVALID").With("algorithm", AlgorithmArgon2id)
	switch {
	case c.Memory < MinArgon2Memory:
		return errb.Errorf("argon2 memory must be at least %d KiB", MinArgon2Memory)
	case c.Time < 1:
		return errb.Errorf("argon2 time must be at least 1")
	case c.Parallelism < 1:
		return errb.Errorf("argon2 parallelism must be at least 1")
	case c.SaltLength < MinArgon2SaltLength:
		return errb.Errorf("argon2 salt length must be at least %d", MinArgon2SaltLength)
	case c.KeyLength < MinArgon2KeyLength:
		return errb.Errorf("argon2 key length must be at least %d", MinArgon2KeyLength)
	}
	return nil
}

// phc is a decoded argon2id hash string:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<key>
//
// Salt and key are standard base64 without padding, the form used by the
// reference argon2 tooling.
type phc struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func (p phc) String() string {
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix, argon2.Version, p.memory, p.time, p.threads,
		base64.RawStdEncoding.EncodeToString(p.salt),
		base64.RawStdEncoding.EncodeToString(p.key))
}

func decodePHC(encoded string) (phc, error) {
	errb := oops.Code("PASSWORD_INVALID_HASH")
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return phc{}, errb.Errorf("invalid hash format")
	}
	if parts[1] != AlgorithmArgon2id {
		return phc{}, errb.Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return phc{}, errb.Wrapf(err, "parse version")
	}
	if version != argon2.Version {
		return phc{}, errb.Errorf("unsupported argon2 version %d", version)
	}

	var (
		p       phc
		threads uint32
	)
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &threads); err != nil {
		return phc{}, errb.Wrapf(err, "parse parameters")
	}
	if threads == 0 || threads > 255 {
		return phc{}, errb.Errorf("invalid parallelism %d", threads)
	}
	if p.memory < MinArgon2Memory || p.time < 1 {
		return phc{}, errb.Errorf("parameters below minimum")
	}
	p.threads = uint8(threads)

	var err error
	if p.salt, err = decodeB64(parts[4]); err != nil {
		return phc{}, errb.Wrapf(err, "decode salt")
	}
	if uint32(len(p.salt)) < MinArgon2SaltLength {
		return phc{}, errb.Errorf("salt too short: %d bytes", len(p.salt))
	}
	if p.key, err = decodeB64(parts[5]); err != nil {
		return phc{}, errb.Wrapf(err, "decode key")
	}
	if len(p.key) == 0 {
		return phc{}, errb.Errorf("empty key")
	}
	return p, nil
}

// decodeB64 accepts both unpadded and padded standard base64.
func decodeB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

// Argon2 hashes passwords with argon2id.
type Argon2 struct {
	config Argon2Config
}

// NewArgon2 validates cfg against minimum strength and returns a hasher.
func NewArgon2(cfg Argon2Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{config: cfg}, nil
}

// Hash derives a key with a fresh random salt.
func (a *Argon2) Hash(plain string) (string, error) {
	salt := make([]byte, a.config.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("PASSWORD_SALT_FAILED").Wrap(err)
	}
	p := phc{
		memory:  a.config.Memory,
		time:    a.config.Time,
		threads: a.config.Parallelism,
		salt:    salt,
	}
	p.key = argon2.IDKey([]byte(plain), salt, p.time, p.memory, p.threads, a.config.KeyLength)
	return p.String(), nil
}

// Verify recomputes the key with the parameters embedded in encodedHash.
func (a *Argon2) Verify(plain, encodedHash string) (bool, error) {
	p, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	key := argon2.IDKey([]byte(plain), p.salt, p.time, p.memory, p.threads, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(key, p.key) == 1, nil
}

// NeedsUpgrade reports hashes produced with weaker parameters than a's, or
// with a different key length.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	p, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	return p.memory < a.config.Memory ||
		p.time < a.config.Time ||
		p.threads < a.config.Parallelism ||
		uint32(len(p.key)) != a.config.KeyLength, nil
}
