package password

import (
	"errors"
	"strings"
)

// ErrUnknownFormat is returned for hashes no configured algorithm recognizes.
var ErrUnknownFormat = errors.New("password: unrecognized hash format")

// Hasher is implemented by every algorithm in this package.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
}

// Algorithm names accepted by NewMulti.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// Multi hashes with a primary algorithm and verifies hashes of either kind.
type Multi struct {
	primary string
	bcrypt  *Bcrypt
	argon2  *Argon2
}

// NewMulti returns a Multi whose primary algorithm is primary. argonCfg is
// only validated when argon2id is the primary algorithm; otherwise argon2id
// hashes are verified with the parameters embedded in them.
func NewMulti(primary string, cost int, argonCfg Argon2Config) (*Multi, error) {
	b, err := NewBcrypt(cost)
	if err != nil {
		return nil, err
	}
	m := &Multi{primary: primary, bcrypt: b, argon2: &Argon2{config: argonCfg}}
	switch primary {
	case AlgorithmBcrypt:
	case AlgorithmArgon2id:
		a, err := NewArgon2(argonCfg)
		if err != nil {
			return nil, err
		}
		m.argon2 = a
	default:
		return nil, errors.New("password: unsupported algorithm " + primary)
	}
	return m, nil
}

// Hash uses the primary algorithm.
func (m *Multi) Hash(plain string) (string, error) {
	if m.primary == AlgorithmArgon2id {
		return m.argon2.Hash(plain)
	}
	return m.bcrypt.Hash(plain)
}

// Verify dispatches on the hash prefix.
func (m *Multi) Verify(plain, encodedHash string) (bool, error) {
	switch algorithmOf(encodedHash) {
	case AlgorithmBcrypt:
		return m.bcrypt.Verify(plain, encodedHash)
	case AlgorithmArgon2id:
		return m.argon2.Verify(plain, encodedHash)
	default:
		return false, ErrUnknownFormat
	}
}

// NeedsUpgrade is true for hashes made by the non-primary algorithm or with
// weaker parameters than the primary one is configured for.
func (m *Multi) NeedsUpgrade(encodedHash string) (bool, error) {
	alg := algorithmOf(encodedHash)
	if alg == "" {
		return false, ErrUnknownFormat
	}
	if alg != m.primary {
		return true, nil
	}
	if alg == AlgorithmArgon2id {
		return m.argon2.NeedsUpgrade(encodedHash)
	}
	return m.bcrypt.NeedsUpgrade(encodedHash)
}

func algorithmOf(encodedHash string) string {
	switch {
	case strings.HasPrefix(encodedHash, "$argon2id$"):
		return AlgorithmArgon2id
	case strings.HasPrefix(encodedHash, "$2a$"),
		strings.HasPrefix(encodedHash, "$2b$"),
		strings.HasPrefix(encodedHash, "$2y$"):
		return AlgorithmBcrypt
	default:
		return ""
	}
}
