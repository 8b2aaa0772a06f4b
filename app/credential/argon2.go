package credential

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	algorithmID = "argon2id"

	minMemoryKB    uint32 = 8 * 1024
	minIterations  uint32 = 1
	minParallelism uint8  = 1

	saltLength uint32 = 16
	keyLength  uint32 = 32
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrHashingFailed      = errors.New("password hashing failed")
)

type Params struct {
	MemoryKB    uint32
	Iterations  uint32
	Parallelism uint8
}

// Argon2 hashes secrets into PHC strings and verifies them in constant time.
// It holds no mutable state and is safe for concurrent use.
type Argon2 struct {
	params Params
	random io.Reader
}

type Option func(*Argon2)

// WithRandom replaces the salt source.
func WithRandom(r io.Reader) Option {
	return func(a *Argon2) {
		if r != nil {
			a.random = r
		}
	}
}

func NewArgon2(params Params, opts ...Option) (*Argon2, error) {
	if params.MemoryKB < minMemoryKB {
		return nil, fmt.Errorf("argon2 memory must be >= %d KB", minMemoryKB)
	}
	if params.Iterations < minIterations {
		return nil, errors.New("argon2 iterations must be >= 1")
	}
	if params.Parallelism < minParallelism {
		return nil, errors.New("argon2 parallelism must be >= 1")
	}

	a := &Argon2{params: params, random: rand.Reader}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Argon2) Hash(secret string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(a.random, salt); err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashingFailed, err)
	}

	key := argon2.IDKey([]byte(secret), salt, a.params.Iterations, a.params.MemoryKB, a.params.Parallelism, keyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		a.params.MemoryKB,
		a.params.Iterations,
		a.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify never reports which part of the comparison failed.
func (a *Argon2) Verify(secret, encoded string) error {
	if isBcrypt(encoded) {
		if bcrypt.CompareHashAndPassword([]byte(encoded), []byte(secret)) != nil {
			return ErrInvalidCredentials
		}
		return nil
	}

	parsed, err := parsePHC(encoded)
	if err != nil {
		return ErrInvalidCredentials
	}

	computed := argon2.IDKey([]byte(secret), parsed.salt, parsed.iterations, parsed.memoryKB, parsed.parallelism, uint32(len(parsed.key)))
	if subtle.ConstantTimeCompare(computed, parsed.key) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

// Rows written before the move to argon2 still carry bcrypt hashes.
func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

type phc struct {
	memoryKB    uint32
	iterations  uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func parsePHC(encoded string) (*phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, errors.New("invalid PHC format")
	}
	if parts[1] != algorithmID {
		return nil, errors.New("unsupported algorithm")
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || version != argon2.Version {
		return nil, errors.New("unsupported argon2 version")
	}

	out := &phc{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &out.memoryKB, &out.iterations, &out.parallelism); err != nil {
		return nil, errors.New("invalid parameters")
	}
	if out.memoryKB < minMemoryKB || out.iterations < minIterations || out.parallelism < minParallelism {
		return nil, errors.New("parameters below minimum")
	}

	out.salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(out.salt) == 0 {
		return nil, errors.New("invalid salt")
	}
	out.key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(out.key) == 0 {
		return nil, errors.New("invalid key")
	}

	return out, nil
}
