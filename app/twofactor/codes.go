package twofactor

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
)

const CodeDigits = 6

var (
	ErrInvalidCode      = errors.New("invalid two-factor code")
	ErrGenerationFailed = errors.New("two-factor code generation failed")

	codeSpace = big.NewInt(1_000_000)
)

type hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, encoded string) error
}

// Codes mints short numeric codes and hashes them for storage. Storing the
// hash against the account is the caller's job.
type Codes struct {
	hasher hasher
	random io.Reader
}

type Option func(*Codes)

func WithRandom(r io.Reader) Option {
	return func(c *Codes) {
		if r != nil {
			c.random = r
		}
	}
}

func NewCodes(h hasher, opts ...Option) *Codes {
	c := &Codes{hasher: h, random: rand.Reader}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Codes) Issue() (code string, hash string, err error) {
	n, err := rand.Int(c.random, codeSpace)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	code = fmt.Sprintf("%0*d", CodeDigits, n.Int64())
	hash, err = c.hasher.Hash(code)
	if err != nil {
		return "", "", err
	}
	return code, hash, nil
}

func (c *Codes) Verify(code, hash string) error {
	if len(code) != CodeDigits {
		return ErrInvalidCode
	}
	if err := c.hasher.Verify(code, hash); err != nil {
		return ErrInvalidCode
	}
	return nil
}
