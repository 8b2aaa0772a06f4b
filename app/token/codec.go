package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type Kind int

const (
	KindAccess Kind = iota
	KindRefresh
	KindReset
	KindConfirmation
)

// String returns the subject claim carried by tokens of this kind.
func (k Kind) String() string {
	switch k {
	case KindAccess:
		return "access"
	case KindRefresh:
		return "refresh"
	case KindReset:
		return "reset"
	case KindConfirmation:
		return "confirmation"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Payload is the account assertion embedded in every token. Access tokens
// never carry a version.
type Payload struct {
	AccountID uint64 `json:"id"`
	Version   uint16 `json:"version,omitempty"`
}

type Claims struct {
	Account Payload `json:"user"`
	jwt.RegisteredClaims
}

type signer struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	ttl       time.Duration
}

type Codec struct {
	issuer  string
	signers map[Kind]signer
	now     func() time.Time
}

type Option func(*Codec)

// WithClock sets the time used to validate exp and iat.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCodec(cfg config.TokenConfig, opts ...Option) (*Codec, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("token issuer is required")
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(cfg.AccessPrivateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse access private key: %w", err)
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(cfg.AccessPublicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse access public key: %w", err)
	}

	hmac := func(secret string, ttl time.Duration) signer {
		return signer{method: jwt.SigningMethodHS256, signKey: []byte(secret), verifyKey: []byte(secret), ttl: ttl}
	}

	c := &Codec{
		issuer: cfg.Issuer,
		signers: map[Kind]signer{
			KindAccess: {
				method:    jwt.SigningMethodRS256,
				signKey:   privateKey,
				verifyKey: publicKey,
				ttl:       cfg.AccessTTL,
			},
			KindRefresh:      hmac(cfg.RefreshSecret, cfg.RefreshTTL),
			KindReset:        hmac(cfg.ResetSecret, cfg.ResetTTL),
			KindConfirmation: hmac(cfg.ConfirmationSecret, cfg.ConfirmationTTL),
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Codec) TTL(kind Kind) time.Duration {
	return c.signers[kind].ttl
}

func (c *Codec) Issue(kind Kind, account *entity.Account, now time.Time) (string, error) {
	s, ok := c.signers[kind]
	if !ok {
		return "", fmt.Errorf("unknown token kind %s", kind)
	}

	payload := Payload{AccountID: account.ID}
	if kind != KindAccess {
		payload.Version = account.Version
	}

	claims := &Claims{
		Account: payload,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   kind.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	}

	return jwt.NewWithClaims(s.method, claims).SignedString(s.signKey)
}

// Verify checks signature, algorithm, issuer, subject and expiry before the
// payload is returned. Every failure collapses to ErrInvalidToken.
func (c *Codec) Verify(kind Kind, tokenString string) (*Payload, error) {
	s, ok := c.signers[kind]
	if !ok {
		return nil, ErrInvalidToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithSubject(kind.String()),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)

	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.verifyKey, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Account.AccountID == 0 {
		return nil, ErrInvalidToken
	}
	if kind == KindAccess && claims.Account.Version != 0 {
		return nil, ErrInvalidToken
	}
	if kind != KindAccess && claims.Account.Version == 0 {
		return nil, ErrInvalidToken
	}

	return &claims.Account, nil
}
