// Package tokentest provides token configuration for tests.
package tokentest

import (
	"sync"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/token"
	"github.com/vibast-solutions/ms-go-accounts/config"
)

var (
	once       sync.Once
	privatePEM []byte
	publicPEM  []byte
	keyErr     error
)

// Config returns a complete TokenConfig backed by a process-wide RSA keypair.
func Config(t testing.TB) config.TokenConfig {
	t.Helper()

	once.Do(func() {
		privatePEM, publicPEM, keyErr = token.GenerateKeyPair(token.DefaultKeyBits)
	})
	if keyErr != nil {
		t.Fatalf("failed to generate keypair: %v", keyErr)
	}

	return config.TokenConfig{
		Issuer:              "accounts-test",
		AccessTTL:           15 * time.Minute,
		AccessPrivateKeyPEM: privatePEM,
		AccessPublicKeyPEM:  publicPEM,
		RefreshSecret:       "refresh-secret",
		RefreshTTL:          7 * 24 * time.Hour,
		ResetSecret:         "reset-secret",
		ResetTTL:            30 * time.Minute,
		ConfirmationSecret:  "confirmation-secret",
		ConfirmationTTL:     time.Hour,
	}
}

// NewCodec builds a codec from Config.
func NewCodec(t testing.TB, opts ...token.Option) *token.Codec {
	t.Helper()

	codec, err := token.NewCodec(Config(t), opts...)
	if err != nil {
		t.Fatalf("failed to create codec: %v", err)
	}
	return codec
}
