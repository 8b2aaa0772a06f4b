package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/cache"
	"github.com/vibast-solutions/ms-go-accounts/app/credential"
	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/app/repository"
	"github.com/vibast-solutions/ms-go-accounts/app/service"
	"github.com/vibast-solutions/ms-go-accounts/app/token/tokentest"
	"github.com/vibast-solutions/ms-go-accounts/app/twofactor"
	"github.com/vibast-solutions/ms-go-accounts/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// memoryAccounts mirrors the conditional semantics of the MySQL repository.
type memoryAccounts struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]entity.Account
}

func newMemoryAccounts() *memoryAccounts {
	return &memoryAccounts{rows: map[uint64]entity.Account{}}
}

func (m *memoryAccounts) Create(_ context.Context, account *entity.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range m.rows {
		if row.Email == account.Email {
			return repository.ErrDuplicateEmail
		}
	}
	m.nextID++
	account.ID = m.nextID
	m.rows[account.ID] = *account
	return nil
}

func (m *memoryAccounts) FindByEmail(_ context.Context, email string) (*entity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range m.rows {
		if row.Email == email {
			found := row
			return &found, nil
		}
	}
	return nil, nil
}

func (m *memoryAccounts) FindByID(_ context.Context, id uint64) (*entity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (m *memoryAccounts) FindByIDAndVersion(ctx context.Context, id uint64, version uint16) (*entity.Account, error) {
	account, err := m.FindByID(ctx, id)
	if err != nil || account == nil || account.Version != version {
		return nil, err
	}
	return account, nil
}

func (m *memoryAccounts) MarkConfirmed(_ context.Context, id uint64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok || row.Confirmed {
		return 0, nil
	}
	row.Confirmed = true
	m.rows[id] = row
	return 1, nil
}

func (m *memoryAccounts) UpdatePassword(_ context.Context, id uint64, expectedVersion uint16, passwordHash string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok || row.Version != expectedVersion {
		return 0, nil
	}
	row.PasswordHash = passwordHash
	row.Version++
	m.rows[id] = row
	return 1, nil
}

func (m *memoryAccounts) UpdateEmail(_ context.Context, id uint64, expectedVersion uint16, email string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for otherID, row := range m.rows {
		if otherID != id && row.Email == email {
			return 0, repository.ErrDuplicateEmail
		}
	}
	row, ok := m.rows[id]
	if !ok || row.Version != expectedVersion {
		return 0, nil
	}
	row.Email = email
	row.Version++
	m.rows[id] = row
	return 1, nil
}

func (m *memoryAccounts) UpdateTwoFactor(_ context.Context, id uint64, enabled bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok {
		return 0, nil
	}
	row.TwoFactorEnabled = enabled
	m.rows[id] = row
	return 1, nil
}

func (m *memoryAccounts) Delete(_ context.Context, id uint64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[id]; !ok {
		return 0, nil
	}
	delete(m.rows, id)
	return 1, nil
}

func (m *memoryAccounts) get(t *testing.T, id uint64) entity.Account {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok {
		t.Fatalf("account %d not found", id)
	}
	return row
}

type recordingCarrier struct {
	token   string
	ttl     time.Duration
	cleared int
}

func (c *recordingCarrier) SetRefreshToken(token string, ttl time.Duration) {
	c.token = token
	c.ttl = ttl
}

func (c *recordingCarrier) ClearRefreshToken() {
	c.token = ""
	c.cleared++
}

type sentMessage struct {
	kind   string
	to     string
	name   string
	secret string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (n *recordingNotifier) record(kind, to, name, secret string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.sent = append(n.sent, sentMessage{kind: kind, to: to, name: name, secret: secret})
	return n.err
}

func (n *recordingNotifier) SendConfirmation(_ context.Context, to, name, token string) error {
	return n.record("confirmation", to, name, token)
}

func (n *recordingNotifier) SendAccessCode(_ context.Context, to, name, code string) error {
	return n.record("access_code", to, name, code)
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, to, name, token string) error {
	return n.record("password_reset", to, name, token)
}

func syncRunner(task func()) {
	task()
}

func testConfig() *config.Config {
	return &config.Config{
		Password: config.PasswordConfig{
			Policy: config.PasswordPolicy{
				MinLength:        8,
				MaxLength:        40,
				RequireUppercase: true,
				RequireLowercase: true,
				RequireNumber:    true,
				RequireSpecial:   true,
			},
		},
		TwoFactor: config.TwoFactorConfig{CodeTTL: 900 * time.Second},
	}
}

func newHasher(t *testing.T) *credential.Argon2 {
	t.Helper()

	hasher, err := credential.NewArgon2(credential.Params{MemoryKB: 8 * 1024, Iterations: 1, Parallelism: 1})
	if err != nil {
		t.Fatalf("failed to create hasher: %v", err)
	}
	return hasher
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

type harness struct {
	svc      service.SessionService
	accounts *memoryAccounts
	redis    *miniredis.Miniredis
	carrier  *recordingCarrier
}

func newHarness(t *testing.T, delivery service.Delivery) *harness {
	t.Helper()

	if delivery == nil {
		delivery = service.NewDirectDelivery()
	}

	mr, client := newTestRedis(t)
	accounts := newMemoryAccounts()
	hasher := newHasher(t)

	svc := service.NewSessionService(
		accounts,
		cache.NewChallengeCache(client),
		hasher,
		twofactor.NewCodes(hasher),
		tokentest.NewCodec(t),
		delivery,
		testConfig(),
	)

	return &harness{svc: svc, accounts: accounts, redis: mr, carrier: &recordingCarrier{}}
}
