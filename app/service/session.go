package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/cache"
	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/app/repository"
	"github.com/vibast-solutions/ms-go-accounts/app/token"
	"github.com/vibast-solutions/ms-go-accounts/app/types"
	"github.com/vibast-solutions/ms-go-accounts/config"

	"github.com/sirupsen/logrus"
)

const (
	MessagePasswordReset   = "password reset successfully"
	MessageLoggedOut       = "logged out successfully"
	MessageAccountDeleted  = "account deleted successfully"
	MessageConfirmationNew = "confirmation email sent"
)

type accountRepository interface {
	Create(ctx context.Context, account *entity.Account) error
	FindByEmail(ctx context.Context, email string) (*entity.Account, error)
	FindByID(ctx context.Context, id uint64) (*entity.Account, error)
	FindByIDAndVersion(ctx context.Context, id uint64, version uint16) (*entity.Account, error)
	MarkConfirmed(ctx context.Context, id uint64) (int64, error)
	UpdatePassword(ctx context.Context, id uint64, expectedVersion uint16, passwordHash string) (int64, error)
	UpdateEmail(ctx context.Context, id uint64, expectedVersion uint16, email string) (int64, error)
	UpdateTwoFactor(ctx context.Context, id uint64, enabled bool) (int64, error)
	Delete(ctx context.Context, id uint64) (int64, error)
}

type challengeCache interface {
	Set(ctx context.Context, accountID uint64, codeHash string, ttl time.Duration) error
	Get(ctx context.Context, accountID uint64) (string, error)
	Delete(ctx context.Context, accountID uint64) (bool, error)
}

type passwordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) error
}

type codeIssuer interface {
	Issue() (code string, hash string, err error)
	Verify(code, hash string) error
}

type tokenCodec interface {
	Issue(kind token.Kind, account *entity.Account, now time.Time) (string, error)
	Verify(kind token.Kind, tokenString string) (*token.Payload, error)
	TTL(kind token.Kind) time.Duration
}

// RefreshCarrier moves the refresh token between the service and the client.
// The HTTP layer implements it with an HTTP-only cookie.
type RefreshCarrier interface {
	SetRefreshToken(token string, ttl time.Duration)
	ClearRefreshToken()
}

type SessionService interface {
	Register(ctx context.Context, req *types.RegisterRequest) (*types.MessageResponse, error)
	Confirm(ctx context.Context, req *types.ConfirmRequest, carrier RefreshCarrier) (*types.AuthResponse, error)
	ResendConfirmation(ctx context.Context, req *types.EmailRequest) (*types.MessageResponse, error)
	Login(ctx context.Context, req *types.LoginRequest, carrier RefreshCarrier) (*types.LoginResponse, error)
	ConfirmLogin(ctx context.Context, req *types.ConfirmLoginRequest, carrier RefreshCarrier) (*types.AuthResponse, error)
	RefreshAccess(ctx context.Context, refreshToken string, carrier RefreshCarrier) (*types.AuthResponse, error)
	ChangePassword(ctx context.Context, accountID uint64, req *types.ChangePasswordRequest, carrier RefreshCarrier) (*types.AuthResponse, error)
	ChangeEmail(ctx context.Context, accountID uint64, req *types.ChangeEmailRequest, carrier RefreshCarrier) (*types.AuthResponse, error)
	RequestPasswordReset(ctx context.Context, req *types.EmailRequest) (*types.MessageResponse, error)
	ResetPassword(ctx context.Context, req *types.ResetPasswordRequest) (*types.MessageResponse, error)
	Logout(carrier RefreshCarrier) *types.MessageResponse
	Me(ctx context.Context, accountID uint64) (*types.AccountResponse, error)
	SetTwoFactor(ctx context.Context, accountID uint64, req *types.SetTwoFactorRequest) (*types.AccountResponse, error)
	DeleteAccount(ctx context.Context, accountID uint64, req *types.DeleteAccountRequest, carrier RefreshCarrier) (*types.MessageResponse, error)
	AuthenticateAccess(tokenString string) (uint64, error)
}

type SessionServiceOption func(*sessionService)

// WithClock sets the issue time for new tokens.
func WithClock(now func() time.Time) SessionServiceOption {
	return func(s *sessionService) {
		if now != nil {
			s.now = now
		}
	}
}

type sessionService struct {
	accounts   accountRepository
	challenges challengeCache
	passwords  passwordHasher
	codes      codeIssuer
	tokens     tokenCodec
	delivery   Delivery
	policy     config.PasswordPolicy
	codeTTL    time.Duration
	now        func() time.Time
}

func NewSessionService(
	accounts accountRepository,
	challenges challengeCache,
	passwords passwordHasher,
	codes codeIssuer,
	tokens tokenCodec,
	delivery Delivery,
	cfg *config.Config,
	opts ...SessionServiceOption,
) SessionService {
	svc := &sessionService{
		accounts:   accounts,
		challenges: challenges,
		passwords:  passwords,
		codes:      codes,
		tokens:     tokens,
		delivery:   delivery,
		policy:     cfg.Password.Policy,
		codeTTL:    cfg.TwoFactor.CodeTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *sessionService) Register(ctx context.Context, req *types.RegisterRequest) (*types.MessageResponse, error) {
	email := NormalizeEmail(req.Email)

	existing, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailInUse
	}

	hash, err := s.newPasswordHash(req.Password1, req.Password2)
	if err != nil {
		return nil, err
	}

	now := s.now()
	account := &entity.Account{
		Email:        email,
		FirstName:    FormatName(req.FirstName),
		LastName:     FormatName(req.LastName),
		PasswordHash: hash,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err = s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailInUse
		}
		return nil, err
	}

	message, err := s.sendConfirmation(ctx, account)
	if err != nil {
		return nil, err
	}
	return &types.MessageResponse{Message: message}, nil
}

func (s *sessionService) Confirm(ctx context.Context, req *types.ConfirmRequest, carrier RefreshCarrier) (*types.AuthResponse, error) {
	payload, err := s.tokens.Verify(token.KindConfirmation, req.Token)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.FindByID(ctx, payload.AccountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrUnauthorized
	}
	if account.Confirmed {
		return nil, ErrAccountAlreadyConfirmed
	}
	if err = CheckVersion(account, payload.Version); err != nil {
		return nil, err
	}

	rows, err := s.accounts.MarkConfirmed(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrAccountAlreadyConfirmed
	}
	account.Confirmed = true

	return s.startSession(account, carrier)
}

func (s *sessionService) ResendConfirmation(ctx context.Context, req *types.EmailRequest) (*types.MessageResponse, error) {
	account, err := s.accounts.FindByEmail(ctx, NormalizeEmail(req.Email))
	if err != nil {
		return nil, err
	}
	if account == nil {
		return &types.MessageResponse{Message: MessageConfirmationNew}, nil
	}
	if account.Confirmed {
		return nil, ErrAccountAlreadyConfirmed
	}

	message, err := s.sendConfirmation(ctx, account)
	if err != nil {
		return nil, err
	}
	return &types.MessageResponse{Message: message}, nil
}

func (s *sessionService) Login(ctx context.Context, req *types.LoginRequest, carrier RefreshCarrier) (*types.LoginResponse, error) {
	account, err := s.accounts.FindByEmail(ctx, NormalizeEmail(req.Email))
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrInvalidCredentials
	}

	if err = s.passwords.Verify(req.Password, account.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	if !account.Confirmed {
		if _, err = s.sendConfirmation(ctx, account); err != nil {
			return nil, err
		}
		return nil, ErrAccountNotConfirmed
	}

	if account.TwoFactorEnabled {
		code, hash, err := s.codes.Issue()
		if err != nil {
			return nil, err
		}
		if err = s.challenges.Set(ctx, account.ID, hash, s.codeTTL); err != nil {
			return nil, err
		}
		return &types.LoginResponse{
			TwoFactorPending: true,
			Message:          s.delivery.AccessCode(ctx, account, code),
		}, nil
	}

	auth, err := s.startSession(account, carrier)
	if err != nil {
		return nil, err
	}
	return &types.LoginResponse{Auth: auth}, nil
}

// ConfirmLogin consumes the challenge on success, so a code is accepted at most once.
func (s *sessionService) ConfirmLogin(ctx context.Context, req *types.ConfirmLoginRequest, carrier RefreshCarrier) (*types.AuthResponse, error) {
	account, err := s.accounts.FindByEmail(ctx, NormalizeEmail(req.Email))
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrInvalidCredentials
	}

	hash, err := s.challenges.Get(ctx, account.ID)
	if errors.Is(err, cache.ErrChallengeNotFound) {
		return nil, ErrChallengeExpired
	}
	if err != nil {
		return nil, err
	}

	if err = s.codes.Verify(req.Code, hash); err != nil {
		return nil, ErrInvalidCode
	}

	removed, err := s.challenges.Delete(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, ErrChallengeExpired
	}

	return s.startSession(account, carrier)
}

func (s *sessionService) RefreshAccess(ctx context.Context, refreshToken string, carrier RefreshCarrier) (*types.AuthResponse, error) {
	auth, err := s.refreshAccess(ctx, refreshToken, carrier)
	if err != nil {
		carrier.ClearRefreshToken()
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrUnauthorized) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return auth, nil
}

func (s *sessionService) refreshAccess(ctx context.Context, refreshToken string, carrier RefreshCarrier) (*types.AuthResponse, error) {
	if refreshToken == "" {
		return nil, ErrUnauthorized
	}

	payload, err := s.tokens.Verify(token.KindRefresh, refreshToken)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.FindByIDAndVersion(ctx, payload.AccountID, payload.Version)
	if err != nil {
		return nil, err
	}
	if err = CheckVersion(account, payload.Version); err != nil {
		return nil, err
	}

	return s.startSession(account, carrier)
}

func (s *sessionService) ChangePassword(ctx context.Context, accountID uint64, req *types.ChangePasswordRequest, carrier RefreshCarrier) (*types.AuthResponse, error) {
	account, err := s.findAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if err = s.passwords.Verify(req.OldPassword, account.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	hash, err := s.newPasswordHash(req.Password1, req.Password2)
	if err != nil {
		return nil, err
	}

	rows, err := s.accounts.UpdatePassword(ctx, account.ID, account.Version, hash)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrVersionConflict
	}
	account.PasswordHash = hash
	account.Version++
	account.UpdatedAt = s.now()

	return s.startSession(account, carrier)
}

func (s *sessionService) ChangeEmail(ctx context.Context, accountID uint64, req *types.ChangeEmailRequest, carrier RefreshCarrier) (*types.AuthResponse, error) {
	email := NormalizeEmail(req.NewEmail)

	existing, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailInUse
	}

	account, err := s.findAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err = s.passwords.Verify(req.Password, account.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	rows, err := s.accounts.UpdateEmail(ctx, account.ID, account.Version, email)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailInUse
		}
		return nil, err
	}
	if rows == 0 {
		return nil, ErrVersionConflict
	}
	account.Email = email
	account.Version++
	account.UpdatedAt = s.now()

	return s.startSession(account, carrier)
}

// RequestPasswordReset answers the same way whether or not the email is known.
func (s *sessionService) RequestPasswordReset(ctx context.Context, req *types.EmailRequest) (*types.MessageResponse, error) {
	account, err := s.accounts.FindByEmail(ctx, NormalizeEmail(req.Email))
	if err != nil {
		return nil, err
	}
	if account == nil {
		return &types.MessageResponse{Message: MessagePasswordResetSent}, nil
	}

	resetToken, err := s.tokens.Issue(token.KindReset, account, s.now())
	if err != nil {
		return nil, err
	}

	return &types.MessageResponse{Message: s.delivery.PasswordReset(ctx, account, resetToken)}, nil
}

func (s *sessionService) ResetPassword(ctx context.Context, req *types.ResetPasswordRequest) (*types.MessageResponse, error) {
	payload, err := s.tokens.Verify(token.KindReset, req.Token)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.FindByID(ctx, payload.AccountID)
	if err != nil {
		return nil, err
	}
	if err = CheckVersion(account, payload.Version); err != nil {
		return nil, err
	}

	hash, err := s.newPasswordHash(req.Password1, req.Password2)
	if err != nil {
		return nil, err
	}

	// Guarded by the token's version, not the one just read.
	rows, err := s.accounts.UpdatePassword(ctx, account.ID, payload.Version, hash)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrUnauthorized
	}

	return &types.MessageResponse{Message: MessagePasswordReset}, nil
}

func (s *sessionService) Logout(carrier RefreshCarrier) *types.MessageResponse {
	carrier.ClearRefreshToken()
	return &types.MessageResponse{Message: MessageLoggedOut}
}

func (s *sessionService) Me(ctx context.Context, accountID uint64) (*types.AccountResponse, error) {
	account, err := s.findAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return types.NewAccountResponse(account), nil
}

func (s *sessionService) SetTwoFactor(ctx context.Context, accountID uint64, req *types.SetTwoFactorRequest) (*types.AccountResponse, error) {
	account, err := s.findAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err = s.passwords.Verify(req.Password, account.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	if account.TwoFactorEnabled != req.Enabled {
		if _, err = s.accounts.UpdateTwoFactor(ctx, account.ID, req.Enabled); err != nil {
			return nil, err
		}
		account.TwoFactorEnabled = req.Enabled
		account.UpdatedAt = s.now()
	}

	return types.NewAccountResponse(account), nil
}

func (s *sessionService) DeleteAccount(ctx context.Context, accountID uint64, req *types.DeleteAccountRequest, carrier RefreshCarrier) (*types.MessageResponse, error) {
	account, err := s.findAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err = s.passwords.Verify(req.Password, account.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	if _, err = s.accounts.Delete(ctx, account.ID); err != nil {
		return nil, err
	}
	if _, err = s.challenges.Delete(ctx, account.ID); err != nil {
		logrus.WithError(err).WithField("account_id", account.ID).Warn("failed to drop two-factor challenge")
	}

	carrier.ClearRefreshToken()
	return &types.MessageResponse{Message: MessageAccountDeleted}, nil
}

func (s *sessionService) AuthenticateAccess(tokenString string) (uint64, error) {
	if tokenString == "" {
		return 0, ErrUnauthorized
	}
	payload, err := s.tokens.Verify(token.KindAccess, tokenString)
	if err != nil {
		return 0, ErrUnauthorized
	}
	return payload.AccountID, nil
}

// findAccount resolves the holder of an access token. A missing row means the
// account was deleted after the token was issued.
func (s *sessionService) findAccount(ctx context.Context, accountID uint64) (*entity.Account, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		logrus.WithField("account_id", accountID).Debug(ErrAccountNotFound.Error())
		return nil, ErrUnauthorized
	}
	return account, nil
}

func (s *sessionService) newPasswordHash(password1, password2 string) (string, error) {
	if password1 != password2 {
		return "", ErrPasswordsMismatch
	}
	if err := s.policy.Validate(password1); err != nil {
		return "", fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}
	return s.passwords.Hash(password1)
}

func (s *sessionService) sendConfirmation(ctx context.Context, account *entity.Account) (string, error) {
	confirmation, err := s.tokens.Issue(token.KindConfirmation, account, s.now())
	if err != nil {
		return "", err
	}
	return s.delivery.Confirmation(ctx, account, confirmation), nil
}

func (s *sessionService) startSession(account *entity.Account, carrier RefreshCarrier) (*types.AuthResponse, error) {
	now := s.now()

	accessToken, err := s.tokens.Issue(token.KindAccess, account, now)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.tokens.Issue(token.KindRefresh, account, now)
	if err != nil {
		return nil, err
	}

	carrier.SetRefreshToken(refreshToken, s.tokens.TTL(token.KindRefresh))

	return &types.AuthResponse{
		Account:     types.NewAccountResponse(account),
		AccessToken: accessToken,
		ExpiresIn:   int64(s.tokens.TTL(token.KindAccess).Seconds()),
	}, nil
}
