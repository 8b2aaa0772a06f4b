package service

import (
	"context"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"

	"github.com/sirupsen/logrus"
)

const (
	MessageConfirmationSent  = "registration successful, please check your email to confirm your account"
	MessageAccessCodeSent    = "login code sent to your email"
	MessagePasswordResetSent = "reset password email sent"
)

// Delivery hands confirmation tokens, login codes and reset tokens to the
// account owner and returns the message shown to the caller.
type Delivery interface {
	Confirmation(ctx context.Context, account *entity.Account, token string) string
	AccessCode(ctx context.Context, account *entity.Account, code string) string
	PasswordReset(ctx context.Context, account *entity.Account, token string) string
}

type Notifier interface {
	SendConfirmation(ctx context.Context, to, name, token string) error
	SendAccessCode(ctx context.Context, to, name, code string) error
	SendPasswordReset(ctx context.Context, to, name, token string) error
}

type AsyncRunner func(task func())

type directDelivery struct{}

// NewDirectDelivery returns secrets to the caller instead of sending them.
// Development only.
func NewDirectDelivery() Delivery {
	return directDelivery{}
}

func (directDelivery) Confirmation(_ context.Context, _ *entity.Account, token string) string {
	return token
}

func (directDelivery) AccessCode(_ context.Context, _ *entity.Account, code string) string {
	return code
}

func (directDelivery) PasswordReset(_ context.Context, _ *entity.Account, token string) string {
	return token
}

type NotifyDeliveryOption func(*notifyDelivery)

func WithAsyncRunner(runner AsyncRunner) NotifyDeliveryOption {
	return func(d *notifyDelivery) {
		if runner != nil {
			d.asyncRunner = runner
		}
	}
}

func WithSendTimeout(timeout time.Duration) NotifyDeliveryOption {
	return func(d *notifyDelivery) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

type notifyDelivery struct {
	notifier    Notifier
	asyncRunner AsyncRunner
	timeout     time.Duration
}

// NewNotifyDelivery sends through the notifier without waiting for it. Send
// failures are logged and never reach the caller.
func NewNotifyDelivery(notifier Notifier, opts ...NotifyDeliveryOption) Delivery {
	d := &notifyDelivery{
		notifier: notifier,
		asyncRunner: func(task func()) {
			go task()
		},
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *notifyDelivery) Confirmation(_ context.Context, account *entity.Account, token string) string {
	d.dispatch(account, "confirmation", func(ctx context.Context) error {
		return d.notifier.SendConfirmation(ctx, account.Email, account.FullName(), token)
	})
	return MessageConfirmationSent
}

func (d *notifyDelivery) AccessCode(_ context.Context, account *entity.Account, code string) string {
	d.dispatch(account, "access_code", func(ctx context.Context) error {
		return d.notifier.SendAccessCode(ctx, account.Email, account.FullName(), code)
	})
	return MessageAccessCodeSent
}

func (d *notifyDelivery) PasswordReset(_ context.Context, account *entity.Account, token string) string {
	d.dispatch(account, "password_reset", func(ctx context.Context) error {
		return d.notifier.SendPasswordReset(ctx, account.Email, account.FullName(), token)
	})
	return MessagePasswordResetSent
}

// The request context is not reused: the send outlives the request.
func (d *notifyDelivery) dispatch(account *entity.Account, kind string, send func(ctx context.Context) error) {
	accountID := account.ID
	d.asyncRunner(func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := send(ctx); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"account_id": accountID,
				"kind":       kind,
			}).Error("failed to deliver notification")
		}
	})
}
