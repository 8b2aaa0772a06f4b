package mailer

import (
	"context"
	"errors"
	"fmt"
	"html"

	"github.com/vibast-solutions/ms-go-accounts/config"

	"github.com/wneessen/go-mail"
)

type SMTPMailer struct {
	client      *mail.Client
	from        string
	frontEndURL string
}

func NewSMTPMailer(cfg config.MailerConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("mailer host is required")
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
	}
	if cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	from := cfg.From
	if from == "" {
		from = cfg.User
	}

	return &SMTPMailer{client: client, from: from, frontEndURL: cfg.FrontEndURL}, nil
}

func (m *SMTPMailer) SendConfirmation(ctx context.Context, to, name, token string) error {
	link := m.frontEndURL + "/confirmation/" + token
	body := fmt.Sprintf(`<p>Hello %s,</p>
<p>Click <a href="%s">here</a> to activate your account or go to this link: %s</p>
<p><small>This link will expire in an hour.</small></p>`, html.EscapeString(name), link, link)

	return m.send(ctx, to, "Email confirmation, "+name, body)
}

func (m *SMTPMailer) SendAccessCode(ctx context.Context, to, name, code string) error {
	body := fmt.Sprintf(`<p>Hello %s,</p>
<p>Your access code is: <b>%s</b></p>
<p><small>This code will expire in 15 minutes.</small></p>`, html.EscapeString(name), code)

	return m.send(ctx, to, "Your access code, "+name, body)
}

func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, name, token string) error {
	link := m.frontEndURL + "/reset-password/" + token
	body := fmt.Sprintf(`<p>Hello %s,</p>
<p>Your password reset link: <a href="%s">here</a></p>
<p>Or go to this link: %s</p>
<p><small>This link will expire in 30 minutes.</small></p>`, html.EscapeString(name), link, link)

	return m.send(ctx, to, "Password reset, "+name, body)
}

func (m *SMTPMailer) send(ctx context.Context, to, subject, body string) error {
	msg, err := m.compose(to, subject, body)
	if err != nil {
		return err
	}
	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func (m *SMTPMailer) compose(to, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, body)
	return msg, nil
}
