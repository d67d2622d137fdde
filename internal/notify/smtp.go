// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package notify delivers account emails.
package notify

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/wneessen/go-mail"

	"github.com/holomush/gatekeeper/internal/auth"
)

// DefaultSendTimeout bounds a single SMTP exchange.
const DefaultSendTimeout = 10 * time.Second

// SMTPConfig configures an SMTPNotifier.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// TLS selects the transport policy: "mandatory", "opportunistic" or "none".
	TLS     string
	Timeout time.Duration
}

// sender is the part of *mail.Client the notifier uses.
type sender interface {
	DialAndSendWithContext(ctx context.Context, msgs ...*mail.Msg) error
}

// SMTPNotifier sends plain-text email through an SMTP relay.
type SMTPNotifier struct {
	from   string
	client sender
}

// NewSMTPNotifier validates cfg and builds the SMTP client. No connection is
// made until the first Send.
func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if cfg.Host == "" {
		return nil, oops.Code("NOTIFY_INVALID_CONFIG").Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, oops.Code("NOTIFY_INVALID_CONFIG").Errorf("sender address is required")
	}
	if err := mail.NewMsg().From(cfg.From); err != nil {
		return nil, oops.Code("NOTIFY_INVALID_CONFIG").With("from", cfg.From).Wrap(err)
	}
	policy, err := tlsPolicy(cfg.TLS)
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}

	opts := []mail.Option{
		mail.WithTLSPortPolicy(policy),
		mail.WithTimeout(timeout),
	}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, oops.Code("NOTIFY_INVALID_CONFIG").With("host", cfg.Host).Wrap(err)
	}
	return &SMTPNotifier{from: cfg.From, client: client}, nil
}

func tlsPolicy(name string) (mail.TLSPolicy, error) {
	switch name {
	case "", "mandatory":
		return mail.TLSMandatory, nil
	case "opportunistic":
		return mail.TLSOpportunistic, nil
	case "none":
		return mail.NoTLS, nil
	}
	return mail.NoTLS, oops.Code("NOTIFY_INVALID_CONFIG").Errorf("unknown tls policy %q", name)
}

// Send implements auth.Notifier. The context deadline bounds the exchange.
func (n *SMTPNotifier) Send(ctx context.Context, msg auth.Message) error {
	m, err := buildMessage(n.from, msg)
	if err != nil {
		return err
	}
	if err := n.client.DialAndSendWithContext(ctx, m); err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").
			With("operation", "smtp send").
			With("subject", msg.Subject).
			Wrap(err)
	}
	return nil
}

func buildMessage(from string, msg auth.Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, oops.Code("NOTIFY_INVALID_ADDRESS").With("from", from).Wrap(err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, oops.Code("NOTIFY_INVALID_ADDRESS").With("operation", "set recipient").Wrap(err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}

// Compile-time interface check.
var _ auth.Notifier = (*SMTPNotifier)(nil)
