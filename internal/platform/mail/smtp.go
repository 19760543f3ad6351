// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"
)

// sendTimeout bounds a delivery when the caller's context has no deadline.
const sendTimeout = 15 * time.Second

// SMTPConfig holds the relay address and credentials.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	EnableSSL bool
	From      string
}

// SMTPSender sends mail through an SMTP relay.
type SMTPSender struct {
	cfg SMTPConfig
	now func() time.Time
}

// NewSMTPSender validates the relay settings.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, errors.New("mail: SMTP host is required")
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("mail: invalid SMTP port %d", cfg.Port)
	}
	if cfg.From == "" {
		return nil, errors.New("mail: sender address is required")
	}
	return &SMTPSender{cfg: cfg, now: time.Now}, nil
}

/*
Send delivers one message.

With EnableSSL the relay must offer STARTTLS; credentials are never sent in
clear text.
*/
func (sender *SMTPSender) Send(ctx context.Context, message Message) error {
	if err := message.Validate(); err != nil {
		return err
	}

	address := net.JoinHostPort(sender.cfg.Host, strconv.Itoa(sender.cfg.Port))

	dialer := net.Dialer{Timeout: sendTimeout}
	connection, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("smtp_dial_failed: %w", err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = sender.now().Add(sendTimeout)
	}
	_ = connection.SetDeadline(deadline)

	client, err := smtp.NewClient(connection, sender.cfg.Host)
	if err != nil {
		_ = connection.Close()
		return fmt.Errorf("smtp_handshake_failed: %w", err)
	}
	defer client.Close()

	if sender.cfg.EnableSSL {
		if supported, _ := client.Extension("STARTTLS"); !supported {
			return errors.New("smtp_starttls_unsupported")
		}
		if err := client.StartTLS(&tls.Config{ServerName: sender.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("smtp_starttls_failed: %w", err)
		}
	}

	if sender.cfg.Username != "" {
		auth := smtp.PlainAuth("", sender.cfg.Username, sender.cfg.Password, sender.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp_auth_failed: %w", err)
		}
	}

	if err := client.Mail(sender.cfg.From); err != nil {
		return fmt.Errorf("smtp_mail_from_failed: %w", err)
	}
	if err := client.Rcpt(message.To); err != nil {
		return fmt.Errorf("smtp_rcpt_failed: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp_data_failed: %w", err)
	}
	if _, err := writer.Write(compose(sender.cfg.From, message, sender.now())); err != nil {
		_ = writer.Close()
		return fmt.Errorf("smtp_write_failed: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("smtp_data_failed: %w", err)
	}

	return client.Quit()
}
