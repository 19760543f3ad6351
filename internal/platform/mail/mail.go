// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package mail delivers outbound notifications such as password reset links.

Implementations:

  - SMTPSender: plain SMTP with STARTTLS and PLAIN auth.
  - LogSender: development sink that only records the envelope.
*/
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/mail"
	"strings"
	"time"
)

// ErrInvalidMessage is returned for messages that cannot be sent safely.
var ErrInvalidMessage = errors.New("mail: invalid message")

// Message is a single plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a [Message].
type Sender interface {
	Send(ctx context.Context, message Message) error
}

// Validate rejects missing recipients and header injection attempts.
func (message Message) Validate() error {
	if _, err := mail.ParseAddress(message.To); err != nil {
		return fmt.Errorf("%w: recipient %q", ErrInvalidMessage, message.To)
	}
	if strings.ContainsAny(message.To, "\r\n") || strings.ContainsAny(message.Subject, "\r\n") {
		return fmt.Errorf("%w: line break in header", ErrInvalidMessage)
	}
	return nil
}

// compose renders the RFC 5322 message with CRLF line endings.
func compose(from string, message Message, now time.Time) []byte {
	var buffer bytes.Buffer

	writeHeader := func(name, value string) {
		buffer.WriteString(name)
		buffer.WriteString(": ")
		buffer.WriteString(value)
		buffer.WriteString("\r\n")
	}

	writeHeader("From", from)
	writeHeader("To", message.To)
	writeHeader("Subject", mime.QEncoding.Encode("utf-8", message.Subject))
	writeHeader("Date", now.UTC().Format(time.RFC1123Z))
	writeHeader("MIME-Version", "1.0")
	writeHeader("Content-Type", "text/plain; charset=UTF-8")
	writeHeader("Content-Transfer-Encoding", "8bit")
	buffer.WriteString("\r\n")

	body := strings.ReplaceAll(message.Body, "\r\n", "\n")
	buffer.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))

	return buffer.Bytes()
}
