// Package mailer delivers single transactional emails.
package mailer

import (
	"context"
	"errors"
	"log/slog"
)

// ErrDelivery is returned when a message could not be handed to the
// provider. Callers count it as a failed send.
var ErrDelivery = errors.New("mailer: delivery failed")

// Email is one outbound message with an HTML body and a plain-text
// alternative.
type Email struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// Transport sends one email per call.
type Transport interface {
	Send(ctx context.Context, msg Email) error
}

// LogTransport writes messages to a logger instead of sending them. It is
// used in development when no provider credentials are configured.
type LogTransport struct {
	Logger *slog.Logger
}

// Send logs the envelope of msg. The text body is logged at debug level so
// links sent by the app (account confirmation) can be followed locally.
func (t LogTransport) Send(ctx context.Context, msg Email) error {
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if msg.To == "" {
		return errors.Join(ErrDelivery, errors.New("empty recipient"))
	}
	logger.InfoContext(ctx, "email not sent (log transport)",
		"from", msg.From,
		"to", msg.To,
		"subject", msg.Subject,
		"html_bytes", len(msg.HTML),
		"text_bytes", len(msg.Text))
	logger.DebugContext(ctx, "email body", "to", msg.To, "text", msg.Text)
	return nil
}
