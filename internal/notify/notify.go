// Package notify delivers visitor notifications by email and SMS. Delivery
// is best effort; callers log failures and carry on.
package notify

import (
	"context"
	"errors"
	"log/slog"
)

// Gateway sends notifications to visitors.
type Gateway interface {
	SendEmail(ctx context.Context, to, subject, body string) error
	SendSMS(ctx context.Context, to, body string) error
}

// EmailSender delivers a single email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender delivers a single text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// ErrNotConfigured is returned by a Dispatcher channel with no sender.
var ErrNotConfigured = errors.New("notification channel not configured")

// Dispatcher routes each channel to its own sender.
type Dispatcher struct {
	Email EmailSender
	SMS   SMSSender
}

// SendEmail delivers through the configured email sender.
func (d *Dispatcher) SendEmail(ctx context.Context, to, subject, body string) error {
	if d.Email == nil {
		return ErrNotConfigured
	}
	return d.Email.SendEmail(ctx, to, subject, body)
}

// SendSMS delivers through the configured SMS sender.
func (d *Dispatcher) SendSMS(ctx context.Context, to, body string) error {
	if d.SMS == nil {
		return ErrNotConfigured
	}
	return d.SMS.SendSMS(ctx, to, body)
}

// LogGateway writes notifications to the log instead of sending them.
type LogGateway struct {
	logger *slog.Logger
}

// NewLogGateway creates a gateway that only logs.
func NewLogGateway(logger *slog.Logger) *LogGateway {
	return &LogGateway{logger: logger}
}

// SendEmail logs the email.
func (g *LogGateway) SendEmail(ctx context.Context, to, subject, body string) error {
	g.logger.InfoContext(ctx, "email notification", "to", to, "subject", subject, "body", body)
	return nil
}

// SendSMS logs the text message.
func (g *LogGateway) SendSMS(ctx context.Context, to, body string) error {
	g.logger.InfoContext(ctx, "sms notification", "to", to, "body", body)
	return nil
}
