package mailer

import (
	"context"
	"log/slog"
	"time"
)

// LogMailer writes mail to the structured log instead of delivering it.
// Used in development when no SMTP endpoint is configured.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger.With("component", "mailer")}
}

func (m *LogMailer) SendOTP(ctx context.Context, email, code string, validFor time.Duration) error {
	m.logger.InfoContext(ctx, "password reset code issued",
		"email", email,
		"code", code,
		"valid_for", validFor.String(),
	)
	return nil
}

func (m *LogMailer) SendResetConfirmation(ctx context.Context, email string) error {
	m.logger.InfoContext(ctx, "password reset confirmed", "email", email)
	return nil
}
