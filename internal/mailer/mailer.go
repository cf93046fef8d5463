package mailer

//go:generate mockgen -destination=../mocks/mock_email_sender.go -package=mocks github.com/adityarizkyr/session-service/internal/mailer EmailSender

import (
	"context"
	"time"
)

// EmailSender delivers the messages produced by the password-reset flow.
// Implementations report transport failures to the caller; they must not
// retry internally, the reset flow decides what a failed delivery means.
type EmailSender interface {
	SendOTP(ctx context.Context, email, code string, validFor time.Duration) error
	SendResetConfirmation(ctx context.Context, email string) error
}
