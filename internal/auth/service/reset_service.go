package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/adityarizkyr/session-service/config"
	"github.com/adityarizkyr/session-service/internal/audit"
	"github.com/adityarizkyr/session-service/internal/auth/domain"
	"github.com/adityarizkyr/session-service/internal/auth/dto"
	autherror "github.com/adityarizkyr/session-service/internal/errors"
	"github.com/adityarizkyr/session-service/internal/mailer"
	"github.com/adityarizkyr/session-service/pkg/constant"
)

// ResetService runs the one-time-code password reset flow. Only a SHA-256
// digest of the code is ever persisted.
type ResetService struct {
	repo   domain.IdentityRepository
	mailer mailer.EmailSender
	cfg    *config.Config
	audit  audit.Sink
	now    func() time.Time
}

func NewResetService(repo domain.IdentityRepository, sender mailer.EmailSender, cfg *config.Config, sink audit.Sink) *ResetService {
	if sink == nil {
		sink = audit.NoOpSink{}
	}
	return &ResetService{
		repo:   repo,
		mailer: sender,
		cfg:    cfg,
		audit:  sink,
		now:    time.Now,
	}
}

func (s *ResetService) otpTTL() time.Duration {
	return time.Duration(s.cfg.OTPExpiryMin) * time.Minute
}

// RequestReset arms a fresh one-time code for an active, non-locked
// identity and hands it to the email sender. The code is persisted before
// delivery is attempted; a transport failure is reported to the caller
// but never rolls the stored code back, so a resend can still succeed.
func (s *ResetService) RequestReset(ctx context.Context, input dto.ForgotPasswordInput) error {
	email := domain.NormalizeEmail(input.Email)

	code, err := generateOTP()
	if err != nil {
		return err
	}

	var identity *domain.Identity
	swapped := false
	for attempt := 0; attempt < constant.MaxCASRetries && !swapped; attempt++ {
		identity, err = s.repo.GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		if identity == nil {
			return autherror.ErrUserNotFound
		}

		now := s.now()
		if !identity.IsActive {
			return autherror.ErrAccountInactive
		}
		if identity.Locked(now) {
			return &autherror.LockedError{LockUntil: *identity.LockUntil}
		}

		expected := identity.Clone()
		domain.IssueOTP(identity, code, now, s.otpTTL())

		swapped, err = s.repo.CompareAndSwapUpdate(ctx, identity, expected)
		if err != nil {
			return err
		}
	}
	if !swapped {
		return autherror.ErrConcurrentUpdate
	}

	s.audit.Emit(ctx, audit.Event{
		Timestamp:  s.now(),
		EventType:  audit.EventResetRequest,
		IdentityID: identity.ID,
		Email:      identity.Email,
		IP:         input.IPAddress,
		Success:    true,
	})

	if err := s.mailer.SendOTP(ctx, identity.Email, code, s.otpTTL()); err != nil {
		// The persisted code stays valid for a later resend.
		s.audit.Emit(ctx, audit.Event{
			Timestamp:  s.now(),
			EventType:  audit.EventResetRequest,
			IdentityID: identity.ID,
			Email:      identity.Email,
			IP:         input.IPAddress,
			Success:    false,
			Error:      err.Error(),
		})
		return fmt.Errorf("deliver reset code: %w", err)
	}

	return nil
}

// ConfirmReset consumes a pending code and installs the new password.
// Expired codes are cleared even though the request fails; a plain
// mismatch keeps the pending code. Replaying a consumed code fails
// because the state is already cleared.
func (s *ResetService) ConfirmReset(ctx context.Context, input dto.ResetPasswordInput) error {
	if len(input.NewPassword) < constant.MinPasswordLength {
		return autherror.ErrWeakPassword
	}

	email := domain.NormalizeEmail(input.Email)

	for attempt := 0; attempt < constant.MaxCASRetries; attempt++ {
		identity, err := s.repo.GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		if identity == nil {
			return autherror.ErrOTPNotRequested
		}

		now := s.now()
		expected := identity.Clone()

		if err := domain.ConsumeOTP(identity, input.OTP, now); err != nil {
			if errors.Is(err, autherror.ErrOTPExpired) {
				// Persist the cleared state so the expired code is gone
				// for good; a lost race just means someone else already
				// rewrote the OTP fields.
				if _, casErr := s.repo.CompareAndSwapUpdate(ctx, identity, expected); casErr != nil {
					return casErr
				}
			}
			s.emitConfirm(ctx, identity, input.IPAddress, false, err)
			return err
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		identity.PasswordHash = string(hashedPassword)
		identity.PasswordChangedAt = now.Add(-passwordChangeMargin)

		swapped, err := s.repo.CompareAndSwapUpdate(ctx, identity, expected)
		if err != nil {
			return err
		}
		if !swapped {
			continue
		}

		s.emitConfirm(ctx, identity, input.IPAddress, true, nil)

		if err := s.mailer.SendResetConfirmation(ctx, identity.Email); err != nil {
			// Best effort; the reset itself already succeeded.
			slog.WarnContext(ctx, "reset confirmation email failed",
				"email", identity.Email, "error", err)
		}

		return nil
	}

	return autherror.ErrConcurrentUpdate
}

func (s *ResetService) emitConfirm(ctx context.Context, identity *domain.Identity, ip string, success bool, cause error) {
	event := audit.Event{
		Timestamp:  s.now(),
		EventType:  audit.EventResetConfirm,
		IdentityID: identity.ID,
		Email:      identity.Email,
		IP:         ip,
		Success:    success,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	s.audit.Emit(ctx, event)
}

// generateOTP draws a uniformly random numeric code of constant.OTPLength
// digits from crypto/rand.
func generateOTP() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < constant.OTPLength; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate one-time code: %w", err)
	}
	return fmt.Sprintf("%0*d", constant.OTPLength, n), nil
}
