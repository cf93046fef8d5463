package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/adityarizkyr/session-service/config"
	"github.com/adityarizkyr/session-service/internal/audit"
	"github.com/adityarizkyr/session-service/internal/auth/domain"
	"github.com/adityarizkyr/session-service/internal/auth/dto"
	autherror "github.com/adityarizkyr/session-service/internal/errors"
	"github.com/adityarizkyr/session-service/pkg/constant"
)

// passwordChangeMargin back-dates PasswordChangedAt so a token signed in
// the same second as the change is not rejected by the issued-at gate.
const passwordChangeMargin = time.Second

// UserService orchestrates registration, login, refresh, and forced
// logout. Every identity mutation goes through the repository's
// compare-and-swap with a bounded reload-and-retry loop, so concurrent
// requests against the same identity never lose lockout counts or issue
// tokens against a stale session epoch.
type UserService struct {
	repo         domain.IdentityRepository
	tokenService TokenGenerator
	cfg          *config.Config
	audit        audit.Sink
	now          func() time.Time
}

func NewUserService(repo domain.IdentityRepository, tokenService TokenGenerator, cfg *config.Config, sink audit.Sink) *UserService {
	if sink == nil {
		sink = audit.NoOpSink{}
	}
	return &UserService{
		repo:         repo,
		tokenService: tokenService,
		cfg:          cfg,
		audit:        sink,
		now:          time.Now,
	}
}

func (s *UserService) lockoutPolicy() domain.LockoutPolicy {
	return domain.LockoutPolicy{
		MaxAttempts:  s.cfg.LoginMaxAttempts,
		Window:       time.Duration(s.cfg.LoginAttemptWindowMin) * time.Minute,
		LockDuration: time.Duration(s.cfg.LockDurationMin) * time.Minute,
	}
}

func (s *UserService) Register(ctx context.Context, input dto.RegisterInput) (*domain.Identity, error) {
	email := domain.NormalizeEmail(input.Email)

	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, autherror.ErrEmailAlreadyInUse
	}

	if len(input.Password) < constant.MinPasswordLength {
		return nil, autherror.ErrWeakPassword
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := s.now()

	identity := &domain.Identity{
		ID:                uuid.NewString(),
		Email:             email,
		PasswordHash:      string(hashedPassword),
		Role:              domain.RoleViewer,
		IsActive:          true,
		SessionVersion:    0,
		PasswordChangedAt: now.Add(-passwordChangeMargin),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.repo.Create(ctx, identity); err != nil {
		return nil, err
	}

	s.audit.Emit(ctx, audit.Event{
		Timestamp:  s.now(),
		EventType:  audit.EventRegister,
		IdentityID: identity.ID,
		Email:      identity.Email,
		Success:    true,
	})

	return identity, nil
}

// Login authenticates credentials and rotates the session epoch.
//
// The lock check runs before the bcrypt comparison so locked accounts pay
// no hashing cost, and the epoch bump is committed before tokens are
// signed so a racing second login can never hand out tokens for a stale
// version.
func (s *UserService) Login(ctx context.Context, input dto.LoginInput) (*dto.TokenResponse, error) {
	email := domain.NormalizeEmail(input.Email)

	for attempt := 0; attempt < constant.MaxCASRetries; attempt++ {
		identity, err := s.repo.GetByEmail(ctx, email)
		if err != nil {
			return nil, err
		}

		now := s.now()

		// Unknown and inactive accounts get the same generic answer as a
		// wrong password.
		if identity == nil || !identity.IsActive {
			s.emitLogin(ctx, identity, email, input.IPAddress, false, autherror.ErrInvalidCredentials)
			return nil, autherror.ErrInvalidCredentials
		}

		if identity.Locked(now) {
			s.emitLogin(ctx, identity, email, input.IPAddress, false, autherror.ErrAccountLocked)
			return nil, &autherror.LockedError{LockUntil: *identity.LockUntil}
		}

		if bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(input.Password)) != nil {
			expected := identity.Clone()
			outcome := domain.RegisterFailedAttempt(identity, now, s.lockoutPolicy())

			swapped, err := s.repo.CompareAndSwapUpdate(ctx, identity, expected)
			if err != nil {
				return nil, err
			}
			if !swapped {
				continue
			}

			// The locked short-circuit above means any active lock here is
			// the one this attempt just created.
			if identity.Locked(now) {
				s.audit.Emit(ctx, audit.Event{
					Timestamp:  s.now(),
					EventType:  audit.EventLockout,
					IdentityID: identity.ID,
					Email:      identity.Email,
					IP:         input.IPAddress,
					Success:    true,
					Metadata:   map[string]string{"lock_until": identity.LockUntil.Format(time.RFC3339)},
				})
				return nil, &autherror.LockedError{LockUntil: *identity.LockUntil}
			}

			s.emitLogin(ctx, identity, email, input.IPAddress, false, autherror.ErrInvalidCredentials)
			return nil, &autherror.CredentialsError{AttemptsLeft: outcome.AttemptsLeft}
		}

		// Success: clear lockout state and advance the epoch in one write,
		// committed before any token referencing it exists.
		expected := identity.Clone()
		domain.ClearLockout(identity)
		identity.SessionVersion++

		swapped, err := s.repo.CompareAndSwapUpdate(ctx, identity, expected)
		if err != nil {
			return nil, err
		}
		if !swapped {
			continue
		}

		accessToken, refreshToken, _, err := s.tokenService.Generate(identity)
		if err != nil {
			return nil, err
		}

		s.emitLogin(ctx, identity, email, input.IPAddress, true, nil)

		return &dto.TokenResponse{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			User:         dto.NewUserOutput(identity),
		}, nil
	}

	return nil, autherror.ErrConcurrentUpdate
}

// Refresh re-signs a token pair at the unchanged session epoch. Bumping
// here would invalidate the very pair being refreshed, so the epoch is
// only ever advanced by Login and ForceLogout.
func (s *UserService) Refresh(ctx context.Context, input dto.RefreshInput) (*dto.TokenResponse, error) {
	claims, err := s.tokenService.VerifyRefreshToken(input.RefreshToken)
	if err != nil {
		return nil, err
	}

	identity, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, autherror.ErrSessionInvalidated
	}
	if !identity.IsActive {
		return nil, autherror.ErrAccountInactive
	}
	if claims.SessionVersion != identity.SessionVersion {
		return nil, autherror.ErrSessionInvalidated
	}
	if issuedBefore(claims, identity.PasswordChangedAt) {
		return nil, autherror.ErrPasswordChanged
	}

	accessToken, refreshToken, _, err := s.tokenService.Generate(identity)
	if err != nil {
		return nil, err
	}

	s.audit.Emit(ctx, audit.Event{
		Timestamp:  s.now(),
		EventType:  audit.EventRefresh,
		IdentityID: identity.ID,
		Email:      identity.Email,
		IP:         input.IPAddress,
		Success:    true,
	})

	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// ForceLogout invalidates every outstanding session for an identity by
// advancing its epoch.
func (s *UserService) ForceLogout(ctx context.Context, identityID string) error {
	for attempt := 0; attempt < constant.MaxCASRetries; attempt++ {
		identity, err := s.repo.GetByID(ctx, identityID)
		if err != nil {
			return err
		}
		if identity == nil {
			return autherror.ErrUserNotFound
		}

		expected := identity.Clone()
		identity.SessionVersion++

		swapped, err := s.repo.CompareAndSwapUpdate(ctx, identity, expected)
		if err != nil {
			return err
		}
		if !swapped {
			continue
		}

		s.audit.Emit(ctx, audit.Event{
			Timestamp:  s.now(),
			EventType:  audit.EventForceLogout,
			IdentityID: identity.ID,
			Email:      identity.Email,
			Success:    true,
		})
		return nil
	}

	return autherror.ErrConcurrentUpdate
}

func (s *UserService) emitLogin(ctx context.Context, identity *domain.Identity, email, ip string, success bool, cause error) {
	event := audit.Event{
		Timestamp: s.now(),
		EventType: audit.EventLogin,
		Email:     email,
		IP:        ip,
		Success:   success,
	}
	if identity != nil {
		event.IdentityID = identity.ID
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	s.audit.Emit(ctx, event)
}
